package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cinelog/internal/authz"
	"github.com/hitoshi/cinelog/internal/cover"
	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/movie"
	"github.com/hitoshi/cinelog/internal/security"
)

// MovieServiceInterface は映画ハンドラーが必要とするサービスインターフェース。
type MovieServiceInterface interface {
	Get(ctx context.Context, id string) (*model.Movie, error)
	ListByCollection(ctx context.Context, collectionID string) ([]*model.Movie, error)
	Create(ctx context.Context, identity *authz.Identity, collectionID string, input movie.Input) (*model.Movie, error)
	Update(ctx context.Context, identity *authz.Identity, id string, input movie.Input) (*model.Movie, error)
	Delete(ctx context.Context, identity *authz.Identity, id string) error
}

// CollectionGetter は映画の親コレクションを参照するためのインターフェース。
// Editableフラグの算出に使用する。
type CollectionGetter interface {
	Get(ctx context.Context, id string) (*model.Collection, error)
}

// CoverRecorder はカバー画像アップロードのメトリクス記録インターフェース。
type CoverRecorder interface {
	RecordCoverUpload()
	RecordCoverUploadRejected(reason string)
}

// MovieHandler は映画管理のHTTPハンドラー。
// 登録・更新はカバー画像ファイルを受けるためmultipart/form-dataで受理する。
type MovieHandler struct {
	service     MovieServiceInterface
	collections CollectionGetter
	gate        *authz.Gate
	urlGuard    security.CoverURLGuardService
	recorder    CoverRecorder
	maxBodySize int64
}

// NewMovieHandler はMovieHandlerを生成する。recorderはnil可。
func NewMovieHandler(
	service MovieServiceInterface,
	collections CollectionGetter,
	gate *authz.Gate,
	urlGuard security.CoverURLGuardService,
	recorder CoverRecorder,
	maxBodySize int64,
) *MovieHandler {
	if maxBodySize <= 0 {
		maxBodySize = cover.MaxUploadSize
	}
	return &MovieHandler{
		service:     service,
		collections: collections,
		gate:        gate,
		urlGuard:    urlGuard,
		recorder:    recorder,
		maxBodySize: maxBodySize,
	}
}

// movieResponse は映画情報のAPIレスポンス。
// CoverURLはカバーの指定方法に応じて配信用のURLに解決済み。
type movieResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Director     string    `json:"director"`
	Genre        string    `json:"genre"`
	Year         string    `json:"year"`
	Description  string    `json:"description"`
	CoverURL     string    `json:"cover_url"`
	CollectionID string    `json:"collection_id"`
	Editable     bool      `json:"editable"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// coverURLFor はカバー参照を配信用URLに解決する。
// ローカルファイルとプレースホルダーは/covers/配下で静的配信される。
func coverURLFor(m *model.Movie) string {
	switch m.CoverSource {
	case model.CoverSourceLocal:
		return "/covers/" + m.CoverImage
	case model.CoverSourceURL:
		return m.CoverImage
	default:
		return "/covers/" + model.DefaultCoverImage
	}
}

func (h *MovieHandler) toResponse(ctx context.Context, m *model.Movie, identity *authz.Identity) movieResponse {
	editable := false
	if identity != nil && !identity.Anonymous() {
		if parent, err := h.collections.Get(ctx, m.CollectionID); err == nil {
			editable = h.gate.IsOwner(identity, parent)
		}
	}
	return movieResponse{
		ID:           m.ID,
		Name:         m.Name,
		Director:     m.Director,
		Genre:        m.Genre,
		Year:         m.Year,
		Description:  m.Description,
		CoverURL:     coverURLFor(m),
		CollectionID: m.CollectionID,
		Editable:     editable,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// ListByCollection はコレクション配下の映画一覧を返す。認証は不要。
// GET /api/collections/{id}/movies
func (h *MovieHandler) ListByCollection(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	collectionID := chi.URLParam(r, "id")

	movies, err := h.service.ListByCollection(r.Context(), collectionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]movieResponse, 0, len(movies))
	for _, m := range movies {
		resp = append(resp, h.toResponse(r.Context(), m, identity))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"movies": resp,
	})
}

// Get は映画詳細を返す。認証は不要。
// GET /api/movies/{id}
func (h *MovieHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.toResponse(r.Context(), m, identity))
}

// Create は映画を登録する。
// POST /api/collections/{id}/movies (multipart/form-data)
func (h *MovieHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	collectionID := chi.URLParam(r, "id")

	input, err := h.parseMovieForm(w, r)
	if err != nil {
		h.recordRejection(err)
		middleware.WriteError(w, err)
		return
	}

	m, err := h.service.Create(r.Context(), identity, collectionID, *input)
	if err != nil {
		h.recordRejection(err)
		middleware.WriteError(w, err)
		return
	}

	h.recordUpload(input)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(h.toResponse(r.Context(), m, identity))
}

// Update は映画を更新する。空フィールドは「変更しない」として扱う。
// PATCH /api/movies/{id} (multipart/form-data)
func (h *MovieHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	input, err := h.parseMovieForm(w, r)
	if err != nil {
		h.recordRejection(err)
		middleware.WriteError(w, err)
		return
	}

	m, err := h.service.Update(r.Context(), identity, id, *input)
	if err != nil {
		h.recordRejection(err)
		middleware.WriteError(w, err)
		return
	}

	h.recordUpload(input)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.toResponse(r.Context(), m, identity))
}

// Delete は映画を削除する。ローカルカバーはベストエフォートで回収される。
// DELETE /api/movies/{id}
func (h *MovieHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), identity, id); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseMovieForm はmultipartフォームをmovie.Inputに変換する。
// ボディ全体をMaxBytesReaderで制限し、超過はPAYLOAD_TOO_LARGEとして返す。
func (h *MovieHandler) parseMovieForm(w http.ResponseWriter, r *http.Request) (*movie.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := r.ParseMultipartForm(h.maxBodySize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, model.NewPayloadTooLargeError(h.maxBodySize)
		}
		return nil, model.NewValidationError("multipart/form-dataの解析に失敗しました")
	}

	input := &movie.Input{
		Name:        r.FormValue("name"),
		Director:    r.FormValue("director"),
		Genre:       r.FormValue("genre"),
		Year:        r.FormValue("year"),
		Description: r.FormValue("description"),
		ImageSource: r.FormValue("image_source"),
		ImageURL:    r.FormValue("image_url"),
	}

	// 外部URLカバーはHTTP境界でSSRF検証を通す
	if input.ImageSource == cover.DirectiveURL && input.ImageURL != "" {
		if err := h.urlGuard.ValidateURL(input.ImageURL); err != nil {
			slog.Warn("cover URL rejected",
				slog.String("url", input.ImageURL),
				slog.String("error", err.Error()),
			)
			return nil, model.NewValidationError("カバー画像URLが許可されていません")
		}
	}

	if input.ImageSource == cover.DirectiveLocal {
		file, header, err := r.FormFile("cover_image")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				// ファイル未添付はサービス層でINVALID_UPLOADになる
				return input, nil
			}
			return nil, model.NewValidationError("カバー画像ファイルの読み取りに失敗しました")
		}
		input.Upload = &cover.Upload{
			Filename: header.Filename,
			Content:  file,
		}
	}

	return input, nil
}

func (h *MovieHandler) recordUpload(input *movie.Input) {
	if h.recorder != nil && input.ImageSource == cover.DirectiveLocal && input.Upload != nil {
		h.recorder.RecordCoverUpload()
	}
}

func (h *MovieHandler) recordRejection(err error) {
	if h.recorder == nil {
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeInvalidUpload, model.ErrCodePayloadTooLarge:
			h.recorder.RecordCoverUploadRejected(apiErr.Code)
		}
	}
}
