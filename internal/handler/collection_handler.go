package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cinelog/internal/authz"
	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/model"
)

// CollectionServiceInterface はコレクションハンドラーが必要とするサービスインターフェース。
type CollectionServiceInterface interface {
	List(ctx context.Context) ([]*model.Collection, error)
	Get(ctx context.Context, id string) (*model.Collection, error)
	Create(ctx context.Context, identity *authz.Identity, name string) (*model.Collection, error)
	Update(ctx context.Context, identity *authz.Identity, id, name string) (*model.Collection, error)
	Delete(ctx context.Context, identity *authz.Identity, id string) error
}

// CollectionHandler はコレクション管理のHTTPハンドラー。
type CollectionHandler struct {
	service CollectionServiceInterface
	gate    *authz.Gate
}

// NewCollectionHandler はCollectionHandlerを生成する。
func NewCollectionHandler(service CollectionServiceInterface, gate *authz.Gate) *CollectionHandler {
	return &CollectionHandler{
		service: service,
		gate:    gate,
	}
}

// collectionRequest はコレクションの作成・更新リクエストのボディ。
type collectionRequest struct {
	Name string `json:"name"`
}

// collectionResponse はコレクション情報のAPIレスポンス。
// Editableはリクエスト主体が所有者かどうかを示す。
type collectionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Editable  bool      `json:"editable"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *CollectionHandler) toResponse(c *model.Collection, identity *authz.Identity) collectionResponse {
	return collectionResponse{
		ID:        c.ID,
		Name:      c.Name,
		Editable:  h.gate.IsOwner(identity, c),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// List はコレクション一覧を返す。認証は不要。
// GET /api/collections
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	collections, err := h.service.List(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]collectionResponse, 0, len(collections))
	for _, c := range collections {
		resp = append(resp, h.toResponse(c, identity))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"collections": resp,
	})
}

// Get はコレクション詳細を返す。認証は不要。
// GET /api/collections/{id}
func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.toResponse(c, identity))
}

// Create はコレクションを作成する。
// POST /api/collections
func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	c, err := h.service.Create(r.Context(), identity, req.Name)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(h.toResponse(c, identity))
}

// Update はコレクション名を変更する。
// PATCH /api/collections/{id}
func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	c, err := h.service.Update(r.Context(), identity, id, req.Name)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.toResponse(c, identity))
}

// Delete はコレクションと配下の映画をまとめて削除する。
// DELETE /api/collections/{id}
func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), identity, id); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
