package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/cinelog/internal/cover"
	"github.com/hitoshi/cinelog/internal/middleware"
	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/security"
)

// CoverPreviewHandler は外部URLカバーのプレビュー取得を提供するHTTPハンドラー。
// フロントエンドが保存前にカバー画像を確認するために使う。
// 内部ネットワークへのアクセスを防ぐため、取得はSSRFガード付き
// HTTPクライアント経由でのみ行う。
type CoverPreviewHandler struct {
	guard   security.CoverURLGuardService
	timeout time.Duration
}

// NewCoverPreviewHandler はCoverPreviewHandlerを生成する。
func NewCoverPreviewHandler(guard security.CoverURLGuardService, timeout time.Duration) *CoverPreviewHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoverPreviewHandler{
		guard:   guard,
		timeout: timeout,
	}
}

// Preview は指定URLの画像を取得して返す。
// GET /api/cover-preview?url=xxx
func (h *CoverPreviewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("urlパラメータが必要です"))
		return
	}

	if err := h.guard.ValidateURL(rawURL); err != nil {
		slog.Warn("cover preview URL rejected",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("カバー画像URLが許可されていません"))
		return
	}

	client := h.guard.NewSafeClient(h.timeout)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("URLの形式が不正です"))
		return
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("cover preview fetch failed",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway,
			model.NewValidationError("カバー画像を取得できませんでした"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		middleware.WriteErrorResponse(w, http.StatusBadGateway,
			model.NewValidationError("カバー画像を取得できませんでした"))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("画像以外のコンテンツです"))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")

	// アップロード上限と同じサイズまでに制限する
	if _, err := io.Copy(w, io.LimitReader(resp.Body, cover.MaxUploadSize)); err != nil {
		slog.Warn("cover preview copy failed",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
	}
}
