package middleware

import "net/http"

// NewSecurityHeadersMiddleware は全レスポンスに防御的ヘッダーを付与する
// ミドルウェアを返す。カバー画像はユーザー投稿ファイルを配信するため、
// nosniffとCSPでアップロード経由のXSSを抑止する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self' https:")
			next.ServeHTTP(w, r)
		})
	}
}
