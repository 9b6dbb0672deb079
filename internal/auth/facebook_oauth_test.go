package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFacebookOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewFacebookOAuthProvider(FacebookOAuthConfig{
		AppID:       "test-app-id",
		RedirectURL: "http://localhost:8080/auth/facebook/callback",
	})

	url := provider.GetLoginURL("fb-state")

	tests := []struct {
		name     string
		contains string
	}{
		{"client_id", "client_id=test-app-id"},
		{"redirect_uri", "redirect_uri="},
		{"state", "state=fb-state"},
		{"response_type", "response_type=code"},
		{"scope email", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !containsStr(url, tt.contains) {
				t.Errorf("URL should contain %q, got %q", tt.contains, url)
			}
		})
	}
}

func TestFacebookOAuthProvider_ExchangeCode_Success(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fb-access-token",
			"token_type":   "bearer",
			"expires_in":   5183944,
		})
	}))
	defer tokenServer.Close()

	profileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("access_token"); got != "fb-access-token" {
			t.Errorf("unexpected access_token: %q", got)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "fb-user-42",
			"name":  "Facebook User",
			"email": "fb@example.com",
		})
	}))
	defer profileServer.Close()

	pictureServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"url": "https://example.com/fb-pic.jpg",
			},
		})
	}))
	defer pictureServer.Close()

	provider := NewFacebookOAuthProvider(FacebookOAuthConfig{
		AppID:       "test-app-id",
		AppSecret:   "test-app-secret",
		RedirectURL: "http://localhost:8080/auth/facebook/callback",
		TokenURL:    tokenServer.URL,
		ProfileURL:  profileServer.URL,
		PictureURL:  pictureServer.URL,
	})

	userInfo, err := provider.ExchangeCode(context.Background(), "fb-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if userInfo.ProviderUserID != "fb-user-42" {
		t.Errorf("ProviderUserID = %q, want %q", userInfo.ProviderUserID, "fb-user-42")
	}
	if userInfo.Email != "fb@example.com" {
		t.Errorf("Email = %q, want %q", userInfo.Email, "fb@example.com")
	}
	if userInfo.Picture != "https://example.com/fb-pic.jpg" {
		t.Errorf("Picture = %q, want %q", userInfo.Picture, "https://example.com/fb-pic.jpg")
	}
	if userInfo.Provider != "facebook" {
		t.Errorf("Provider = %q, want %q", userInfo.Provider, "facebook")
	}
}

func TestFacebookOAuthProvider_ExchangeCode_PictureFailureTolerated(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fb-access-token",
		})
	}))
	defer tokenServer.Close()

	profileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "fb-user-42",
			"name":  "Facebook User",
			"email": "fb@example.com",
		})
	}))
	defer profileServer.Close()

	pictureServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer pictureServer.Close()

	provider := NewFacebookOAuthProvider(FacebookOAuthConfig{
		AppID:      "test-app-id",
		AppSecret:  "test-app-secret",
		TokenURL:   tokenServer.URL,
		ProfileURL: profileServer.URL,
		PictureURL: pictureServer.URL,
	})

	// 画像取得の失敗はログイン自体を妨げない
	userInfo, err := provider.ExchangeCode(context.Background(), "fb-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if userInfo.Picture != "" {
		t.Errorf("Picture = %q, want empty", userInfo.Picture)
	}
}

func TestFacebookOAuthProvider_ExchangeCode_EmptyToken_ReturnsError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{})
	}))
	defer tokenServer.Close()

	provider := NewFacebookOAuthProvider(FacebookOAuthConfig{
		AppID:     "test-app-id",
		AppSecret: "test-app-secret",
		TokenURL:  tokenServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "code"); err == nil {
		t.Fatal("expected error for empty access token")
	}
}
