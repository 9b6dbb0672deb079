package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/cinelog/internal/model"
)

// mockSessionFinder はSessionFinderのテスト用実装。
type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

var _ SessionFinder = (*mockSessionFinder)(nil)

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.findByIDFn(ctx, id)
}

func validFinder(t *testing.T, wantID, userID string) *mockSessionFinder {
	t.Helper()
	return &mockSessionFinder{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			if id != wantID {
				t.Errorf("session id = %q, want %q", id, wantID)
			}
			return &model.Session{ID: id, UserID: userID}, nil
		},
	}
}

func TestSessionMiddleware_ValidSession_InjectsUserID(t *testing.T) {
	mw := NewSessionMiddleware(validFinder(t, "sess-1", "user-1"))

	var gotUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("UserIDFromContext() error = %v", err)
		}
		gotUserID = userID
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/collections", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if gotUserID != "user-1" {
		t.Errorf("user id = %q, want user-1", gotUserID)
	}
}

func TestSessionMiddleware_Unauthenticated_401(t *testing.T) {
	tests := []struct {
		name   string
		finder *mockSessionFinder
		cookie *http.Cookie
	}{
		{
			"Cookieなし",
			&mockSessionFinder{findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
				t.Error("FindByID should not be called")
				return nil, nil
			}},
			nil,
		},
		{
			"セッションが存在しないまたは期限切れ",
			&mockSessionFinder{findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
				return nil, nil
			}},
			&http.Cookie{Name: "session_id", Value: "expired"},
		},
		{
			"検索エラー",
			&mockSessionFinder{findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
				return nil, fmt.Errorf("db down")
			}},
			&http.Cookie{Name: "session_id", Value: "sess-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewSessionMiddleware(tt.finder)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be reached")
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/collections", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}

			var body ErrorResponseBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if body.Code != model.ErrCodeAuthRequired {
				t.Errorf("error code = %q, want %q", body.Code, model.ErrCodeAuthRequired)
			}
		})
	}
}

func TestOptionalSessionMiddleware_Anonymous_PassesThrough(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			return nil, nil
		},
	}
	mw := NewOptionalSessionMiddleware(finder)

	var identityWasNil bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identityWasNil = IdentityFromContext(r.Context()) == nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/collections", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for anonymous read", rec.Code)
	}
	if !identityWasNil {
		t.Error("anonymous request should carry no identity")
	}
}

func TestOptionalSessionMiddleware_ValidSession_InjectsIdentity(t *testing.T) {
	mw := NewOptionalSessionMiddleware(validFinder(t, "sess-1", "user-1"))

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil || identity.UserID != "user-1" {
			t.Errorf("identity = %+v", identity)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/collections", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("missing user id should return error")
	}
}

func TestContextWithUserID_RoundTrip(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-9")
	got, err := UserIDFromContext(ctx)
	if err != nil || got != "user-9" {
		t.Errorf("UserIDFromContext() = (%q, %v)", got, err)
	}
}
