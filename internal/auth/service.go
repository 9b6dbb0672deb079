// Package auth はOAuth認証フロー、外部IDの解決、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cinelog/internal/model"
	"github.com/hitoshi/cinelog/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーで検証済みのユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Picture        string
	Provider       string // "google", "facebook"
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// GoogleとFacebookの2つのIdPに対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、検証済みユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// 外部IDからローカルユーザーへの解決（Identity Resolver）とセッション発行を担う。
type Service struct {
	providers   map[string]OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	providers map[string]OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		providers:   providers,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// GetLoginURL は指定プロバイダーのOAuth認証URLを生成する。
func (s *Service) GetLoginURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", fmt.Errorf("unknown oauth provider: %s", provider)
	}
	return p.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 外部IDの解決はemailをキーに行い、未登録の場合はusersレコードと
// identitiesレコードを同時に自動作成する。
func (s *Service) HandleCallback(ctx context.Context, provider, code string) (*model.Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider: %s", provider)
	}

	// 1. 認可コードをトークンに交換し、検証済みユーザー情報を取得
	userInfo, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. 外部IDをローカルユーザーに解決
	userID, err := s.Resolve(ctx, userInfo)
	if err != nil {
		return nil, err
	}

	// 3. セッションを発行
	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Resolve は検証済みの外部IDをローカルユーザーIDに解決する。
// emailで既存ユーザーを検索し、見つかればそのIDを返す
// （プロフィール項目は再ログイン時に更新しない）。
// 未登録の場合はusersとidentitiesを同一トランザクションで作成する。
// ほぼ同時の初回ログインでemailのUNIQUE制約に衝突した場合は
// 「既に存在する」とみなして検索を1回リトライする。
func (s *Service) Resolve(ctx context.Context, userInfo *OAuthUserInfo) (string, error) {
	existing, err := s.userRepo.FindByEmail(ctx, userInfo.Email)
	if err != nil {
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}

	if existing != nil {
		// 既存ユーザー: 別IdPからの初回ログインならidentityの紐付けだけ追加する
		if err := s.ensureIdentity(ctx, existing.ID, userInfo); err != nil {
			return "", err
		}
		slog.Info("existing user logged in",
			slog.String("user_id", existing.ID),
			slog.String("provider", userInfo.Provider),
		)
		return existing.ID, nil
	}

	// 新規ユーザー: usersレコードとidentitiesレコードを同時に作成
	now := time.Now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     userInfo.Email,
		Name:      userInfo.Name,
		Picture:   userInfo.Picture,
		CreatedAt: now,
		UpdatedAt: now,
	}
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUser.ID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      now,
	}

	err = s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// 同時初回ログインの競合。作成済みの行を検索し直す。
		winner, ferr := s.userRepo.FindByEmail(ctx, userInfo.Email)
		if ferr != nil {
			return "", fmt.Errorf("failed to re-find user after duplicate email: %w", ferr)
		}
		if winner == nil {
			return "", fmt.Errorf("duplicate email reported but user not found: %s", userInfo.Email)
		}
		slog.Info("concurrent first login resolved to existing user",
			slog.String("user_id", winner.ID),
			slog.String("provider", userInfo.Provider),
		)
		return winner.ID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("email", userInfo.Email),
		slog.String("provider", userInfo.Provider),
	)
	return newUser.ID, nil
}

// ensureIdentity は(provider, provider_user_id)のidentity行がなければ追加する。
func (s *Service) ensureIdentity(ctx context.Context, userID string, userInfo *OAuthUserInfo) error {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return fmt.Errorf("failed to find identity: %w", err)
	}
	if identity != nil {
		return nil
	}

	return s.identRepo.Create(ctx, &model.Identity{
		ID:             uuid.New().String(),
		UserID:         userID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      time.Now(),
	})
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
