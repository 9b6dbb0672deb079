package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	defaultFacebookAuthURL    = "https://www.facebook.com/v12.0/dialog/oauth"
	defaultFacebookTokenURL   = "https://graph.facebook.com/v12.0/oauth/access_token"
	defaultFacebookProfileURL = "https://graph.facebook.com/v12.0/me"
	defaultFacebookPictureURL = "https://graph.facebook.com/v12.0/me/picture"
)

// FacebookOAuthConfig はFacebook OAuthプロバイダーの設定。
type FacebookOAuthConfig struct {
	AppID       string
	AppSecret   string
	RedirectURL string

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	ProfileURL string
	PictureURL string
}

// FacebookOAuthProvider はFacebook LoginのOAuthフローによる認証を提供する。
// プロフィール画像は別エンドポイントのため、ユーザー情報と2回に分けて取得する。
type FacebookOAuthProvider struct {
	config FacebookOAuthConfig
}

// NewFacebookOAuthProvider はFacebookOAuthProviderを生成する。
func NewFacebookOAuthProvider(config FacebookOAuthConfig) *FacebookOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultFacebookAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultFacebookTokenURL
	}
	if config.ProfileURL == "" {
		config.ProfileURL = defaultFacebookProfileURL
	}
	if config.PictureURL == "" {
		config.PictureURL = defaultFacebookPictureURL
	}
	return &FacebookOAuthProvider{config: config}
}

// GetLoginURL はFacebook Loginの認証URLを生成する。
// スコープにはemailを含む。
func (p *FacebookOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.AppID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"email,public_profile"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// facebookTokenResponse はFacebookのトークンエンドポイントのレスポンス。
type facebookTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// facebookProfile はGraph APIの/meエンドポイントのレスポンス。
type facebookProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// facebookPicture はGraph APIの/me/pictureエンドポイントのレスポンス。
type facebookPicture struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *FacebookOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	tokenResp, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	profile, err := p.fetchProfile(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	// プロフィール画像は別API呼び出しで取得する。
	// 画像が取れなくてもログイン自体は成立させる。
	picture, err := p.fetchPictureURL(ctx, tokenResp.AccessToken)
	if err != nil {
		picture = ""
	}

	return &OAuthUserInfo{
		ProviderUserID: profile.ID,
		Email:          profile.Email,
		Name:           profile.Name,
		Picture:        picture,
		Provider:       "facebook",
	}, nil
}

// exchangeToken は認可コードをアクセストークンに交換する。
func (p *FacebookOAuthProvider) exchangeToken(ctx context.Context, code string) (*facebookTokenResponse, error) {
	params := url.Values{
		"client_id":     {p.config.AppID},
		"client_secret": {p.config.AppSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"code":          {code},
	}

	body, err := p.get(ctx, p.config.TokenURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var tokenResp facebookTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tokenResp, nil
}

// fetchProfile はアクセストークンでGraph APIのユーザー情報を取得する。
func (p *FacebookOAuthProvider) fetchProfile(ctx context.Context, accessToken string) (*facebookProfile, error) {
	params := url.Values{
		"fields":       {"name,id,email"},
		"access_token": {accessToken},
	}

	body, err := p.get(ctx, p.config.ProfileURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var profile facebookProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}

	if profile.ID == "" {
		return nil, fmt.Errorf("empty id in profile response")
	}

	return &profile, nil
}

// fetchPictureURL はプロフィール画像のURLを取得する。
func (p *FacebookOAuthProvider) fetchPictureURL(ctx context.Context, accessToken string) (string, error) {
	params := url.Values{
		"redirect":     {"0"},
		"height":       {"200"},
		"width":        {"200"},
		"access_token": {accessToken},
	}

	body, err := p.get(ctx, p.config.PictureURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}

	var picture facebookPicture
	if err := json.Unmarshal(body, &picture); err != nil {
		return "", fmt.Errorf("failed to parse picture response: %w", err)
	}

	return picture.Data.URL, nil
}

// get はGraph APIへのGETリクエストを実行し、ボディを返す。
func (p *FacebookOAuthProvider) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph api returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// compile-time interface check
var _ OAuthProvider = (*FacebookOAuthProvider)(nil)
