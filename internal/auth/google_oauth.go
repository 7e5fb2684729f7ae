package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hitoshi/travelplanner/internal/model"
)

// userInfoMaxBytes はユーザー情報レスポンスとして読み込む最大サイズ。
const userInfoMaxBytes = 1 << 20

// ProviderTokens はIdPのトークンエンドポイントから受け取ったトークン。
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string // 再同意がない場合は空
	Expiry       time.Time
}

// ProviderProfile はIdPから取得したユーザー情報。
type ProviderProfile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// AuthCodeURL は認可画面のURLを生成する。redirectURI が空なら既定値を使う。
	AuthCodeURL(state, redirectURI string) string
	// ExchangeCode は認可コードをトークンに交換する。
	ExchangeCode(ctx context.Context, code, redirectURI string) (*ProviderTokens, error)
	// FetchProfile はアクセストークンでユーザー情報を取得する。
	FetchProfile(ctx context.Context, accessToken string) (*ProviderProfile, error)
}

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient はIdPへの通信に使うクライアント。タイムアウトを設定しておくこと。
	HTTPClient *http.Client
}

// GoogleOAuthProvider はGoogle OAuth 2.0による認証を提供する。
type GoogleOAuthProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	client      *http.Client
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	endpoint := google.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	userInfoURL := config.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &GoogleOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		client:      client,
	}
}

// AuthCodeURL はGoogle OAuthの認証URLを生成する。
// リフレッシュトークンを受け取るため、オフラインアクセスと再同意を要求する。
func (p *GoogleOAuthProvider) AuthCodeURL(state, redirectURI string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	}
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	return p.oauth.AuthCodeURL(state, opts...)
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// 失敗理由はログにのみ記録し、呼び出し側には固定文言のOAuthErrorを返す。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (*ProviderTokens, error) {
	var opts []oauth2.AuthCodeOption
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			slog.Warn("token exchange rejected by provider",
				slog.Int("status", retrieveErr.Response.StatusCode),
				slog.String("error_code", retrieveErr.ErrorCode),
				slog.String("body", string(retrieveErr.Body)),
			)
		} else {
			slog.Warn("token exchange failed", slog.String("error", err.Error()))
		}
		return nil, model.NewOAuthError("Failed to exchange authorization code", err)
	}
	if token.AccessToken == "" {
		return nil, model.NewOAuthError("Failed to exchange authorization code", errors.New("empty access token"))
	}

	return &ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
// v2 は id / verified_email、OpenID Connect の userinfo は sub / email_verified を返す。
type googleUserInfo struct {
	ID            string `json:"id"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	VerifiedEmail *bool  `json:"verified_email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// emailUnverified はIdPがメールアドレスを未検証と明示している場合に true を返す。
func (i googleUserInfo) emailUnverified() bool {
	return (i.VerifiedEmail != nil && !*i.VerifiedEmail) ||
		(i.EmailVerified != nil && !*i.EmailVerified)
}

// FetchProfile はアクセストークンでGoogleのユーザー情報を取得する。
func (p *GoogleOAuthProvider) FetchProfile(ctx context.Context, accessToken string) (*ProviderProfile, error) {
	const failure = "Failed to fetch user info"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, model.NewOAuthError(failure, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Warn("user info request failed", slog.String("error", err.Error()))
		return nil, model.NewOAuthError(failure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, userInfoMaxBytes))
	if err != nil {
		return nil, model.NewOAuthError(failure, err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Warn("user info rejected by provider",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return nil, model.NewOAuthError(failure, fmt.Errorf("status %d", resp.StatusCode))
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, model.NewOAuthError(failure, err)
	}

	id := info.ID
	if id == "" {
		id = info.Sub
	}
	if id == "" {
		return nil, model.NewOAuthError(failure, errors.New("missing id in user info"))
	}
	if info.Email == "" {
		return nil, model.NewOAuthError(failure, errors.New("missing email in user info"))
	}
	// メールアドレスで既存ユーザーに紐付けるため、未検証のアドレスは受け付けない
	if info.emailUnverified() {
		return nil, model.NewOAuthError("Email address is not verified", errors.New(info.Email))
	}

	return &ProviderProfile{
		ID:      id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
