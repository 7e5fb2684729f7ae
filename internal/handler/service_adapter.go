package handler

import (
	"context"

	"github.com/hitoshi/travelplanner/internal/auth"
	"github.com/hitoshi/travelplanner/internal/model"
	"github.com/hitoshi/travelplanner/internal/user"
)

// AuthServiceAdapter は auth.LinkingService を AuthServiceInterface に適合させるアダプタ。
type AuthServiceAdapter struct {
	svc *auth.LinkingService
}

// NewAuthServiceAdapter はAuthServiceAdapterを生成する。
func NewAuthServiceAdapter(svc *auth.LinkingService) *AuthServiceAdapter {
	return &AuthServiceAdapter{svc: svc}
}

// LoginURL は認可画面のURLを返す。
func (a *AuthServiceAdapter) LoginURL(ctx context.Context, redirectURI string) (string, error) {
	return a.svc.LoginURL(ctx, redirectURI)
}

// Callback はログイン結果をhandlerレスポンス型で返す。
func (a *AuthServiceAdapter) Callback(ctx context.Context, code, redirectURI, state string) (*loginResponse, error) {
	result, err := a.svc.HandleCallback(ctx, auth.CallbackParams{
		Code:        code,
		RedirectURI: redirectURI,
		State:       state,
	})
	if err != nil {
		return nil, err
	}

	return &loginResponse{
		User:         toUserResponse(result.User, result.SocialAccounts),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    tokenTypeBearer,
	}, nil
}

// SessionServiceAdapter は auth.SessionService を SessionServiceInterface に適合させるアダプタ。
type SessionServiceAdapter struct {
	svc *auth.SessionService
}

// NewSessionServiceAdapter はSessionServiceAdapterを生成する。
func NewSessionServiceAdapter(svc *auth.SessionService) *SessionServiceAdapter {
	return &SessionServiceAdapter{svc: svc}
}

// Refresh はトークンをローテーションしhandlerレスポンス型で返す。
func (a *SessionServiceAdapter) Refresh(ctx context.Context, refreshToken string) (*tokenPairResponse, error) {
	pair, err := a.svc.RefreshAndRotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return toTokenPairResponse(pair), nil
}

// Logout はリフレッシュトークンを失効させる。
func (a *SessionServiceAdapter) Logout(ctx context.Context, userID, refreshToken string) error {
	return a.svc.Logout(ctx, userID, refreshToken)
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// GetProfile はユーザー情報をhandlerレスポンス型で返す。
func (a *UserServiceAdapter) GetProfile(ctx context.Context, u *model.User) (*userResponse, error) {
	profile, err := a.svc.GetProfile(ctx, u)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(profile.User, profile.SocialAccounts)
	return &resp, nil
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID, accessToken string) error {
	return a.svc.Withdraw(ctx, userID, accessToken)
}

func toTokenPairResponse(pair *model.TokenPair) *tokenPairResponse {
	return &tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    tokenTypeBearer,
	}
}
