package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/travelplanner/internal/middleware"
	"github.com/hitoshi/travelplanner/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	loginURLFn func(ctx context.Context, redirectURI string) (string, error)
	callbackFn func(ctx context.Context, code, redirectURI, state string) (*loginResponse, error)
}

func (m *mockAuthService) LoginURL(ctx context.Context, redirectURI string) (string, error) {
	if m.loginURLFn != nil {
		return m.loginURLFn(ctx, redirectURI)
	}
	return "", errors.New("not implemented")
}

func (m *mockAuthService) Callback(ctx context.Context, code, redirectURI, state string) (*loginResponse, error) {
	if m.callbackFn != nil {
		return m.callbackFn(ctx, code, redirectURI, state)
	}
	return nil, errors.New("not implemented")
}

type mockSessionService struct {
	refreshFn func(ctx context.Context, refreshToken string) (*tokenPairResponse, error)
	logoutFn  func(ctx context.Context, userID, refreshToken string) error
}

func (m *mockSessionService) Refresh(ctx context.Context, refreshToken string) (*tokenPairResponse, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSessionService) Logout(ctx context.Context, userID, refreshToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, userID, refreshToken)
	}
	return errors.New("not implemented")
}

type mockUserService struct {
	getProfileFn func(ctx context.Context, user *model.User) (*userResponse, error)
	withdrawFn   func(ctx context.Context, userID, accessToken string) error
}

func (m *mockUserService) GetProfile(ctx context.Context, user *model.User) (*userResponse, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, user)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Withdraw(ctx context.Context, userID, accessToken string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID, accessToken)
	}
	return errors.New("not implemented")
}

// mockResolver は "valid-token" だけを user に解決する。
type mockResolver struct {
	user *model.User
}

func (m *mockResolver) GetCurrentUser(_ context.Context, token string) (*model.User, error) {
	if token == "valid-token" && m.user != nil {
		return m.user, nil
	}
	return nil, model.NewTokenError("token is invalid", nil)
}

var (
	_ AuthServiceInterface           = (*mockAuthService)(nil)
	_ SessionServiceInterface        = (*mockSessionService)(nil)
	_ UserServiceInterface           = (*mockUserService)(nil)
	_ middleware.CurrentUserResolver = (*mockResolver)(nil)

	_ AuthServiceInterface    = (*AuthServiceAdapter)(nil)
	_ SessionServiceInterface = (*SessionServiceAdapter)(nil)
	_ UserServiceInterface    = (*UserServiceAdapter)(nil)
)

// decodeDetail はエラーレスポンスの detail を取り出す。
func decodeDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Detail
}
