// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/travelplanner/internal/middleware"
)

// AuthServiceInterface はOAuthログインのハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// LoginURL はstateを発行し認可画面のURLを返す。
	LoginURL(ctx context.Context, redirectURI string) (string, error)
	// Callback は認可コードを検証してログインを完了する。
	Callback(ctx context.Context, code, redirectURI, state string) (*loginResponse, error)
}

// SessionServiceInterface はトークン管理のハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	// Refresh はリフレッシュトークンをローテーションする。
	Refresh(ctx context.Context, refreshToken string) (*tokenPairResponse, error)
	// Logout はログイン中ユーザーのリフレッシュトークンを失効させる。
	Logout(ctx context.Context, userID, refreshToken string) error
}

// AuthHandler はOAuth認証・トークン関連のHTTPハンドラー。
type AuthHandler struct {
	auth     AuthServiceInterface
	sessions SessionServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(auth AuthServiceInterface, sessions SessionServiceInterface) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
	}
}

// Login はGoogle OAuthの認可画面URLを返す。
// GET /auth/google/login?redirect_uri=xxx
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	url, err := h.auth.LoginURL(r.Context(), r.URL.Query().Get("redirect_uri"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginURLResponse{URL: url})
}

// Callback はOAuthコールバックを処理し、ユーザー情報とトークンを返す。
// GET /auth/google/callback?code=xxx&state=yyy&redirect_uri=zzz
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	resp, err := h.auth.Callback(r.Context(), q.Get("code"), q.Get("redirect_uri"), q.Get("state"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout はリフレッシュトークンを失効させる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteNotAuthenticated(w)
		return
	}

	refreshToken, err := decodeRefreshTokenRequest(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.sessions.Logout(r.Context(), userID, refreshToken); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detailResponse{Detail: "Successfully logged out"})
}

// Refresh はリフレッシュトークンを新しいトークンの組と交換する。
// POST /auth/token/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := decodeRefreshTokenRequest(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.sessions.Refresh(r.Context(), refreshToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
