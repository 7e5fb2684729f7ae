// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/travelplanner/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

const (
	userContextKey  = contextKey("user")
	tokenContextKey = contextKey("bearer_token")
)

// CurrentUserResolver はBearerトークンからユーザーを解決するインターフェース。
// auth.SessionService が実装する。
type CurrentUserResolver interface {
	GetCurrentUser(ctx context.Context, accessToken string) (*model.User, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 認証済みユーザーとトークンをリクエストコンテキストに注入する。
// ヘッダーが無い・形式不正の場合は "Not authenticated"、
// トークンが無効・失効済みの場合は "Invalid token" の401を返す。
func NewAuthMiddleware(resolver CurrentUserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Authorizationヘッダーからトークンを取得
			token, ok := bearerToken(r)
			if !ok {
				WriteNotAuthenticated(w)
				return
			}

			// 2. トークンを検証しユーザーを取得
			user, err := resolver.GetCurrentUser(r.Context(), token)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			// 3. 認証済みユーザーをコンテキストに注入
			ctx := ContextWithUser(r.Context(), user)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken は "Authorization: Bearer <token>" からトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, err error) {
	var tokenErr *model.TokenError
	var notFound *model.NotFoundError
	switch {
	case errors.As(err, &tokenErr):
		slog.Info("bearer token rejected", slog.String("reason", tokenErr.Error()))
		WriteInvalidToken(w)
	case errors.As(err, &notFound):
		WriteErrorResponse(w, http.StatusNotFound, notFound.Error())
	default:
		slog.Error("failed to authenticate request", slog.String("error", err.Error()))
		WriteInternalServerError(w)
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// BearerTokenFromContext は認証に使われたアクセストークンを取得する。
func BearerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// ロギングミドルウェアの内側で呼ばれた場合はアクセスログにもユーザーIDを記録する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok && user != nil {
		info.userID = user.ID
	}
	return context.WithValue(ctx, userContextKey, user)
}
