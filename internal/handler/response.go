package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/travelplanner/internal/middleware"
	"github.com/hitoshi/travelplanner/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの最大サイズ。
const maxRequestBodyBytes = 1 << 20

// tokenTypeBearer はトークンレスポンスの token_type。
const tokenTypeBearer = "bearer"

// socialAccountResponse は連携アカウントのレスポンス型。トークンは含めない。
type socialAccountResponse struct {
	ID              string    `json:"id"`
	Service         string    `json:"service"`
	SocialAccountID string    `json:"social_account_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// userResponse はユーザー情報のレスポンス型。
type userResponse struct {
	ID             string                  `json:"id"`
	FullName       string                  `json:"full_name"`
	Email          string                  `json:"email"`
	ProfilePicture *string                 `json:"profile_picture"`
	IsActive       bool                    `json:"is_active"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	SocialAccounts []socialAccountResponse `json:"social_accounts"`
}

// loginResponse はOAuthコールバック成功時のレスポンス型。
type loginResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
}

// tokenPairResponse はトークン更新時のレスポンス型。
type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// loginURLResponse はログインURL発行時のレスポンス型。
type loginURLResponse struct {
	URL string `json:"url"`
}

// detailResponse はメッセージのみのレスポンス型。
type detailResponse struct {
	Detail string `json:"detail"`
}

// refreshTokenRequest はリフレッシュトークンを受け取るリクエスト型。
type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// toUserResponse はドメインのユーザーと連携アカウントをレスポンス型に変換する。
func toUserResponse(user *model.User, accounts []*model.SocialAccount) userResponse {
	resp := userResponse{
		ID:             user.ID,
		FullName:       user.FullName,
		Email:          user.Email,
		IsActive:       user.IsActive,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
		SocialAccounts: make([]socialAccountResponse, 0, len(accounts)),
	}
	if user.ProfilePicture != "" {
		picture := user.ProfilePicture
		resp.ProfilePicture = &picture
	}
	for _, a := range accounts {
		resp.SocialAccounts = append(resp.SocialAccounts, socialAccountResponse{
			ID:              a.ID,
			Service:         a.Service,
			SocialAccountID: a.SocialAccountID,
			CreatedAt:       a.CreatedAt,
		})
	}
	return resp
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeRefreshTokenRequest はリクエストボディから refresh_token を読み取る。
// ボディが不正または refresh_token が空の場合は *model.ValidationError を返す。
func decodeRefreshTokenRequest(w http.ResponseWriter, r *http.Request) (string, error) {
	var req refreshTokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		return "", &model.ValidationError{Message: "invalid request body"}
	}
	if req.RefreshToken == "" {
		return "", &model.ValidationError{Message: "refresh_token is required"}
	}
	return req.RefreshToken, nil
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 内部エラーの詳細はログにのみ記録する。
func handleServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *model.ValidationError
		oauthErr      *model.OAuthError
		tokenErr      *model.TokenError
		notFoundErr   *model.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, validationErr.Message)
	case errors.As(err, &oauthErr):
		if oauthErr.Internal {
			slog.Error("oauth login failed", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, oauthErr.Message)
			return
		}
		slog.Warn("oauth login rejected", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, oauthErr.Message)
	case errors.As(err, &tokenErr):
		slog.Info("token rejected", slog.String("reason", tokenErr.Error()))
		middleware.WriteInvalidToken(w)
	case errors.As(err, &notFoundErr):
		middleware.WriteErrorResponse(w, http.StatusNotFound, notFoundErr.Error())
	default:
		slog.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
