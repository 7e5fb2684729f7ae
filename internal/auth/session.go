package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/travelplanner/internal/metrics"
	"github.com/hitoshi/travelplanner/internal/model"
	"github.com/hitoshi/travelplanner/internal/repository"
)

// SessionService はトークンの発行・検証・ローテーション・失効を提供する。
// ブラックリストの参照に失敗した場合はトークンを拒否する。
type SessionService struct {
	codec     *TokenCodec
	blacklist repository.TokenBlacklistRepository
	userRepo  repository.UserRepository
	metrics   metrics.MetricsCollector
}

// NewSessionService はSessionServiceを生成する。
func NewSessionService(
	codec *TokenCodec,
	blacklist repository.TokenBlacklistRepository,
	userRepo repository.UserRepository,
	collector metrics.MetricsCollector,
) *SessionService {
	if collector == nil {
		collector = metrics.NewNoop()
	}
	return &SessionService{
		codec:     codec,
		blacklist: blacklist,
		userRepo:  userRepo,
		metrics:   collector,
	}
}

// CreateAccessToken はアクセストークンを発行する。
func (s *SessionService) CreateAccessToken(userID string, ttl time.Duration) (string, error) {
	return s.codec.CreateAccessToken(userID, ttl)
}

// CreateRefreshToken はリフレッシュトークンを発行する。
func (s *SessionService) CreateRefreshToken(userID string) (string, error) {
	return s.codec.CreateRefreshToken(userID)
}

// CreateTokenPair はアクセストークンとリフレッシュトークンを発行する。
func (s *SessionService) CreateTokenPair(userID string) (*model.TokenPair, error) {
	access, err := s.codec.CreateAccessToken(userID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	refresh, err := s.codec.CreateRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}
	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ValidateRefreshToken はリフレッシュトークンの署名・有効期限・種別を検証する。
func (s *SessionService) ValidateRefreshToken(token string) (*Claims, error) {
	return s.codec.DecodeRefresh(token)
}

// IsBlacklisted はトークンが失効済みかどうかを返す。
func (s *SessionService) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	listed, err := s.blacklist.IsBlacklisted(ctx, token)
	if err != nil {
		return false, err
	}
	if listed {
		s.metrics.RecordBlacklistHit()
	}
	return listed, nil
}

// Blacklist はトークンを有効期限まで失効済みとして登録する。
// 有効期限を読み取れないトークンは登録できない。
func (s *SessionService) Blacklist(ctx context.Context, token, reason string) error {
	expiresAt, err := s.codec.Expiry(token)
	if err != nil {
		return err
	}
	if err := s.blacklist.Add(ctx, token, expiresAt); err != nil {
		return err
	}
	s.metrics.RecordTokenRevoked(reason)
	return nil
}

// RefreshAndRotate はリフレッシュトークンを検証して新しいトークンの組を発行し、
// 提示されたリフレッシュトークンを失効させる。
func (s *SessionService) RefreshAndRotate(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	pair, err := s.refreshAndRotate(ctx, refreshToken)
	s.metrics.RecordTokenRefresh(err == nil)
	return pair, err
}

func (s *SessionService) refreshAndRotate(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	if err := s.rejectBlacklisted(ctx, refreshToken); err != nil {
		return nil, err
	}

	claims, err := s.codec.DecodeRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.activeUser(ctx, claims.Subject); err != nil {
		var notFound *model.NotFoundError
		if errors.As(err, &notFound) {
			return nil, model.NewTokenError("user not found", errors.New(claims.Subject))
		}
		return nil, err
	}

	pair, err := s.CreateTokenPair(claims.Subject)
	if err != nil {
		return nil, model.NewTokenError("failed to issue tokens", err)
	}

	if err := s.Blacklist(ctx, refreshToken, "rotated"); err != nil {
		return nil, err
	}

	slog.Info("refresh token rotated", slog.String("user_id", claims.Subject))
	return pair, nil
}

// GetCurrentUser はBearerトークンから現在のユーザーを取得する。
// ユーザーが存在しない場合は *model.NotFoundError を返す。
func (s *SessionService) GetCurrentUser(ctx context.Context, accessToken string) (*model.User, error) {
	if err := s.rejectBlacklisted(ctx, accessToken); err != nil {
		return nil, err
	}

	claims, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return nil, err
	}

	return s.activeUser(ctx, claims.Subject)
}

// Logout はログイン中ユーザー自身のリフレッシュトークンを失効させる。
// 既に失効済みのトークンに対しても成功する。
func (s *SessionService) Logout(ctx context.Context, userID, refreshToken string) error {
	claims, err := s.codec.DecodeRefresh(refreshToken)
	if err != nil {
		return err
	}
	if claims.Subject != userID {
		return model.NewTokenError("refresh token belongs to another user", nil)
	}

	if err := s.Blacklist(ctx, refreshToken, "logout"); err != nil {
		return err
	}

	slog.Info("user logged out", slog.String("user_id", userID))
	return nil
}

func (s *SessionService) rejectBlacklisted(ctx context.Context, token string) error {
	listed, err := s.IsBlacklisted(ctx, token)
	if err != nil {
		return err
	}
	if listed {
		return model.NewTokenError("token has been revoked", nil)
	}
	return nil
}

func (s *SessionService) activeUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}
	if !user.IsActive {
		return nil, model.NewTokenError("user is inactive", errors.New(userID))
	}
	return user, nil
}
