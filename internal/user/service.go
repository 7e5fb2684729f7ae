// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/travelplanner/internal/model"
	"github.com/hitoshi/travelplanner/internal/repository"
)

// TokenRevoker はトークンの失効インターフェース。
type TokenRevoker interface {
	Blacklist(ctx context.Context, token, reason string) error
}

// Profile はユーザー本人に返すプロフィール。
type Profile struct {
	User           *model.User
	SocialAccounts []*model.SocialAccount
}

// Service はユーザー管理のサービス層。
// プロフィール取得と退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	accountRepo repository.SocialAccountRepository
	revoker     TokenRevoker
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	accountRepo repository.SocialAccountRepository,
	revoker TokenRevoker,
) *Service {
	return &Service{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		revoker:     revoker,
	}
}

// GetProfile はユーザーと連携アカウントの一覧を返す。
func (s *Service) GetProfile(ctx context.Context, user *model.User) (*Profile, error) {
	accounts, err := s.accountRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("連携アカウントの取得に失敗しました: %w", err)
	}
	return &Profile{User: user, SocialAccounts: accounts}, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 提示されたアクセストークンの失効 → user（+ CASCADE: social_accounts）
func (s *Service) Withdraw(ctx context.Context, userID, accessToken string) error {
	// ユーザー存在確認
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(userID)
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 使用中のアクセストークンを失効
	if s.revoker != nil && accessToken != "" {
		if err := s.revoker.Blacklist(ctx, accessToken, "withdraw"); err != nil {
			return fmt.Errorf("トークンの失効に失敗しました: %v", err)
		}
	}

	// 2. ユーザーを削除（social_accountsはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
