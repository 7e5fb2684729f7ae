// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/travelplanner/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスの完全一致でユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが既に登録済みの場合は ErrDuplicate を返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsocial_accountsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SocialAccountRepository は外部IdP連携アカウントの永続化インターフェース。
type SocialAccountRepository interface {
	// FindByServiceAndAccountID はサービス名とIdP側IDで連携アカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByServiceAndAccountID(ctx context.Context, service, socialAccountID string) (*model.SocialAccount, error)

	// ListByUserID はユーザーの連携アカウント一覧を作成順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.SocialAccount, error)

	// Create は連携アカウントを作成する。
	// (service, social_account_id) が既に存在する場合は ErrDuplicate を返す。
	Create(ctx context.Context, account *model.SocialAccount) error

	// UpdateTokens は連携アカウントのトークンを上書きする。所有ユーザーは変更しない。
	// refreshToken が空の場合は保存済みの値を維持する。
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error
}

// TokenBlacklistRepository は失効済みリフレッシュトークンの永続化インターフェース。
// エラーは *model.TokenError として返す。
type TokenBlacklistRepository interface {
	// Add はトークンを失効済みとして登録する。既に登録済みの場合は何もしない。
	Add(ctx context.Context, token string, expiresAt time.Time) error

	// IsBlacklisted はトークンが失効済みかどうかを返す。
	IsBlacklisted(ctx context.Context, token string) (bool, error)

	// PruneExpired は expires_at が now より前のエントリを削除し、削除件数を返す。
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
