package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/travelplanner/internal/model"
)

// PostgresTokenBlacklistRepo はPostgreSQLを使用したトークンブラックリスト。
type PostgresTokenBlacklistRepo struct {
	db *sql.DB
}

// NewPostgresTokenBlacklistRepo はPostgresTokenBlacklistRepoを生成する。
func NewPostgresTokenBlacklistRepo(db *sql.DB) *PostgresTokenBlacklistRepo {
	return &PostgresTokenBlacklistRepo{db: db}
}

// Add はトークンを失効済みとして登録する。既に登録済みの場合は何もしない。
func (r *PostgresTokenBlacklistRepo) Add(ctx context.Context, token string, expiresAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewTokenError("failed to blacklist token", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO token_blacklist (token, expires_at)
		 VALUES ($1, $2)
		 ON CONFLICT (token) DO NOTHING`,
		token, expiresAt,
	)
	if err != nil {
		return model.NewTokenError("failed to blacklist token", err)
	}

	if err := tx.Commit(); err != nil {
		return model.NewTokenError("failed to blacklist token", err)
	}
	return nil
}

// IsBlacklisted はトークンが失効済みかどうかを返す。
func (r *PostgresTokenBlacklistRepo) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE token = $1)`,
		token,
	).Scan(&exists)
	if err != nil {
		return false, model.NewTokenError("failed to check token blacklist", err)
	}
	return exists, nil
}

// PruneExpired は expires_at が now より前のエントリを削除し、削除件数を返す。
// 期限切れのトークンはデコード時点で拒否されるため、削除しても失効判定に影響しない。
func (r *PostgresTokenBlacklistRepo) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM token_blacklist WHERE expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, model.NewTokenError("failed to prune token blacklist", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, model.NewTokenError("failed to prune token blacklist", err)
	}
	return count, nil
}

// compile-time interface check
var _ TokenBlacklistRepository = (*PostgresTokenBlacklistRepo)(nil)
