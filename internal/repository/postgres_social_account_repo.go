package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/travelplanner/internal/model"
)

const socialAccountColumns = `id, service, social_account_id, access_token, refresh_token, user_id, created_at, updated_at`

// PostgresSocialAccountRepo はPostgreSQLを使用した連携アカウントリポジトリ。
type PostgresSocialAccountRepo struct {
	db *sql.DB
}

// NewPostgresSocialAccountRepo はPostgresSocialAccountRepoを生成する。
func NewPostgresSocialAccountRepo(db *sql.DB) *PostgresSocialAccountRepo {
	return &PostgresSocialAccountRepo{db: db}
}

// FindByServiceAndAccountID はサービス名とIdP側IDで連携アカウントを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresSocialAccountRepo) FindByServiceAndAccountID(ctx context.Context, service, socialAccountID string) (*model.SocialAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+socialAccountColumns+`
		 FROM social_accounts
		 WHERE service = $1 AND social_account_id = $2`,
		service, socialAccountID,
	)
	account, err := scanSocialAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find social account: %w", err)
	}
	return account, nil
}

// ListByUserID はユーザーの連携アカウント一覧を作成順で返す。
func (r *PostgresSocialAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+socialAccountColumns+`
		 FROM social_accounts
		 WHERE user_id = $1
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list social accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.SocialAccount
	for rows.Next() {
		account, err := scanSocialAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan social account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate social accounts: %w", err)
	}
	return accounts, nil
}

// Create は連携アカウントを作成し、DBが採番したタイムスタンプを account に反映する。
func (r *PostgresSocialAccountRepo) Create(ctx context.Context, account *model.SocialAccount) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO social_accounts (id, service, social_account_id, access_token, refresh_token, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		account.ID, account.Service, account.SocialAccountID,
		nullString(account.AccessToken), nullString(account.RefreshToken), account.UserID,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to insert social account %s/%s: %w", account.Service, account.SocialAccountID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert social account: %w", err)
	}
	return nil
}

// UpdateTokens は連携アカウントのトークンを上書きする。
// refreshToken が空の場合は保存済みの値を維持する。
func (r *PostgresSocialAccountRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE social_accounts
		 SET access_token = $2,
		     refresh_token = COALESCE($3, refresh_token),
		     updated_at = now()
		 WHERE id = $1`,
		id, nullString(accessToken), nullString(refreshToken),
	)
	if err != nil {
		return fmt.Errorf("failed to update social account tokens: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("social account %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSocialAccount(row rowScanner) (*model.SocialAccount, error) {
	account := &model.SocialAccount{}
	var accessToken, refreshToken sql.NullString
	err := row.Scan(
		&account.ID, &account.Service, &account.SocialAccountID,
		&accessToken, &refreshToken, &account.UserID,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.AccessToken = accessToken.String
	account.RefreshToken = refreshToken.String
	return account, nil
}

// compile-time interface check
var _ SocialAccountRepository = (*PostgresSocialAccountRepo)(nil)
