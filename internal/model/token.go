package model

import "time"

// TokenBlacklistEntry は失効済みリフレッシュトークンを表す。
// ExpiresAt を過ぎたエントリは削除してよい。
type TokenBlacklistEntry struct {
	Token         string
	BlacklistedAt time.Time
	ExpiresAt     time.Time
}

// TokenPair はアクセストークンとリフレッシュトークンの組。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
