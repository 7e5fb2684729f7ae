// Package cache は短命なキー・バリューを保持するストアを提供する。
// 複数インスタンス構成ではRedis、単一インスタンスではプロセス内メモリを使う。
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss はキーが存在しないか期限切れであることを表す。
var ErrCacheMiss = errors.New("cache: key not found")

// Store はTTL付きキー・バリューストアのインターフェース。
type Store interface {
	// Set は値をTTL付きで保存する。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Take は値を取得すると同時に削除する。
	// 同じキーに対する並行呼び出しのうち、値を受け取れるのは1つだけである。
	// キーが存在しない場合は ErrCacheMiss を返す。
	Take(ctx context.Context, key string) ([]byte, error)

	// Health はストアへの疎通を確認する。
	Health(ctx context.Context) error

	// Close は接続やバックグラウンド処理を解放する。
	Close() error
}
