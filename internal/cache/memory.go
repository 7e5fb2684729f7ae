package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore はttlcacheを使用したプロセス内Store実装。
// 単一インスタンス構成と開発環境向け。
type MemoryStore struct {
	cache *ttlcache.Cache[string, []byte]
}

// NewMemoryStore は期限切れエントリを自動削除するMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go c.Start()

	return &MemoryStore{cache: c}
}

// Set は値をTTL付きで保存する。
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, value, ttl)
	return nil
}

// Take は値を取得すると同時に削除する。期限切れの値は返さない。
func (s *MemoryStore) Take(_ context.Context, key string) ([]byte, error) {
	item, ok := s.cache.GetAndDelete(key)
	if !ok || item == nil || item.IsExpired() {
		return nil, ErrCacheMiss
	}
	return item.Value(), nil
}

// Health は常にnilを返す。
func (s *MemoryStore) Health(_ context.Context) error {
	return nil
}

// Close は期限切れエントリの削除処理を停止する。
func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}

var _ Store = (*MemoryStore)(nil)
