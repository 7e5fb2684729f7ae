package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/travelplanner/internal/cache"
)

const (
	stateKeyPrefix = "oauth_state_"
	stateLength    = 32
	stateAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// stateEntry はキャッシュに保存するstateの値。
type stateEntry struct {
	State string `json:"state"`
}

// StateManager はOAuthのstateパラメータを発行・検証する。
// stateは1回の検証で消費され、同じ値を再利用することはできない。
type StateManager struct {
	store cache.Store
	ttl   time.Duration
}

// NewStateManager はStateManagerを生成する。
func NewStateManager(store cache.Store, ttl time.Duration) *StateManager {
	return &StateManager{store: store, ttl: ttl}
}

// Generate は暗号論的乱数による英数字のstateを生成し、TTL付きで保存する。
func (m *StateManager) Generate(ctx context.Context) (string, error) {
	state, err := randomAlphanumeric(stateLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	value, err := json.Marshal(stateEntry{State: state})
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}

	if err := m.store.Set(ctx, stateKeyPrefix+state, value, m.ttl); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}
	return state, nil
}

// Verify はstateが発行済みかつ未使用であるかを検証し、エントリを削除する。
// 存在しない・期限切れ・値不一致の場合は false を返す。
// キャッシュ障害はエラーとして返し、呼び出し側はログインを失敗させる。
func (m *StateManager) Verify(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}

	value, err := m.store.Take(ctx, stateKeyPrefix+state)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load state: %w", err)
	}

	var entry stateEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		return false, nil
	}
	return entry.State == state, nil
}

// randomAlphanumeric は偏りのない英数字の乱数文字列を生成する。
func randomAlphanumeric(n int) (string, error) {
	// 256未満で62の倍数となる最大値。これ以上のバイトは棄却する。
	const limit = 256 - 256%len(stateAlphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, stateAlphabet[int(b)%len(stateAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
