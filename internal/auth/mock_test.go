package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/travelplanner/internal/model"
	"github.com/hitoshi/travelplanner/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) error
	deleteByIDFn  func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockSocialAccountRepo struct {
	findFn         func(ctx context.Context, service, socialAccountID string) (*model.SocialAccount, error)
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.SocialAccount, error)
	createFn       func(ctx context.Context, account *model.SocialAccount) error
	updateTokensFn func(ctx context.Context, id, accessToken, refreshToken string) error
}

func (m *mockSocialAccountRepo) FindByServiceAndAccountID(ctx context.Context, service, socialAccountID string) (*model.SocialAccount, error) {
	if m.findFn != nil {
		return m.findFn(ctx, service, socialAccountID)
	}
	return nil, nil
}

func (m *mockSocialAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.SocialAccount, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockSocialAccountRepo) Create(ctx context.Context, account *model.SocialAccount) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	return nil
}

func (m *mockSocialAccountRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error {
	if m.updateTokensFn != nil {
		return m.updateTokensFn(ctx, id, accessToken, refreshToken)
	}
	return nil
}

// memoryBlacklist はテスト用のプロセス内ブラックリスト。
type memoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	err     error
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{entries: make(map[string]time.Time)}
}

func (m *memoryBlacklist) Add(_ context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.entries[token]; !ok {
		m.entries[token] = expiresAt
	}
	return nil
}

func (m *memoryBlacklist) IsBlacklisted(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.entries[token]
	return ok, nil
}

func (m *memoryBlacklist) PruneExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, exp := range m.entries {
		if exp.Before(now) {
			delete(m.entries, token)
			n++
		}
	}
	return n, nil
}

type mockOAuthProvider struct {
	authCodeURLFn  func(state, redirectURI string) string
	exchangeCodeFn func(ctx context.Context, code, redirectURI string) (*ProviderTokens, error)
	fetchProfileFn func(ctx context.Context, accessToken string) (*ProviderProfile, error)
}

func (m *mockOAuthProvider) AuthCodeURL(state, redirectURI string) string {
	if m.authCodeURLFn != nil {
		return m.authCodeURLFn(state, redirectURI)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code, redirectURI string) (*ProviderTokens, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code, redirectURI)
	}
	return &ProviderTokens{AccessToken: "provider-access", RefreshToken: "provider-refresh"}, nil
}

func (m *mockOAuthProvider) FetchProfile(ctx context.Context, accessToken string) (*ProviderProfile, error) {
	if m.fetchProfileFn != nil {
		return m.fetchProfileFn(ctx, accessToken)
	}
	return &ProviderProfile{ID: "google-123", Email: "user@example.com", Name: "Test User"}, nil
}

type mockStateVerifier struct {
	generateFn func(ctx context.Context) (string, error)
	verifyFn   func(ctx context.Context, state string) (bool, error)
}

func (m *mockStateVerifier) Generate(ctx context.Context) (string, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx)
	}
	return "state-value", nil
}

func (m *mockStateVerifier) Verify(ctx context.Context, state string) (bool, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, state)
	}
	return true, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SocialAccountRepository = (*mockSocialAccountRepo)(nil)
var _ repository.TokenBlacklistRepository = (*memoryBlacklist)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)
var _ StateVerifier = (*mockStateVerifier)(nil)

// newTestCodec はテスト用のTokenCodecを生成する。
func newTestCodec(t testing.TB) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(TokenCodecConfig{
		SecretKey:  "test-secret-key",
		Algorithm:  "HS256",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	return codec
}
