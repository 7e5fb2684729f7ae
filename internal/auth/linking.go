// Package auth はGoogle OAuthによるアカウント連携、JWTの発行・検証、トークン失効を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/travelplanner/internal/metrics"
	"github.com/hitoshi/travelplanner/internal/model"
	"github.com/hitoshi/travelplanner/internal/repository"
	"github.com/hitoshi/travelplanner/internal/security"
)

// StateVerifier はOAuth stateの発行と検証を行う。
type StateVerifier interface {
	Generate(ctx context.Context) (string, error)
	Verify(ctx context.Context, state string) (bool, error)
}

// TokenIssuer はログイン成功時のトークン発行を行う。
type TokenIssuer interface {
	CreateTokenPair(userID string) (*model.TokenPair, error)
}

// コンパイル時にインターフェースの実装を検証する。
var (
	_ StateVerifier = (*StateManager)(nil)
	_ TokenIssuer   = (*SessionService)(nil)
)

// CallbackParams はOAuthコールバックで受け取るパラメータ。
type CallbackParams struct {
	Code        string
	RedirectURI string
	State       string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	User           *model.User
	SocialAccounts []*model.SocialAccount
	NewUser        bool
	Tokens         *model.TokenPair
}

// LinkingConfig はLinkingServiceの設定。
type LinkingConfig struct {
	// AllowedRedirectHosts はログインURL発行時に受け付けるリダイレクト先ホスト。
	AllowedRedirectHosts []string
}

// LinkingService はGoogleアカウントとユーザーの連携を行う。
type LinkingService struct {
	provider    OAuthProvider
	states      StateVerifier
	userRepo    repository.UserRepository
	accountRepo repository.SocialAccountRepository
	encoder     *CredentialEncoder
	tokens      TokenIssuer
	sanitizer   *security.ProfileSanitizer
	metrics     metrics.MetricsCollector
	config      LinkingConfig
}

// NewLinkingService はLinkingServiceを生成する。
func NewLinkingService(
	provider OAuthProvider,
	states StateVerifier,
	userRepo repository.UserRepository,
	accountRepo repository.SocialAccountRepository,
	encoder *CredentialEncoder,
	tokens TokenIssuer,
	sanitizer *security.ProfileSanitizer,
	collector metrics.MetricsCollector,
	config LinkingConfig,
) *LinkingService {
	if collector == nil {
		collector = metrics.NewNoop()
	}
	return &LinkingService{
		provider:    provider,
		states:      states,
		userRepo:    userRepo,
		accountRepo: accountRepo,
		encoder:     encoder,
		tokens:      tokens,
		sanitizer:   sanitizer,
		metrics:     collector,
		config:      config,
	}
}

// LoginURL はstateを発行し、Googleの認可画面URLを返す。
// redirectURI が許可されていない場合は *model.ValidationError を返す。
func (s *LinkingService) LoginURL(ctx context.Context, redirectURI string) (string, error) {
	if err := security.ValidateRedirectURI(redirectURI, s.config.AllowedRedirectHosts); err != nil {
		return "", &model.ValidationError{Message: err.Error()}
	}

	state, err := s.states.Generate(ctx)
	if err != nil {
		return "", model.NewOAuthInternalError("Failed to start login", err)
	}

	return s.provider.AuthCodeURL(state, redirectURI), nil
}

// HandleCallback はOAuthコールバックを処理する。
// stateを検証して消費し、認可コードを交換してプロフィールを取得したうえで、
// メールアドレスでユーザーを特定（なければ作成）し、連携アカウントを作成または更新する。
func (s *LinkingService) HandleCallback(ctx context.Context, params CallbackParams) (*LoginResult, error) {
	result, reason, err := s.handleCallback(ctx, params)
	if err != nil {
		s.metrics.RecordLoginFailure(model.ServiceGoogle, reason)
		return nil, err
	}
	s.metrics.RecordLoginSuccess(model.ServiceGoogle, result.NewUser)
	return result, nil
}

func (s *LinkingService) handleCallback(ctx context.Context, params CallbackParams) (*LoginResult, string, error) {
	// 1. 必須パラメータ
	if params.Code == "" || params.RedirectURI == "" || params.State == "" {
		return nil, "missing_params", model.NewOAuthError("Missing required parameters", nil)
	}

	// 2. stateの検証（成功・失敗にかかわらず消費される）
	ok, err := s.states.Verify(ctx, params.State)
	if err != nil {
		return nil, "state_store", model.NewOAuthInternalError("Failed to verify state", err)
	}
	if !ok {
		return nil, "invalid_state", model.NewOAuthError("Invalid state parameter", nil)
	}

	// 3. 認可コードの交換
	start := time.Now()
	providerTokens, err := s.provider.ExchangeCode(ctx, params.Code, params.RedirectURI)
	s.metrics.RecordProviderLatency("exchange", time.Since(start))
	if err != nil {
		return nil, "exchange", asOAuthError("Failed to exchange authorization code", err)
	}

	// 4. プロフィール取得
	start = time.Now()
	profile, err := s.provider.FetchProfile(ctx, providerTokens.AccessToken)
	s.metrics.RecordProviderLatency("userinfo", time.Since(start))
	if err != nil {
		return nil, "userinfo", asOAuthError("Failed to fetch user info", err)
	}

	// 5. ユーザーの特定または作成
	user, created, err := s.findOrCreateUser(ctx, profile)
	if err != nil {
		return nil, "storage", err
	}
	if !user.IsActive {
		return nil, "inactive", model.NewOAuthError("User account is disabled", nil)
	}

	// 6. 連携アカウントの作成または更新
	if err := s.upsertSocialAccount(ctx, user.ID, profile, providerTokens); err != nil {
		return nil, "storage", err
	}

	accounts, err := s.accountRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return nil, "storage", model.NewOAuthInternalError("Failed to load social accounts", err)
	}

	// 7. トークン発行
	pair, err := s.tokens.CreateTokenPair(user.ID)
	if err != nil {
		return nil, "token", model.NewOAuthInternalError("Failed to issue tokens", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", model.ServiceGoogle),
		slog.Bool("new_user", created),
	)

	return &LoginResult{
		User:           user,
		SocialAccounts: accounts,
		NewUser:        created,
		Tokens:         pair,
	}, "", nil
}

// findOrCreateUser はメールアドレスの完全一致で既存ユーザーを返す。
// 存在しない場合はプロフィールから新規作成する。同時作成で競合した場合は既存ユーザーを返す。
func (s *LinkingService) findOrCreateUser(ctx context.Context, profile *ProviderProfile) (*model.User, bool, error) {
	user, err := s.userRepo.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, false, model.NewOAuthInternalError("Failed to look up user", err)
	}
	if user != nil {
		return user, false, nil
	}

	user = &model.User{
		ID:             uuid.New().String(),
		FullName:       s.sanitizer.DisplayName(profile.Name, profile.Email),
		Email:          profile.Email,
		ProfilePicture: s.sanitizer.PictureURL(profile.Picture),
		IsActive:       true,
	}

	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, findErr := s.userRepo.FindByEmail(ctx, profile.Email)
		if findErr != nil || existing == nil {
			return nil, false, model.NewOAuthInternalError("Failed to look up user", errors.Join(err, findErr))
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, model.NewOAuthInternalError("Failed to create user", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", model.ServiceGoogle),
	)
	return user, true, nil
}

// upsertSocialAccount はGoogleアカウントの連携情報を保存する。
// 既に連携済みのIdPアカウントは所有ユーザーを変えずにトークンだけを上書きする。
func (s *LinkingService) upsertSocialAccount(ctx context.Context, userID string, profile *ProviderProfile, tokens *ProviderTokens) error {
	accessToken, err := s.encoder.Encode(tokens.AccessToken)
	if err != nil {
		return model.NewOAuthInternalError("Failed to encrypt provider token", err)
	}
	refreshToken, err := s.encoder.Encode(tokens.RefreshToken)
	if err != nil {
		return model.NewOAuthInternalError("Failed to encrypt provider token", err)
	}

	account, err := s.accountRepo.FindByServiceAndAccountID(ctx, model.ServiceGoogle, profile.ID)
	if err != nil {
		return model.NewOAuthInternalError("Failed to look up social account", err)
	}

	if account == nil {
		account = &model.SocialAccount{
			ID:              uuid.New().String(),
			Service:         model.ServiceGoogle,
			SocialAccountID: profile.ID,
			AccessToken:     accessToken,
			RefreshToken:    refreshToken,
			UserID:          userID,
		}
		err = s.accountRepo.Create(ctx, account)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return model.NewOAuthInternalError("Failed to create social account", err)
		}

		// 同時ログインで先に作成された連携を更新する
		account, err = s.accountRepo.FindByServiceAndAccountID(ctx, model.ServiceGoogle, profile.ID)
		if err != nil || account == nil {
			return model.NewOAuthInternalError("Failed to look up social account", err)
		}
	}

	if account.UserID != userID {
		slog.Warn("social account is linked to another user",
			slog.String("social_account_id", account.ID),
			slog.String("owner_user_id", account.UserID),
			slog.String("login_user_id", userID),
		)
	}

	if err := s.accountRepo.UpdateTokens(ctx, account.ID, accessToken, refreshToken); err != nil {
		return model.NewOAuthInternalError("Failed to update social account", err)
	}
	return nil
}

// asOAuthError はプロバイダー呼び出しのエラーを *model.OAuthError に揃える。
func asOAuthError(message string, err error) error {
	var oauthErr *model.OAuthError
	if errors.As(err, &oauthErr) {
		return oauthErr
	}
	return model.NewOAuthError(message, fmt.Errorf("provider: %w", err))
}
