// Package app はアプリケーションの起動とワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/travelplanner/internal/auth"
	"github.com/hitoshi/travelplanner/internal/cache"
	"github.com/hitoshi/travelplanner/internal/config"
	"github.com/hitoshi/travelplanner/internal/database"
	"github.com/hitoshi/travelplanner/internal/handler"
	"github.com/hitoshi/travelplanner/internal/logger"
	"github.com/hitoshi/travelplanner/internal/metrics"
	"github.com/hitoshi/travelplanner/internal/middleware"
	"github.com/hitoshi/travelplanner/internal/repository"
	"github.com/hitoshi/travelplanner/internal/security"
	"github.com/hitoshi/travelplanner/internal/user"
	"github.com/hitoshi/travelplanner/internal/worker/cleanup"
)

// connectTimeout はDB・Redisへの初回接続のタイムアウト。
const connectTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, connectTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// openStateStore はOAuth stateの保存先を返す。
// REDIS_URL が設定されていればRedis、未設定ならプロセス内メモリを使う。
func openStateStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL is not set; using in-memory state store (single instance only)")
		return cache.NewMemoryStore(), nil
	}

	store, err := cache.NewRedisStore(ctx, cfg.RedisURL, connectTimeout)
	if err != nil {
		return nil, err
	}
	slog.Info("redis connection established")
	return store, nil
}

// runServe はAPIサーバーモードで起動する。
// DB・キャッシュに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctx がキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. 外部リソースへの接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stateStore, err := openStateStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer stateStore.Close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	accountRepo := repository.NewPostgresSocialAccountRepo(db)
	blacklistRepo := repository.NewPostgresTokenBlacklistRepo(db)

	// 4. トークン・暗号化
	codec, err := auth.NewTokenCodec(auth.TokenCodecConfig{
		SecretKey:  cfg.JWTSecretKey,
		Algorithm:  cfg.JWTAlgorithm,
		AccessTTL:  cfg.AccessTokenExpire,
		RefreshTTL: cfg.RefreshTokenExpire,
	})
	if err != nil {
		return fmt.Errorf("failed to configure token codec: %w", err)
	}
	encoder, err := auth.NewCredentialEncoder(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to configure credential encoder: %w", err)
	}

	// 5. ドメインサービスの初期化
	ssrfGuard := security.NewSSRFGuard(cfg.GoogleAuthURL, cfg.GoogleTokenURL, cfg.GoogleUserInfoURL)
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		AuthURL:      cfg.GoogleAuthURL,
		TokenURL:     cfg.GoogleTokenURL,
		UserInfoURL:  cfg.GoogleUserInfoURL,
		HTTPClient:   ssrfGuard.NewSafeClient(cfg.OAuthTimeout),
	})

	sessionService := auth.NewSessionService(codec, blacklistRepo, userRepo, collector)
	linkingService := auth.NewLinkingService(
		oauthProvider,
		auth.NewStateManager(stateStore, cfg.OAuthStateTTL),
		userRepo,
		accountRepo,
		encoder,
		sessionService,
		security.NewProfileSanitizer(ssrfGuard),
		collector,
		auth.LinkingConfig{AllowedRedirectHosts: cfg.AllowedRedirectHosts},
	)
	userService := user.NewService(userRepo, accountRepo, sessionService)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Resolver:          sessionService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,

		AuthService:    handler.NewAuthServiceAdapter(linkingService),
		SessionService: handler.NewSessionServiceAdapter(sessionService),
		UserService:    handler.NewUserServiceAdapter(userService),

		HealthChecks: map[string]handler.HealthCheck{
			"database": db.PingContext,
			"cache":    stateStore.Health,
		},
		MetricsHandler: metrics.Handler(registry),
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、ブラックリストのクリーンアップジョブを定期実行する。
// ctx がキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	job := cleanup.NewTokenCleanupJob(
		repository.NewPostgresTokenBlacklistRepo(db),
		slog.Default(),
		metrics.NewNoop(),
	)

	slog.Info("worker starting",
		slog.Duration("token_cleanup_interval", cfg.TokenCleanupInterval),
	)

	job.Start(ctx, cfg.TokenCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
