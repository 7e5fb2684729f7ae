package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Google OAuth のデフォルトエンドポイント。
const (
	DefaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	DefaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	DefaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Cache（空の場合はプロセス内メモリキャッシュを使う）
	RedisURL string

	// OAuth
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	GoogleAuthURL        string
	GoogleTokenURL       string
	GoogleUserInfoURL    string
	OAuthTimeout         time.Duration
	OAuthStateTTL        time.Duration
	AllowedRedirectHosts []string

	// Token
	JWTSecretKey       string
	JWTAlgorithm       string
	AccessTokenExpire  time.Duration
	RefreshTokenExpire time.Duration
	EncryptionKey      string

	// Worker
	TokenCleanupInterval time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel slog.Level
}

// Load は環境変数からConfigを読み込む。
// ENV_FILE（未指定時は .env）が存在すれば先に読み込むが、既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.JWTSecretKey = os.Getenv("JWT_SECRET_KEY")
	if cfg.JWTSecretKey == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}

	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")
	if cfg.EncryptionKey == "" {
		missing = append(missing, "ENCRYPTION_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.JWTAlgorithm = strings.ToUpper(getEnvString("JWT_ALGORITHM", "HS256"))
	switch cfg.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("unsupported JWT_ALGORITHM: %s", cfg.JWTAlgorithm)
	}

	level, err := parseLogLevel(getEnvString("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	// Optional fields with defaults
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.GoogleAuthURL = getEnvString("GOOGLE_AUTH_URL", DefaultGoogleAuthURL)
	cfg.GoogleTokenURL = getEnvString("GOOGLE_TOKEN_URL", DefaultGoogleTokenURL)
	cfg.GoogleUserInfoURL = getEnvString("GOOGLE_USERINFO_URL", DefaultGoogleUserInfoURL)
	cfg.OAuthTimeout = getEnvDuration("OAUTH_TIMEOUT", 10*time.Second)
	cfg.OAuthStateTTL = getEnvDuration("OAUTH_STATE_TTL", 100*time.Second)
	cfg.AllowedRedirectHosts = getEnvList("ALLOWED_REDIRECT_HOSTS")
	cfg.AccessTokenExpire = getEnvDuration("ACCESS_TOKEN_EXPIRE", 30*time.Minute)
	cfg.RefreshTokenExpire = getEnvDuration("REFRESH_TOKEN_EXPIRE", 7*24*time.Hour)
	cfg.TokenCleanupInterval = getEnvDuration("TOKEN_CLEANUP_INTERVAL", 24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	// 0以下の期間はタイムアウト無効化・TTLなし・Tickerのpanicにつながる
	var nonPositive []string
	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"OAUTH_TIMEOUT", cfg.OAuthTimeout},
		{"OAUTH_STATE_TTL", cfg.OAuthStateTTL},
		{"ACCESS_TOKEN_EXPIRE", cfg.AccessTokenExpire},
		{"REFRESH_TOKEN_EXPIRE", cfg.RefreshTokenExpire},
		{"TOKEN_CLEANUP_INTERVAL", cfg.TokenCleanupInterval},
	} {
		if d.value <= 0 {
			nonPositive = append(nonPositive, d.key)
		}
	}
	if len(nonPositive) > 0 {
		return nil, fmt.Errorf("durations must be positive: %v", nonPositive)
	}

	return cfg, nil
}

// loadEnvFile は dotenv ファイルを読み込む。
// ENV_FILE が明示されている場合のみ、ファイルが存在しないことをエラーとする。
func loadEnvFile() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
