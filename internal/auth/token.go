package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/travelplanner/internal/model"
)

// TokenType はJWTの用途を表す。
type TokenType string

// トークン種別。
const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims はアプリケーションが発行するJWTのクレーム。
type Claims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenCodecConfig はTokenCodecの設定。
type TokenCodecConfig struct {
	SecretKey  string
	Algorithm  string // HS256, HS384, HS512
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenCodec はアクセストークン・リフレッシュトークンの発行と検証を行う。
// 状態を持たないため、並行に使用してよい。
type TokenCodec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec はTokenCodecを生成する。
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt secret key is required")
	}
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm: %s", cfg.Algorithm)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	return &TokenCodec{
		secret:     []byte(cfg.SecretKey),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// CreateAccessToken はアクセストークンを発行する。ttl が0以下なら既定の有効期間を使う。
func (c *TokenCodec) CreateAccessToken(userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.accessTTL
	}
	return c.create(userID, TokenTypeAccess, ttl)
}

// CreateRefreshToken はリフレッシュトークンを発行する。
func (c *TokenCodec) CreateRefreshToken(userID string) (string, error) {
	return c.create(userID, TokenTypeRefresh, c.refreshTTL)
}

// create は署名済みJWTを生成する。
// jti を毎回採番するため、同一秒内に発行したトークンも互いに異なる。
func (c *TokenCodec) create(userID string, typ TokenType, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}

	now := c.now()
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode は署名・アルゴリズム・有効期限を検証し、クレームを返す。
// 現在時刻が exp 以降のトークンは失効済みとして拒否する。
func (c *TokenCodec) Decode(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, model.NewTokenError("token is empty", nil)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, model.NewTokenError("token has expired", err)
	}
	if err != nil {
		return nil, model.NewTokenError("token is invalid", err)
	}
	if claims.Subject == "" {
		return nil, model.NewTokenError("token has no subject", nil)
	}

	return claims, nil
}

// DecodeAccess はアクセストークンとしてデコードする。
func (c *TokenCodec) DecodeAccess(tokenString string) (*Claims, error) {
	return c.decodeTyped(tokenString, TokenTypeAccess)
}

// DecodeRefresh はリフレッシュトークンとしてデコードする。
func (c *TokenCodec) DecodeRefresh(tokenString string) (*Claims, error) {
	return c.decodeTyped(tokenString, TokenTypeRefresh)
}

func (c *TokenCodec) decodeTyped(tokenString string, want TokenType) (*Claims, error) {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, model.NewTokenError(fmt.Sprintf("expected %s token, got %q", want, claims.Type), nil)
	}
	return claims, nil
}

// UserID はトークンの sub クレームを返す。
func (c *TokenCodec) UserID(tokenString string) (string, error) {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Expiry はトークンの exp クレームを返す。
func (c *TokenCodec) Expiry(tokenString string) (time.Time, error) {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}
