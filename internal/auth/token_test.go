package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/travelplanner/internal/model"
)

func TestNewTokenCodec_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  TokenCodecConfig
	}{
		{"empty secret", TokenCodecConfig{Algorithm: "HS256", AccessTTL: time.Minute, RefreshTTL: time.Hour}},
		{"asymmetric algorithm", TokenCodecConfig{SecretKey: "s", Algorithm: "RS256", AccessTTL: time.Minute, RefreshTTL: time.Hour}},
		{"unknown algorithm", TokenCodecConfig{SecretKey: "s", Algorithm: "none", AccessTTL: time.Minute, RefreshTTL: time.Hour}},
		{"zero access ttl", TokenCodecConfig{SecretKey: "s", Algorithm: "HS256", RefreshTTL: time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTokenCodec(tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestTokenCodec_AccessTokenRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return now }

	token, err := codec.CreateAccessToken("user-1", 0)
	if err != nil {
		t.Fatalf("CreateAccessToken() error = %v", err)
	}

	claims, err := codec.DecodeAccess(token)
	if err != nil {
		t.Fatalf("DecodeAccess() error = %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "user-1")
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("Type = %q, want %q", claims.Type, TokenTypeAccess)
	}
	if want := now.Add(30 * time.Minute); !claims.ExpiresAt.Time.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, want)
	}
	if claims.ID == "" {
		t.Error("expected jti to be set")
	}
}

func TestTokenCodec_CustomAccessTTL(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return now }

	token, err := codec.CreateAccessToken("user-1", 5*time.Minute)
	if err != nil {
		t.Fatalf("CreateAccessToken() error = %v", err)
	}

	exp, err := codec.Expiry(token)
	if err != nil {
		t.Fatalf("Expiry() error = %v", err)
	}
	if want := now.Add(5 * time.Minute); !exp.Equal(want) {
		t.Errorf("Expiry() = %v, want %v", exp, want)
	}
}

func TestTokenCodec_RefreshTokenLifetime(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return now }

	token, err := codec.CreateRefreshToken("user-1")
	if err != nil {
		t.Fatalf("CreateRefreshToken() error = %v", err)
	}

	claims, err := codec.DecodeRefresh(token)
	if err != nil {
		t.Fatalf("DecodeRefresh() error = %v", err)
	}
	if want := now.Add(7 * 24 * time.Hour); !claims.ExpiresAt.Time.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, want)
	}
}

func TestTokenCodec_TokensAreUnique(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return now }

	a, _ := codec.CreateRefreshToken("user-1")
	b, _ := codec.CreateRefreshToken("user-1")
	if a == b {
		t.Error("tokens issued in the same second should differ")
	}
}

func TestTokenCodec_Decode_Expired(t *testing.T) {
	codec := newTestCodec(t)
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	codec.now = func() time.Time { return issued }

	token, err := codec.CreateAccessToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("CreateAccessToken() error = %v", err)
	}

	// exp ちょうどの時刻で失効扱いになること
	codec.now = func() time.Time { return issued.Add(time.Minute) }

	_, err = codec.Decode(token)
	var tokenErr *model.TokenError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("expected *model.TokenError, got %T (%v)", err, err)
	}
	if tokenErr.Message != "token has expired" {
		t.Errorf("Message = %q, want %q", tokenErr.Message, "token has expired")
	}
}

func TestTokenCodec_Decode_RejectsTampered(t *testing.T) {
	codec := newTestCodec(t)

	token, _ := codec.CreateAccessToken("user-1", 0)
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err := codec.Decode(tampered)
	var tokenErr *model.TokenError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("expected *model.TokenError, got %T (%v)", err, err)
	}
}

func TestTokenCodec_Decode_RejectsOtherSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewTokenCodec(TokenCodecConfig{
		SecretKey: "another-secret", Algorithm: "HS256", AccessTTL: time.Minute, RefreshTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}

	token, _ := other.CreateAccessToken("user-1", 0)
	if _, err := codec.Decode(token); err == nil {
		t.Error("expected error for token signed with another secret")
	}
}

func TestTokenCodec_Decode_RejectsOtherAlgorithm(t *testing.T) {
	codec := newTestCodec(t)

	claims := Claims{
		Type: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret-key"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := codec.Decode(token); err == nil {
		t.Error("expected error for token signed with HS512")
	}
}

func TestTokenCodec_Decode_RequiresExpiry(t *testing.T) {
	codec := newTestCodec(t)

	claims := Claims{
		Type:             TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key"))

	if _, err := codec.Decode(token); err == nil {
		t.Error("expected error for token without exp")
	}
}

func TestTokenCodec_Decode_RequiresSubject(t *testing.T) {
	codec := newTestCodec(t)

	claims := Claims{
		Type: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key"))

	if _, err := codec.UserID(token); err == nil {
		t.Error("expected error for token without sub")
	}
}

func TestTokenCodec_Decode_Garbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, input := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := codec.Decode(input); err == nil {
			t.Errorf("Decode(%q) expected error", input)
		}
	}
}

func TestTokenCodec_TypedDecodeRejectsWrongType(t *testing.T) {
	codec := newTestCodec(t)

	access, _ := codec.CreateAccessToken("user-1", 0)
	refresh, _ := codec.CreateRefreshToken("user-1")

	if _, err := codec.DecodeRefresh(access); err == nil {
		t.Error("DecodeRefresh() should reject an access token")
	}
	if _, err := codec.DecodeAccess(refresh); err == nil {
		t.Error("DecodeAccess() should reject a refresh token")
	}
}

func TestTokenCodec_UserID(t *testing.T) {
	codec := newTestCodec(t)

	token, _ := codec.CreateRefreshToken("user-42")
	got, err := codec.UserID(token)
	if err != nil {
		t.Fatalf("UserID() error = %v", err)
	}
	if got != "user-42" {
		t.Errorf("UserID() = %q, want %q", got, "user-42")
	}
}

func TestTokenCodec_CreateRequiresUserID(t *testing.T) {
	codec := newTestCodec(t)

	if _, err := codec.CreateAccessToken("", 0); err == nil {
		t.Error("expected error for empty user id")
	}
}
