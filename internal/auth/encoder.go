package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrCredentialDecrypt は暗号文の改ざん・破損・鍵不一致により復号できないことを表す。
var ErrCredentialDecrypt = errors.New("credential: decryption failed")

const credentialKeyInfo = "travelplanner/credential-encoder/v1"

// CredentialEncoder はIdPのトークンを保存前に認証付き暗号で暗号化する。
// 出力は base64url(nonce || ciphertext) 形式。
type CredentialEncoder struct {
	aead cipher.AEAD
}

// NewCredentialEncoder は鍵文字列からCredentialEncoderを生成する。
// 鍵がbase64で32バイトにデコードできる場合はそのまま使い、
// それ以外はHKDF-SHA256で32バイト鍵を導出する。
func NewCredentialEncoder(key string) (*CredentialEncoder, error) {
	if key == "" {
		return nil, errors.New("encryption key is required")
	}

	raw, err := credentialKey(key)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &CredentialEncoder{aead: aead}, nil
}

func credentialKey(key string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(key); err == nil && len(b) == chacha20poly1305.KeySize {
			return b, nil
		}
	}

	derived := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(key), nil, []byte(credentialKeyInfo)), derived); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	return derived, nil
}

// Encode は平文を暗号化する。空文字列は空文字列のまま返す。
func (e *CredentialEncoder) Encode(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode は暗号文を復号する。空文字列は空文字列のまま返す。
func (e *CredentialEncoder) Decode(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrCredentialDecrypt
	}
	if len(data) < e.aead.NonceSize()+e.aead.Overhead() {
		return "", ErrCredentialDecrypt
	}

	nonce, sealed := data[:e.aead.NonceSize()], data[e.aead.NonceSize():]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrCredentialDecrypt
	}
	return string(plaintext), nil
}
