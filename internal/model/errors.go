package model

import "fmt"

// OAuthError はOAuthログインフローの失敗を表す。
// Message はクライアントへ返却してよい安定した文言のみを持つ。
// Internal が true の場合はサーバー側の障害（DB・キャッシュ等）を示す。
type OAuthError struct {
	Message  string
	Internal bool
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *OAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth: %s: %v", e.Message, e.Err)
	}
	return "oauth: " + e.Message
}

// Unwrap は原因となったエラーを返す。
func (e *OAuthError) Unwrap() error { return e.Err }

// TokenError はトークンの検証・失効処理の失敗を表す。
type TokenError struct {
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token: %s: %v", e.Message, e.Err)
	}
	return "token: " + e.Message
}

// Unwrap は原因となったエラーを返す。
func (e *TokenError) Unwrap() error { return e.Err }

// NotFoundError は参照されたリソースが存在しないことを表す。
type NotFoundError struct {
	Resource string
	ID       string
}

// Error はerrorインターフェースを実装する。
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %s not found", e.Resource, e.ID)
}

// ValidationError はリクエストパラメータの不備を表す。
type ValidationError struct {
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string { return e.Message }

// NewOAuthError はクライアント起因のOAuthエラーを生成する。
func NewOAuthError(message string, err error) *OAuthError {
	return &OAuthError{Message: message, Err: err}
}

// NewOAuthInternalError はサーバー側障害に起因するOAuthエラーを生成する。
func NewOAuthInternalError(message string, err error) *OAuthError {
	return &OAuthError{Message: message, Internal: true, Err: err}
}

// NewTokenError はトークンエラーを生成する。
func NewTokenError(message string, err error) *TokenError {
	return &TokenError{Message: message, Err: err}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *NotFoundError {
	return &NotFoundError{Resource: "User", ID: userID}
}
