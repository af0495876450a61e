// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeDuplicateUser      = "DUPLICATE_USER"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeWeatherUnavailable = "WEATHER_UNAVAILABLE"
	ErrCodeNewsUnavailable    = "NEWS_UNAVAILABLE"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Action:   "Check the submitted fields and try again.",
	}
}

// NewDuplicateUserError はユーザー名重複エラーを生成する。
func NewDuplicateUserError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  fmt.Sprintf("username %q is already taken", username),
		Category: "validation",
		Action:   "Pick a different username or log in with the existing one.",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// ユーザー不存在とパスワード不一致を区別しない（列挙攻撃対策）。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "invalid username or password",
		Category: "auth",
		Action:   "Check your credentials and try again.",
	}
}

// NewUnauthorizedError は未認証アクセスエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "authentication required",
		Category: "auth",
		Action:   "Log in and retry the request.",
	}
}

// NewWeatherUnavailableError は気象データ取得失敗エラーを生成する。
// ダッシュボードのワークフローでは吸収されるため、/api/weatherのみが返す。
func NewWeatherUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeWeatherUnavailable,
		Message:  "weather data unavailable",
		Category: "upstream",
		Action:   "Try again in a few minutes.",
	}
}

// NewNewsUnavailableError はニュースフィード取得失敗エラーを生成する。
func NewNewsUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeNewsUnavailable,
		Message:  "market news feed is currently unavailable",
		Category: "upstream",
		Action:   "Try again in a few minutes.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "user not found",
		Category: "auth",
		Action:   "Log in again.",
	}
}
