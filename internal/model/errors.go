// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// 画面に表示するメッセージと原因カテゴリを含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // ユーザー向けメッセージ
	Category string // カテゴリ: auth, validation, weather, system
	Action   string // ユーザー向け対処方法
	Err      error  // 原因となったエラー（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeProvider           = "PROVIDER_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeWeatherService     = "WEATHER_SERVICE_ERROR"
	ErrCodeNetworkUnavailable = "NETWORK_UNAVAILABLE"
	ErrCodeUnexpected         = "UNEXPECTED_ERROR"
	ErrCodeLoggingFailure     = "LOGGING_FAILURE"
)

// ユーザー向けの固定メッセージ
const (
	MsgEmptyCity          = "Please enter a city name"
	MsgCityNotFound       = "City not found. Please check the spelling and try again."
	MsgAPIConfiguration   = "API configuration error. Please check your API key."
	MsgWeatherFallback    = "An error occurred while fetching weather data."
	MsgUnexpected         = "An unexpected error occurred. Please try again."
	MsgFillAllFields      = "Please fill in all fields"
	MsgFillRequired       = "Please fill in all required fields"
	MsgPasswordTooShort   = "Password must be at least 6 characters long"
	MsgGoogleSignInFailed = "Failed to sign in with Google"
)

// AsAPIError はerrチェーンから*APIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCode はerrが指定コードの*APIErrorかどうかを判定する。
func HasCode(err error, code string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == code
}

// NewValidationError は入力検証エラーを生成する。ネットワーク呼び出し前に返される。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メッセージはプロバイダーのものをそのまま使う。
func NewInvalidCredentialsError(message string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  message,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
		Err:      cause,
	}
}

// NewProviderError は認証・データストアが呼び出しを拒否した場合のエラーを生成する。
func NewProviderError(message string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeProvider,
		Message:  message,
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// NewCityNotFoundError は天気エンドポイントが404を返した場合のエラーを生成する。
func NewCityNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  MsgCityNotFound,
		Category: "weather",
		Action:   "都市名のスペルを確認してください。",
	}
}

// NewConfigurationError は天気エンドポイントが401を返した場合のエラーを生成する。
func NewConfigurationError() *APIError {
	return &APIError{
		Code:     ErrCodeConfiguration,
		Message:  MsgAPIConfiguration,
		Category: "system",
		Action:   "天気APIのキー設定を確認してください。",
	}
}

// NewWeatherServiceError はその他の非2xx応答のエラーを生成する。
// detailが空の場合は汎用メッセージを使う。
func NewWeatherServiceError(status int, detail string) *APIError {
	msg := detail
	if msg == "" {
		msg = MsgWeatherFallback
	}
	return &APIError{
		Code:     ErrCodeWeatherService,
		Message:  msg,
		Category: "weather",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      fmt.Errorf("weather endpoint returned status %d", status),
	}
}

// NewNetworkUnavailableError は天気サービスに到達できない場合のエラーを生成する。
func NewNetworkUnavailableError(baseURL string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeNetworkUnavailable,
		Message:  fmt.Sprintf("Cannot connect to weather service. Please make sure the weather service is running on %s", baseURL),
		Category: "system",
		Action:   "天気サービスが起動しているか確認してください。",
		Err:      cause,
	}
}

// NewUnexpectedError は応答を解釈できない場合などのエラーを生成する。
func NewUnexpectedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeUnexpected,
		Message:  MsgUnexpected,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// NewLoggingFailureError は検索履歴の記録に失敗した場合のエラーを生成する。
// 診断ログにのみ出力され、ユーザーには表示されない。
func NewLoggingFailureError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeLoggingFailure,
		Message:  "failed to log weather request",
		Category: "system",
		Err:      cause,
	}
}
