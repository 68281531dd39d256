package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// uniqueViolation は一意制約違反のPostgreSQLエラーコード。
const uniqueViolation = "23505"

// Error はGoTrue/PostgRESTが返したエラー応答を表す。
type Error struct {
	Status  int
	Code    string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Message)
}

// InvalidCredentials はメールアドレス・パスワードの不一致を示すかどうかを返す。
func (e *Error) InvalidCredentials() bool {
	if e.Code == "invalid_credentials" || e.Code == "invalid_grant" {
		return true
	}
	return e.Status == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(e.Message), "invalid login credentials")
}

// Rejected はリクエスト内容がサーバー側で拒否されたかどうかを返す
// （弱いパスワード、既存ユーザー、メール形式不正など）。
func (e *Error) Rejected() bool {
	return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
}

// DuplicateKey は一意制約違反かどうかを返す。
func (e *Error) DuplicateKey() bool {
	return e.Code == uniqueViolation || e.Status == http.StatusConflict
}

// AsError はerrチェーンから*Errorを取り出す。
func AsError(err error) (*Error, bool) {
	var sbErr *Error
	if errors.As(err, &sbErr) {
		return sbErr, true
	}
	return nil, false
}

// errorBody はGoTrue・PostgRESTのエラー応答の和集合。
// GoTrueは {"error","error_description"} と {"code","error_code","msg"} の両形式があり、
// PostgRESTは {"code","message","details","hint"} を返す。
type errorBody struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Code             json.RawMessage `json:"code"`
}

func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var b errorBody
	if err := json.Unmarshal(body, &b); err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	e.Message = firstNonEmpty(b.Msg, b.Message, b.ErrorDescription, b.Error, http.StatusText(status))

	// codeは数値（GoTrue）または文字列（PostgREST）のどちらもあり得る
	var code string
	if len(b.Code) > 0 {
		_ = json.Unmarshal(b.Code, &code)
	}
	e.Code = firstNonEmpty(b.ErrorCode, code, b.Error)
	return e
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
