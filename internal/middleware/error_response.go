package middleware

import (
	"encoding/json"
	"net/http"
)

// DetailResponseBody は天気APIサービスのエラーレスポンス形式。
// detailは文字列、または上流から受け取ったJSONオブジェクト。
type DetailResponseBody struct {
	Detail any `json:"detail"`
}

// WriteJSON はJSONレスポンスを書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// WriteErrorResponse はdetail形式でHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, detail any) {
	WriteJSON(w, statusCode, DetailResponseBody{Detail: detail})
}

// WriteInternalServerError は内部サーバーエラーのレスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, "Internal server error")
}
