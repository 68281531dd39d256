package handler

import (
	"net/http"

	"github.com/hitoshi/weatherdesk/internal/middleware"
)

// Health はヘルスチェック結果を返す。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
