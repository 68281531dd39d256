package weatherapi

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/weatherdesk/internal/middleware"
)

// Handler は天気APIサービスのHTTPハンドラー。
type Handler struct {
	service *Service
}

// NewHandler はHandlerを生成する。
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Home は稼働確認用のメッセージを返す。
// GET /
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "✅ Weather API is running!",
	})
}

// Health はヘルスチェック結果を返す。
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"api_key_configured": h.service.APIKeyConfigured(),
	})
}

// Weather は指定都市の現在の天気を返す。
// GET /weather/{city}
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	body, err := h.service.CurrentWeather(r.Context(), cityParam(r))
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			middleware.WriteErrorResponse(w, apiErr.Status, apiErr.Detail)
			return
		}
		slog.Error("unexpected weather error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// cityParam はパスの都市名を取り出す。
// エスケープ済みのパスでルーティングされた場合はデコードする。
func cityParam(r *http.Request) string {
	city := chi.URLParam(r, "city")
	if r.URL.RawPath == "" {
		return city
	}
	if decoded, err := url.PathUnescape(city); err == nil {
		return decoded
	}
	return city
}

// NewRouter は天気APIサービスのルーターを構築する。
func NewRouter(h *Handler, allowedOrigins []string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(middleware.RecoveryConfig{Logger: logger, JSON: true}))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(allowedOrigins))

	r.Get("/", h.Home)
	r.Get("/health", h.Health)
	r.Get("/weather/{city}", h.Weather)

	return r
}
