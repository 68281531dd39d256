package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/weatherdesk/internal/middleware"
	"github.com/hitoshi/weatherdesk/internal/shell"
)

// WeatherServiceInterface は画面表示と検索のハンドラーが必要とするサービスインターフェース。
type WeatherServiceInterface interface {
	Home(ctx context.Context, c *shell.Client) *shell.Page
	Search(ctx context.Context, c *shell.Client, city string) error
	ShowOAuthFailure(c *shell.Client)
}

// WeatherHandler は画面表示と天気検索のハンドラー。
type WeatherHandler struct {
	service  WeatherServiceInterface
	renderer *Renderer
}

// NewWeatherHandler はWeatherHandlerを生成する。
func NewWeatherHandler(service WeatherServiceInterface, renderer *Renderer) *WeatherHandler {
	return &WeatherHandler{
		service:  service,
		renderer: renderer,
	}
}

// Home はログイン状態に応じてログイン画面または天気画面を表示する。
// GET /
// GET /?error=auth_failed
func (h *WeatherHandler) Home(w http.ResponseWriter, r *http.Request) {
	c, ok := clientOrError(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("error") == "auth_failed" {
		h.service.ShowOAuthFailure(c)
	}

	page := h.service.Home(r.Context(), c)
	if page.Session != nil {
		middleware.SetUserID(r.Context(), page.Session.UserID)
	}
	h.renderer.Page(w, page, middleware.CSRFTokenFromContext(r.Context()))
}

// Search は都市名で天気を検索する。結果は画面状態に反映してから / へリダイレクトする。
// 検索中の要求は無視する。
// POST /search
func (h *WeatherHandler) Search(w http.ResponseWriter, r *http.Request) {
	c, ok := clientOrError(w, r)
	if !ok {
		return
	}

	if c.Session() == nil {
		redirectHome(w, r)
		return
	}

	// エラーは画面状態に反映済み
	_ = h.service.Search(r.Context(), c, r.PostFormValue("city"))
	redirectHome(w, r)
}
