// Package handler はWebアプリのHTTPハンドラーを提供する。
package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/weatherdesk/internal/shell"
)

//go:embed templates/*.html
var templateFS embed.FS

const pageTitle = "Weather App"

// pageData はテンプレートに渡す値。
type pageData struct {
	*shell.Page
	Title     string
	CSRFToken string
}

// SignUpMode はサインアップフォームを表示するかどうかを返す。
func (p pageData) SignUpMode() bool {
	return p.Mode == shell.ModeSignUp
}

// Renderer は埋め込みテンプレートから画面を描画する。
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer はテンプレートを読み込んでRendererを生成する。
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"capitalize":   shell.Capitalize,
		"formatNumber": shell.FormatNumber,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Page は画面全体を描画する。描画に失敗した場合は500を返す。
func (r *Renderer) Page(w http.ResponseWriter, page *shell.Page, csrfToken string) {
	var buf bytes.Buffer
	data := pageData{Page: page, Title: pageTitle, CSRFToken: csrfToken}
	if err := r.tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
