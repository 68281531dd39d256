package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/weatherdesk/internal/auth"
	"github.com/hitoshi/weatherdesk/internal/middleware"
	"github.com/hitoshi/weatherdesk/internal/shell"
)

// oauthVerifierCookie はGoogleログイン中のPKCE verifierを保持するCookieの名前。
const oauthVerifierCookie = "oauth_verifier"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, c *shell.Client, form shell.SignInForm) error
	SignUp(ctx context.Context, c *shell.Client, form shell.SignUpForm) error
	SignOut(ctx context.Context, c *shell.Client) error
	SetMode(c *shell.Client, mode shell.Mode)
	BeginOAuth(c *shell.Client) (*auth.OAuthRedirect, error)
	CompleteOAuth(ctx context.Context, c *shell.Client, code, codeVerifier string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler はサインイン・サインアップ・サインアウト・Googleログインのハンドラー。
// フォーム送信は処理後に / へリダイレクトし、結果は画面状態として表示する。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// SignIn はメールアドレスとパスワードでサインインする。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	c, ok := clientOrError(w, r)
	if !ok {
		return
	}

	form := shell.SignInForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	if err := h.service.SignIn(r.Context(), c, form); err == nil {
		if sess := c.Session(); sess != nil {
			middleware.SetUserID(r.Context(), sess.UserID)
		}
	}
	redirectHome(w, r)
}

// SignUp はアカウントを作成する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	c, ok := clientOrError(w, r)
	if !ok {
		return
	}

	form := shell.SignUpForm{
		Username: r.PostFormValue("username"),
		FullName: r.PostFormValue("full_name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	// エラーは画面状態に反映済み
	_ = h.service.SignUp(r.Context(), c, form)
	redirectHome(w, r)
}

// Logout はサインアウトする。プロバイダー側の失敗はログのみ。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	c, ok := clientOrError(w, r)
	if !ok {
		return
	}

	_ = h.service.SignOut(r.Context(), c)
	redirectHome(w, r)
}

// Mode はログイン画面のフォームを切り替える。
// POST /auth/mode
func (h *AuthHandler) Mode(w http.ResponseWriter, r *http.Request) {
	c, ok := clientOrError(w, r)
	if !ok {
		return
	}

	h.service.SetMode(c, shell.Mode(r.PostFormValue("mode")))
	redirectHome(w, r)
}

// GoogleLogin はGoogleログインを開始する。
// PKCE verifierをCookieに保存してSupabaseの認可URLへリダイレクトする。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	c, ok := clientOrError(w, r)
	if !ok {
		return
	}

	redirect, err := h.service.BeginOAuth(c)
	if err != nil {
		redirectHome(w, r)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthVerifierCookie,
		Value:    redirect.CodeVerifier,
		Path:     "/auth",
		Domain:   h.config.CookieDomain,
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// Callback はOAuthプロバイダーからの戻りを処理する。
// 認可コードをセッションに交換し、成功時は / へ、失敗時は /?error=auth_failed へリダイレクトする。
// GET /auth/callback?code=xxx
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	c, ok := clientOrError(w, r)
	if !ok {
		return
	}

	// verifierは1回限り
	http.SetCookie(w, &http.Cookie{
		Name:     oauthVerifierCookie,
		Value:    "",
		Path:     "/auth",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		slog.Warn("oauth provider returned an error",
			slog.String("error", errCode),
			slog.String("description", query.Get("error_description")),
		)
		http.Redirect(w, r, "/?error=auth_failed", http.StatusFound)
		return
	}

	var verifier string
	if cookie, err := r.Cookie(oauthVerifierCookie); err == nil {
		verifier = cookie.Value
	}

	if err := h.service.CompleteOAuth(r.Context(), c, query.Get("code"), verifier); err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/?error=auth_failed", http.StatusFound)
		return
	}

	if sess := c.Session(); sess != nil {
		middleware.SetUserID(r.Context(), sess.UserID)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// clientOrError はコンテキストからクライアントを取り出す。
// クライアントミドルウェアを通っていない場合は500を返す。
func clientOrError(w http.ResponseWriter, r *http.Request) (*shell.Client, bool) {
	c, ok := middleware.ClientFromContext(r.Context())
	if !ok {
		slog.Error("client not found in request context", slog.String("path", r.URL.Path))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return c, true
}

// redirectHome はPOST後に / へ303でリダイレクトする。
func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
