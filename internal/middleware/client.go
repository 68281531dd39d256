// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/weatherdesk/internal/shell"
)

// clientCookieName はブラウザごとのクライアントIDを保持するCookieの名前。
const clientCookieName = "weatherdesk_client"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var clientContextKey = contextKey("client")

// ClientStore はクライアントの取得・生成に必要なインターフェース。
// shell.Registryが実装する。
type ClientStore interface {
	Get(id string) (*shell.Client, bool)
	Create(ctx context.Context) *shell.Client
}

// CookieConfig はCookie属性の設定。
type CookieConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewClientMiddleware はHTTP Only Cookieからクライアントを解決するミドルウェアを返す。
// Cookieがない場合や未知のIDの場合は新しいクライアントを生成してCookieを発行する。
// ログイン中であればユーザーIDをリクエストログに記録する。
func NewClientMiddleware(store ClientStore, config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var client *shell.Client
			if cookie, err := r.Cookie(clientCookieName); err == nil && cookie.Value != "" {
				client, _ = store.Get(cookie.Value)
			}
			if client == nil {
				client = store.Create(r.Context())
				http.SetCookie(w, &http.Cookie{
					Name:     clientCookieName,
					Value:    client.ID,
					Path:     "/",
					Domain:   config.CookieDomain,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			if sess := client.Session(); sess != nil {
				SetUserID(r.Context(), sess.UserID)
			}

			ctx := context.WithValue(r.Context(), clientContextKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientFromContext はリクエストコンテキストからクライアントを取得する。
// クライアントミドルウェアを通過したリクエストでのみ有効。
func ClientFromContext(ctx context.Context) (*shell.Client, bool) {
	c, ok := ctx.Value(clientContextKey).(*shell.Client)
	return c, ok && c != nil
}
