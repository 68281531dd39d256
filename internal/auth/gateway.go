// Package auth はIDプロバイダーへのサインイン・サインアップ・サインアウト・OAuth呼び出しと、
// クライアントごとのトークン保持、認証イベントの通知を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/weatherdesk/internal/model"
	"github.com/hitoshi/weatherdesk/internal/supabase"
)

// refreshMargin はアクセストークンを期限切れとみなす余裕時間。
const refreshMargin = 10 * time.Second

// msgProviderUnavailable はプロバイダーに到達できなかった場合のメッセージ。
const msgProviderUnavailable = "Authentication service is unavailable. Please try again."

// IdentityProvider はIDプロバイダー（GoTrue）のインターフェース。
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*model.User, *model.Session, error)
	Logout(ctx context.Context, accessToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error)
	ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*model.Session, error)
	AuthorizeURL(provider, redirectTo, codeChallenge string) string
}

// ProfileFields はサインアップ時にuser_metadataとして保存するプロフィール項目。
type ProfileFields struct {
	Username string
	FullName string
}

// OAuthRedirect はOAuthサインインの開始情報。
// CodeVerifierはコールバックでのコード交換まで呼び出し側が保持する。
type OAuthRedirect struct {
	URL          string
	CodeVerifier string
}

// Gateway は1クライアント分の認証状態を保持し、プロバイダー呼び出しを仲介する。
type Gateway struct {
	provider  IdentityProvider
	inspector *TokenInspector
	logger    *slog.Logger
	now       func() time.Time

	// refreshMu はGetSessionでのリフレッシュを直列化する。
	refreshMu sync.Mutex

	mu        sync.Mutex
	session   *model.Session
	listeners []listenerEntry
	nextID    uint64
}

// NewGateway はGatewayを生成する。inspectorがnilの場合はトークンを検査しない。
func NewGateway(provider IdentityProvider, inspector *TokenInspector, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		provider:  provider,
		inspector: inspector,
		logger:    logger,
		now:       time.Now,
	}
}

// SignIn はメールアドレスとパスワードでサインインする。
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	sess, err := g.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if sbErr, ok := supabase.AsError(err); ok && sbErr.InvalidCredentials() {
			return nil, model.NewInvalidCredentialsError(sbErr.Message, err)
		}
		return nil, providerError(err)
	}

	if err := g.store(sess); err != nil {
		return nil, err
	}
	g.emit(ctx, EventSignedIn, sess)
	return sess.User, nil
}

// SignUp はアカウントを登録する。full_nameが空の場合はusernameを使う。
// メール確認が必要な設定ではセッションは発行されず、ユーザーのみ返る。
func (g *Gateway) SignUp(ctx context.Context, email, password string, fields ProfileFields) (*model.User, error) {
	fullName := fields.FullName
	if fullName == "" {
		fullName = fields.Username
	}
	metadata := map[string]any{
		"username":  fields.Username,
		"full_name": fullName,
	}

	user, sess, err := g.provider.SignUp(ctx, email, password, metadata)
	if err != nil {
		if sbErr, ok := supabase.AsError(err); ok && sbErr.Rejected() {
			apiErr := model.NewValidationError(sbErr.Message)
			apiErr.Err = err
			return nil, apiErr
		}
		return nil, providerError(err)
	}
	if user == nil {
		return nil, model.NewProviderError("Sign up did not return a user", nil)
	}

	if sess != nil {
		if err := g.store(sess); err != nil {
			return nil, err
		}
		g.emit(ctx, EventSignedIn, sess)
	}
	return user, nil
}

// SignOut はプロバイダー側のセッションを破棄する。
// プロバイダー呼び出しの成否にかかわらずローカルのセッションは消去され、SIGNED_OUTが通知される。
func (g *Gateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	prev := g.session
	g.session = nil
	g.mu.Unlock()

	var err error
	if prev != nil && prev.AccessToken != "" {
		if logoutErr := g.provider.Logout(ctx, prev.AccessToken); logoutErr != nil {
			err = providerError(logoutErr)
		}
	}

	g.emit(ctx, EventSignedOut, nil)
	return err
}

// SignInWithOAuth はOAuthプロバイダーの認可URLとPKCEのverifierを生成する。
// ユーザーは同期的には返らず、コールバックでExchangeCodeForSessionを呼ぶことで完了する。
func (g *Gateway) SignInWithOAuth(provider, redirectURL string) (*OAuthRedirect, error) {
	verifier, err := newCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return &OAuthRedirect{
		URL:          g.provider.AuthorizeURL(provider, redirectURL, codeChallengeS256(verifier)),
		CodeVerifier: verifier,
	}, nil
}

// ExchangeCodeForSession は認可コードをセッションに交換して保存する。
func (g *Gateway) ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*model.Session, error) {
	if code == "" || codeVerifier == "" {
		return nil, model.NewValidationError("missing authorization code or verifier")
	}

	sess, err := g.provider.ExchangeCodeForSession(ctx, code, codeVerifier)
	if err != nil {
		return nil, providerError(err)
	}
	if err := g.store(sess); err != nil {
		return nil, err
	}
	g.emit(ctx, EventSignedIn, sess)
	return sess, nil
}

// GetSession は保存中のセッションを返す。セッションがなければnil。
// アクセストークンが期限切れでリフレッシュトークンがあれば1回だけ更新を試み、
// 失敗した場合はセッションを消去してSIGNED_OUTを通知する。
func (g *Gateway) GetSession(ctx context.Context) (*model.Session, error) {
	g.refreshMu.Lock()
	defer g.refreshMu.Unlock()

	g.mu.Lock()
	sess := g.session
	g.mu.Unlock()

	if sess == nil {
		return nil, nil
	}
	if g.now().Add(refreshMargin).Before(sess.ExpiresAt) {
		return sess, nil
	}

	if sess.RefreshToken == "" {
		g.clear()
		g.emit(ctx, EventSignedOut, nil)
		return nil, nil
	}

	refreshed, err := g.provider.RefreshSession(ctx, sess.RefreshToken)
	if err == nil {
		if refreshed.User == nil {
			// トークンエンドポイントがuserを省略した場合は既存のユーザー情報を引き継ぐ
			refreshed = model.NewSession(sess.User, refreshed.AccessToken, refreshed.RefreshToken, refreshed.ExpiresAt)
		}
		err = g.store(refreshed)
	}
	if err != nil {
		g.logger.Warn("session refresh failed",
			slog.String("user_id", sess.UserID),
			slog.String("error", err.Error()),
		)
		g.clear()
		g.emit(ctx, EventSignedOut, nil)
		if _, ok := model.AsAPIError(err); ok {
			return nil, err
		}
		return nil, providerError(err)
	}

	g.emit(ctx, EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// store はセッションを検査してから保持する。
func (g *Gateway) store(sess *model.Session) error {
	if sess == nil {
		return model.NewProviderError("Authentication did not return a session", nil)
	}
	if g.inspector != nil {
		claims, err := g.inspector.Inspect(sess.AccessToken)
		if err != nil {
			return model.NewProviderError("Received an invalid access token", err)
		}
		// トークン自身のexpを正とする
		sess.ExpiresAt = claims.ExpiresAt
		if sess.UserID == "" {
			sess.UserID = claims.Subject
		} else if claims.Subject != "" && claims.Subject != sess.UserID {
			return model.NewProviderError("Received an invalid access token",
				fmt.Errorf("token subject %q does not match user %q", claims.Subject, sess.UserID))
		}
	}

	g.mu.Lock()
	g.session = sess
	g.mu.Unlock()
	return nil
}

func (g *Gateway) clear() {
	g.mu.Lock()
	g.session = nil
	g.mu.Unlock()
}

// providerError はプロバイダー呼び出しの失敗をPROVIDER_ERRORに変換する。
// プロバイダーのメッセージはそのままユーザーに表示する。
func providerError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if sbErr, ok := supabase.AsError(err); ok {
		return model.NewProviderError(sbErr.Message, err)
	}
	return model.NewProviderError(msgProviderUnavailable, err)
}

// compile-time interface check
var _ IdentityProvider = (*supabase.Client)(nil)
