package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/weatherdesk/internal/model"
)

// userResponse はGoTrueのユーザーオブジェクト。
type userResponse struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	UserMetadata     map[string]any `json:"user_metadata"`
	AppMetadata      map[string]any `json:"app_metadata"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (u *userResponse) toModel() *model.User {
	if u == nil || u.ID == "" {
		return nil
	}
	return &model.User{
		ID:               u.ID,
		Email:            u.Email,
		UserMetadata:     u.UserMetadata,
		AppMetadata:      u.AppMetadata,
		EmailConfirmedAt: u.EmailConfirmedAt,
		CreatedAt:        u.CreatedAt,
	}
}

// tokenResponse は/auth/v1/tokenおよび/auth/v1/signupのセッション応答。
type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	RefreshToken string        `json:"refresh_token"`
	User         *userResponse `json:"user"`
}

func (t *tokenResponse) toSession(now time.Time) *model.Session {
	if t.AccessToken == "" {
		return nil
	}
	expiresAt := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	if t.ExpiresAt > 0 {
		expiresAt = time.Unix(t.ExpiresAt, 0)
	}
	return model.NewSession(t.User.toModel(), t.AccessToken, t.RefreshToken, expiresAt)
}

// SignInWithPassword はメールアドレスとパスワードでセッションを取得する。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	var tr tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  "grant_type=password",
		body:   map[string]string{"email": email, "password": password},
	}, &tr)
	if err != nil {
		return nil, err
	}
	sess := tr.toSession(time.Now())
	if sess == nil {
		return nil, errors.New("token response did not contain an access token")
	}
	return sess, nil
}

// SignUp はアカウントを登録する。metadataはuser_metadataとして保存される。
// メール確認が有効な場合はセッションがnilで返る。
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*model.User, *model.Session, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body: map[string]any{
			"email":    email,
			"password": password,
			"data":     metadata,
		},
	}, &raw)
	if err != nil {
		return nil, nil, err
	}

	// 自動確認時はセッション形式、確認待ちの場合はユーザー形式で返る
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err == nil && tr.AccessToken != "" {
		sess := tr.toSession(time.Now())
		return sess.User, sess, nil
	}

	var ur userResponse
	if err := json.Unmarshal(raw, &ur); err != nil {
		return nil, nil, fmt.Errorf("failed to parse signup response: %w", err)
	}
	return ur.toModel(), nil, nil
}

// RefreshSession はリフレッシュトークンで新しいセッションを取得する。
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	var tr tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  "grant_type=refresh_token",
		body:   map[string]string{"refresh_token": refreshToken},
	}, &tr)
	if err != nil {
		return nil, err
	}
	sess := tr.toSession(time.Now())
	if sess == nil {
		return nil, errors.New("refresh response did not contain an access token")
	}
	return sess, nil
}

// ExchangeCodeForSession はOAuthコールバックの認可コードをPKCEのverifierと共に
// セッションへ交換する。
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*model.Session, error) {
	var tr tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  "grant_type=pkce",
		body:   map[string]string{"auth_code": code, "code_verifier": codeVerifier},
	}, &tr)
	if err != nil {
		return nil, err
	}
	sess := tr.toSession(time.Now())
	if sess == nil {
		return nil, errors.New("code exchange response did not contain an access token")
	}
	return sess, nil
}

// Logout はアクセストークンに紐づくセッションをサーバー側で無効化する。
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		bearer: accessToken,
	}, nil)
}

// AuthorizeURL はOAuthプロバイダーの認可画面へのURLを組み立てる。
// codeChallengeはS256で計算済みの値を渡す。
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "s256")
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}
