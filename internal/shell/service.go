// Package shell はブラウザごとの画面状態と、画面操作から各コンポーネントへの呼び出しを提供する。
// ログイン状態に応じてログインフォームまたは天気画面を表示する。
package shell

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/weatherdesk/internal/auth"
	"github.com/hitoshi/weatherdesk/internal/metrics"
	"github.com/hitoshi/weatherdesk/internal/model"
	"github.com/hitoshi/weatherdesk/internal/supabase"
	"github.com/hitoshi/weatherdesk/internal/weather"
)

// ErrSearchInProgress は検索中に次の検索が要求された場合のエラー。要求は無視される。
var ErrSearchInProgress = errors.New("search already in progress")

// WeatherSearcher は天気検索のインターフェース。
type WeatherSearcher interface {
	Search(ctx context.Context, city string) (*weather.Response, error)
}

// RequestDispatcher は検索履歴の書き込みを開始するインターフェース。
type RequestDispatcher interface {
	Dispatch(ctx context.Context, sess *model.Session, resp *weather.Response)
}

// ProfileCreator はサインアップ直後のプロフィール作成のインターフェース。
type ProfileCreator interface {
	CreateUserProfile(ctx context.Context, user *model.User, username, fullName string) (*model.UserProfile, error)
}

// SearchRecorder は検索結果を記録するメトリクスのインターフェース。
type SearchRecorder interface {
	RecordSearch(outcome string, duration time.Duration)
}

// Config はServiceの設定。MetricsとLoggerは省略できる。
type Config struct {
	Weather          WeatherSearcher
	Requests         RequestDispatcher
	Profiles         ProfileCreator
	Metrics          SearchRecorder
	DefaultCity      string
	OAuthRedirectURL string
	Logger           *slog.Logger
}

// Service は画面操作を処理する。状態はClient側に持ち、Service自体は並行に使える。
type Service struct {
	weather          WeatherSearcher
	requests         RequestDispatcher
	profiles         ProfileCreator
	metrics          SearchRecorder
	defaultCity      string
	oauthRedirectURL string
	validate         *validator.Validate
	logger           *slog.Logger
}

// NewService はServiceを生成する。
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	city := cfg.DefaultCity
	if city == "" {
		city = "New York"
	}
	return &Service{
		weather:          cfg.Weather,
		requests:         cfg.Requests,
		profiles:         cfg.Profiles,
		metrics:          cfg.Metrics,
		defaultCity:      city,
		oauthRedirectURL: cfg.OAuthRedirectURL,
		validate:         newValidator(),
		logger:           logger,
	}
}

// Page は1回の画面描画に必要な情報。
type Page struct {
	View
	Session *model.Session
}

// LoggedIn はログイン済みかどうかを返す。
func (p *Page) LoggedIn() bool {
	return p.Session != nil
}

// Home は現在の画面を組み立てる。
// ログイン後の最初の表示では既定都市の検索を1回だけ実行する。
// エラーと通知のメッセージは返したPageにのみ載せ、次の表示には残さない。
func (s *Service) Home(ctx context.Context, c *Client) *Page {
	// 期限切れトークンの更新はここで行われ、結果は認証イベントでManagerに届く
	if _, err := c.Gateway.GetSession(ctx); err != nil {
		s.logger.Warn("failed to refresh session",
			slog.String("client_id", c.ID),
			slog.String("error", err.Error()),
		)
	}
	sess := c.Session()

	c.mu.Lock()
	runDefault := false
	switch {
	case sess == nil && c.autoSearchedFor != "":
		// ログアウト後は天気画面の状態を残さない
		c.autoSearchedFor = ""
		c.view.Weather = nil
		c.view.SearchError = ""
		c.view.LastCity = ""
	case sess != nil && c.autoSearchedFor != sess.UserID:
		c.autoSearchedFor = sess.UserID
		runDefault = true
	}
	c.mu.Unlock()

	if runDefault {
		// 結果はViewに反映済み
		_ = s.Search(ctx, c, s.defaultCity)
	}

	c.mu.Lock()
	view := c.view.takeMessages()
	c.mu.Unlock()

	return &Page{View: view, Session: c.Session()}
}

// SetMode はログイン画面のフォームを切り替える。
func (s *Service) SetMode(c *Client, mode Mode) {
	if mode != ModeSignUp {
		mode = ModeSignIn
	}
	c.update(func(v *View) {
		v.Mode = mode
		v.clearAuthMessages()
	})
}

// SignIn はメールアドレスとパスワードでサインインする。
func (s *Service) SignIn(ctx context.Context, c *Client, form SignInForm) error {
	if err := validateSignIn(s.validate, form); err != nil {
		s.showAuthError(c, err)
		return err
	}
	c.update(func(v *View) { v.clearAuthMessages() })

	if _, err := c.Gateway.SignIn(ctx, strings.TrimSpace(form.Email), form.Password); err != nil {
		s.logger.Info("sign in failed",
			slog.String("client_id", c.ID),
			slog.String("error", err.Error()),
		)
		s.showAuthError(c, err)
		return err
	}

	c.update(func(v *View) { v.Notice = MsgLoginSuccessful })
	return nil
}

// SignUp はアカウントを作成し、プロフィール行を追加する。
// 成功時はメール確認を促すメッセージとともにサインインフォームに戻る。
func (s *Service) SignUp(ctx context.Context, c *Client, form SignUpForm) error {
	if err := validateSignUp(s.validate, form); err != nil {
		s.showAuthError(c, err)
		return err
	}
	c.update(func(v *View) { v.clearAuthMessages() })

	username := strings.TrimSpace(form.Username)
	fullName := strings.TrimSpace(form.FullName)
	if fullName == "" {
		fullName = username
	}

	user, err := c.Gateway.SignUp(ctx, strings.TrimSpace(form.Email), form.Password, auth.ProfileFields{
		Username: username,
		FullName: fullName,
	})
	if err != nil {
		s.logger.Info("sign up failed",
			slog.String("client_id", c.ID),
			slog.String("error", err.Error()),
		)
		s.showAuthError(c, err)
		return err
	}

	profileCtx := ctx
	if sess := c.Session(); sess != nil {
		profileCtx = supabase.ContextWithAccessToken(ctx, sess.AccessToken)
	}
	if _, err := s.profiles.CreateUserProfile(profileCtx, user, username, fullName); err != nil {
		s.logger.Error("failed to create user profile",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	c.update(func(v *View) {
		v.Mode = ModeSignIn
		v.AuthError = ""
		v.Notice = MsgAccountCreated
	})
	return nil
}

// SignOut はサインアウトする。プロバイダーの呼び出しが失敗しても画面はログアウト状態になる。
func (s *Service) SignOut(ctx context.Context, c *Client) error {
	err := c.Gateway.SignOut(ctx)
	if err != nil {
		s.logger.Warn("provider sign out failed",
			slog.String("client_id", c.ID),
			slog.String("error", err.Error()),
		)
	}

	c.mu.Lock()
	c.view.reset()
	c.autoSearchedFor = ""
	c.mu.Unlock()

	return err
}

// BeginOAuth はGoogleログインのリダイレクト先を用意する。
func (s *Service) BeginOAuth(c *Client) (*auth.OAuthRedirect, error) {
	redirect, err := c.Gateway.SignInWithOAuth(model.ProviderGoogle, s.oauthRedirectURL)
	if err != nil {
		s.logger.Error("failed to start google sign in",
			slog.String("client_id", c.ID),
			slog.String("error", err.Error()),
		)
		c.update(func(v *View) { v.AuthError = model.MsgGoogleSignInFailed })
		return nil, err
	}
	return redirect, nil
}

// CompleteOAuth は認可コードをセッションに交換し、セッションを再確認する。
func (s *Service) CompleteOAuth(ctx context.Context, c *Client, code, codeVerifier string) error {
	if _, err := c.Gateway.ExchangeCodeForSession(ctx, code, codeVerifier); err != nil {
		s.logger.Error("failed to exchange oauth code",
			slog.String("client_id", c.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	sess, err := c.Gateway.GetSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return model.NewProviderError(model.MsgGoogleSignInFailed, errors.New("no session after code exchange"))
	}
	return nil
}

// ShowOAuthFailure はGoogleログイン失敗をログイン画面に表示する。
func (s *Service) ShowOAuthFailure(c *Client) {
	c.update(func(v *View) {
		v.Mode = ModeSignIn
		v.AuthError = model.MsgGoogleSignInFailed
		v.Notice = ""
	})
}

// Search は都市名で天気を検索し、画面状態を更新する。
// 成功時は画面更新のあとに検索履歴の書き込みを開始する。
// 検索中の要求はErrSearchInProgressで無視する。
func (s *Service) Search(ctx context.Context, c *Client, city string) error {
	city = strings.TrimSpace(city)
	if city == "" {
		err := model.NewValidationError(model.MsgEmptyCity)
		c.update(func(v *View) { v.SearchError = err.Message })
		return err
	}

	c.mu.Lock()
	if c.view.Loading {
		c.mu.Unlock()
		return ErrSearchInProgress
	}
	c.view.Loading = true
	c.view.SearchError = ""
	c.view.LastCity = city
	c.mu.Unlock()

	start := time.Now()
	resp, err := s.weather.Search(ctx, city)
	s.recordSearch(err, time.Since(start))

	c.update(func(v *View) {
		v.Loading = false
		if err != nil {
			v.SearchError = userMessage(err)
			if clearsWeather(err) {
				v.Weather = nil
			}
			return
		}
		v.Weather = resp.Result
	})

	if err != nil {
		s.logger.Warn("weather search failed",
			slog.String("client_id", c.ID),
			slog.String("city", city),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.requests.Dispatch(ctx, c.Session(), resp)
	return nil
}

func (s *Service) recordSearch(err error, d time.Duration) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = model.ErrCodeUnexpected
		if apiErr, ok := model.AsAPIError(err); ok {
			outcome = apiErr.Code
		}
	}
	s.metrics.RecordSearch(outcome, d)
}

func (s *Service) showAuthError(c *Client, err error) {
	msg := userMessage(err)
	c.update(func(v *View) {
		v.AuthError = msg
		v.Notice = ""
	})
}

// userMessage は画面に表示するエラーメッセージを返す。
func userMessage(err error) string {
	if apiErr, ok := model.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return model.MsgUnexpected
}

// clearsWeather は表示中の天気を消すエラーかどうかを判定する。
// 天気サービスに到達できない場合と応答を解釈できない場合のみ消す。
func clearsWeather(err error) bool {
	return model.HasCode(err, model.ErrCodeNetworkUnavailable) || model.HasCode(err, model.ErrCodeUnexpected)
}
