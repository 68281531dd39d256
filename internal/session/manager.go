// Package session はクライアントごとの現在の認証状態を保持する。
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/weatherdesk/internal/auth"
	"github.com/hitoshi/weatherdesk/internal/model"
)

// Gateway はManagerが依存する認証ゲートウェイのインターフェース。
type Gateway interface {
	GetSession(ctx context.Context) (*model.Session, error)
	OnAuthStateChange(fn auth.Listener) auth.Subscription
}

// Hook は認証イベントごとに呼ばれる処理。セッション差し替え後に呼ばれる。
type Hook func(ctx context.Context, event auth.Event, sess *model.Session)

// Manager は現在のSessionを1つだけ保持し、認証イベントのたびに丸ごと置き換える。
type Manager struct {
	gateway Gateway
	logger  *slog.Logger
	hooks   []Hook

	current atomic.Pointer[model.Session]

	mu  sync.Mutex
	sub auth.Subscription
}

// NewManager はManagerを生成する。
func NewManager(gateway Gateway, logger *slog.Logger, hooks ...Hook) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		gateway: gateway,
		logger:  logger,
		hooks:   hooks,
	}
}

// Start は認証イベントを購読し、現在のセッションを取得する。
// 取得に失敗してもエラーにはせず、ログアウト状態として扱う。
// すでに開始済みの場合は何もしない。
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.sub != nil {
		m.mu.Unlock()
		return
	}
	m.sub = m.gateway.OnAuthStateChange(m.handle)
	m.mu.Unlock()

	sess, err := m.gateway.GetSession(ctx)
	if err != nil {
		m.logger.Warn("failed to fetch initial session",
			slog.String("error", err.Error()),
		)
		m.current.Store(nil)
		return
	}
	m.handle(ctx, auth.EventInitialSession, sess)
}

// Stop は購読を解除する。Start前やStop済みの場合は何もしない。
func (m *Manager) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Running は購読中かどうかを返す。
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub != nil
}

// Current は現在のセッションを返す。ログアウト状態ならnil。
func (m *Manager) Current() *model.Session {
	return m.current.Load()
}

// CurrentUser は現在のセッションのユーザーを返す。ログアウト状態ならnil。
func (m *Manager) CurrentUser() *model.User {
	sess := m.current.Load()
	if sess == nil {
		return nil
	}
	return sess.User
}

func (m *Manager) handle(ctx context.Context, event auth.Event, sess *model.Session) {
	m.current.Store(sess)

	attrs := []any{slog.String("event", string(event))}
	if sess != nil {
		attrs = append(attrs, slog.String("user_id", sess.UserID))
	}
	m.logger.Debug("auth state changed", attrs...)

	for _, hook := range m.hooks {
		hook(ctx, event, sess)
	}
}

// compile-time interface check
var _ Gateway = (*auth.Gateway)(nil)
