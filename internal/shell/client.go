package shell

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/hitoshi/weatherdesk/internal/auth"
	"github.com/hitoshi/weatherdesk/internal/model"
	"github.com/hitoshi/weatherdesk/internal/session"
)

// Client はブラウザ1つ分の状態。
// 認証ゲートウェイ・セッションマネージャー・画面状態をそれぞれ1つずつ持つ。
type Client struct {
	ID      string
	Gateway *auth.Gateway
	Manager *session.Manager

	mu       sync.Mutex
	view     View
	lastSeen time.Time
	// 既定都市の自動検索を実行済みのユーザーID
	autoSearchedFor string
}

// View は現在の画面状態のコピーを返す。
func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Session は現在のセッションを返す。未ログインならnil。
func (c *Client) Session() *model.Session {
	return c.Manager.Current()
}

func (c *Client) update(fn func(v *View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.view)
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// RegistryConfig はRegistryの設定。
type RegistryConfig struct {
	Provider    auth.IdentityProvider
	Inspector   *auth.TokenInspector
	Hooks       []session.Hook
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// Registry はクライアントIDごとのClientを保持する。
// 一定時間アクセスのないClientはSweepで破棄する。
type Registry struct {
	provider    auth.IdentityProvider
	inspector   *auth.TokenInspector
	hooks       []session.Hook
	idleTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry はRegistryを生成する。
func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = 24 * time.Hour
	}
	return &Registry{
		provider:    cfg.Provider,
		inspector:   cfg.Inspector,
		hooks:       cfg.Hooks,
		idleTimeout: idle,
		logger:      logger,
		now:         time.Now,
		clients:     make(map[string]*Client),
	}
}

// Get は指定IDのClientを返し、最終アクセス時刻を更新する。
// 時刻の更新はr.muを保持したまま行い、Sweepとの間で破棄済みのClientを返さない。
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	c.touch(r.now())
	return c, true
}

// Create は新しいClientを生成して登録し、セッションマネージャーを開始する。
func (r *Registry) Create(ctx context.Context) *Client {
	gw := auth.NewGateway(r.provider, r.inspector, r.logger)
	c := &Client{
		ID:       uuid.New().String(),
		Gateway:  gw,
		Manager:  session.NewManager(gw, r.logger, r.hooks...),
		view:     View{Mode: ModeSignIn},
		lastSeen: r.now(),
	}
	c.Manager.Start(ctx)

	r.mu.Lock()
	r.clients[c.ID] = c
	r.mu.Unlock()

	return c
}

// Len は登録中のClient数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep はidleTimeoutを超えてアクセスのないClientを破棄し、破棄した数を返す。
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTimeout)

	var expired []*Client
	r.mu.Lock()
	for id, c := range r.clients {
		if c.idleSince().Before(cutoff) {
			expired = append(expired, c)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	for _, c := range expired {
		c.Manager.Stop()
	}
	if len(expired) > 0 {
		r.logger.Info("アイドル状態のクライアントを破棄しました",
			slog.Int("count", len(expired)),
			slog.Int("remaining", r.Len()),
		)
	}
	return len(expired)
}

// StartSweeper はintervalごとにSweepを実行するスケジューラを開始する。
// 停止は返されたスケジューラのStopで行う。
func (r *Registry) StartSweeper(interval time.Duration) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(interval).Do(func() { r.Sweep() }); err != nil {
		return nil, fmt.Errorf("failed to schedule client sweep: %w", err)
	}
	s.StartAsync()
	return s, nil
}

// Close はすべてのClientのセッションマネージャーを停止する。
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.Manager.Stop()
	}
}
