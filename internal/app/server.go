package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hitoshi/weatherdesk/internal/auth"
	"github.com/hitoshi/weatherdesk/internal/config"
	"github.com/hitoshi/weatherdesk/internal/database"
	"github.com/hitoshi/weatherdesk/internal/handler"
	"github.com/hitoshi/weatherdesk/internal/metrics"
	"github.com/hitoshi/weatherdesk/internal/profile"
	"github.com/hitoshi/weatherdesk/internal/repository"
	"github.com/hitoshi/weatherdesk/internal/requestlog"
	"github.com/hitoshi/weatherdesk/internal/session"
	"github.com/hitoshi/weatherdesk/internal/shell"
	"github.com/hitoshi/weatherdesk/internal/supabase"
	"github.com/hitoshi/weatherdesk/internal/weather"
	"github.com/prometheus/client_golang/prometheus"
)

// dbPingTimeout はDATABASE_URL指定時の接続確認の待ち時間。
const dbPingTimeout = 5 * time.Second

// Server はWebアプリの組み立て結果。Closeで保持するリソースを解放する。
type Server struct {
	Handler http.Handler

	registry   *shell.Registry
	dispatcher *requestlog.Dispatcher
	sweeper    *gocron.Scheduler
	db         *sql.DB
}

// NewServer は設定から全依存関係をワイヤリングしてServerを生成する。
// DATABASE_URLが設定されていればPostgreSQLへ直接書き込み、なければPostgREST経由で書き込む。
func NewServer(ctx context.Context, cfg *config.Config, reg *prometheus.Registry) (*Server, error) {
	logger := slog.Default()
	collector := metrics.NewCollector(reg)

	// 1. Supabaseクライアント
	sb := supabase.NewClient(supabase.Config{
		URL:     cfg.SupabaseURL,
		AnonKey: cfg.SupabaseAnonKey,
	})
	inspector := auth.NewTokenInspector(cfg.SupabaseJWTSecret)
	if !inspector.Verifies() {
		logger.Warn("SUPABASE_JWT_SECRET is not set; access token signatures are not verified")
	}

	// 2. リポジトリの初期化
	var (
		db           *sql.DB
		profileRepo  repository.ProfileRepository
		requestsRepo repository.WeatherRequestRepository
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Connect(ctx, cfg.DatabaseURL, dbPingTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("database connection established")
		profileRepo = repository.NewPostgresProfileRepo(db)
		requestsRepo = repository.NewPostgresWeatherRequestRepo(db)
	} else {
		profileRepo = repository.NewPostgRESTProfileRepo(sb)
		requestsRepo = repository.NewPostgRESTWeatherRequestRepo(sb)
	}

	// 3. ドメインサービスの初期化
	profiles := profile.NewWriter(profileRepo, logger)
	dispatcher := requestlog.NewDispatcher(requestsRepo, collector, logger)

	registry := shell.NewRegistry(shell.RegistryConfig{
		Provider:  sb,
		Inspector: inspector,
		Hooks: []session.Hook{
			session.GoogleProfileHook(profiles, logger),
			session.MetricsHook(collector),
		},
		IdleTimeout: cfg.ClientIdleTimeout,
		Logger:      logger,
	})

	service := shell.NewService(shell.Config{
		Weather: weather.NewClient(weather.Config{
			BaseURL: cfg.WeatherAPIBaseURL,
			Timeout: cfg.WeatherTimeout,
		}),
		Requests:         dispatcher,
		Profiles:         profiles,
		Metrics:          collector,
		DefaultCity:      cfg.DefaultCity,
		OAuthRedirectURL: cfg.OAuthRedirectURL(),
		Logger:           logger,
	})

	// 4. ルーターの構築
	renderer, err := handler.NewRenderer()
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Clients:        registry,
		CookieSecure:   cfg.CookieSecure,
		CookieDomain:   cfg.CookieDomain,
		Logger:         logger,
		Service:        service,
		Renderer:       renderer,
		MetricsHandler: metrics.Handler(reg),
	})

	// 5. アイドルクライアントの掃除
	sweeper, err := registry.StartSweeper(cfg.ClientSweepInterval)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to start client sweeper: %w", err)
	}

	return &Server{
		Handler:    router,
		registry:   registry,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		db:         db,
	}, nil
}

// Close は掃除ジョブを止め、検索履歴の書き込みを待ってからクライアントとDB接続を解放する。
func (s *Server) Close(ctx context.Context) error {
	s.sweeper.Stop()

	var errs []error
	if err := s.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("request log dispatcher: %w", err))
	}
	s.registry.Close()
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func closeDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}
