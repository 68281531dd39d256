package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// defaultWeatherAPIAllowedOrigins は天気APIサービスのCORS許可オリジンの既定値。
var defaultWeatherAPIAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Supabase（認証 + データストア）
	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	// Database（設定時はPostgREST経由ではなく直接接続する）
	DatabaseURL string

	// Weather
	WeatherAPIBaseURL string
	WeatherTimeout    time.Duration
	DefaultCity       string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// Client（ブラウザごとの状態）
	ClientIdleTimeout   time.Duration
	ClientSweepInterval time.Duration

	// Logging
	LogLevel slog.Level

	// Weather API service
	WeatherAPIPort           string
	OpenWeatherAPIKey        string
	OpenWeatherBaseURL       string
	WeatherAPIAllowedOrigins []string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	cfg.SupabaseURL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	cfg.SupabaseAnonKey = os.Getenv("SUPABASE_ANON_KEY")
	cfg.SupabaseJWTSecret = os.Getenv("SUPABASE_JWT_SECRET")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.WeatherAPIBaseURL = strings.TrimRight(getEnvString("WEATHER_API_BASE_URL", "http://localhost:8000"), "/")
	cfg.WeatherTimeout = getEnvDuration("WEATHER_TIMEOUT", 15*time.Second)
	cfg.DefaultCity = getEnvString("DEFAULT_CITY", "New York")

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort), "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	cfg.ClientIdleTimeout = getEnvDuration("CLIENT_IDLE_TIMEOUT", 24*time.Hour)
	cfg.ClientSweepInterval = getEnvDuration("CLIENT_SWEEP_INTERVAL", 10*time.Minute)

	level, err := parseLogLevel(getEnvString("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.WeatherAPIPort = getEnvString("WEATHERAPI_PORT", "8000")
	cfg.OpenWeatherAPIKey = os.Getenv("WEATHERAPP_ID")
	cfg.OpenWeatherBaseURL = getEnvString("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/weather")
	cfg.WeatherAPIAllowedOrigins = getEnvList("WEATHERAPI_ALLOWED_ORIGINS", defaultWeatherAPIAllowedOrigins)

	return cfg, nil
}

// ValidateForServe はWebアプリ起動に必須の設定を検証する。
// 未設定の環境変数をまとめてエラーとして返す。
func (c *Config) ValidateForServe() error {
	var missing []string
	if c.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return nil
}

// ValidateForMigrate はマイグレーション実行に必須の設定を検証する。
func (c *Config) ValidateForMigrate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
	}
	return nil
}

// OAuthRedirectURL はOAuthプロバイダーからの戻り先URLを返す。
func (c *Config) OAuthRedirectURL() string {
	return c.BaseURL + "/auth/callback"
}

func parseLogLevel(v string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
	}
	return level, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
