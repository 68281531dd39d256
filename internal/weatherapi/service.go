// Package weatherapi はOpenWeatherへの中継を行う天気APIサービスを提供する。
// Webアプリの天気クライアントはこのサービスの /weather/{city} を呼び出す。
package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// defaultTimeout はOpenWeather呼び出しのタイムアウト。
	defaultTimeout = 10 * time.Second

	// maxUpstreamBodySize はOpenWeather応答の最大読み取りサイズ。
	maxUpstreamBodySize = 1 << 20

	defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
)

// StatusRecorder はOpenWeatherの応答ステータスを記録するメトリクスのインターフェース。
type StatusRecorder interface {
	RecordUpstreamStatus(statusCode int)
}

// Error はクライアントに返すエラー。Detailは文字列または上流のJSON。
type Error struct {
	Status int
	Detail any
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("weatherapi: %d %v: %v", e.Status, e.Detail, e.Err)
	}
	return fmt.Sprintf("weatherapi: %d %v", e.Status, e.Detail)
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Config はServiceの設定。
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    StatusRecorder
	Logger     *slog.Logger
}

// Service はOpenWeatherの現在の天気を取得する。
type Service struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	metrics    StatusRecorder
	logger     *slog.Logger
}

// NewService はServiceを生成する。
func NewService(cfg Config) *Service {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: hc,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// APIKeyConfigured はAPIキーが設定されているかを返す。
func (s *Service) APIKeyConfigured() bool {
	return s.apiKey != ""
}

// CurrentWeather は都市名でOpenWeatherの現在の天気を取得し、応答JSONをそのまま返す。
// 失敗時は*Errorを返す。
func (s *Service) CurrentWeather(ctx context.Context, city string) (json.RawMessage, error) {
	if s.apiKey == "" {
		return nil, &Error{Status: http.StatusInternalServerError, Detail: "API key not found. Check your .env file."}
	}
	if strings.TrimSpace(city) == "" {
		return nil, &Error{Status: http.StatusBadRequest, Detail: "City name cannot be empty"}
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", s.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Detail: "An error occurred: " + err.Error(), Err: err}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, s.transportError(city, err)
	}
	defer resp.Body.Close()

	if s.metrics != nil {
		s.metrics.RecordUpstreamStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBodySize))
	if err != nil {
		return nil, s.transportError(city, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &Error{Status: http.StatusNotFound, Detail: "City not found"}
	case http.StatusUnauthorized:
		return nil, &Error{Status: http.StatusUnauthorized, Detail: "Invalid API key"}
	default:
		s.logger.Warn("OpenWeatherがエラーを返しました",
			slog.String("city", city),
			slog.Int("status", resp.StatusCode),
		)
		return nil, &Error{Status: resp.StatusCode, Detail: upstreamDetail(body)}
	}

	if !json.Valid(body) {
		err := errors.New("invalid JSON in weather response")
		return nil, &Error{Status: http.StatusInternalServerError, Detail: "An error occurred: " + err.Error(), Err: err}
	}
	return json.RawMessage(body), nil
}

// transportError はHTTP呼び出しの失敗をステータスに対応付ける。
func (s *Service) transportError(city string, err error) *Error {
	s.logger.Error("OpenWeatherの呼び出しに失敗しました",
		slog.String("city", city),
		slog.String("error", err.Error()),
	)

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Status: http.StatusRequestTimeout, Detail: "Request timeout", Err: err}
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return &Error{Status: http.StatusServiceUnavailable, Detail: "Unable to connect to weather service", Err: err}
	}
	return &Error{Status: http.StatusInternalServerError, Detail: "An error occurred: " + err.Error(), Err: err}
}

// upstreamDetail は上流のエラー応答をdetailとして返す。JSONでなければ文字列。
func upstreamDetail(body []byte) any {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return "An error occurred while fetching weather data."
}
