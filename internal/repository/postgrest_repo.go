package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/weatherdesk/internal/model"
	"github.com/hitoshi/weatherdesk/internal/supabase"
)

// RestClient はPostgRESTクライアントのインターフェース。
type RestClient interface {
	Insert(ctx context.Context, table string, rows any) error
	SelectSingle(ctx context.Context, table, column, value string, dest any) (bool, error)
}

// PostgRESTProfileRepo はSupabaseのPostgREST経由のプロフィールリポジトリ。
// 行レベルセキュリティのため、コンテキストにユーザーのアクセストークンを載せて呼び出す。
type PostgRESTProfileRepo struct {
	client RestClient
}

// NewPostgRESTProfileRepo はPostgRESTProfileRepoを生成する。
func NewPostgRESTProfileRepo(client RestClient) *PostgRESTProfileRepo {
	return &PostgRESTProfileRepo{client: client}
}

// FindByID は指定ユーザーIDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgRESTProfileRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	var profile model.UserProfile
	found, err := r.client.SelectSingle(ctx, TableUserProfiles, "id", id, &profile)
	if err != nil {
		return nil, fmt.Errorf("failed to find user profile: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &profile, nil
}

// Create はプロフィールを作成する。
func (r *PostgRESTProfileRepo) Create(ctx context.Context, profile *model.UserProfile) error {
	if err := r.client.Insert(ctx, TableUserProfiles, []*model.UserProfile{profile}); err != nil {
		return restWriteError("user profile", err)
	}
	return nil
}

// weatherRequestRow はweather_requestsへの挿入行。idとcreated_atはDBの既定値に任せる。
type weatherRequestRow struct {
	UserID      string          `json:"user_id"`
	Username    string          `json:"username"`
	City        string          `json:"city"`
	Temperature *int            `json:"temperature"`
	Description *string         `json:"description"`
	FeelsLike   *int            `json:"feels_like"`
	Humidity    *float64        `json:"humidity"`
	WindSpeed   *float64        `json:"wind_speed"`
	WeatherData json.RawMessage `json:"weather_data"`
}

// PostgRESTWeatherRequestRepo はPostgREST経由の検索履歴リポジトリ。
type PostgRESTWeatherRequestRepo struct {
	client RestClient
}

// NewPostgRESTWeatherRequestRepo はPostgRESTWeatherRequestRepoを生成する。
func NewPostgRESTWeatherRequestRepo(client RestClient) *PostgRESTWeatherRequestRepo {
	return &PostgRESTWeatherRequestRepo{client: client}
}

// Create は検索履歴を1件追加する。
func (r *PostgRESTWeatherRequestRepo) Create(ctx context.Context, entry *model.WeatherRequestLog) error {
	row := weatherRequestRow{
		UserID:      entry.UserID,
		Username:    entry.Username,
		City:        entry.City,
		Temperature: entry.Temperature,
		Description: entry.Description,
		FeelsLike:   entry.FeelsLike,
		Humidity:    entry.Humidity,
		WindSpeed:   entry.WindSpeed,
		WeatherData: entry.RawPayload,
	}
	if len(row.WeatherData) == 0 {
		row.WeatherData = json.RawMessage("null")
	}
	if err := r.client.Insert(ctx, TableWeatherRequests, []weatherRequestRow{row}); err != nil {
		return restWriteError("weather request", err)
	}
	return nil
}

func restWriteError(what string, err error) error {
	if sbErr, ok := supabase.AsError(err); ok && sbErr.DuplicateKey() {
		return fmt.Errorf("failed to insert %s: %w: %s", what, ErrDuplicateKey, sbErr.Message)
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}

// compile-time interface check
var (
	_ ProfileRepository        = (*PostgRESTProfileRepo)(nil)
	_ WeatherRequestRepository = (*PostgRESTWeatherRequestRepo)(nil)
	_ RestClient               = (*supabase.Client)(nil)
)
