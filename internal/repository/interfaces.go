// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/weatherdesk/internal/model"
)

// ErrDuplicateKey は一意制約に違反する行を挿入しようとした場合のエラー。
var ErrDuplicateKey = errors.New("duplicate key")

// Table names
const (
	TableUserProfiles    = "user_profiles"
	TableWeatherRequests = "weather_requests"
)

// ProfileRepository はuser_profilesの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定ユーザーIDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.UserProfile, error)

	// Create はプロフィールを作成する。同一IDの行が既にあればErrDuplicateKeyを返す。
	Create(ctx context.Context, profile *model.UserProfile) error
}

// WeatherRequestRepository はweather_requestsの永続化インターフェース。追記のみ。
type WeatherRequestRepository interface {
	// Create は検索履歴を1件追加する。
	Create(ctx context.Context, entry *model.WeatherRequestLog) error
}
