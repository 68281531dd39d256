package model

import (
	"encoding/json"
	"time"
)

// WeatherResult は画面表示用の天気情報。検索のたびに作り直され、永続化されない。
type WeatherResult struct {
	Temperature  int
	FeelsLike    int
	Humidity     float64
	WindSpeedKph float64
	Description  string
	IconKey      string
	LocationName string
}

// WeatherRequestLog はweather_requestsテーブルの行を表す。
// 検索成功ごとに1件追記され、このシステムが読み戻すことはない。
// 値が取得できなかった項目はnil（NULL）で保存する。
type WeatherRequestLog struct {
	ID          string
	UserID      string
	Username    string
	City        string
	Temperature *int
	Description *string
	FeelsLike   *int
	Humidity    *float64
	WindSpeed   *float64
	RawPayload  json.RawMessage
	CreatedAt   time.Time
}
