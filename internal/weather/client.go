// Package weather は天気エンドポイントの呼び出しと、応答の表示モデルへの変換を提供する。
package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/weatherdesk/internal/model"
	"github.com/hitoshi/weatherdesk/internal/security"
)

// maxBodySize は応答ボディの最大読み取りサイズ。
const maxBodySize = 1 << 20

// Config はClientの設定。
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Sanitizer  security.TextSanitizer
}

// Client は天気エンドポイントのHTTPクライアント。状態を持たず並行に使える。
type Client struct {
	baseURL    string
	httpClient *http.Client
	sanitizer  security.TextSanitizer
}

// NewClient はClientを生成する。
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	sanitizer := cfg.Sanitizer
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
		sanitizer:  sanitizer,
	}
}

// Payload は天気エンドポイントの成功応答のうち、このアプリが使う部分。
// 欠損を判別するため数値はポインタで受ける。
type Payload struct {
	Name string `json:"name"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

// Humidity は湿度を返す。欠損時はnil。
func (p *Payload) Humidity() *float64 {
	if p.Main == nil {
		return nil
	}
	return p.Main.Humidity
}

// WindSpeed は風速を返す。欠損時はnil。
func (p *Payload) WindSpeed() *float64 {
	if p.Wind == nil {
		return nil
	}
	return p.Wind.Speed
}

// Description は天気の説明を返す。欠損時はnil。
func (p *Payload) Description() *string {
	if len(p.Weather) == 0 {
		return nil
	}
	d := p.Weather[0].Description
	return &d
}

// Temperature は切り捨てた気温を返す。欠損時はnil。
func (p *Payload) Temperature() *int {
	if p.Main == nil {
		return nil
	}
	return floorPtr(p.Main.Temp)
}

// FeelsLike は切り捨てた体感温度を返す。欠損時はnil。
func (p *Payload) FeelsLike() *int {
	if p.Main == nil {
		return nil
	}
	return floorPtr(p.Main.FeelsLike)
}

// Response は1回の検索結果。Rawは応答ボディそのもの。
type Response struct {
	City    string
	Result  *model.WeatherResult
	Payload *Payload
	Raw     json.RawMessage
}

// errorBody はエラー応答のボディ。detailは文字列またはオブジェクト。
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// Search は都市名で現在の天気を取得する。
// 空白のみの入力はHTTP呼び出しを行わずにVALIDATION_ERRORを返す。
func (c *Client) Search(ctx context.Context, city string) (*Response, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, model.NewValidationError(model.MsgEmptyCity)
	}

	endpoint := c.baseURL + "/weather/" + url.PathEscape(city)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, model.NewUnexpectedError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewNetworkUnavailableError(c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, model.NewNetworkUnavailableError(c.baseURL, fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, model.NewCityNotFoundError()
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, model.NewConfigurationError()
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, model.NewWeatherServiceError(resp.StatusCode, c.detailMessage(body))
	}

	return decode(city, body)
}

// detailMessage はエラー応答のdetailを表示用のプレーンテキストにする。
// 取り出せない場合は空文字列。
func (c *Client) detailMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return c.sanitizer.PlainText(s)
	}

	// 上流のJSONがそのまま入っている場合はmessageを使う
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(eb.Detail, &obj); err == nil {
		return c.sanitizer.PlainText(obj.Message)
	}
	return ""
}

// decode は成功応答を表示モデルに変換する。
func decode(city string, body []byte) (*Response, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, model.NewUnexpectedError(fmt.Errorf("failed to decode weather response: %w", err))
	}
	if p.Main == nil || p.Main.Temp == nil || p.Main.FeelsLike == nil {
		return nil, model.NewUnexpectedError(errors.New("weather response is missing main.temp or main.feels_like"))
	}
	if len(p.Weather) == 0 {
		return nil, model.NewUnexpectedError(errors.New("weather response has no weather conditions"))
	}

	result := &model.WeatherResult{
		Temperature:  int(math.Floor(*p.Main.Temp)),
		FeelsLike:    int(math.Floor(*p.Main.FeelsLike)),
		Description:  p.Weather[0].Description,
		IconKey:      IconKey(p.Weather[0].Icon),
		LocationName: p.Name,
	}
	if h := p.Humidity(); h != nil {
		result.Humidity = *h
	}
	if w := p.WindSpeed(); w != nil {
		result.WindSpeedKph = *w
	}
	if result.LocationName == "" {
		result.LocationName = city
	}

	return &Response{
		City:    city,
		Result:  result,
		Payload: &p,
		Raw:     json.RawMessage(bytes.Clone(body)),
	}, nil
}

func floorPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Floor(*v))
	return &n
}
