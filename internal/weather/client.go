// Package weather は外部気象APIからの現在天気取得と位置解決を提供する。
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agropulse/agropulse/internal/model"
)

// defaultEndpoint はOpenWeather現在天気APIのエンドポイント。
const defaultEndpoint = "https://api.openweathermap.org/data/2.5/weather"

// Client はOpenWeather APIのクライアント。
// 取得失敗は呼び出し元に伝播させず、必ず「取得不可」スナップショットとして吸収する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
	}
}

// currentWeatherResponse はOpenWeather APIのレスポンスのうち使用するフィールド。
type currentWeatherResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Fetch は指定座標の現在天気スナップショットを取得する（metric単位固定）。
// ネットワークエラー・非2xx・不正なボディはすべて吸収し、
// Available=falseのスナップショットを返す。エラーは返さない。
func (c *Client) Fetch(ctx context.Context, lat, lon float64) model.WeatherSnapshot {
	snapshot, err := c.fetch(ctx, lat, lon)
	if err != nil {
		c.logger.Warn("weather fetch failed",
			slog.Float64("lat", lat),
			slog.Float64("lon", lon),
			slog.String("error", err.Error()),
		)
		return model.UnavailableSnapshot(lat, lon)
	}
	return snapshot
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (model.WeatherSnapshot, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return model.WeatherSnapshot{}, fmt.Errorf("failed to parse endpoint: %w", err)
	}

	q := reqURL.Query()
	q.Set("lat", fmt.Sprintf("%g", lat))
	q.Set("lon", fmt.Sprintf("%g", lon))
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return model.WeatherSnapshot{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.WeatherSnapshot{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.WeatherSnapshot{}, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.WeatherSnapshot{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var data currentWeatherResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return model.WeatherSnapshot{}, fmt.Errorf("failed to parse response body: %w", err)
	}

	snapshot := model.WeatherSnapshot{
		Available: true,
		City:      data.Name,
		TempC:     data.Main.Temp,
		Humidity:  data.Main.Humidity,
		WindSpeed: data.Wind.Speed,
		Lat:       lat,
		Lon:       lon,
		FetchedAt: time.Now().UTC(),
	}
	if len(data.Weather) > 0 {
		snapshot.Conditions = titleCase(data.Weather[0].Description)
		snapshot.Icon = data.Weather[0].Icon
	}

	return snapshot, nil
}

// titleCase は各単語の先頭を大文字化する（"scattered clouds" → "Scattered Clouds"）。
// 旧実装のstr.title()と同じ見た目にするための軽量版。
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
