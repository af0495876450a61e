package model

import "time"

// WeatherUnavailableText は気象データ取得失敗時にプロンプトや表示へ埋め込む文言。
const WeatherUnavailableText = "Weather data unavailable"

// WeatherSnapshot は外部気象APIから取得した時点の観測値スナップショットを表す。
// Availableがfalseの場合は取得失敗を意味し、他のフィールドはゼロ値のまま扱う。
// リクエストごとに再取得され、HistoryEntryに埋め込まれた後は更新されない。
type WeatherSnapshot struct {
	Available  bool      `json:"available"`
	City       string    `json:"city"`
	TempC      float64   `json:"temp_c"`
	Humidity   int       `json:"humidity"`
	Conditions string    `json:"conditions"`
	WindSpeed  float64   `json:"wind"`
	Icon       string    `json:"icon,omitempty"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// UnavailableSnapshot は取得失敗を表すセンチネルスナップショットを返す。
// 座標だけは呼び出し時の値を保持する。
func UnavailableSnapshot(lat, lon float64) WeatherSnapshot {
	return WeatherSnapshot{
		Available: false,
		Lat:       lat,
		Lon:       lon,
		FetchedAt: time.Now().UTC(),
	}
}

// Location は天気取得に使用する実効座標を表す。
// 表示名は座標とは別に、都市名オーバーライド・フォールバック都市・
// 気象APIの都市名から解決される。
type Location struct {
	Lat          float64
	Lon          float64
	UsedFallback bool
}
