package weather

import (
	"fmt"
	"strconv"

	"github.com/agropulse/agropulse/internal/model"
)

// Fallback は設定由来のフォールバック位置を表す。
type Fallback struct {
	Lat  float64
	Lon  float64
	City string
}

// ResolveCoordinates はクライアント報告の座標文字列から実効座標を決定する。
// 緯度・経度のどちらかが欠けるか数値として解釈できない場合は
// フォールバック座標を採用する。失敗モードはなく、常に使用可能な座標を返す。
// ネットワークアクセスは行わない。
func ResolveCoordinates(latStr, lonStr string, fb Fallback) model.Location {
	lat, latErr := strconv.ParseFloat(latStr, 64)
	lon, lonErr := strconv.ParseFloat(lonStr, 64)
	if latStr == "" || lonStr == "" || latErr != nil || lonErr != nil {
		return model.Location{
			Lat:          fb.Lat,
			Lon:          fb.Lon,
			UsedFallback: true,
		}
	}
	return model.Location{Lat: lat, Lon: lon}
}

// DisplayName は表示用の地名を決定する。優先順位:
//  1. ユーザー入力の都市名（位置情報の成否に関わらず常に勝つ）
//  2. フォールバック座標を使用した場合はフォールバック都市名
//  3. 気象APIが返した都市名
//  4. それ以外は "Lat {lat}, Lon {lon}"
func DisplayName(cityOverride string, snapshot model.WeatherSnapshot, loc model.Location, fb Fallback) string {
	if cityOverride != "" {
		return cityOverride
	}
	if loc.UsedFallback {
		return fb.City
	}
	if snapshot.Available && snapshot.City != "" {
		return snapshot.City
	}
	return fmt.Sprintf("Lat %g, Lon %g", loc.Lat, loc.Lon)
}
