package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/agropulse/agropulse/internal/model"
)

// WeatherFetcherInterface は天気ハンドラーが必要とするインターフェース。
type WeatherFetcherInterface interface {
	Fetch(ctx context.Context, lat, lon float64) model.WeatherSnapshot
}

// WeatherHandler は現在天気APIのHTTPハンドラー。
type WeatherHandler struct {
	fetcher WeatherFetcherInterface
	logger  *slog.Logger
}

// NewWeatherHandler はWeatherHandlerを生成する。
func NewWeatherHandler(fetcher WeatherFetcherInterface, logger *slog.Logger) *WeatherHandler {
	return &WeatherHandler{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Get は指定座標の現在天気スナップショットを返す。
// ダッシュボードのワークフローと異なり、ここでは取得失敗を502として表面化する。
// GET /api/weather?lat=..&lon=..
func (h *WeatherHandler) Get(w http.ResponseWriter, r *http.Request) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")
	if latStr == "" || lonStr == "" {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("lat and lon query parameters are required"))
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("lat must be a number"))
		return
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, model.NewValidationError("lon must be a number"))
		return
	}

	snapshot := h.fetcher.Fetch(r.Context(), lat, lon)
	if !snapshot.Available {
		writeAPIError(w, http.StatusBadGateway, model.NewWeatherUnavailableError())
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}
