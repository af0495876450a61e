package advisor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agropulse/agropulse/internal/markdown"
	"github.com/agropulse/agropulse/internal/model"
	"github.com/agropulse/agropulse/internal/repository"
	"github.com/agropulse/agropulse/internal/weather"
)

// mockWeatherFetcher は関数フィールドで挙動を差し替え可能なWeatherFetcher。
type mockWeatherFetcher struct {
	fetchFunc func(ctx context.Context, lat, lon float64) model.WeatherSnapshot
}

func (m *mockWeatherFetcher) Fetch(ctx context.Context, lat, lon float64) model.WeatherSnapshot {
	return m.fetchFunc(ctx, lat, lon)
}

// mockGenerator は関数フィールドで挙動を差し替え可能なTextGenerator。
type mockGenerator struct {
	generateFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *mockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return m.generateFunc(ctx, prompt)
}

// mockMetrics は呼び出し回数を記録するMetricsRecorder。
type mockMetrics struct {
	mu              sync.Mutex
	advisories      int
	aiFailures      int
	weatherFailures int
}

func (m *mockMetrics) RecordAdvisory(aiFailed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advisories++
	if aiFailed {
		m.aiFailures++
	}
}

func (m *mockMetrics) RecordWeatherFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weatherFailures++
}

func (m *mockMetrics) RecordWeatherLatency(d time.Duration) {}
func (m *mockMetrics) RecordGeminiLatency(d time.Duration)  {}

var testFallback = weather.Fallback{Lat: 12.9716, Lon: 77.5946, City: "Bengaluru"}

func availableSnapshot(city string) model.WeatherSnapshot {
	return model.WeatherSnapshot{
		Available:  true,
		City:       city,
		TempC:      26.5,
		Humidity:   60,
		Conditions: "Clear Sky",
	}
}

type serviceOption func(*testDeps)

type testDeps struct {
	fetcher   *mockWeatherFetcher
	generator *mockGenerator
	history   repository.HistoryRepository
	metrics   *mockMetrics
}

func newTestService(t *testing.T, opts ...serviceOption) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		fetcher: &mockWeatherFetcher{
			fetchFunc: func(ctx context.Context, lat, lon float64) model.WeatherSnapshot {
				return availableSnapshot("Bengaluru")
			},
		},
		generator: &mockGenerator{
			generateFunc: func(ctx context.Context, prompt string) (string, error) {
				return cleanPlanJSON, nil
			},
		},
		history: repository.NewMemoryHistoryRepo(),
		metrics: &mockMetrics{},
	}
	for _, opt := range opts {
		opt(deps)
	}

	svc := NewService(
		deps.fetcher,
		deps.generator,
		markdown.NewRenderer(),
		deps.history,
		deps.metrics,
		testFallback,
		slog.New(slog.DiscardHandler),
	)
	return svc, deps
}

func TestService_Generate_Success(t *testing.T) {
	svc, deps := newTestService(t)

	entry, err := svc.Generate(context.Background(), "farmer1", Request{
		Crop:      "Tomato",
		LandSize:  "2 acres",
		Latitude:  "12.9716",
		Longitude: "77.5946",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if entry.ID == "" {
		t.Error("entry ID is empty")
	}
	if entry.Crop != "Tomato" || entry.LandSize != "2 acres" {
		t.Errorf("Crop/LandSize = %q/%q", entry.Crop, entry.LandSize)
	}
	if entry.LocationName != "Bengaluru" {
		t.Errorf("LocationName = %q, want %q", entry.LocationName, "Bengaluru")
	}
	if entry.AIFailed {
		t.Error("AIFailed = true for successful generation")
	}
	if entry.Summary.OptimalPlantingDate == "" {
		t.Error("Summary was not parsed")
	}
	if len(entry.SectionsHTML) != 5 {
		t.Errorf("len(SectionsHTML) = %d, want 5", len(entry.SectionsHTML))
	}
	if !strings.Contains(entry.InsightsHTML, "<h2") {
		t.Errorf("InsightsHTML = %q, want rendered headings", entry.InsightsHTML)
	}

	history, err := deps.history.ListByUsername(context.Background(), "farmer1")
	if err != nil {
		t.Fatalf("ListByUsername returned error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}
	if history[0].ID != entry.ID {
		t.Error("stored entry does not match returned entry")
	}

	if deps.metrics.advisories != 1 || deps.metrics.aiFailures != 0 {
		t.Errorf("metrics = %+v", deps.metrics)
	}
}

func TestService_Generate_MissingFields_ReturnsValidationError(t *testing.T) {
	svc, deps := newTestService(t)

	cases := []Request{
		{Crop: "", LandSize: "2 acres"},
		{Crop: "Tomato", LandSize: ""},
		{Crop: "   ", LandSize: "\t"},
	}
	for _, req := range cases {
		_, err := svc.Generate(context.Background(), "farmer1", req)

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Generate(%+v) error = %v, want APIError", req, err)
		}
		if apiErr.Code != model.ErrCodeValidationFailed {
			t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeValidationFailed)
		}
	}

	history, _ := deps.history.ListByUsername(context.Background(), "farmer1")
	if len(history) != 0 {
		t.Error("validation failure must not create a history entry")
	}
}

func TestService_Generate_GeminiError_AbsorbedIntoEntry(t *testing.T) {
	svc, deps := newTestService(t, func(d *testDeps) {
		d.generator.generateFunc = func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("gemini API returned status 500")
		}
	})

	entry, err := svc.Generate(context.Background(), "farmer1", Request{Crop: "Rice", LandSize: "1 hectare"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if !entry.AIFailed {
		t.Fatal("AIFailed = false for a failed Gemini call")
	}
	if want := "Gemini API error: gemini API returned status 500"; entry.AIError != want {
		t.Errorf("AIError = %q, want %q", entry.AIError, want)
	}
	if entry.InsightsMD != entry.AIError {
		t.Errorf("InsightsMD = %q, want the error message", entry.InsightsMD)
	}

	// 失敗も履歴には残る
	history, _ := deps.history.ListByUsername(context.Background(), "farmer1")
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}
	if deps.metrics.aiFailures != 1 {
		t.Errorf("aiFailures = %d, want 1", deps.metrics.aiFailures)
	}
}

func TestService_Generate_WeatherUnavailable_StillProducesPlan(t *testing.T) {
	var gotPrompt string
	svc, deps := newTestService(t, func(d *testDeps) {
		d.fetcher.fetchFunc = func(ctx context.Context, lat, lon float64) model.WeatherSnapshot {
			return model.UnavailableSnapshot(lat, lon)
		}
		d.generator.generateFunc = func(ctx context.Context, prompt string) (string, error) {
			gotPrompt = prompt
			return cleanPlanJSON, nil
		}
	})

	entry, err := svc.Generate(context.Background(), "farmer1", Request{Crop: "Maize", LandSize: "3 acres"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if entry.Weather.Available {
		t.Error("Weather.Available = true")
	}
	if entry.AIFailed {
		t.Error("weather failure must not mark the AI call as failed")
	}
	if !strings.Contains(gotPrompt, "Weather data unavailable.") {
		t.Error("prompt does not mention unavailable weather")
	}
	if deps.metrics.weatherFailures != 1 {
		t.Errorf("weatherFailures = %d, want 1", deps.metrics.weatherFailures)
	}
}

func TestService_Generate_FallbackCoordinates_UseConfiguredCity(t *testing.T) {
	var gotLat, gotLon float64
	svc, _ := newTestService(t, func(d *testDeps) {
		d.fetcher.fetchFunc = func(ctx context.Context, lat, lon float64) model.WeatherSnapshot {
			gotLat, gotLon = lat, lon
			// フォールバック座標でも都市名が返らないケース
			snap := availableSnapshot("")
			snap.Lat, snap.Lon = lat, lon
			return snap
		}
	})

	entry, err := svc.Generate(context.Background(), "farmer1", Request{Crop: "Tomato", LandSize: "2 acres"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if gotLat != testFallback.Lat || gotLon != testFallback.Lon {
		t.Errorf("fetched at (%v, %v), want fallback coordinates", gotLat, gotLon)
	}
	if entry.LocationName != "Bengaluru" {
		t.Errorf("LocationName = %q, want fallback city", entry.LocationName)
	}
	if entry.Weather.City != "Bengaluru" {
		t.Errorf("Weather.City = %q, want backfilled fallback city", entry.Weather.City)
	}
}

func TestService_Generate_CityOverride_WinsOverSnapshot(t *testing.T) {
	svc, _ := newTestService(t)

	entry, err := svc.Generate(context.Background(), "farmer1", Request{
		Crop:      "Tomato",
		LandSize:  "2 acres",
		City:      "Hosur",
		Latitude:  "12.74",
		Longitude: "77.83",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if entry.LocationName != "Hosur" {
		t.Errorf("LocationName = %q, want city override", entry.LocationName)
	}
}

func TestService_Generate_HistoryKeepsNewestFive(t *testing.T) {
	svc, deps := newTestService(t)

	crops := []string{"Tomato", "Rice", "Maize", "Wheat", "Onion", "Cotton"}
	for _, crop := range crops {
		if _, err := svc.Generate(context.Background(), "farmer1", Request{Crop: crop, LandSize: "1 acre"}); err != nil {
			t.Fatalf("Generate(%s) returned error: %v", crop, err)
		}
	}

	history, err := deps.history.ListByUsername(context.Background(), "farmer1")
	if err != nil {
		t.Fatalf("ListByUsername returned error: %v", err)
	}
	if len(history) != model.HistoryLimit {
		t.Fatalf("len(history) = %d, want %d", len(history), model.HistoryLimit)
	}
	if history[0].Crop != "Cotton" {
		t.Errorf("history[0].Crop = %q, want newest first", history[0].Crop)
	}
	for _, entry := range history {
		if entry.Crop == "Tomato" {
			t.Error("oldest entry was not evicted")
		}
	}
}

func TestService_History_DelegatesToRepository(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Generate(context.Background(), "farmer1", Request{Crop: "Rice", LandSize: "1 acre"}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	history, err := svc.History(context.Background(), "farmer1")
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}

	other, err := svc.History(context.Background(), "someone-else")
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(other) != 0 {
		t.Error("histories must be isolated per user")
	}
}
