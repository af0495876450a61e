package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agropulse/agropulse/internal/model"
	"github.com/agropulse/agropulse/internal/repository"
	"github.com/agropulse/agropulse/internal/weather"
)

// WeatherFetcher は現在天気の取得インターフェース。
// weather.Clientの部分集合として定義する。
type WeatherFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) model.WeatherSnapshot
}

// TextGenerator は生成AIテキスト呼び出しのインターフェース。
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// PlanRenderer はMarkdown→HTML変換のインターフェース。
type PlanRenderer interface {
	RenderPlan(plan model.CropPlan) (insightsHTML string, sectionsHTML map[string]string, err error)
}

// MetricsRecorder はワークフローのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordAdvisory(aiFailed bool)
	RecordWeatherFailure()
	RecordWeatherLatency(d time.Duration)
	RecordGeminiLatency(d time.Duration)
}

// Request はダッシュボードフォームからの1回分の投入内容。
// Latitude/Longitudeはブラウザ位置情報由来の文字列で、空または不正でもよい。
type Request struct {
	Crop      string
	LandSize  string
	City      string // 任意の都市名オーバーライド
	Latitude  string
	Longitude string
}

// Service は助言ワークフローのオーケストレーター。
// 位置解決 → 天気取得 → プロンプト構築 → AI呼び出し → HTML変換 → 履歴更新
// を1リクエスト内で同期実行する。上流障害はここで吸収し、エラーとして
// 返すのは入力バリデーションと内部エラーのみ。
type Service struct {
	weatherClient WeatherFetcher
	generator     TextGenerator
	renderer      PlanRenderer
	historyRepo   repository.HistoryRepository
	metrics       MetricsRecorder
	fallback      weather.Fallback
	logger        *slog.Logger
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	weatherClient WeatherFetcher,
	generator TextGenerator,
	renderer PlanRenderer,
	historyRepo repository.HistoryRepository,
	metrics MetricsRecorder,
	fallback weather.Fallback,
	logger *slog.Logger,
) *Service {
	return &Service{
		weatherClient: weatherClient,
		generator:     generator,
		renderer:      renderer,
		historyRepo:   historyRepo,
		metrics:       metrics,
		fallback:      fallback,
		logger:        logger,
	}
}

// Generate は助言ワークフローを実行し、新しい履歴エントリを返す。
// 気象・AIの上流障害はエントリ内に吸収される（プロセスには致命的でない）。
func (s *Service) Generate(ctx context.Context, username string, req Request) (*model.HistoryEntry, error) {
	crop := strings.TrimSpace(req.Crop)
	landSize := strings.TrimSpace(req.LandSize)
	cityOverride := strings.TrimSpace(req.City)

	if crop == "" || landSize == "" {
		return nil, model.NewValidationError("crop and land size are required")
	}

	// 1. 実効座標の決定（ネットワークアクセスなし・失敗モードなし）
	loc := weather.ResolveCoordinates(req.Latitude, req.Longitude, s.fallback)

	// 2. 現在天気の取得（失敗は取得不可スナップショットとして吸収される）
	weatherStart := time.Now()
	snapshot := s.weatherClient.Fetch(ctx, loc.Lat, loc.Lon)
	if s.metrics != nil {
		s.metrics.RecordWeatherLatency(time.Since(weatherStart))
		if !snapshot.Available {
			s.metrics.RecordWeatherFailure()
		}
	}

	// フォールバック座標で取得した場合、都市名が欠けていれば設定都市名で補完する
	if loc.UsedFallback && snapshot.Available && snapshot.City == "" {
		snapshot.City = s.fallback.City
	}

	// 3. 表示名の決定
	locationName := weather.DisplayName(cityOverride, snapshot, loc, s.fallback)

	// 4. プロンプト構築とAI呼び出し
	prompt := BuildPrompt(crop, landSize, locationName, snapshot)

	geminiStart := time.Now()
	text, err := s.generator.GenerateText(ctx, prompt)
	if s.metrics != nil {
		s.metrics.RecordGeminiLatency(time.Since(geminiStart))
	}

	var plan model.CropPlan
	if err != nil {
		// 失敗は独立したエラー面として保持する。提示層がバナー表示かどうかを決める。
		msg := fmt.Sprintf("Gemini API error: %v", err)
		plan = model.CropPlan{
			Sections: map[string]string{},
			Markdown: msg,
			Err:      msg,
		}
		s.logger.Error("crop plan generation failed",
			slog.String("username", username),
			slog.String("crop", crop),
			slog.String("error", err.Error()),
		)
	} else {
		plan = ParsePlan(text)
	}

	// 5. HTML変換
	insightsHTML, sectionsHTML, err := s.renderer.RenderPlan(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to render plan: %w", err)
	}

	entry := &model.HistoryEntry{
		ID:           uuid.New().String(),
		Crop:         crop,
		LandSize:     landSize,
		LocationName: locationName,
		Weather:      snapshot,
		Summary:      plan.Summary,
		Sections:     plan.Sections,
		SectionsHTML: sectionsHTML,
		InsightsMD:   plan.Markdown,
		InsightsHTML: insightsHTML,
		AIFailed:     plan.Failed(),
		AIError:      plan.Err,
		CreatedAt:    time.Now().UTC(),
	}

	// 6. 履歴の先頭に追加（上限超過分は破棄される）
	if err := s.historyRepo.Prepend(ctx, username, entry); err != nil {
		return nil, fmt.Errorf("failed to store history entry: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordAdvisory(plan.Failed())
	}

	s.logger.Info("advisory generated",
		slog.String("username", username),
		slog.String("crop", crop),
		slog.String("location", locationName),
		slog.Bool("weather_available", snapshot.Available),
		slog.Bool("ai_failed", plan.Failed()),
	)

	return entry, nil
}

// History は指定ユーザーの履歴を新しい順で返す。
func (s *Service) History(ctx context.Context, username string) ([]*model.HistoryEntry, error) {
	list, err := s.historyRepo.ListByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return list, nil
}
