package model

import "time"

// HistoryLimit はユーザーごとに保持する実行履歴の上限件数。
// 超過分は古い順に黙って破棄される。
const HistoryLimit = 5

// HistoryEntry は助言ワークフロー1回分の完了結果を表す。
// 1ユーザーの履歴リストが排他的に所有する。
type HistoryEntry struct {
	ID           string            `json:"id"`
	Crop         string            `json:"crop"`
	LandSize     string            `json:"land_size"`
	LocationName string            `json:"location_name"`
	Weather      WeatherSnapshot   `json:"weather"`
	Summary      PlanSummary       `json:"summary"`
	Sections     map[string]string `json:"sections"`
	SectionsHTML map[string]string `json:"sections_html"`
	InsightsMD   string            `json:"insights_markdown"`
	InsightsHTML string            `json:"insights_html"`
	AIFailed     bool              `json:"ai_failed"`
	AIError      string            `json:"ai_error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}
