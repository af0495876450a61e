package model

// プロンプトで必須とする5セクションのキー。
// Gemini応答JSONのsectionsオブジェクトのキーと一致する。
const (
	SectionMarketTimed   = "market_timed"
	SectionWeatherSoil   = "weather_soil"
	SectionDemandOutlook = "demand_outlook"
	SectionTimeline      = "timeline"
	SectionActions       = "actions"
)

// SectionKeys は5セクションのキーを表示順で返す。
func SectionKeys() []string {
	return []string{
		SectionMarketTimed,
		SectionWeatherSoil,
		SectionDemandOutlook,
		SectionTimeline,
		SectionActions,
	}
}

// PlanSummary はGeminiに要求する構造化サマリーを表す。
// 値は人間可読の文字列（日付・インド式価格表記）をそのまま保持する。
type PlanSummary struct {
	OptimalPlantingDate    string `json:"optimal_planting_date,omitempty"`
	ExpectedHarvestDate    string `json:"expected_harvest_date,omitempty"`
	ExpectedMarketPriceINR string `json:"expected_market_price_inr,omitempty"`
	IrrigationMethod       string `json:"irrigation_method,omitempty"`
	WateringFrequency      string `json:"watering_frequency,omitempty"`
}

// IsZero は全フィールドが空かどうかを返す。
func (s PlanSummary) IsZero() bool {
	return s == PlanSummary{}
}

// CropPlan はAI呼び出し1回分の結果を表す。
// 成功時はSummary/Sections/Markdownが埋まり、Errは空。
// 失敗時はErrにユーザー提示用のエラーメッセージが入り、
// 提示層がコンテンツとは別のエラー面として扱う。
type CropPlan struct {
	Summary  PlanSummary       `json:"summary"`
	Sections map[string]string `json:"sections"`
	Markdown string            `json:"markdown"`
	RawText  string            `json:"-"`
	Err      string            `json:"-"`
}

// Failed はAI呼び出しが失敗扱いかどうかを返す。
func (p CropPlan) Failed() bool {
	return p.Err != ""
}
