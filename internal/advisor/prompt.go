package advisor

import (
	"fmt"
	"strings"

	"github.com/agropulse/agropulse/internal/model"
)

// promptTemplate はGeminiへ送る指示テンプレート。
// 応答は構造化JSON（summary + 5セクションのMarkdown）を要求する。
// セクション見出しはダッシュボードが前提とする固定の5つ。
const promptTemplate = `You are AgroPulse, an elite agronomy strategist. Given:
- Crop: %s
- Land size (acres or hectares): %s
- Location: %s
- %s

You MUST respond with ONLY valid JSON (no markdown code blocks, no explanations, no trailing text). The JSON structure must be:
{
  "summary": {
    "optimal_planting_date": "May 15, 2026",
    "expected_harvest_date": "Aug 23, 2026",
    "expected_market_price_inr": "₹1,04,000 per ton",
    "irrigation_method": "Drip irrigation",
    "watering_frequency": "Every 3-4 days"
  },
  "sections": {
    "market_timed": "## Market-Timed Sowing Window\nYour detailed explanation here...",
    "weather_soil": "## Weather & Soil Checklist\n- Point 1\n- Point 2",
    "demand_outlook": "## Demand Outlook & Alternatives\nYour analysis here...",
    "timeline": "## Care-to-Harvest Timeline\n- **Date:** Task description",
    "actions": "## Action Notes\n1. Action item 1\n2. Action item 2"
  }
}

CRITICAL: Return ONLY the JSON object, nothing else. No markdown formatting, no code blocks, no explanations.
- Summary values: concise, human-readable dates and prices in Indian format
- expected_market_price_inr: must include ₹ symbol and unit (per ton/quintal/kg)
- Sections: Use \n for newlines within strings, keep under 220 words total`

// BuildPrompt は投入情報と気象スナップショットからプロンプトを組み立てる。
// 純粋関数。同一入力に対して常に同一出力を返し、副作用を持たない。
// 天気の節は、スナップショットが取得不可でも必ず非空の文言になる。
func BuildPrompt(crop, landSize, locationName string, snapshot model.WeatherSnapshot) string {
	return fmt.Sprintf(promptTemplate, crop, landSize, locationName, weatherLine(locationName, snapshot))
}

// weatherLine はプロンプトに埋め込む現在天気の1行を組み立てる。
func weatherLine(locationName string, snapshot model.WeatherSnapshot) string {
	if !snapshot.Available {
		return model.WeatherUnavailableText + "."
	}

	conditions := snapshot.Conditions
	if conditions == "" {
		conditions = "N/A"
	}
	return fmt.Sprintf("Weather now in %s: %.1f°C, humidity %d%%, conditions %s.",
		locationName, snapshot.TempC, snapshot.Humidity, conditions)
}

// SectionHeaders は5セクションの見出し文字列を返す。
// レンダリング結果の検証（全セクション存在チェック）に使用する。
func SectionHeaders() []string {
	return []string{
		"Market-Timed Sowing Window",
		"Weather & Soil Checklist",
		"Demand Outlook & Alternatives",
		"Care-to-Harvest Timeline",
		"Action Notes",
	}
}

// HasAllSectionHeaders はテキストに5見出しすべてが含まれるかを返す。
func HasAllSectionHeaders(text string) bool {
	for _, h := range SectionHeaders() {
		if !strings.Contains(text, h) {
			return false
		}
	}
	return true
}
