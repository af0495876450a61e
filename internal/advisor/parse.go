package advisor

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/agropulse/agropulse/internal/model"
)

// noInsightsText はGeminiが空応答を返した場合のプレースホルダー。
const noInsightsText = "No insights available right now."

// planPayload はGemini応答から期待するJSON構造。
type planPayload struct {
	Summary  model.PlanSummary `json:"summary"`
	Sections map[string]string `json:"sections"`
}

// summaryFieldPatterns は正規表現フォールバック用のサマリーフィールドパターン。
// モデルがJSON構造を崩した場合でも個別フィールドを救出する。
var summaryFieldPatterns = map[string]*regexp.Regexp{
	"optimal_planting_date":     regexp.MustCompile(`(?i)"optimal_planting_date"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	"expected_harvest_date":     regexp.MustCompile(`(?i)"expected_harvest_date"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	"expected_market_price_inr": regexp.MustCompile(`(?i)"expected_market_price_inr"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	"irrigation_method":         regexp.MustCompile(`(?i)"irrigation_method"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	"watering_frequency":        regexp.MustCompile(`(?i)"watering_frequency"\s*:\s*"((?:[^"\\]|\\.)*)"`),
}

// sectionPatterns は正規表現フォールバック用のセクションパターン。
var sectionPatterns = map[string]*regexp.Regexp{
	model.SectionMarketTimed:   regexp.MustCompile(`(?is)"market_timed"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	model.SectionWeatherSoil:   regexp.MustCompile(`(?is)"weather_soil"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	model.SectionDemandOutlook: regexp.MustCompile(`(?is)"demand_outlook"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	model.SectionTimeline:      regexp.MustCompile(`(?is)"timeline"\s*:\s*"((?:[^"\\]|\\.)*)"`),
	model.SectionActions:       regexp.MustCompile(`(?is)"actions"\s*:\s*"((?:[^"\\]|\\.)*)"`),
}

// ParsePlan はGeminiの生応答テキストをCropPlanに変換する。
// 回復の段階:
//  1. ```json / ``` フェンスを剥がす
//  2. 最外の { ... } を切り出してJSONとしてパース
//  3. パース失敗時は正規表現でサマリーフィールドとセクションを個別救出
//  4. それも失敗した場合は全文を単一のMarkdownブロックとして扱う
//
// 空応答はプレースホルダー文言に置き換える。この関数はエラーを返さない。
func ParsePlan(raw string) model.CropPlan {
	text := strings.TrimSpace(raw)
	if text == "" {
		text = noInsightsText
	}

	jsonText := stripCodeFence(text)
	jsonText = sliceOuterBraces(jsonText)

	var payload planPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		payload = recoverPayload(text)
	}
	if payload.Sections == nil {
		payload.Sections = map[string]string{}
	}

	combined := combineSections(payload.Sections)
	if combined == "" {
		combined = text
	}

	return model.CropPlan{
		Summary:  payload.Summary,
		Sections: payload.Sections,
		Markdown: combined,
		RawText:  text,
	}
}

// stripCodeFence は```json ... ``` または ``` ... ``` の中身を取り出す。
// フェンスが見つからない場合は入力をそのまま返す。
func stripCodeFence(text string) string {
	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(text, fence)
		if start < 0 {
			continue
		}
		start += len(fence)
		end := strings.Index(text[start:], "```")
		if end > 0 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	return text
}

// sliceOuterBraces は最初の { から最後の } までを切り出す。
func sliceOuterBraces(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// recoverPayload は壊れたJSONから正規表現で個別フィールドを救出する。
// 1つもセクションを救出できなかった場合は全文を"complete"セクションに入れる。
func recoverPayload(text string) planPayload {
	payload := planPayload{Sections: map[string]string{}}

	if m := summaryFieldPatterns["optimal_planting_date"].FindStringSubmatch(text); m != nil {
		payload.Summary.OptimalPlantingDate = unescapeJSONString(m[1])
	}
	if m := summaryFieldPatterns["expected_harvest_date"].FindStringSubmatch(text); m != nil {
		payload.Summary.ExpectedHarvestDate = unescapeJSONString(m[1])
	}
	if m := summaryFieldPatterns["expected_market_price_inr"].FindStringSubmatch(text); m != nil {
		payload.Summary.ExpectedMarketPriceINR = unescapeJSONString(m[1])
	}
	if m := summaryFieldPatterns["irrigation_method"].FindStringSubmatch(text); m != nil {
		payload.Summary.IrrigationMethod = unescapeJSONString(m[1])
	}
	if m := summaryFieldPatterns["watering_frequency"].FindStringSubmatch(text); m != nil {
		payload.Summary.WateringFrequency = unescapeJSONString(m[1])
	}

	for key, pattern := range sectionPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			payload.Sections[key] = unescapeJSONString(m[1])
		}
	}

	if len(payload.Sections) == 0 {
		payload.Sections["complete"] = text
	}

	return payload
}

// unescapeJSONString は救出した文字列のエスケープを解除する。
func unescapeJSONString(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}

// combineSections は非空セクションを表示順に結合したMarkdownを返す。
// 既知の5セクションを先に、未知のキーは辞書順で後ろに並べる。
func combineSections(sections map[string]string) string {
	known := model.SectionKeys()
	seen := make(map[string]bool, len(known))

	var parts []string
	for _, key := range known {
		seen[key] = true
		if content := sections[key]; content != "" {
			parts = append(parts, content)
		}
	}

	var extras []string
	for key := range sections {
		if !seen[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		if content := sections[key]; content != "" {
			parts = append(parts, content)
		}
	}

	return strings.Join(parts, "\n\n")
}
