package advisor

import (
	"strings"
	"testing"

	"github.com/agropulse/agropulse/internal/model"
)

const cleanPlanJSON = `{
  "summary": {
    "optimal_planting_date": "May 15, 2026",
    "expected_harvest_date": "Aug 23, 2026",
    "expected_market_price_inr": "₹1,04,000 per ton",
    "irrigation_method": "Drip irrigation",
    "watering_frequency": "Every 3-4 days"
  },
  "sections": {
    "market_timed": "## Market-Timed Sowing Window\nSow in mid May.",
    "weather_soil": "## Weather & Soil Checklist\n- Check drainage",
    "demand_outlook": "## Demand Outlook & Alternatives\nDemand is strong.",
    "timeline": "## Care-to-Harvest Timeline\n- **May:** sow",
    "actions": "## Action Notes\n1. Buy seed"
  }
}`

func TestParsePlan_CleanJSON(t *testing.T) {
	plan := ParsePlan(cleanPlanJSON)

	if plan.Failed() {
		t.Fatal("Failed() = true for a parseable response")
	}
	if plan.Summary.OptimalPlantingDate != "May 15, 2026" {
		t.Errorf("OptimalPlantingDate = %q", plan.Summary.OptimalPlantingDate)
	}
	if plan.Summary.ExpectedMarketPriceINR != "₹1,04,000 per ton" {
		t.Errorf("ExpectedMarketPriceINR = %q", plan.Summary.ExpectedMarketPriceINR)
	}
	if len(plan.Sections) != 5 {
		t.Fatalf("len(Sections) = %d, want 5", len(plan.Sections))
	}
	if !HasAllSectionHeaders(plan.Markdown) {
		t.Error("combined markdown is missing section headers")
	}
}

func TestParsePlan_CodeFencedJSON(t *testing.T) {
	fenced := "```json\n" + cleanPlanJSON + "\n```"

	plan := ParsePlan(fenced)

	if plan.Summary.IrrigationMethod != "Drip irrigation" {
		t.Errorf("IrrigationMethod = %q, want fence stripped and parsed", plan.Summary.IrrigationMethod)
	}
	if !HasAllSectionHeaders(plan.Markdown) {
		t.Error("combined markdown is missing section headers")
	}
}

func TestParsePlan_BareFence(t *testing.T) {
	fenced := "```\n" + cleanPlanJSON + "\n```"

	plan := ParsePlan(fenced)

	if plan.Summary.WateringFrequency != "Every 3-4 days" {
		t.Errorf("WateringFrequency = %q, want bare fence stripped", plan.Summary.WateringFrequency)
	}
}

func TestParsePlan_SurroundingProse(t *testing.T) {
	noisy := "Sure! Here is your plan:\n" + cleanPlanJSON + "\nLet me know if you need changes."

	plan := ParsePlan(noisy)

	if plan.Summary.ExpectedHarvestDate != "Aug 23, 2026" {
		t.Errorf("ExpectedHarvestDate = %q, want outer braces sliced", plan.Summary.ExpectedHarvestDate)
	}
}

// 壊れたJSON（末尾カンマ）でも正規表現で個別フィールドを救出できること
func TestParsePlan_BrokenJSON_RecoversFields(t *testing.T) {
	broken := `{
  "summary": {
    "optimal_planting_date": "June 1, 2026",
    "irrigation_method": "Furrow irrigation",
  },
  "sections": {
    "market_timed": "## Market-Timed Sowing Window\nSow early.",
    "actions": "## Action Notes\n1. Prepare beds",
  },
}`

	plan := ParsePlan(broken)

	if plan.Summary.OptimalPlantingDate != "June 1, 2026" {
		t.Errorf("OptimalPlantingDate = %q, want regex recovery", plan.Summary.OptimalPlantingDate)
	}
	if plan.Summary.IrrigationMethod != "Furrow irrigation" {
		t.Errorf("IrrigationMethod = %q", plan.Summary.IrrigationMethod)
	}
	if got := plan.Sections[model.SectionMarketTimed]; !strings.Contains(got, "Sow early.") {
		t.Errorf("Sections[market_timed] = %q", got)
	}
	if got := plan.Sections[model.SectionActions]; !strings.Contains(got, "Prepare beds") {
		t.Errorf("Sections[actions] = %q", got)
	}
	if !strings.Contains(plan.Markdown, "Sow early.") || !strings.Contains(plan.Markdown, "Prepare beds") {
		t.Errorf("Markdown = %q, want recovered sections combined", plan.Markdown)
	}
}

func TestParsePlan_UnstructuredText_FallsBackToCompleteSection(t *testing.T) {
	raw := "Plant tomatoes in May and water them twice a week."

	plan := ParsePlan(raw)

	if plan.Sections["complete"] != raw {
		t.Errorf("Sections[complete] = %q, want full text", plan.Sections["complete"])
	}
	if plan.Markdown != raw {
		t.Errorf("Markdown = %q, want full text", plan.Markdown)
	}
	if !plan.Summary.IsZero() {
		t.Error("Summary should be zero for unstructured text")
	}
}

func TestParsePlan_EmptyResponse_UsesPlaceholder(t *testing.T) {
	for _, raw := range []string{"", "   \n\t "} {
		plan := ParsePlan(raw)

		if plan.Markdown != noInsightsText {
			t.Errorf("ParsePlan(%q).Markdown = %q, want placeholder", raw, plan.Markdown)
		}
		if plan.Failed() {
			t.Error("empty response is not an AI failure")
		}
	}
}

func TestParsePlan_EscapedNewlinesInRecoveredSection(t *testing.T) {
	broken := `"market_timed": "## Market-Timed Sowing Window\nLine one\nLine two", trailing garbage {`

	plan := ParsePlan(broken)

	got := plan.Sections[model.SectionMarketTimed]
	if !strings.Contains(got, "Line one\nLine two") {
		t.Errorf("Sections[market_timed] = %q, want \\n unescaped", got)
	}
}

func TestCombineSections_DeterministicOrder(t *testing.T) {
	sections := map[string]string{
		model.SectionActions:     "actions part",
		model.SectionMarketTimed: "market part",
		"zz_extra":               "extra part",
		"aa_extra":               "another extra",
	}

	combined := combineSections(sections)

	wantOrder := []string{"market part", "actions part", "another extra", "extra part"}
	pos := -1
	for _, part := range wantOrder {
		idx := strings.Index(combined, part)
		if idx < 0 {
			t.Fatalf("combined output is missing %q", part)
		}
		if idx < pos {
			t.Errorf("%q appears out of order", part)
		}
		pos = idx
	}
	if strings.Count(combined, "\n\n") != len(wantOrder)-1 {
		t.Errorf("parts should be joined with blank lines: %q", combined)
	}
}

func TestCombineSections_SkipsEmptyValues(t *testing.T) {
	sections := map[string]string{
		model.SectionTimeline: "",
		model.SectionActions:  "only part",
	}

	if got := combineSections(sections); got != "only part" {
		t.Errorf("combineSections = %q, want %q", got, "only part")
	}
}
