package pipeline

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/model"
)

func usageAt(ts time.Time, project string, total int64, cost float64) model.SessionUsage {
	return model.SessionUsage{
		SessionSummary: model.SessionSummary{
			Project:     project,
			Model:       "gpt-5.2-codex",
			Timestamp:   ts,
			InputTokens: total,
			TotalTokens: total,
		},
		EstimatedCost: cost,
	}
}

func TestAggregateDaily(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	sessions := []model.SessionUsage{
		usageAt(time.Date(2026, 2, 7, 21, 0, 0, 0, time.UTC), "a", 100, 1), // 2/7 23:00 local
		usageAt(time.Date(2026, 2, 7, 23, 30, 0, 0, time.UTC), "a", 50, 0.5), // 2/8 01:30 local
		usageAt(time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC), "b", 25, 0.25),
		usageAt(time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC), "b", 999, 9), // excluded by until
	}
	sessions[2].UsedFallbackPricing = true

	since := time.Date(2026, 2, 1, 0, 0, 0, 0, loc)
	until := time.Date(2026, 2, 9, 0, 0, 0, 0, loc)
	days := AggregateDaily(sessions, since, until, loc)

	if len(days) != 2 {
		t.Fatalf("days = %d, want 2", len(days))
	}
	if got := days[0].Date; !got.Equal(time.Date(2026, 2, 7, 0, 0, 0, 0, loc)) {
		t.Errorf("first day = %v, want 2026-02-07 local midnight", got)
	}
	if days[0].TotalTokens != 100 || days[0].UsedFallbackPricing {
		t.Errorf("day 1 = %+v", days[0])
	}
	if days[1].Sessions != 2 || days[1].TotalTokens != 75 || !days[1].UsedFallbackPricing {
		t.Errorf("day 2 = %+v, want 2 sessions, 75 tokens, fallback", days[1])
	}
	if math.Abs(days[1].EstimatedCost-0.75) > 1e-9 {
		t.Errorf("day 2 cost = %v, want 0.75", days[1].EstimatedCost)
	}

	again := AggregateDaily(sessions, since, until, loc)
	if !reflect.DeepEqual(days, again) {
		t.Error("aggregating the same sessions twice gave different results")
	}
}

func TestAggregateDaily_Unbounded(t *testing.T) {
	sessions := []model.SessionUsage{
		usageAt(time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC), "", 1, 0),
		usageAt(time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC), "", 2, 0),
	}
	if days := AggregateDaily(sessions, time.Time{}, time.Time{}, time.UTC); len(days) != 2 {
		t.Errorf("days = %d, want 2 with zero bounds", len(days))
	}
	if days := AggregateDaily(nil, time.Time{}, time.Time{}, time.UTC); len(days) != 0 {
		t.Errorf("days = %d, want none for no sessions", len(days))
	}
}

func TestIndexByDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	days := AggregateDaily([]model.SessionUsage{
		usageAt(time.Date(2026, 2, 8, 3, 0, 0, 0, time.UTC), "", 10, 0), // 2/7 22:00 local
	}, time.Time{}, time.Time{}, loc)

	idx := IndexByDay(days, loc)
	if _, ok := idx["2026-02-07"]; !ok {
		t.Fatalf("index keys = %v, want 2026-02-07", idx)
	}
}

func TestFilterByScope(t *testing.T) {
	sessions := []model.SessionUsage{
		usageAt(testNow, "alpha", 1, 0),
		usageAt(testNow, " beta ", 2, 0),
		usageAt(testNow, "", 3, 0),
		usageAt(testNow, "alpha", 4, 0),
	}

	tests := []struct {
		scope string
		want  int
	}{
		{"", 4},
		{ScopeAll, 4},
		{"alpha", 2},
		{"beta", 1},
		{ScopeUnassigned, 1},
		{"gamma", 0},
	}
	for _, tt := range tests {
		if got := FilterByScope(sessions, tt.scope); len(got) != tt.want {
			t.Errorf("FilterByScope(%q) = %d sessions, want %d", tt.scope, len(got), tt.want)
		}
	}

	want := []string{ScopeAll, "alpha", "beta", ScopeUnassigned}
	if got := ProjectScopes(sessions); !reflect.DeepEqual(got, want) {
		t.Errorf("ProjectScopes = %v, want %v", got, want)
	}
	if got := ProjectScopes(sessions[:2]); !reflect.DeepEqual(got, []string{ScopeAll, "alpha", "beta"}) {
		t.Errorf("ProjectScopes without unassigned = %v", got)
	}
}

func TestAggregateProjects(t *testing.T) {
	sessions := []model.SessionUsage{
		usageAt(testNow, "alpha", 100, 1),
		usageAt(testNow, "beta", 500, 3),
		usageAt(testNow, "alpha", 100, 1),
		usageAt(testNow, "", 10, 0.1),
	}
	got := AggregateProjects(sessions, time.Time{}, time.Time{})
	if len(got) != 3 {
		t.Fatalf("projects = %d, want 3", len(got))
	}
	if got[0].Project != "beta" || got[1].Project != "alpha" || got[1].Sessions != 2 || got[1].TotalTokens != 200 {
		t.Errorf("projects = %+v", got)
	}
}

func TestAggregateHourly(t *testing.T) {
	loc := time.FixedZone("UTC+1", 60*60)
	hours := AggregateHourly([]model.SessionUsage{
		usageAt(time.Date(2026, 2, 8, 8, 15, 0, 0, time.UTC), "", 10, 0),
		usageAt(time.Date(2026, 2, 7, 8, 45, 0, 0, time.UTC), "", 5, 0),
	}, time.Time{}, time.Time{}, loc)

	if len(hours) != 24 {
		t.Fatalf("hours = %d, want 24", len(hours))
	}
	if hours[9].Sessions != 2 || hours[9].Tokens != 15 {
		t.Errorf("hour 9 = %+v, want 2 sessions, 15 tokens", hours[9])
	}
}

func TestAggregateModels(t *testing.T) {
	sessions := []model.SessionUsage{
		{SessionSummary: model.SessionSummary{Model: "gpt-5.2-codex", Timestamp: testNow, InputTokens: 1_000_000, OutputTokens: 100_000}},
		{SessionSummary: model.SessionSummary{Model: "gpt-5.3-codex", Timestamp: testNow, InputTokens: 200, CachedInputTokens: 50, OutputTokens: 90}},
		{SessionSummary: model.SessionSummary{Model: "GPT-5.2-Codex", Timestamp: testNow, InputTokens: 1_000_000, CachedInputTokens: 1_000_000}},
	}

	rows, totals := AggregateModels(sessions, time.Time{}, time.Time{}, config.DefaultPricingTable())
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 tiers", len(rows))
	}

	top := rows[0]
	if top.Tier != string(config.TierGPT52Codex) || top.Sessions != 2 || top.UsedFallbackPricing {
		t.Errorf("top row = %+v", top)
	}
	// 1M input at 1.50, 100k output at 6.00, 1M cached at 0.125
	if math.Abs(top.EstimatedCost-(1.50+0.60+0.125)) > 1e-9 {
		t.Errorf("top cost = %v, want 2.225", top.EstimatedCost)
	}
	if math.Abs(top.InputCost+top.CachedInputCost+top.OutputCost-top.EstimatedCost) > 1e-9 {
		t.Error("cost components do not sum to the row total")
	}

	alias := rows[1]
	if !alias.UsedFallbackPricing || math.Abs(alias.EstimatedCost-0.00077125) > 1e-12 {
		t.Errorf("alias row = %+v", alias)
	}

	var share float64
	for _, r := range rows {
		share += r.SharePercent
	}
	if math.Abs(share-100) > 1e-9 {
		t.Errorf("shares sum to %v, want 100", share)
	}
	if math.Abs(totals.TotalCost-(top.EstimatedCost+alias.EstimatedCost)) > 1e-9 {
		t.Errorf("totals = %+v", totals)
	}
}
