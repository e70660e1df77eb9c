package model

import "time"

// DailyUsage holds the aggregate for a single calendar day.
type DailyUsage struct {
	Date                time.Time `json:"date"`
	Sessions            int       `json:"sessions"`
	InputTokens         int64     `json:"input_tokens"`
	CachedInputTokens   int64     `json:"cached_input_tokens"`
	OutputTokens        int64     `json:"output_tokens"`
	ReasoningTokens     int64     `json:"reasoning_tokens"`
	TotalTokens         int64     `json:"total_tokens"`
	EstimatedCost       float64   `json:"estimated_cost"`
	UsedFallbackPricing bool      `json:"used_fallback_pricing"`
}

// TrendDirection is the sign of a period-over-period change.
type TrendDirection string

// Trend directions.
const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// Trend is a rounded percent change against the preceding period.
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Percent   int            `json:"percent"`
}

// PeriodRollup sums one trailing period and compares it with the one before.
type PeriodRollup struct {
	Days           int     `json:"days"`
	Tokens         int64   `json:"tokens"`
	Cost           float64 `json:"cost"`
	PreviousTokens int64   `json:"previous_tokens"`
	PreviousCost   float64 `json:"previous_cost"`
	Trend          Trend   `json:"trend"`
}

// PeriodRollups holds the today, trailing-week and trailing-month rollups.
type PeriodRollups struct {
	Today PeriodRollup `json:"today"`
	Week  PeriodRollup `json:"week"`
	Month PeriodRollup `json:"month"`
}

// HourPace compares the trailing hour with what is typical for this hour.
type HourPace struct {
	CurrentTokens int64   `json:"current_tokens"`
	TypicalTokens float64 `json:"typical_tokens"`
	MatchedDays   int     `json:"matched_days"`

	PeakHour   time.Time `json:"peak_hour,omitzero"`
	PeakTokens int64     `json:"peak_tokens"`
}

// Ratio returns current/typical. ok is false when there is no history.
func (p HourPace) Ratio() (ratio float64, ok bool) {
	if p.MatchedDays == 0 || p.TypicalTokens <= 0 {
		return 0, false
	}
	return float64(p.CurrentTokens) / p.TypicalTokens, true
}

// DayPeak is a single day and its token total.
type DayPeak struct {
	Date   time.Time `json:"date"`
	Tokens int64     `json:"tokens"`
}

// HourPeak is a single hour bucket and its token total.
type HourPeak struct {
	Hour   time.Time `json:"hour"`
	Tokens int64     `json:"tokens"`
}

// Milestones holds superlatives over the session history.
type Milestones struct {
	LongestStreakDays       int       `json:"longest_streak_days"`
	MostProductiveDay       *DayPeak  `json:"most_productive_day,omitempty"`
	WeeklyMostProductiveDay *DayPeak  `json:"weekly_most_productive_day,omitempty"`
	WeeklyPeakHour          *HourPeak `json:"weekly_peak_hour,omitempty"`
}

// Analytics bundles every derived metric for one snapshot.
type Analytics struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Rollups     PeriodRollups `json:"rollups"`
	Pace        HourPace      `json:"pace"`
	Milestones  Milestones    `json:"milestones"`
}

// HeatmapCell is one day in the activity heatmap.
type HeatmapCell struct {
	Date     time.Time `json:"date"`
	Tokens   int64     `json:"tokens"`
	Level    int       `json:"level"`
	IsFuture bool      `json:"is_future,omitempty"`
}

// Heatmap is a grid of weeks, each holding seven days Monday first.
type Heatmap struct {
	Weeks      [][]HeatmapCell `json:"weeks"`
	Thresholds [4]int64        `json:"thresholds"`
}

// ProjectStats holds aggregated metrics for a single project.
type ProjectStats struct {
	Project       string  `json:"project"`
	Sessions      int     `json:"sessions"`
	TotalTokens   int64   `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// ModelStats holds aggregated metrics for a single pricing tier.
type ModelStats struct {
	Tier                string  `json:"tier"`
	Sessions            int     `json:"sessions"`
	InputTokens         int64   `json:"input_tokens"`
	CachedInputTokens   int64   `json:"cached_input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	InputCost           float64 `json:"input_cost"`
	CachedInputCost     float64 `json:"cached_input_cost"`
	OutputCost          float64 `json:"output_cost"`
	EstimatedCost       float64 `json:"estimated_cost"`
	SharePercent        float64 `json:"share_percent"`
	UsedFallbackPricing bool    `json:"used_fallback_pricing"`
}

// HourlyStats holds token volume for one hour of the day.
type HourlyStats struct {
	Hour     int   `json:"hour"`
	Sessions int   `json:"sessions"`
	Tokens   int64 `json:"tokens"`
}
