package pipeline

import (
	"sort"
	"time"

	"github.com/theirongolddev/cxburn/internal/model"
)

// HeatmapWeeks is the number of week columns in the activity heatmap.
const HeatmapWeeks = 52

// BuildHeatmap lays out HeatmapWeeks Monday-first weeks ending with the
// current week. Each day gets an intensity level from 0 (no usage) to 4,
// split at the 20th, 40th, 60th and 80th percentiles of days with usage.
func BuildHeatmap(byDay map[string]model.DailyUsage, now time.Time, loc *time.Location) model.Heatmap {
	today := StartOfDay(now, loc)
	sinceMonday := (int(today.Weekday()) + 6) % 7
	gridStart := today.AddDate(0, 0, -sinceMonday-(HeatmapWeeks-1)*7)

	var hm model.Heatmap
	var positive []int64
	hm.Weeks = make([][]model.HeatmapCell, HeatmapWeeks)
	for w := range HeatmapWeeks {
		week := make([]model.HeatmapCell, 7)
		for d := range 7 {
			date := gridStart.AddDate(0, 0, w*7+d)
			tokens := byDay[DayKey(date, loc)].TotalTokens
			if tokens > 0 {
				positive = append(positive, tokens)
			}
			week[d] = model.HeatmapCell{
				Date:     date,
				Tokens:   tokens,
				IsFuture: date.After(today),
			}
		}
		hm.Weeks[w] = week
	}

	if len(positive) == 0 {
		return hm
	}
	hm.Thresholds = intensityThresholds(positive)
	for _, week := range hm.Weeks {
		for d := range week {
			week[d].Level = IntensityLevel(week[d].Tokens, hm.Thresholds)
		}
	}
	return hm
}

func intensityThresholds(totals []int64) [4]int64 {
	sorted := append([]int64(nil), totals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	percentile := func(p float64) int64 {
		idx := int(float64(len(sorted)-1) * p)
		return sorted[min(max(idx, 0), len(sorted)-1)]
	}
	return [4]int64{percentile(0.20), percentile(0.40), percentile(0.60), percentile(0.80)}
}

// IntensityLevel maps a day's tokens onto the heatmap scale.
func IntensityLevel(tokens int64, thresholds [4]int64) int {
	switch {
	case tokens <= 0:
		return 0
	case tokens <= thresholds[0]:
		return 1
	case tokens <= thresholds[1]:
		return 2
	case tokens <= thresholds[2]:
		return 3
	default:
		return 4
	}
}
