package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/theirongolddev/cxburn/internal/model"
)

const (
	// TypicalLookbackDays bounds how far back matching hours are sampled.
	TypicalLookbackDays = 84
	// TypicalSampleDays caps how many matching days feed the typical figure.
	TypicalSampleDays = 8
	// VisibleDays is the length of the history shown in the heatmap.
	VisibleDays = 365
)

// Analyze bundles every derived metric for one snapshot.
func Analyze(sessions []model.SessionUsage, byDay map[string]model.DailyUsage, now time.Time, loc *time.Location) model.Analytics {
	return model.Analytics{
		GeneratedAt: now,
		Rollups:     PeriodRollups(byDay, now, loc),
		Pace:        CurrentVsTypicalHour(sessions, now, loc),
		Milestones:  ComputeMilestones(sessions, now, loc),
	}
}

// PeriodRollups sums today, the trailing 7 days and the trailing 30 days,
// each compared with the equal-length window immediately before it.
func PeriodRollups(byDay map[string]model.DailyUsage, now time.Time, loc *time.Location) model.PeriodRollups {
	today := StartOfDay(now, loc)
	return model.PeriodRollups{
		Today: rollup(byDay, today, 1, loc),
		Week:  rollup(byDay, today, 7, loc),
		Month: rollup(byDay, today, 30, loc),
	}
}

func rollup(byDay map[string]model.DailyUsage, today time.Time, days int, loc *time.Location) model.PeriodRollup {
	r := model.PeriodRollup{Days: days}
	for offset := range days {
		if d, ok := byDay[DayKey(today.AddDate(0, 0, -offset), loc)]; ok {
			r.Tokens += d.TotalTokens
			r.Cost += d.EstimatedCost
		}
		if d, ok := byDay[DayKey(today.AddDate(0, 0, -(offset+days)), loc)]; ok {
			r.PreviousTokens += d.TotalTokens
			r.PreviousCost += d.EstimatedCost
		}
	}
	r.Trend = ComputeTrend(r.Tokens, r.PreviousTokens)
	return r
}

// ComputeTrend compares current with previous as a rounded percent change.
// Growth from nothing reads as up 100%; a change that rounds to 0% is flat.
func ComputeTrend(current, previous int64) model.Trend {
	if previous <= 0 {
		if current == 0 {
			return model.Trend{Direction: model.TrendFlat}
		}
		return model.Trend{Direction: model.TrendUp, Percent: 100}
	}

	percent := float64(current-previous) / float64(previous) * 100
	magnitude := int(math.Round(math.Abs(percent)))
	switch {
	case magnitude == 0:
		return model.Trend{Direction: model.TrendFlat}
	case percent > 0:
		return model.Trend{Direction: model.TrendUp, Percent: magnitude}
	default:
		return model.Trend{Direction: model.TrendDown, Percent: magnitude}
	}
}

// CurrentVsTypicalHour compares the trailing hour with the same weekday and
// hour over recent weeks, and finds the busiest hour ever recorded.
func CurrentVsTypicalHour(sessions []model.SessionUsage, now time.Time, loc *time.Location) model.HourPace {
	hourStart := startOfHour(now, loc)
	weekday := hourStart.Weekday()
	hour := hourStart.Hour()
	lookbackStart := hourStart.AddDate(0, 0, -TypicalLookbackDays)

	var pace model.HourPace
	historical := make(map[int64]int64)
	hourly := make(map[int64]int64)

	for _, s := range sessions {
		pace.CurrentTokens += max(0, s.TokensInLastHour)

		ts := s.Timestamp.In(loc)
		hourly[startOfHour(ts, loc).Unix()] += s.TotalTokens

		if ts.Before(lookbackStart) || !ts.Before(hourStart) {
			continue
		}
		if ts.Weekday() != weekday || ts.Hour() != hour {
			continue
		}
		historical[StartOfDay(ts, loc).Unix()] += s.TotalTokens
	}

	days := make([]int64, 0, len(historical))
	for day := range historical {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })
	if len(days) > TypicalSampleDays {
		days = days[:TypicalSampleDays]
	}
	if len(days) > 0 {
		var sum int64
		for _, day := range days {
			sum += historical[day]
		}
		pace.MatchedDays = len(days)
		pace.TypicalTokens = float64(sum) / float64(len(days))
	}

	if key, tokens, ok := maxBucket(hourly, nil); ok {
		pace.PeakHour = time.Unix(key, 0).In(loc)
		pace.PeakTokens = tokens
	}
	return pace
}

// ComputeMilestones finds the longest daily streak, the most productive day
// overall and within the trailing week, and the trailing week's peak hour.
func ComputeMilestones(sessions []model.SessionUsage, now time.Time, loc *time.Location) model.Milestones {
	var m model.Milestones
	if len(sessions) == 0 {
		return m
	}

	today := StartOfDay(now, loc)
	weekStart := today.AddDate(0, 0, -6).Unix()
	weekEnd := today.AddDate(0, 0, 1).Unix()
	inWeek := func(key int64) bool { return key >= weekStart && key < weekEnd }

	daily := make(map[int64]int64)
	hourly := make(map[int64]int64)
	for _, s := range sessions {
		daily[StartOfDay(s.Timestamp, loc).Unix()] += s.TotalTokens
		hourly[startOfHour(s.Timestamp, loc).Unix()] += s.TotalTokens
	}

	m.LongestStreakDays = longestStreak(daily, loc)
	if key, tokens, ok := maxBucket(daily, nil); ok {
		m.MostProductiveDay = &model.DayPeak{Date: time.Unix(key, 0).In(loc), Tokens: tokens}
	}
	if key, tokens, ok := maxBucket(daily, inWeek); ok {
		m.WeeklyMostProductiveDay = &model.DayPeak{Date: time.Unix(key, 0).In(loc), Tokens: tokens}
	}
	if key, tokens, ok := maxBucket(hourly, inWeek); ok {
		m.WeeklyPeakHour = &model.HourPeak{Hour: time.Unix(key, 0).In(loc), Tokens: tokens}
	}
	return m
}

// VisibleRange returns the half-open range of the last VisibleDays calendar
// days ending with today.
func VisibleRange(now time.Time, loc *time.Location) (start, end time.Time) {
	today := StartOfDay(now, loc)
	return today.AddDate(0, 0, -(VisibleDays - 1)), today.AddDate(0, 0, 1)
}

func startOfHour(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

// maxBucket returns the bucket with the highest value, earliest key on ties.
func maxBucket(buckets map[int64]int64, include func(int64) bool) (key, value int64, ok bool) {
	for k, v := range buckets {
		if include != nil && !include(k) {
			continue
		}
		if !ok || v > value || (v == value && k < key) {
			key, value, ok = k, v, true
		}
	}
	return key, value, ok
}

func longestStreak(daily map[int64]int64, loc *time.Location) int {
	if len(daily) == 0 {
		return 0
	}
	days := make([]int64, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	longest, current := 1, 1
	prev := time.Unix(days[0], 0).In(loc)
	for _, key := range days[1:] {
		day := time.Unix(key, 0).In(loc)
		switch calendarDaysBetween(prev, day) {
		case 0:
		case 1:
			current++
		default:
			current = 1
		}
		longest = max(longest, current)
		prev = day
	}
	return longest
}

// calendarDaysBetween counts date boundaries between a and b, ignoring
// daylight-saving length changes.
func calendarDaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
