package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/pipeline"
	"github.com/theirongolddev/cxburn/internal/tui/components"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

func (a App) renderOverviewTab(cw int) string {
	t := theme.Active
	now := a.now()
	r := a.analytics.Rollups

	var b strings.Builder
	b.WriteString(components.MetricCardRow([]components.Metric{
		rollupMetric("Today", r.Today),
		rollupMetric("7 days", r.Week),
		rollupMetric("30 days", r.Month),
		{
			Label: fmt.Sprintf("Last %dd", a.days),
			Value: cli.FormatCost(a.totals.Cost),
			Delta: fmt.Sprintf("%s sessions", cli.FormatNumber(int64(a.totals.Sessions))),
		},
	}, cw))
	b.WriteString("\n")

	values, labels := a.dailySeries(now)
	if a.isCompactLayout() {
		chart := components.BarChart(values, labels, t.AccentBright, components.CardInnerWidth(cw), 8)
		b.WriteString(components.ContentCard("Daily tokens", chart, cw))
		b.WriteString("\n")
		b.WriteString(components.ContentCard("Rate limits", a.rateLimitBody(now, components.CardInnerWidth(cw)), cw))
		b.WriteString("\n")
		b.WriteString(components.ContentCard("Pace", a.paceBody(), cw))
		return b.String()
	}

	widths := components.LayoutRow(cw, 3)
	chartW := widths[0] + widths[1]
	chart := components.BarChart(values, labels, t.AccentBright, components.CardInnerWidth(chartW), 10)
	b.WriteString(components.CardRow([]string{
		components.ContentCard("Daily tokens", chart, chartW),
		components.ContentCard("Rate limits", a.rateLimitBody(now, components.CardInnerWidth(widths[2])), widths[2]),
	}))
	b.WriteString("\n")
	b.WriteString(components.CardRow([]string{
		components.ContentCard("Pace", a.paceBody(), widths[0]),
		components.ContentCard("Milestones", a.milestonesBody(), widths[1]),
		components.ContentCard("Token mix", a.tokenMixBody(components.CardInnerWidth(widths[2])), widths[2]),
	}))
	return b.String()
}

func rollupMetric(label string, r model.PeriodRollup) components.Metric {
	t := theme.Active
	m := components.Metric{
		Label: label,
		Value: cli.FormatTokens(r.Tokens),
		Delta: fmt.Sprintf("%s  %s", cli.FormatCost(r.Cost), cli.FormatTrend(r.Trend)),
	}
	switch r.Trend.Direction {
	case model.TrendUp:
		m.DeltaColor = t.Orange
	case model.TrendDown:
		m.DeltaColor = t.Green
	}
	return m
}

// dailySeries returns one value per day in the window, oldest first, with
// idle days as zero.
func (a App) dailySeries(now time.Time) ([]float64, []string) {
	since, _ := a.window(now)
	byDay := pipeline.IndexByDay(a.daily, a.loc)

	values := make([]float64, a.days)
	dates := make([]time.Time, a.days)
	for i := range a.days {
		day := since.AddDate(0, 0, i)
		dates[i] = day
		values[i] = float64(byDay[pipeline.DayKey(day, a.loc)].TotalTokens)
	}
	return values, chartDateLabels(dates)
}

// chartDateLabels labels the first day and month boundaries with the month
// name, everything else with the day number.
func chartDateLabels(dates []time.Time) []string {
	labels := make([]string, len(dates))
	for i, d := range dates {
		if i == 0 || d.Day() == 1 {
			labels[i] = d.Format("Jan")
			continue
		}
		labels[i] = strconv.Itoa(d.Day())
	}
	return labels
}

func (a App) rateLimitBody(now time.Time, inner int) string {
	t := theme.Active
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)

	if len(a.snap.RateLimits) == 0 {
		return muted.Render("No rate-limit data in session logs")
	}

	barW := max(inner-36, 6)
	lines := make([]string, 0, len(a.snap.RateLimits)+2)
	for _, rl := range a.snap.RateLimits {
		lines = append(lines, components.RateLimitBar(rl, now, 7, barW))
	}

	captured := a.snap.RateLimits[0].CapturedAt
	line := fmt.Sprintf("captured %s", cli.FormatRelative(captured, now))
	lines = append(lines, "")
	if a.freshness(now) == model.FreshnessStale {
		lines = append(lines, warn.Render(line+" (stale)"))
	} else {
		lines = append(lines, muted.Render(line))
	}
	return strings.Join(lines, "\n")
}

func (a App) paceBody() string {
	t := theme.Active
	p := a.analytics.Pace
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Bold(true)

	paceColor := t.TextPrimary
	if ratio, ok := p.Ratio(); ok && ratio >= 1.5 {
		paceColor = t.Orange
	}
	pace := lipgloss.NewStyle().Foreground(paceColor).Background(t.Surface).Bold(true)

	rows := []string{
		label.Render("Last hour  ") + value.Render(cli.FormatTokens(p.CurrentTokens)),
		label.Render("Typical    ") + value.Render(cli.FormatTokens(int64(p.TypicalTokens))) +
			label.Render(fmt.Sprintf(" (%d days)", p.MatchedDays)),
		label.Render("Pace       ") + pace.Render(cli.FormatPace(p)),
	}
	if !p.PeakHour.IsZero() {
		rows = append(rows, label.Render("Peak hour  ")+
			value.Render(p.PeakHour.In(a.loc).Format("Jan 02 15:04"))+
			label.Render(" "+cli.FormatTokens(p.PeakTokens)))
	}
	return strings.Join(rows, "\n")
}

func (a App) milestonesBody() string {
	t := theme.Active
	m := a.analytics.Milestones
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Bold(true)

	rows := []string{
		label.Render("Longest streak  ") + value.Render(fmt.Sprintf("%d days", m.LongestStreakDays)),
	}
	if d := m.MostProductiveDay; d != nil {
		rows = append(rows, label.Render("Best day        ")+
			value.Render(d.Date.In(a.loc).Format("2006-01-02"))+label.Render(" "+cli.FormatTokens(d.Tokens)))
	}
	if d := m.WeeklyMostProductiveDay; d != nil {
		rows = append(rows, label.Render("Best this week  ")+
			value.Render(d.Date.In(a.loc).Format("Mon Jan 02"))+label.Render(" "+cli.FormatTokens(d.Tokens)))
	}
	if h := m.WeeklyPeakHour; h != nil {
		rows = append(rows, label.Render("Peak hour (7d)  ")+
			value.Render(h.Hour.In(a.loc).Format("Mon 15:04"))+label.Render(" "+cli.FormatTokens(h.Tokens)))
	}
	return strings.Join(rows, "\n")
}

func (a App) tokenMixBody(inner int) string {
	t := theme.Active
	tot := a.totals
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	// Cached is a subset of input and reasoning a subset of output.
	rows := []struct {
		name  string
		count int64
	}{
		{"Input", max(tot.InputTokens-tot.CachedInputTokens, 0)},
		{"Cached", tot.CachedInputTokens},
		{"Output", max(tot.OutputTokens-tot.ReasoningTokens, 0)},
		{"Reasoning", tot.ReasoningTokens},
	}
	barW := max(inner-20, 4)
	lines := make([]string, 0, len(rows)+1)
	for _, r := range rows {
		pct := 0.0
		if tot.TotalTokens > 0 {
			pct = float64(r.count) / float64(tot.TotalTokens)
		}
		filled := min(max(int(pct*float64(barW)), 0), barW)
		bar := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Render(strings.Repeat("█", filled)) +
			lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Render(strings.Repeat("░", barW-filled))
		lines = append(lines, label.Render(fmt.Sprintf("%-10s", r.name))+bar+value.Render(fmt.Sprintf(" %6s", cli.FormatTokens(r.count))))
	}
	if tot.Fallback {
		lines = append(lines, label.Render("* some sessions use fallback pricing"))
	}
	return strings.Join(lines, "\n")
}
