package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/pipeline"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Usage rollups, pace, milestones and rate limits",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	loc, err := location()
	if err != nil {
		return err
	}
	snap, err := loadData(cmd.Context())
	if err != nil {
		return err
	}

	if len(snap.Sessions) == 0 {
		fmt.Println("\n  No Codex sessions found.")
		fmt.Println("  Use Codex first, then come back!")
		return nil
	}

	now := time.Now()
	sessions := scopedSessions(snap.Sessions)
	byDay := pipeline.IndexByDay(pipeline.AggregateDaily(sessions, time.Time{}, time.Time{}, loc), loc)
	analytics := pipeline.Analyze(sessions, byDay, now, loc)

	since, until := window(now, loc)
	inWindow := pipeline.FilterByTime(sessions, since, until)
	var (
		input, cached, output, total int64
		cost                         float64
		fallback                     bool
	)
	for _, s := range inWindow {
		input += s.InputTokens
		cached += s.CachedInputTokens
		output += s.OutputTokens
		total += s.TotalTokens
		cost += s.EstimatedCost
		fallback = fallback || s.UsedFallbackPricing
	}

	title := fmt.Sprintf("CODEX USAGE  Last %dd", flagDays)
	if flagProject != "" {
		title += "  " + flagProject
	}
	fmt.Println()
	fmt.Println(cli.RenderTitle(title))
	fmt.Println()

	r := analytics.Rollups
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Rollups",
		Headers: []string{"Period", "Tokens", "Cost", "Previous", "Trend"},
		Rows: [][]string{
			rollupRow("Today", r.Today),
			rollupRow("7 days", r.Week),
			rollupRow("30 days", r.Month),
		},
	}))
	fmt.Println()

	rows := [][]string{
		{"Sessions", cli.FormatNumber(int64(len(inWindow)))},
		{"Input Tokens", cli.FormatTokens(input)},
		{"Cached Input", cli.FormatTokens(cached)},
		{"Output Tokens", cli.FormatTokens(output)},
		{"Total Tokens", cli.FormatTokens(total)},
		{"---"},
		{"Cost (est)", cli.FormatCost(cost)},
		{"Cost/day", cli.FormatCost(cost / float64(flagDays))},
		{"Tokens/day", cli.FormatTokens(total / int64(flagDays))},
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   fmt.Sprintf("Last %d days", flagDays),
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))
	if fallback {
		fmt.Println("  * includes sessions priced with fallback rates")
	}
	fmt.Println()

	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Pace",
		Headers: []string{"Metric", "Value"},
		Rows:    paceRows(analytics.Pace, loc),
	}))
	fmt.Println()

	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Milestones",
		Headers: []string{"Milestone", "Value"},
		Rows:    milestoneRows(analytics.Milestones, loc),
	}))

	if len(snap.RateLimits) > 0 {
		fmt.Println()
		printRateLimits(snap, now, loc)
	}

	printFileWarnings(snap)
	return nil
}

func rollupRow(label string, r model.PeriodRollup) []string {
	return []string{
		label,
		cli.FormatTokens(r.Tokens),
		cli.FormatCost(r.Cost),
		cli.FormatTokens(r.PreviousTokens),
		cli.FormatTrend(r.Trend),
	}
}

func paceRows(p model.HourPace, loc *time.Location) [][]string {
	rows := [][]string{
		{"Last hour", cli.FormatTokens(p.CurrentTokens)},
		{"Typical", fmt.Sprintf("%s (%d days)", cli.FormatTokens(int64(p.TypicalTokens)), p.MatchedDays)},
		{"Pace", cli.FormatPace(p)},
	}
	if !p.PeakHour.IsZero() {
		rows = append(rows, []string{"Peak hour", fmt.Sprintf("%s (%s)",
			p.PeakHour.In(loc).Format("Jan 02 15:04"), cli.FormatTokens(p.PeakTokens))})
	}
	return rows
}

func milestoneRows(m model.Milestones, loc *time.Location) [][]string {
	rows := [][]string{
		{"Longest streak", fmt.Sprintf("%d days", m.LongestStreakDays)},
	}
	if d := m.MostProductiveDay; d != nil {
		rows = append(rows, []string{"Best day", fmt.Sprintf("%s (%s)",
			d.Date.In(loc).Format("2006-01-02"), cli.FormatTokens(d.Tokens))})
	}
	if d := m.WeeklyMostProductiveDay; d != nil {
		rows = append(rows, []string{"Best day this week", fmt.Sprintf("%s %s (%s)",
			cli.FormatDayOfWeek(d.Date.In(loc).Weekday()), d.Date.In(loc).Format("Jan 02"), cli.FormatTokens(d.Tokens))})
	}
	if h := m.WeeklyPeakHour; h != nil {
		rows = append(rows, []string{"Peak hour this week", fmt.Sprintf("%s (%s)",
			h.Hour.In(loc).Format("Mon 15:04"), cli.FormatTokens(h.Tokens))})
	}
	return rows
}
