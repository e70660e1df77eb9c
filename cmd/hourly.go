package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/pipeline"
)

var hourlyCmd = &cobra.Command{
	Use:   "hourly",
	Short: "Current hour versus typical, and activity by hour of day",
	RunE:  runHourly,
}

func init() {
	rootCmd.AddCommand(hourlyCmd)
}

func runHourly(cmd *cobra.Command, _ []string) error {
	loc, err := location()
	if err != nil {
		return err
	}
	snap, err := loadData(cmd.Context())
	if err != nil {
		return err
	}
	if len(snap.Sessions) == 0 {
		fmt.Println("\n  No sessions found.")
		return nil
	}

	now := time.Now()
	sessions := scopedSessions(snap.Sessions)
	pace := pipeline.CurrentVsTypicalHour(sessions, now, loc)

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("ACTIVITY BY HOUR  Last %dd (%s)", flagDays, loc)))
	fmt.Println()

	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "This hour",
		Headers: []string{"Metric", "Value"},
		Rows:    paceRows(pace, loc),
	}))
	fmt.Println()

	since, until := window(now, loc)
	hours := pipeline.AggregateHourly(sessions, since, until, loc)

	var peak int64
	peakHour := 0
	for _, h := range hours {
		if h.Tokens > peak {
			peak = h.Tokens
			peakHour = h.Hour
		}
	}

	for _, h := range hours {
		label := fmt.Sprintf("%02d:00 │ %6s │", h.Hour, cli.FormatTokens(h.Tokens))
		fmt.Println(cli.RenderHorizontalBar(label, float64(h.Tokens), float64(peak), 40))
	}

	if peak > 0 {
		fmt.Printf("\n  Peak: %02d:00 (%s tokens)\n\n", peakHour, cli.FormatTokens(peak))
	}
	return nil
}
