package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/pipeline"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Daily usage table",
	RunE:  runDaily,
}

func init() {
	rootCmd.AddCommand(dailyCmd)
}

func runDaily(cmd *cobra.Command, _ []string) error {
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

	since, until := window(time.Now(), loc)
	days := pipeline.AggregateDaily(scopedSessions(snap.Sessions), since, until, loc)

	if len(days) == 0 {
		fmt.Println("\n  No data for the selected period.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("DAILY USAGE  Last %dd", flagDays)))
	fmt.Println()

	rows := make([][]string, 0, len(days)+2)
	spark := make([]float64, 0, len(days))
	var totalTokens int64
	var totalCost float64
	for _, d := range days {
		cost := cli.FormatCost(d.EstimatedCost)
		if d.UsedFallbackPricing {
			cost += "*"
		}
		rows = append(rows, []string{
			d.Date.Format(pipeline.DayLayout),
			cli.FormatDayOfWeek(d.Date.Weekday()),
			cli.FormatNumber(int64(d.Sessions)),
			cli.FormatTokens(d.InputTokens),
			cli.FormatTokens(d.CachedInputTokens),
			cli.FormatTokens(d.OutputTokens),
			cli.FormatTokens(d.TotalTokens),
			cost,
		})
		spark = append(spark, float64(d.TotalTokens))
		totalTokens += d.TotalTokens
		totalCost += d.EstimatedCost
	}
	rows = append(rows, []string{"---"}, []string{
		"Total", "", "", "", "", "", cli.FormatTokens(totalTokens), cli.FormatCost(totalCost),
	})

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Date", "Day", "Sessions", "Input", "Cached", "Output", "Tokens", "Cost"},
		Rows:    rows,
	}))
	fmt.Printf("\n  %s\n\n", cli.RenderSparkline(spark))

	return nil
}
