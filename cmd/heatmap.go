package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/pipeline"
)

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Token activity heatmap for the last year",
	RunE:  runHeatmap,
}

func init() {
	rootCmd.AddCommand(heatmapCmd)
}

func runHeatmap(cmd *cobra.Command, _ []string) error {
	loc, err := location()
	if err != nil {
		return err
	}
	snap, err := loadData(cmd.Context())
	if err != nil {
		return err
	}

	now := time.Now()
	start, end := pipeline.VisibleRange(now, loc)
	days := pipeline.AggregateDaily(scopedSessions(snap.Sessions), start, end, loc)
	hm := pipeline.BuildHeatmap(pipeline.IndexByDay(days, loc), now, loc)

	var total int64
	for _, d := range days {
		total += d.TotalTokens
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("ACTIVITY  %s – %s", start.Format("Jan 2006"), now.In(loc).Format("Jan 2006"))))
	fmt.Println()
	fmt.Print(cli.RenderHeatmap(hm))
	fmt.Printf("\n  %s tokens on %d active days\n\n", cli.FormatTokens(total), len(days))
	return nil
}
