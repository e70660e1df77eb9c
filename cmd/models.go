package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/pipeline"
)

var modelsCmd = &cobra.Command{
	Use:     "models",
	Aliases: []string{"costs"},
	Short:   "Cost breakdown by pricing tier and token type",
	RunE:    runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
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
	models, totals := pipeline.AggregateModels(scopedSessions(snap.Sessions), since, until, appCfg.PricingTable())

	if len(models) == 0 {
		fmt.Println("\n  No model data in the selected time range.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("MODEL COSTS  Last %dd", flagDays)))
	fmt.Println()

	fallback := false
	rows := make([][]string, 0, len(models))
	for _, ms := range models {
		tier := ms.Tier
		if ms.UsedFallbackPricing {
			tier += "*"
			fallback = true
		}
		rows = append(rows, []string{
			tier,
			cli.FormatNumber(int64(ms.Sessions)),
			cli.FormatTokens(ms.InputTokens),
			cli.FormatTokens(ms.CachedInputTokens),
			cli.FormatTokens(ms.OutputTokens),
			cli.FormatCost(ms.EstimatedCost),
			fmt.Sprintf("%.1f%%", ms.SharePercent),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Tier", "Sessions", "Input", "Cached", "Output", "Cost", "Share"},
		Rows:    rows,
	}))
	fmt.Println()

	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "By token type",
		Headers: []string{"Type", "Cost"},
		Rows: [][]string{
			{"Input", cli.FormatCost(totals.InputCost)},
			{"Cached input", cli.FormatCost(totals.CachedInputCost)},
			{"Output", cli.FormatCost(totals.OutputCost)},
			{"---"},
			{"Total", cli.FormatCost(totals.TotalCost)},
		},
	}))
	if fallback {
		fmt.Println("  * priced with fallback rates for an unrecognized model")
	}
	fmt.Println()
	return nil
}
