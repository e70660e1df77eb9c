package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/alerts"
	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/pipeline"
	"github.com/theirongolddev/cxburn/internal/store"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show Codex rate-limit windows and their freshness",
	RunE:  runLimits,
}

var flagLimitsNotify bool

func init() {
	limitsCmd.Flags().BoolVar(&flagLimitsNotify, "notify", false, "Run the alert policy and log any new low-window alerts")
	rootCmd.AddCommand(limitsCmd)
}

func runLimits(cmd *cobra.Command, _ []string) error {
	loc, err := location()
	if err != nil {
		return err
	}
	snap, err := loadData(cmd.Context())
	if err != nil {
		return err
	}
	now := time.Now()

	fmt.Println()
	fmt.Println(cli.RenderTitle("CODEX RATE LIMITS"))
	fmt.Println()

	if len(snap.RateLimits) == 0 {
		fmt.Println("  No rate-limit data found in session logs.")
		fmt.Println()
		return nil
	}
	printRateLimits(snap, now, loc)

	if !flagLimitsNotify {
		return nil
	}

	ledger, err := store.OpenLedger(config.LedgerPath(appCfg))
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	notifier := alerts.LogNotifier{
		Logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
		Loc: loc,
	}
	d := alerts.NewDispatcher(alerts.NewPolicy(appCfg.Alerts.Thresholds), ledger, notifier)
	sent, err := d.Evaluate(cmd.Context(), snap.RateLimits, now)
	if err != nil {
		return fmt.Errorf("evaluating alerts: %w", err)
	}
	if len(sent) == 0 {
		fmt.Println("  No new alerts.")
	}
	fmt.Println()
	return nil
}

func printRateLimits(snap *pipeline.Snapshot, now time.Time, loc *time.Location) {
	rows := make([][]string, 0, len(snap.RateLimits))
	for _, rl := range snap.RateLimits {
		resets := "unknown"
		if !rl.ResetsAt.IsZero() {
			if d := rl.ResetsAt.Sub(now); d > 0 {
				resets = fmt.Sprintf("in %s (%s)", cli.FormatDuration(d), rl.ResetsAt.In(loc).Format("Mon 15:04"))
			} else {
				resets = "reset"
			}
		}
		rows = append(rows, []string{
			rl.Kind.Label(),
			cli.FormatPercent(rl.UsedPercent),
			cli.RenderRemainingBar(rl.RemainingPercent, 20),
			resets,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Rate Limits",
		Headers: []string{"Window", "Used", "Remaining", "Resets"},
		Rows:    rows,
	}))

	freshness := model.FreshnessUnavailable
	var captured time.Time
	if snap.RateLimitEvent != nil {
		captured = snap.RateLimitEvent.CapturedAt
		freshness = pipeline.ClassifyFreshness(captured, now)
	}
	line := fmt.Sprintf("Captured %s (%s)", cli.FormatRelative(captured, now), freshness)
	if freshness != model.FreshnessFresh {
		line = lipgloss.NewStyle().Foreground(cli.ColorOrange).Render(line)
	}
	fmt.Printf("  %s\n", line)
}
