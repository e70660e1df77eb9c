package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/pipeline"
)

var (
	flagDays        int
	flagProject     string
	flagNoCache     bool
	flagSessionsDir string
	flagQuiet       bool
	flagTZ          string
)

// appCfg is the loaded config file merged with flags.
var appCfg = config.DefaultConfig()

var rootCmd = &cobra.Command{
	Use:               "cxburn",
	Short:             "Codex Usage Metrics CLI",
	Long:              "Analyze your Codex usage: tokens, estimated costs, pace, streaks and rate limits.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runSummary,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&flagDays, "days", "n", 30, "Time window in days")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "Scope to a project name, or \"unassigned\"")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Skip the scan cache, reparse everything")
	rootCmd.PersistentFlags().StringVarP(&flagSessionsDir, "sessions-dir", "d", "", "Codex sessions directory (default $CODEX_HOME/sessions)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().StringVar(&flagTZ, "tz", "", "IANA timezone for day boundaries (default local)")
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("sessions-dir") {
		cfg.General.SessionsDir = flagSessionsDir
	}
	if flags.Changed("tz") {
		cfg.General.Timezone = flagTZ
	}
	if !flags.Changed("days") && cfg.General.DefaultDays > 0 {
		flagDays = cfg.General.DefaultDays
	}
	if flagDays < 1 {
		return fmt.Errorf("--days must be at least 1, got %d", flagDays)
	}

	appCfg = cfg
	return nil
}

func location() (*time.Location, error) {
	return config.Location(appCfg)
}

// loadData is the shared data loading path used by all commands.
// The scan cache makes repeat runs cheap.
func loadData(ctx context.Context) (*pipeline.Snapshot, error) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning sessions...\n")
	}

	cachePath := config.ScanCachePath(appCfg)
	if flagNoCache {
		cachePath = ""
	}

	scanner := pipeline.NewScanner(pipeline.ScannerConfig{
		Root:      config.SessionsDir(appCfg),
		CachePath: cachePath,
		Workers:   appCfg.General.Workers,
		Pricing:   appCfg.PricingTable(),
		Progress: func(current, total int) {
			if flagQuiet {
				return
			}
			if current%100 == 0 || current == total {
				fmt.Fprintf(os.Stderr, "\r  Parsing [%d/%d]", current, total)
			}
		},
		Logf: func(format string, args ...any) {
			if !flagQuiet {
				fmt.Fprintf(os.Stderr, "\n  "+format+"\n", args...)
			}
		},
	})

	snap, err := scanner.Scan(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	if !flagQuiet && snap.TotalFiles > 0 {
		if snap.ScannedFiles == 0 {
			fmt.Fprintf(os.Stderr, "\r  Loaded %s sessions from cache    \n",
				cli.FormatNumber(int64(len(snap.Sessions))))
		} else {
			fmt.Fprintf(os.Stderr, "\r  %s cached + %d reparsed    \n",
				cli.FormatNumber(int64(snap.CacheHits)), snap.ScannedFiles)
		}
	}
	return snap, nil
}

// scopedSessions applies --project.
func scopedSessions(sessions []model.SessionUsage) []model.SessionUsage {
	return pipeline.FilterByScope(sessions, flagProject)
}

// window returns [since, until) covering the last flagDays calendar days
// including today.
func window(now time.Time, loc *time.Location) (time.Time, time.Time) {
	today := pipeline.StartOfDay(now, loc)
	return today.AddDate(0, 0, -(flagDays - 1)), today.AddDate(0, 0, 1)
}

func printFileWarnings(snap *pipeline.Snapshot) {
	if snap.FileErrors > 0 {
		fmt.Fprintf(os.Stderr, "\n  %d files could not be read\n", snap.FileErrors)
	}
	if snap.ParseErrors > 0 && !flagQuiet {
		fmt.Fprintf(os.Stderr, "  %d malformed log lines skipped\n", snap.ParseErrors)
	}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

func projectLabel(p string) string {
	if p == "" {
		return pipeline.ScopeUnassigned
	}
	return p
}
