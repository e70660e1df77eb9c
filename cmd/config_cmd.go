// Package cmd implements the cxburn CLI commands.
package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg := appCfg

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Default days:      %d\n", cfg.General.DefaultDays)
	fmt.Printf("    Sessions dir:      %s\n", config.SessionsDir(cfg))
	fmt.Printf("    Scan cache:        %s\n", config.ScanCachePath(cfg))
	tz := cfg.General.Timezone
	if tz == "" {
		tz = "local"
	}
	fmt.Printf("    Timezone:          %s\n", tz)
	if cfg.General.Workers > 0 {
		fmt.Printf("    Workers:           %d\n", cfg.General.Workers)
	}
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:       %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Interval:      %s\n", cfg.Daemon.Interval)
	fmt.Printf("    Debounce:      %s\n", cfg.Daemon.Debounce)
	fmt.Printf("    Watch files:   %v\n", cfg.Daemon.Watch)
	fmt.Printf("    Events buffer: %d\n", cfg.Daemon.EventsBuffer)
	fmt.Println()

	fmt.Println("  [Alerts]")
	fmt.Printf("    Enabled:    %v\n", cfg.Alerts.Enabled)
	thresholds := make([]string, 0, len(cfg.Alerts.Thresholds))
	for _, t := range cfg.Alerts.Thresholds {
		thresholds = append(thresholds, fmt.Sprintf("%.0f%%", t))
	}
	fmt.Printf("    Thresholds: %s\n", strings.Join(thresholds, ", "))
	fmt.Printf("    Ledger:     %s\n", config.LedgerPath(cfg))
	fmt.Println()

	fmt.Println("  [TUI]")
	fmt.Printf("    Auto refresh: %v (every %s)\n", cfg.TUI.AutoRefresh, cfg.TUI.RefreshInterval)
	fmt.Printf("    Theme:        %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  [Pricing] (USD per million tokens: input / cached input / output)")
	table := cfg.PricingTable()
	for _, tier := range config.Tiers {
		r := table.Rates(tier)
		mark := ""
		if _, ok := cfg.Pricing.Overrides[string(tier)]; ok {
			mark = "  (override)"
		}
		fmt.Printf("    %-22s %.3f / %.3f / %.3f%s\n", tier, r.InputPerMTok, r.CachedInputPerMTok, r.OutputPerMTok, mark)
	}
	if unknown := unknownOverrides(cfg); len(unknown) > 0 {
		fmt.Printf("    Ignored overrides: %s\n", strings.Join(unknown, ", "))
	}
	fmt.Println()
	return nil
}

func unknownOverrides(cfg config.Config) []string {
	known := make(map[string]bool)
	for _, t := range config.Tiers {
		known[string(t)] = true
	}
	var out []string
	for k := range cfg.Pricing.Overrides {
		if !known[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
