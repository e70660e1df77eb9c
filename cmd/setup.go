package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/source"
	"github.com/theirongolddev/cxburn/internal/tui"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	theme.SetActive(appCfg.Appearance.Theme)

	dir := config.SessionsDir(appCfg)
	files, err := source.ScanDir(dir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", dir, err)
	}

	if _, err := tui.RunSetup(appCfg, len(files), dir); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	fmt.Printf("\n  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `cxburn` for a summary or `cxburn tui` for the dashboard.")
	fmt.Println()
	return nil
}
