package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/tui"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI dashboard",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	theme.SetActive(appCfg.Appearance.Theme)

	// Force TrueColor so background styling always emits ANSI codes.
	lipgloss.SetColorProfile(termenv.TrueColor)

	loc, err := location()
	if err != nil {
		return err
	}

	cachePath := config.ScanCachePath(appCfg)
	if flagNoCache {
		cachePath = ""
	}

	app := tui.NewApp(tui.Options{
		SessionsDir: config.SessionsDir(appCfg),
		CachePath:   cachePath,
		Workers:     appCfg.General.Workers,
		Days:        flagDays,
		Project:     flagProject,
		Location:    loc,
		Config:      appCfg,
		NeedSetup:   !config.Exists(),
	})
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
