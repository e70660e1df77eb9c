package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/tui/components"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

// settingsState holds the settings tab state.
type settingsState struct {
	cursor  int
	saveErr error
	saved   bool
}

const (
	settingsDays = iota
	settingsTheme
	settingsAutoRefresh
	settingsInterval
	settingsAlerts
	settingsFieldCount
)

var refreshChoices = []time.Duration{15 * time.Second, 30 * time.Second, time.Minute, 5 * time.Minute}

func (a App) updateSettingsKey(key string) (next tea.Model, cmd tea.Cmd, handled bool) {
	switch key {
	case "j", "down":
		a.settings.cursor = min(a.settings.cursor+1, settingsFieldCount-1)
		return a, nil, true
	case "k", "up":
		a.settings.cursor = max(a.settings.cursor-1, 0)
		return a, nil, true
	case "enter", " ":
		a.cycleSetting(a.settings.cursor)
		a.settings.saveErr = config.Save(a.cfg)
		a.settings.saved = a.settings.saveErr == nil
		return a, nil, true
	}
	return a, nil, false
}

// cycleSetting advances one field to its next value and applies it to the
// running dashboard.
func (a *App) cycleSetting(field int) {
	switch field {
	case settingsDays:
		a.cfg.General.DefaultDays = nextDays(a.cfg.General.DefaultDays)
	case settingsTheme:
		a.cfg.Appearance.Theme = theme.Next(theme.Active.Name)
		theme.SetActive(a.cfg.Appearance.Theme)
		a.spinner.Style = a.spinner.Style.Foreground(theme.Active.Accent).Background(theme.Active.Surface)
	case settingsAutoRefresh:
		a.autoRefresh = !a.autoRefresh
		a.cfg.TUI.AutoRefresh = a.autoRefresh
	case settingsInterval:
		next := refreshChoices[0]
		for _, d := range refreshChoices {
			if d > a.refreshInterval {
				next = d
				break
			}
		}
		a.refreshInterval = next
		a.cfg.TUI.RefreshInterval = config.Duration{Duration: next}
	case settingsAlerts:
		a.cfg.Alerts.Enabled = !a.cfg.Alerts.Enabled
	}
}

func (a App) renderSettingsTab(cw int) string {
	t := theme.Active
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selected := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.SurfaceHover).Bold(true)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	green := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface)
	warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)

	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	editable := [settingsFieldCount][2]string{
		{"Default days", fmt.Sprintf("%d", a.cfg.General.DefaultDays)},
		{"Theme", theme.Active.Name},
		{"Auto refresh", onOff(a.autoRefresh)},
		{"Refresh every", a.refreshInterval.String()},
		{"Rate-limit alerts", onOff(a.cfg.Alerts.Enabled)},
	}

	var b strings.Builder
	for i, f := range editable {
		line := fmt.Sprintf("%-20s %s", f[0], f[1])
		if i == a.settings.cursor {
			b.WriteString(selected.Render("› " + line))
		} else {
			b.WriteString(label.Render("  "+fmt.Sprintf("%-20s ", f[0])) + value.Render(f[1]))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	tz := a.cfg.General.Timezone
	if tz == "" {
		tz = "local"
	}
	info := [][2]string{
		{"Sessions dir", a.sessionsDir},
		{"Scan cache", config.ScanCachePath(a.cfg)},
		{"Alert ledger", config.LedgerPath(a.cfg)},
		{"Timezone", tz},
		{"Config file", config.ConfigPath()},
	}
	inner := components.CardInnerWidth(cw)
	for _, f := range info {
		b.WriteString(dim.Render(fmt.Sprintf("  %-20s ", f[0])) + label.Render(truncStr(f[1], inner-23)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case a.settings.saveErr != nil:
		b.WriteString(warn.Render("Could not save config: " + a.settings.saveErr.Error()))
	case a.settings.saved:
		b.WriteString(green.Render("Saved"))
	default:
		b.WriteString(dim.Render("j/k to move, enter to change"))
	}
	return components.ContentCard("Settings", b.String(), cw)
}
