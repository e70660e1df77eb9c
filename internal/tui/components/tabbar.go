package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name   string
	Key    rune
	KeyPos int // index of the shortcut letter in Name, -1 if absent
}

// Tab indexes.
const (
	TabOverview = iota
	TabActivity
	TabBreakdown
	TabSessions
	TabSettings
)

// Tabs defines all available tabs.
var Tabs = []Tab{
	{Name: "Overview", Key: 'o', KeyPos: 0},
	{Name: "Activity", Key: 'a', KeyPos: 0},
	{Name: "Breakdown", Key: 'b', KeyPos: 0},
	{Name: "Sessions", Key: 's', KeyPos: 0},
	{Name: "Settings", Key: 'x', KeyPos: -1},
}

func renderTab(tab Tab, active bool) string {
	t := theme.Active

	if active {
		return lipgloss.NewStyle().
			Foreground(t.AccentBright).
			Background(t.SurfaceHover).
			Bold(true).
			Padding(0, 1).
			Render(tab.Name)
	}

	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	key := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true).Underline(true)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	pad := base.Render(" ")

	if tab.KeyPos >= 0 && tab.KeyPos < len(tab.Name) {
		return pad +
			base.Render(tab.Name[:tab.KeyPos]) +
			key.Render(tab.Name[tab.KeyPos:tab.KeyPos+1]) +
			base.Render(tab.Name[tab.KeyPos+1:]) +
			pad
	}
	return pad + base.Render(tab.Name) +
		dim.Render("[") + key.Render(string(tab.Key)) + dim.Render("]") + pad
}

// TabVisualWidth returns the rendered width of a tab.
func TabVisualWidth(tab Tab, active bool) int {
	return lipgloss.Width(renderTab(tab, active))
}

// RenderTabBar renders the tab bar with the given active index.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active
	sep := lipgloss.NewStyle().Foreground(t.Border).Background(t.Surface).Render("│")

	parts := make([]string, len(Tabs))
	for i, tab := range Tabs {
		parts[i] = renderTab(tab, i == activeIdx)
	}
	return lipgloss.NewStyle().
		Background(t.Surface).
		Width(width).
		Render(strings.Join(parts, sep))
}

// TabIdxByKey returns the tab index for a key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
