package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

// Status is what the bottom bar reports.
type Status struct {
	LastScan    time.Time
	Now         time.Time
	Refreshing  bool
	AutoRefresh bool
	Freshness   model.Freshness
	RateLimits  []model.RateLimitSnapshot
	Err         error
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, s Status) string {
	t := theme.Active

	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	key := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	warn := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)
	space := base.Render(" ")

	left := space + key.Render("?") + base.Render(" help  ") +
		key.Render("r") + base.Render(" refresh  ") +
		key.Render("q") + base.Render(" quit")

	var mid []string
	for _, rl := range s.RateLimits {
		mid = append(mid, CompactRateBar(rl.Kind.Label(), rl.RemainingPercent, 22))
	}
	if len(s.RateLimits) > 0 && s.Freshness == model.FreshnessStale {
		mid = append(mid, warn.Render("stale"))
	}

	var right string
	switch {
	case s.Err != nil:
		right = warn.Render("refresh failed")
	case s.Refreshing:
		right = key.Render("refreshing…")
	default:
		right = base.Render("scanned " + cli.FormatRelative(s.LastScan, s.Now))
	}
	if s.AutoRefresh {
		right += base.Render(" · auto")
	}
	right += space

	middle := strings.Join(mid, space+space)
	gap := width - lipgloss.Width(left) - lipgloss.Width(middle) - lipgloss.Width(right)
	if gap < 2 {
		middle = ""
		gap = max(width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	}
	leftGap := gap / 2
	return lipgloss.NewStyle().Background(t.Surface).Width(width).Render(
		left + base.Render(strings.Repeat(" ", leftGap)) +
			middle + base.Render(strings.Repeat(" ", gap-leftGap)) + right)
}
