package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

// ProgressBar renders a loading bar for a 0-1 fraction with a percentage.
func ProgressBar(pct float64, width int) string {
	t := theme.Active
	filled := min(max(int(pct*float64(width)), 0), width)

	filledStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	emptyStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)

	return filledStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", width-filled)) +
		pctStyle.Render(fmt.Sprintf(" %.0f%%", pct*100))
}

// ColorForRemaining maps a remaining percentage (0-100) onto the alert
// threshold bands.
func ColorForRemaining(remaining float64) lipgloss.Color {
	t := theme.Active
	switch {
	case remaining <= 10:
		return t.Red
	case remaining <= 25:
		return t.Orange
	case remaining <= 50:
		return t.Yellow
	default:
		return t.Green
	}
}

func remainingBar(remaining float64, width int) string {
	bar := progress.New(
		progress.WithSolidFill(string(ColorForRemaining(remaining))),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(theme.Active.TextDim)
	return bar.ViewAs(min(max(remaining, 0), 100) / 100)
}

// RateLimitBar renders one window as label, remaining bar, percentage left
// and a reset countdown relative to now.
func RateLimitBar(rl model.RateLimitSnapshot, now time.Time, labelW, barWidth int) string {
	t := theme.Active
	color := ColorForRemaining(rl.RemainingPercent)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true)
	countdownStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	space := lipgloss.NewStyle().Background(t.Surface)

	countdown := "reset time unknown"
	if !rl.ResetsAt.IsZero() {
		if d := rl.ResetsAt.Sub(now); d > 0 {
			countdown = "resets in " + cli.FormatDuration(d)
		} else {
			countdown = "reset"
		}
	}

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, rl.Kind.Label())) +
		space.Render(" ") +
		remainingBar(rl.RemainingPercent, barWidth) +
		space.Render(" ") +
		pctStyle.Render(fmt.Sprintf("%3.0f%% left", rl.RemainingPercent)) +
		space.Render("  ") +
		countdownStyle.Render(countdown)
}

// CompactRateBar renders a status-bar-sized remaining indicator.
func CompactRateBar(label string, remaining float64, width int) string {
	t := theme.Active
	barW := max(width-lipgloss.Width(label)-6, 4)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(ColorForRemaining(remaining)).Background(t.Surface).Bold(true)
	space := lipgloss.NewStyle().Background(t.Surface)

	return labelStyle.Render(label) +
		space.Render(" ") +
		remainingBar(remaining, barW) +
		space.Render(" ") +
		pctStyle.Render(fmt.Sprintf("%3.0f%%", remaining))
}
