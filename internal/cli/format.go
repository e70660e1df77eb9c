// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/theirongolddev/cxburn/internal/model"
)

// FormatTokens formats a token count with human-readable suffixes.
// e.g., 1234 -> "1.2K", 1234567 -> "1.2M", 1234567890 -> "1.2B"
func FormatTokens(n int64) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// FormatCost formats a USD cost value.
func FormatCost(cost float64) string {
	if cost >= 1000 {
		return "$" + FormatNumber(int64(math.Round(cost)))
	}
	if cost >= 100 {
		return fmt.Sprintf("$%.0f", cost)
	}
	if cost >= 10 {
		return fmt.Sprintf("$%.1f", cost)
	}
	return fmt.Sprintf("$%.2f", cost)
}

// FormatDuration formats a duration as hours and minutes.
// e.g., 1h2m5s -> "1h 2m", 2m5s -> "2m", 45s -> "45s"
func FormatDuration(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs <= 0 {
		return "0s"
	}

	hours := secs / 3600
	mins := (secs % 3600) / 60

	if hours >= 48 {
		return fmt.Sprintf("%dd %dh", hours/24, hours%24)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatNumber adds comma separators to an integer.
func FormatNumber(n int64) string {
	return humanize.Comma(n)
}

// FormatBytes formats a byte size, e.g. 2048 -> "2.0 kB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// FormatRelative describes t relative to now, e.g. "3 hours ago" or
// "2 hours from now".
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatPercent formats a 0-100 value as a whole percentage.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}

// FormatDelta formats a cost delta with sign.
func FormatDelta(current, previous float64) string {
	delta := current - previous
	if delta >= 0 {
		return "+" + FormatCost(delta)
	}
	return "-" + FormatCost(-delta)
}

// FormatTrend renders a trend as an arrow and a signed percent.
func FormatTrend(t model.Trend) string {
	switch t.Direction {
	case model.TrendUp:
		return fmt.Sprintf("▲ +%d%%", t.Percent)
	case model.TrendDown:
		return fmt.Sprintf("▼ -%d%%", t.Percent)
	default:
		return "― 0%"
	}
}

// FormatPace renders current/typical as "1.8x typical", or "no history".
func FormatPace(p model.HourPace) string {
	ratio, ok := p.Ratio()
	if !ok {
		return "no history"
	}
	return fmt.Sprintf("%.1fx typical", ratio)
}

// FormatDayOfWeek returns a 3-letter day abbreviation.
func FormatDayOfWeek(d time.Weekday) string {
	if d < time.Sunday || d > time.Saturday {
		return "???"
	}
	return d.String()[:3]
}
