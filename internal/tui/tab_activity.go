package tui

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/tui/components"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

func (a App) renderActivityTab(cw int) string {
	t := theme.Active
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var active int
	var total int64
	for _, week := range a.heatmap.Weeks {
		for _, cell := range week {
			if cell.Tokens > 0 {
				active++
				total += cell.Tokens
			}
		}
	}
	heat := components.Heatmap(a.heatmap, components.CardInnerWidth(cw)) + "\n\n" +
		muted.Render(fmt.Sprintf("%s tokens on %d active days", cli.FormatTokens(total), active))

	values := make([]float64, len(a.hourly))
	labels := make([]string, len(a.hourly))
	for i, h := range a.hourly {
		values[i] = float64(h.Tokens)
		labels[i] = fmt.Sprintf("%02d", h.Hour)
	}

	var b strings.Builder
	b.WriteString(components.ContentCard("Activity (52 weeks)", heat, cw))
	b.WriteString("\n")

	if a.isCompactLayout() {
		chart := components.BarChart(values, labels, t.AccentBright, components.CardInnerWidth(cw), 8)
		b.WriteString(components.ContentCard(fmt.Sprintf("Tokens by hour [%dd]", a.days), chart, cw))
		return b.String()
	}

	widths := components.LayoutRow(cw, 3)
	chartW := widths[0] + widths[1]
	chart := components.BarChart(values, labels, t.AccentBright, components.CardInnerWidth(chartW), 8)
	b.WriteString(components.CardRow([]string{
		components.ContentCard(fmt.Sprintf("Tokens by hour [%dd]", a.days), chart, chartW),
		components.ContentCard("Busiest hours", a.busiestHoursBody(), widths[2]),
	}))
	return b.String()
}

// busiestHoursBody lists the top hours of the day by token volume.
func (a App) busiestHoursBody() string {
	t := theme.Active
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Bold(true)

	ranked := make([]int, 0, len(a.hourly))
	for i, h := range a.hourly {
		if h.Tokens > 0 {
			ranked = append(ranked, i)
		}
	}
	if len(ranked) == 0 {
		return label.Render("No activity in this window")
	}
	// Stable, so ties keep the earlier hour first.
	slices.SortStableFunc(ranked, func(x, y int) int {
		return cmp.Compare(a.hourly[y].Tokens, a.hourly[x].Tokens)
	})

	lines := make([]string, 0, 5)
	for _, idx := range ranked[:min(len(ranked), 5)] {
		h := a.hourly[idx]
		lines = append(lines, value.Render(fmt.Sprintf("%02d:00", h.Hour))+
			label.Render(fmt.Sprintf("  %7s  %d sessions", cli.FormatTokens(h.Tokens), h.Sessions)))
	}
	return strings.Join(lines, "\n")
}
