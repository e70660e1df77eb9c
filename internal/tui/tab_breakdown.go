package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/pipeline"
	"github.com/theirongolddev/cxburn/internal/tui/components"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

func (a App) renderBreakdownTab(cw int) string {
	var b strings.Builder
	b.WriteString(components.ContentCard(fmt.Sprintf("Models [%dd]", a.days), a.modelsBody(components.CardInnerWidth(cw)), cw))
	b.WriteString("\n")

	if a.isCompactLayout() {
		b.WriteString(components.ContentCard("Projects", a.projectsBody(components.CardInnerWidth(cw)), cw))
		return b.String()
	}
	widths := components.LayoutRow(cw, 3)
	projW := widths[0] + widths[1]
	b.WriteString(components.CardRow([]string{
		components.ContentCard("Projects", a.projectsBody(components.CardInnerWidth(projW)), projW),
		components.ContentCard("Cost by token type", a.tokenCostBody(), widths[2]),
	}))
	return b.String()
}

func (a App) modelsBody(inner int) string {
	t := theme.Active
	header := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	row := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	if len(a.models) == 0 {
		return muted.Render("No sessions in this window")
	}

	nameW := max(inner-58, 14)
	lines := []string{header.Render(fmt.Sprintf("%-*s %8s %9s %9s %9s %9s %7s",
		nameW, "Tier", "Sessions", "Input", "Cached", "Output", "Cost", "Share"))}
	for _, m := range a.models {
		name := m.Tier
		if m.UsedFallbackPricing {
			name += "*"
		}
		lines = append(lines, row.Render(fmt.Sprintf("%-*s %8d %9s %9s %9s %9s %6.1f%%",
			nameW, truncStr(name, nameW), m.Sessions,
			cli.FormatTokens(m.InputTokens), cli.FormatTokens(m.CachedInputTokens),
			cli.FormatTokens(m.OutputTokens), cli.FormatCost(m.EstimatedCost), m.SharePercent)))
	}
	return strings.Join(lines, "\n")
}

func (a App) projectsBody(inner int) string {
	t := theme.Active
	header := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	row := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	bar := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)

	if len(a.projects) == 0 {
		return muted.Render("No sessions in this window")
	}

	var peak int64
	for _, p := range a.projects {
		peak = max(peak, p.TotalTokens)
	}

	barW := max(inner-52, 6)
	nameW := 20
	lines := []string{header.Render(fmt.Sprintf("%-*s %8s %8s %9s  %s", nameW, "Project", "Sessions", "Tokens", "Cost", ""))}
	limit := min(len(a.projects), 12)
	for _, p := range a.projects[:limit] {
		name := p.Project
		if name == "" {
			name = pipeline.ScopeUnassigned
		}
		filled := 0
		if peak > 0 {
			filled = int(float64(p.TotalTokens) / float64(peak) * float64(barW))
		}
		lines = append(lines, row.Render(fmt.Sprintf("%-*s %8d %8s %9s  ", nameW, truncStr(name, nameW),
			p.Sessions, cli.FormatTokens(p.TotalTokens), cli.FormatCost(p.EstimatedCost)))+
			bar.Render(strings.Repeat("█", filled)))
	}
	if rest := len(a.projects) - limit; rest > 0 {
		lines = append(lines, muted.Render(fmt.Sprintf("… %d more", rest)))
	}
	return strings.Join(lines, "\n")
}

func (a App) tokenCostBody() string {
	t := theme.Active
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Bold(true)

	c := a.typeCosts
	share := func(v float64) string {
		if c.TotalCost <= 0 {
			return ""
		}
		return fmt.Sprintf(" (%.0f%%)", v/c.TotalCost*100)
	}
	rows := []string{
		label.Render("Input         ") + value.Render(cli.FormatCost(c.InputCost)) + label.Render(share(c.InputCost)),
		label.Render("Cached input  ") + value.Render(cli.FormatCost(c.CachedInputCost)) + label.Render(share(c.CachedInputCost)),
		label.Render("Output        ") + value.Render(cli.FormatCost(c.OutputCost)) + label.Render(share(c.OutputCost)),
		"",
		label.Render("Total         ") + value.Render(cli.FormatCost(c.TotalCost)),
	}
	if a.totals.Fallback {
		rows = append(rows, label.Render("* fallback pricing"))
	}
	return strings.Join(rows, "\n")
}
