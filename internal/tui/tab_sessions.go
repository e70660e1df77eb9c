package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/pipeline"
	"github.com/theirongolddev/cxburn/internal/tui/components"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

// Split is the zero value so it is the default.
const (
	sessViewSplit = iota
	sessViewDetail
)

// sessionsState holds the sessions tab state.
type sessionsState struct {
	cursor       int
	offset       int // first visible list row
	viewMode     int
	detailScroll int

	searching   bool
	searchInput textinput.Model
	searchQuery string
}

func newSearchInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "session id, project or model"
	ti.Prompt = "/ "
	ti.CharLimit = 80
	ti.Width = 40
	return ti
}

// filterSessionsBySearch keeps sessions whose id, project, model or tier
// contains query, case-insensitively.
func filterSessionsBySearch(sessions []model.SessionUsage, query string) []model.SessionUsage {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return sessions
	}
	var out []model.SessionUsage
	for _, s := range sessions {
		for _, field := range []string{s.SessionID, s.Project, s.Model, s.PricingTier} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func (a App) searchFilteredSessions() []model.SessionUsage {
	return filterSessionsBySearch(a.windowed, a.sessState.searchQuery)
}

func (a *App) moveSessionCursor(delta int) {
	n := len(a.searchFilteredSessions())
	a.sessState.cursor = min(max(a.sessState.cursor+delta, 0), max(n-1, 0))
	a.sessState.detailScroll = 0
}

// updateSessionsSearch handles keys while the search input is focused.
func (a App) updateSessionsSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.sessState.searchQuery = strings.TrimSpace(a.sessState.searchInput.Value())
		a.sessState.searching = false
		a.sessState.cursor = 0
		a.sessState.offset = 0
		a.sessState.detailScroll = 0
		return a, nil
	case "esc":
		a.sessState.searching = false
		return a, nil
	}
	var cmd tea.Cmd
	a.sessState.searchInput, cmd = a.sessState.searchInput.Update(msg)
	return a, cmd
}

// updateSessionsKey handles sessions tab bindings. handled is false for keys
// that fall through to the global bindings.
func (a App) updateSessionsKey(key string) (next tea.Model, cmd tea.Cmd, handled bool) {
	compact := a.isCompactLayout()
	halfPage := max((a.height-scrollOverhead)/2, 1)

	switch key {
	case "/":
		a.sessState.searching = true
		a.sessState.searchInput = newSearchInput()
		a.sessState.searchInput.SetValue(a.sessState.searchQuery)
		focus := a.sessState.searchInput.Focus()
		return a, focus, true
	case "q":
		if !compact && a.sessState.viewMode == sessViewDetail {
			a.sessState.viewMode = sessViewSplit
			return a, nil, true
		}
		return a, nil, false
	case "enter", "f":
		if !compact && a.sessState.viewMode == sessViewSplit {
			a.sessState.viewMode = sessViewDetail
		}
		return a, nil, true
	case "esc":
		switch {
		case a.sessState.searchQuery != "":
			a.sessState.searchQuery = ""
			a.sessState.cursor = 0
			a.sessState.offset = 0
		case a.sessState.viewMode == sessViewDetail:
			a.sessState.viewMode = sessViewSplit
		}
		return a, nil, true
	case "j", "down":
		a.moveSessionCursor(1)
		return a, nil, true
	case "k", "up":
		a.moveSessionCursor(-1)
		return a, nil, true
	case "g":
		a.moveSessionCursor(-a.sessState.cursor)
		return a, nil, true
	case "G":
		a.moveSessionCursor(len(a.windowed))
		return a, nil, true
	case "J":
		a.sessState.detailScroll++
		return a, nil, true
	case "K":
		a.sessState.detailScroll = max(a.sessState.detailScroll-1, 0)
		return a, nil, true
	case "ctrl+d":
		a.sessState.detailScroll += halfPage
		return a, nil, true
	case "ctrl+u":
		a.sessState.detailScroll = max(a.sessState.detailScroll-halfPage, 0)
		return a, nil, true
	}
	return a, nil, false
}

func (a App) renderSessionsTab(cw, h int) string {
	t := theme.Active
	sessions := a.searchFilteredSessions()
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var top string
	switch {
	case a.sessState.searching:
		top = a.sessState.searchInput.View() + "\n"
	case a.sessState.searchQuery != "":
		top = muted.Render(fmt.Sprintf("filter: %q  (%d matches, esc clears)", a.sessState.searchQuery, len(sessions))) + "\n"
	}
	h -= lipgloss.Height(top)
	if top == "" {
		h++
	}

	if len(sessions) == 0 {
		return top + components.ContentCard("Sessions", muted.Render("No sessions found"), cw)
	}

	sel := sessions[min(a.sessState.cursor, len(sessions)-1)]
	title := "Session " + shortID(sel.SessionID)

	if a.isCompactLayout() || a.sessState.viewMode == sessViewDetail {
		if a.isCompactLayout() {
			return top + a.renderSessionList(sessions, cw, h)
		}
		return top + components.ContentCard(title, a.renderDetailBody(sel, cw, h), cw)
	}

	leftW := max(cw/3, 36)
	rightW := cw - leftW
	return top + components.CardRow([]string{
		a.renderSessionList(sessions, leftW, h),
		components.ContentCard(title, a.renderDetailBody(sel, rightW, h), rightW),
	})
}

func (a App) renderSessionList(sessions []model.SessionUsage, w, h int) string {
	t := theme.Active
	ss := a.sessState
	inner := components.CardInnerWidth(w)

	row := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selected := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.SurfaceHover).Bold(true)

	visible := max(h-4, 3) // border and title
	offset := ss.offset
	if ss.cursor < offset {
		offset = ss.cursor
	}
	if ss.cursor >= offset+visible {
		offset = ss.cursor - visible + 1
	}
	end := min(offset+visible, len(sessions))

	var body strings.Builder
	for i := offset; i < end; i++ {
		s := sessions[i]
		line := fmt.Sprintf("%-12s %7s %8s", s.Timestamp.In(a.loc).Format("Jan 02 15:04"),
			cli.FormatTokens(s.TotalTokens), cli.FormatCost(s.EstimatedCost))
		if extra := inner - len(line) - 1; extra > 3 {
			line += " " + truncStr(projectName(s.Project), extra)
		}
		line = fmt.Sprintf("%-*s", inner, truncStr(line, inner))
		if i == ss.cursor {
			body.WriteString(selected.Render(line))
		} else {
			body.WriteString(row.Render(line))
		}
		if i < end-1 {
			body.WriteString("\n")
		}
	}
	return components.ContentCard(fmt.Sprintf("Sessions [%dd] %d", a.days, len(sessions)), body.String(), w)
}

func (a App) renderDetailBody(s model.SessionUsage, w, h int) string {
	t := theme.Active
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	accent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	inner := components.CardInnerWidth(w)

	field := func(name, v string) string {
		return label.Render(fmt.Sprintf("%-16s", name)) + value.Render(truncStr(v, inner-16))
	}

	tier := s.PricingTier
	if s.UsedFallbackPricing {
		tier += " (fallback pricing)"
	}
	lines := []string{
		field("Session", s.SessionID),
		field("Project", projectName(s.Project)),
		field("Model", s.Model),
		field("Pricing tier", tier),
		field("Started", s.Timestamp.In(a.loc).Format("Mon Jan 02 2006 15:04")),
	}
	if !s.LatestUsage.IsZero() {
		lines = append(lines,
			field("Last usage", s.LatestUsage.In(a.loc).Format("Mon Jan 02 2006 15:04")),
			field("Span", cli.FormatDuration(s.LatestUsage.Sub(s.Timestamp))))
	}
	lines = append(lines,
		"",
		accent.Render("Tokens"),
		field("Input", cli.FormatNumber(s.InputTokens)),
		field("Cached input", cli.FormatNumber(s.CachedInputTokens)),
		field("Output", cli.FormatNumber(s.OutputTokens)),
		field("Reasoning", cli.FormatNumber(s.ReasoningTokens)),
		field("Total", cli.FormatNumber(s.TotalTokens)),
		field("Last hour", cli.FormatNumber(s.TokensInLastHour)),
		"",
		accent.Render("Cost"),
		field("Estimated", cli.FormatCost(s.EstimatedCost)),
		"",
		field("File", filepath.Base(s.FilePath)),
	)

	scroll := min(a.sessState.detailScroll, max(len(lines)-1, 0))
	lines = lines[scroll:]
	if visible := max(h-4, 3); len(lines) > visible {
		lines = lines[:visible]
	}
	return strings.Join(lines, "\n")
}

func projectName(p string) string {
	if p == "" {
		return pipeline.ScopeUnassigned
	}
	return p
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
