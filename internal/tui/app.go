// Package tui provides the interactive Bubble Tea dashboard for cxburn.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/pipeline"
	"github.com/theirongolddev/cxburn/internal/tui/components"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

// DataLoadedMsg is sent when the first scan finishes.
type DataLoadedMsg struct {
	Snapshot *pipeline.Snapshot
	Err      error
	LoadTime time.Duration
}

// ProgressMsg reports file parsing progress.
type ProgressMsg struct {
	Current int
	Total   int
}

// RefreshDataMsg is sent when a background rescan completes. Gen identifies
// the refresh that produced it; results from a superseded refresh are dropped.
type RefreshDataMsg struct {
	Snapshot *pipeline.Snapshot
	Err      error
	LoadTime time.Duration
	Gen      uint64
}

type tickMsg struct{}

// Options configures a dashboard.
type Options struct {
	SessionsDir string
	// CachePath is the scan cache file. Empty keeps the cache in memory.
	CachePath string
	Workers   int
	Days      int
	Project   string
	Location  *time.Location
	Config    config.Config
	// NeedSetup shows the first-run form once the first scan is in.
	NeedSetup bool
}

// windowTotals sums the sessions inside the selected day window.
type windowTotals struct {
	Sessions          int
	InputTokens       int64
	CachedInputTokens int64
	OutputTokens      int64
	ReasoningTokens   int64
	TotalTokens       int64
	Cost              float64
	Fallback          bool
}

// App is the root Bubble Tea model.
type App struct {
	// Data
	snap     *pipeline.Snapshot
	loaded   bool
	loadTime time.Duration
	loadErr  error

	// Auto-refresh state
	autoRefresh     bool
	refreshInterval time.Duration
	lastRefresh     time.Time
	refreshing      bool
	refreshErr      error
	refreshGen      uint64
	refreshCtx      context.Context
	refreshCancel   context.CancelFunc

	// Derived for the current scope and window
	windowed  []model.SessionUsage // newest first
	daily     []model.DailyUsage
	hourly    []model.HourlyStats
	analytics model.Analytics
	heatmap   model.Heatmap
	models    []model.ModelStats
	typeCosts pipeline.TokenTypeCosts
	projects  []model.ProjectStats
	scopes    []string
	totals    windowTotals

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool

	// Filter state
	days    int
	project string
	loc     *time.Location

	// Per-tab state
	sessState sessionsState
	settings  settingsState

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals *setupValues // shared with the form across model copies
	needSetup bool

	// Loading: the scanner streams ProgressMsg into loadSub while loading is set
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg
	loading     *atomic.Bool

	// ctx scopes every scan; stop cancels it on quit.
	ctx  context.Context
	stop context.CancelFunc

	cfg         config.Config
	sessionsDir string
	scanner     *pipeline.Scanner
	now         func() time.Time
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180

	minRefreshInterval = 10 * time.Second
	minContentHeight   = 5
	scrollOverhead     = 10
)

var dayChoices = []int{7, 30, 90}

// NewApp creates a dashboard model.
func NewApp(opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	days := opts.Days
	if days < 1 {
		days = 30
	}
	interval := opts.Config.TUI.RefreshInterval.Duration
	if interval < minRefreshInterval {
		interval = 30 * time.Second
	}

	sub := make(chan tea.Msg, 1)
	loading := &atomic.Bool{}
	loading.Store(true)

	scanner := pipeline.NewScanner(pipeline.ScannerConfig{
		Root:      opts.SessionsDir,
		CachePath: opts.CachePath,
		Workers:   opts.Workers,
		Pricing:   opts.Config.PricingTable(),
		Progress: func(current, total int) {
			if !loading.Load() {
				return
			}
			// Non-blocking: a full channel means the UI has not caught up yet.
			select {
			case sub <- ProgressMsg{Current: current, Total: total}:
			default:
			}
		},
		// Warnings would corrupt the alternate screen; counts are shown instead.
		Logf: func(string, ...any) {},
	})

	ctx, stop := context.WithCancel(context.Background())

	return App{
		ctx:             ctx,
		stop:            stop,
		autoRefresh:     opts.Config.TUI.AutoRefresh,
		refreshInterval: interval,
		days:            days,
		project:         opts.Project,
		loc:             loc,
		needSetup:       opts.NeedSetup,
		spinner:         sp,
		loadSub:         sub,
		loading:         loading,
		cfg:             opts.Config,
		sessionsDir:     opts.SessionsDir,
		scanner:         scanner,
		now:             time.Now,
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		loadDataCmd(a.ctx, a.scanner, a.now, a.loadSub),
		a.spinner.Tick,
		tickCmd(),
	)
}

func (a *App) recompute() {
	if a.snap == nil {
		return
	}
	now := a.now()
	loc := a.loc

	scoped := pipeline.FilterByScope(a.snap.Sessions, a.project)
	byDay := pipeline.IndexByDay(pipeline.AggregateDaily(scoped, time.Time{}, time.Time{}, loc), loc)
	a.analytics = pipeline.Analyze(scoped, byDay, now, loc)
	a.heatmap = pipeline.BuildHeatmap(byDay, now, loc)
	a.scopes = pipeline.ProjectScopes(a.snap.Sessions)

	since, until := a.window(now)
	a.daily = pipeline.AggregateDaily(scoped, since, until, loc)
	a.hourly = pipeline.AggregateHourly(scoped, since, until, loc)
	a.models, a.typeCosts = pipeline.AggregateModels(scoped, since, until, a.cfg.PricingTable())
	a.projects = pipeline.AggregateProjects(scoped, since, until)

	a.windowed = slices.Clone(pipeline.FilterByTime(scoped, since, until))
	slices.SortStableFunc(a.windowed, func(x, y model.SessionUsage) int {
		return y.Timestamp.Compare(x.Timestamp)
	})

	var tot windowTotals
	for _, s := range a.windowed {
		tot.Sessions++
		tot.InputTokens += s.InputTokens
		tot.CachedInputTokens += s.CachedInputTokens
		tot.OutputTokens += s.OutputTokens
		tot.ReasoningTokens += s.ReasoningTokens
		tot.TotalTokens += s.TotalTokens
		tot.Cost += s.EstimatedCost
		tot.Fallback = tot.Fallback || s.UsedFallbackPricing
	}
	a.totals = tot

	filtered := a.searchFilteredSessions()
	a.sessState.cursor = min(a.sessState.cursor, len(filtered)-1)
	a.sessState.cursor = max(a.sessState.cursor, 0)
	a.sessState.detailScroll = 0
}

// window returns [since, until) covering the last a.days calendar days
// including today.
func (a App) window(now time.Time) (time.Time, time.Time) {
	today := pipeline.StartOfDay(now, a.loc)
	return today.AddDate(0, 0, -(a.days - 1)), today.AddDate(0, 0, 1)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		return a.updateMouse(msg)

	case tea.KeyMsg:
		return a.updateKey(msg)

	case DataLoadedMsg:
		a.loading.Store(false)
		a.loaded = true
		a.loadTime = msg.LoadTime
		a.lastRefresh = a.now()
		if msg.Err != nil {
			a.loadErr = msg.Err
			return a, nil
		}
		a.snap = msg.Snapshot
		a.recompute()

		if a.needSetup {
			vals := newSetupValues(a.cfg)
			a.setupVals = &vals
			a.setupForm = newSetupForm(len(a.snap.Sessions), a.sessionsDir, a.setupVals)
			if a.width > 0 {
				a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
			}
			return a, a.setupForm.Init()
		}
		return a, nil

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case spinner.TickMsg:
		if !a.loaded {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if a.loaded && a.loadErr == nil && a.autoRefresh && !a.refreshing &&
			a.now().Sub(a.lastRefresh) >= a.refreshInterval {
			cmds = append(cmds, a.startRefresh())
		}
		return a, tea.Batch(cmds...)

	case RefreshDataMsg:
		if msg.Gen != a.refreshGen {
			return a, nil
		}
		a.refreshing = false
		if a.refreshCancel != nil {
			a.refreshCancel()
			a.refreshCancel = nil
		}
		a.lastRefresh = a.now()
		if errors.Is(msg.Err, context.Canceled) {
			return a, nil
		}
		if a.loadErr != nil {
			if msg.Err != nil {
				a.loadErr = msg.Err
				return a, nil
			}
			a.loadErr = nil
		}
		a.refreshErr = msg.Err
		if msg.Err == nil && msg.Snapshot != nil {
			a.snap = msg.Snapshot
			a.loadTime = msg.LoadTime
			a.recompute()
		}
		return a, nil
	}

	// Forward anything else (cursor blinks and the like) to the setup form.
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	return a, nil
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !a.loaded || a.showHelp || a.setupForm != nil {
		return a, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if a.activeTab == components.TabSessions && !a.sessState.searching {
			a.moveSessionCursor(-1)
		}
	case tea.MouseButtonWheelDown:
		if a.activeTab == components.TabSessions && !a.sessState.searching {
			a.moveSessionCursor(1)
		}
	case tea.MouseButtonLeft:
		if msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
			}
		}
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		a.stop()
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	if a.activeTab == components.TabSessions && a.sessState.searching {
		return a.updateSessionsSearch(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch a.activeTab {
	case components.TabSessions:
		if next, cmd, handled := a.updateSessionsKey(key); handled {
			return next, cmd
		}
	case components.TabSettings:
		if next, cmd, handled := a.updateSettingsKey(key); handled {
			return next, cmd
		}
	}

	switch key {
	case "q":
		a.stop()
		return a, tea.Quit
	case "r":
		return a, a.startRefresh()
	case "R":
		a.autoRefresh = !a.autoRefresh
		a.cfg.TUI.AutoRefresh = a.autoRefresh
		a.settings.saveErr = config.Save(a.cfg)
	case "p":
		a.project = nextScope(a.scopes, a.project)
		a.sessState.cursor = 0
		a.recompute()
	case "d":
		a.days = nextDays(a.days)
		a.recompute()
	case "left":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
	default:
		if r := []rune(key); len(r) == 1 {
			if idx := components.TabIdxByKey(r[0]); idx >= 0 {
				a.activeTab = idx
			}
		}
	}
	return a, nil
}

// startRefresh cancels any in-flight rescan and starts a new one.
func (a *App) startRefresh() tea.Cmd {
	if a.refreshCancel != nil {
		a.refreshCancel()
	}
	a.refreshCtx, a.refreshCancel = context.WithCancel(a.ctx)
	a.refreshGen++
	a.refreshing = true
	return refreshDataCmd(a.refreshCtx, a.scanner, a.now, a.refreshGen)
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		a.applySetup()
		a.needSetup = false
		a.setupForm = nil
		a.recompute()
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}
	return a, cmd
}

// nextScope cycles through scopes, treating "" as ScopeAll.
func nextScope(scopes []string, current string) string {
	if len(scopes) == 0 {
		return ""
	}
	if current == "" {
		current = pipeline.ScopeAll
	}
	idx := slices.Index(scopes, current)
	next := scopes[(idx+1)%len(scopes)]
	if next == pipeline.ScopeAll {
		return ""
	}
	return next
}

// nextDays returns the next preset window after days.
func nextDays(days int) int {
	for _, d := range dayChoices {
		if d > days {
			return d
		}
	}
	return dayChoices[0]
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	switch {
	case a.width == 0:
		return ""
	case a.width < minTerminalWidth:
		return a.viewTooNarrow()
	case !a.loaded:
		return a.viewLoading()
	case a.loadErr != nil:
		return a.viewError()
	case a.setupForm != nil:
		return a.setupForm.View()
	case a.showHelp:
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  cxburn needs at least %d columns.\n",
		a.width, minTerminalWidth)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) centeredCard(body string) string {
	t := theme.Active
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3).
		Render(body)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewLoading() string {
	t := theme.Active
	logo := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	count := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logo.Render("◈ cxburn"))
	b.WriteString(muted.Render(" · Codex Usage Metrics"))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())

	if a.progressMax > 0 {
		barW := min(max(a.width-40, 20), 40)
		b.WriteString(muted.Render(" Parsing sessions\n\n"))
		b.WriteString(components.ProgressBar(float64(a.progress)/float64(a.progressMax), barW))
		b.WriteString("\n")
		b.WriteString(count.Render(cli.FormatNumber(int64(a.progress))))
		b.WriteString(muted.Render(" / "))
		b.WriteString(count.Render(cli.FormatNumber(int64(a.progressMax))))
	} else {
		b.WriteString(muted.Render(" Discovering sessions..."))
	}
	return a.centeredCard(b.String())
}

func (a App) viewError() string {
	t := theme.Active
	title := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Bold(true)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	return a.centeredCard(
		title.Render("Could not load Codex sessions") + "\n\n" +
			muted.Render(a.loadErr.Error()) + "\n\n" +
			muted.Render("Press r to retry, q to quit"))
}

func (a App) viewHelp() string {
	t := theme.Active
	title := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	section := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	desc := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	groups := []struct {
		name     string
		bindings [][2]string
	}{
		{"Navigation", [][2]string{
			{"o a b s x", "Jump to tab"},
			{"← →", "Previous / Next tab"},
			{"j k", "Navigate lists"},
			{"J K", "Scroll detail pane"},
		}},
		{"Filters", [][2]string{
			{"d", "Cycle 7 / 30 / 90 days"},
			{"p", "Cycle project scope"},
			{"/", "Search sessions"},
		}},
		{"Actions", [][2]string{
			{"r", "Rescan now"},
			{"R", "Toggle auto-refresh"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}

	var b strings.Builder
	b.WriteString(title.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, g := range groups {
		b.WriteString("\n")
		b.WriteString(section.Render(g.name))
		b.WriteString("\n")
		for _, bind := range g.bindings {
			fmt.Fprintf(&b, "  %s  %s\n", keyStyle.Render(fmt.Sprintf("%-10s", bind[0])), desc.Render(bind[1]))
		}
	}
	b.WriteString("\n")
	b.WriteString(dim.Render("Press any key to close"))
	return a.centeredCard(b.String())
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	now := a.now()

	pill := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	accent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	filter := pill.Render(" ") + accent.Render(fmt.Sprintf("%dd", a.days))
	if a.project != "" {
		filter += pill.Render(" │ ") + accent.Render(a.project)
	}
	if a.snap.FileErrors > 0 {
		filter += pill.Render(fmt.Sprintf(" │ %d unreadable files", a.snap.FileErrors))
	}
	header := components.RenderTabBar(a.activeTab, w) + "\n" +
		lipgloss.NewStyle().Background(t.Surface).Width(w).Render(filter)

	statusBar := components.RenderStatusBar(w, components.Status{
		LastScan:    a.snap.ScannedAt,
		Now:         now,
		Refreshing:  a.refreshing,
		AutoRefresh: a.autoRefresh,
		Freshness:   a.freshness(now),
		RateLimits:  a.snap.RateLimits,
		Err:         a.refreshErr,
	})

	contentH := max(a.height-lipgloss.Height(header)-lipgloss.Height(statusBar), minContentHeight)

	var content string
	switch a.activeTab {
	case components.TabOverview:
		content = a.renderOverviewTab(cw)
	case components.TabActivity:
		content = a.renderActivityTab(cw)
	case components.TabBreakdown:
		content = a.renderBreakdownTab(cw)
	case components.TabSessions:
		content = a.renderSessionsTab(cw, contentH)
	case components.TabSettings:
		content = a.renderSettingsTab(cw)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (a App) freshness(now time.Time) model.Freshness {
	if a.snap == nil || a.snap.RateLimitEvent == nil {
		return model.FreshnessUnavailable
	}
	return pipeline.ClassifyFreshness(a.snap.RateLimitEvent.CapturedAt, now)
}

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes follow RenderTabBar: tabs separated by a single column.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		w := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+w {
			return i
		}
		pos += w + 1
	}
	return -1
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// loadDataCmd runs the first scan in a goroutine. Progress arrives through
// sub ahead of the final DataLoadedMsg.
func loadDataCmd(ctx context.Context, scanner *pipeline.Scanner, now func() time.Time, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			start := time.Now()
			snap, err := scanner.Scan(ctx, now())
			sub <- DataLoadedMsg{Snapshot: snap, Err: err, LoadTime: time.Since(start)}
		}()
		return <-sub
	}
}

// waitForLoadMsg blocks until the next message from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// refreshDataCmd rescans in the background without progress UI.
func refreshDataCmd(ctx context.Context, scanner *pipeline.Scanner, now func() time.Time, gen uint64) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		snap, err := scanner.Scan(ctx, now())
		return RefreshDataMsg{Snapshot: snap, Err: err, LoadTime: time.Since(start), Gen: gen}
	}
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with the background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line, lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}
