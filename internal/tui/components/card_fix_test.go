package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

func init() {
	// Force TrueColor output so ANSI codes are generated in tests
	lipgloss.SetColorProfile(termenv.TrueColor)
}

func TestLayoutRowSumsToTotal(t *testing.T) {
	widths := LayoutRow(101, 4)
	sum := 0
	for _, w := range widths {
		sum += w
	}
	if sum != 101 || widths[0] != 26 || widths[3] != 25 {
		t.Errorf("LayoutRow(101, 4) = %v", widths)
	}
	if LayoutRow(10, 0) != nil {
		t.Error("LayoutRow with zero items should be nil")
	}
}

func TestCardRowBackgroundFill(t *testing.T) {
	theme.SetActive("flexoki-dark")

	shortCard := ContentCard("Short", "Content", 22)
	tallCard := ContentCard("Tall", "Line 1\nLine 2\nLine 3\nLine 4\nLine 5", 22)

	shortLines := len(strings.Split(shortCard, "\n"))
	tallLines := len(strings.Split(tallCard, "\n"))
	if shortLines >= tallLines {
		t.Fatal("short card should be shorter than tall card")
	}

	lines := strings.Split(CardRow([]string{tallCard, shortCard}), "\n")
	if len(lines) != tallLines {
		t.Fatalf("joined height = %d, want %d", len(lines), tallLines)
	}
	for i := shortLines; i < len(lines); i++ {
		if !strings.Contains(lines[i], "\x1b[") {
			t.Errorf("padding line %d has no styling: %q", i, lines[i])
		}
	}
}

func TestCardRowWidthConsistency(t *testing.T) {
	theme.SetActive("flexoki-dark")

	joined := CardRow([]string{
		ContentCard("Tall", "A\nB\nC\nD\nE\nF", 20),
		ContentCard("Short", "A", 30),
	})
	for i, line := range strings.Split(joined, "\n") {
		if w := lipgloss.Width(line); w != 50 {
			t.Errorf("line %d width = %d, want 50", i, w)
		}
	}
}

func TestTabVisualWidth(t *testing.T) {
	overview := Tabs[TabOverview]
	if got := TabVisualWidth(overview, true); got != len(overview.Name)+2 {
		t.Errorf("active Overview width = %d", got)
	}
	settings := Tabs[TabSettings]
	if got := TabVisualWidth(settings, false); got != len(settings.Name)+5 {
		t.Errorf("inactive Settings width = %d", got)
	}
	if TabIdxByKey('x') != TabSettings || TabIdxByKey('z') != -1 {
		t.Error("TabIdxByKey mismatch")
	}
}

func TestColorForRemaining(t *testing.T) {
	th := theme.Active
	tests := []struct {
		remaining float64
		want      lipgloss.Color
	}{
		{80, th.Green},
		{50, th.Yellow},
		{25, th.Orange},
		{10, th.Red},
		{0, th.Red},
	}
	for _, tt := range tests {
		if got := ColorForRemaining(tt.remaining); got != tt.want {
			t.Errorf("ColorForRemaining(%v) = %v, want %v", tt.remaining, got, tt.want)
		}
	}
}

func TestRateLimitBarCountdown(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	rl := model.RateLimitSnapshot{
		Kind:             model.WindowFiveHour,
		UsedPercent:      70,
		RemainingPercent: 30,
		ResetsAt:         now.Add(90 * time.Minute),
	}
	out := RateLimitBar(rl, now, 8, 20)
	if !strings.Contains(out, "5-hour") || !strings.Contains(out, "30% left") || !strings.Contains(out, "resets in 1h 30m") {
		t.Errorf("unexpected bar: %q", out)
	}

	rl.ResetsAt = time.Time{}
	if out := RateLimitBar(rl, now, 8, 20); !strings.Contains(out, "unknown") {
		t.Errorf("zero reset time should be unknown: %q", out)
	}
}

func TestBarChartFallsBackToSparkline(t *testing.T) {
	if got := BarChart(nil, nil, theme.Active.Accent, 40, 8); got != "" {
		t.Errorf("empty chart = %q", got)
	}
	spark := BarChart([]float64{1, 2, 3}, nil, theme.Active.Accent, 10, 8)
	if lipgloss.Height(spark) != 1 {
		t.Errorf("narrow chart should be a one-line sparkline, got %d lines", lipgloss.Height(spark))
	}
	chart := BarChart([]float64{1, 5, 3}, []string{"a", "b", "c"}, theme.Active.Accent, 40, 6)
	if lipgloss.Height(chart) < 4 {
		t.Errorf("chart too short:\n%s", chart)
	}
}

func TestChartTickStep(t *testing.T) {
	tests := []struct {
		max  float64
		want float64
	}{
		{0, 1},
		{10, 2},
		{100, 20},
		{1000, 200},
		{30, 5},
	}
	for _, tt := range tests {
		if got := chartTickStep(tt.max); got != tt.want {
			t.Errorf("chartTickStep(%v) = %v, want %v", tt.max, got, tt.want)
		}
	}
}

func TestHeatmapTrimsToWidth(t *testing.T) {
	weeks := make([][]model.HeatmapCell, 52)
	for i := range weeks {
		weeks[i] = make([]model.HeatmapCell, 7)
	}
	out := Heatmap(model.Heatmap{Weeks: weeks}, 24)
	lines := strings.Split(out, "\n")
	if len(lines) != 8 {
		t.Fatalf("heatmap has %d lines, want 8", len(lines))
	}
	// 4 label columns + 10 weeks of two cells each
	if w := lipgloss.Width(lines[0]); w != 24 {
		t.Errorf("row width = %d, want 24", w)
	}
}
