package components

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	peak := slices.Max(values)
	if peak == 0 {
		peak = 1
	}

	var buf strings.Builder
	buf.Grow(len(values) * 3)
	for _, v := range values {
		idx := int(v / peak * float64(len(sparkBlocks)-1))
		idx = min(max(idx, 0), len(sparkBlocks)-1)
		buf.WriteRune(sparkBlocks[idx])
	}
	return lipgloss.NewStyle().Foreground(color).Background(theme.Active.Surface).Render(buf.String())
}

// BarChart renders a vertical bar chart with a labelled Y axis. Series too
// dense for the width are sampled down; tiny areas fall back to a sparkline.
func BarChart(values []float64, labels []string, color lipgloss.Color, width, height int) string {
	if len(values) == 0 {
		return ""
	}
	if width < 15 || height < 3 {
		return Sparkline(values, color)
	}
	t := theme.Active

	peak := slices.Max(values)
	if peak == 0 {
		peak = 1
	}

	step := chartTickStep(peak)
	maxIntervals := max(height/2, 2)
	for int(math.Ceil(peak/step)) > maxIntervals {
		step *= 2
	}
	ceiling := math.Ceil(peak/step) * step
	intervals := max(int(math.Round(ceiling/step)), 1)
	rowsPerTick := max(height/intervals, 2)
	chartH := rowsPerTick * intervals

	yLabelW := max(len(formatChartLabel(ceiling))+1, 4)
	ticks := make(map[int]string, intervals)
	for i := 1; i <= intervals; i++ {
		ticks[i*rowsPerTick] = formatChartLabel(step * float64(i))
	}

	chartW := max(width-yLabelW-1, 5)
	values, labels, barW, gap := fitBars(values, labels, chartW)
	n := len(values)
	axisLen := n*barW + max(0, n-1)*gap

	axisStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	blank := lipgloss.NewStyle().Background(t.Surface)
	eighths := []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	var b strings.Builder
	for row := chartH; row >= 1; row-- {
		top := ceiling * float64(row) / float64(chartH)
		bottom := ceiling * float64(row-1) / float64(chartH)

		barColor := t.Accent
		switch frac := float64(row) / float64(chartH); {
		case frac > 0.8:
			barColor = t.AccentBright
		case frac > 0.5:
			barColor = color
		}
		barStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface)

		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s│", yLabelW, ticks[row])))
		for i, v := range values {
			if i > 0 && gap > 0 {
				b.WriteString(blank.Render(strings.Repeat(" ", gap)))
			}
			switch {
			case v >= top:
				b.WriteString(barStyle.Render(strings.Repeat("█", barW)))
			case v > bottom:
				idx := min(max(int((v-bottom)/(top-bottom)*8), 1), 8)
				b.WriteString(barStyle.Render(strings.Repeat(string(eighths[idx]), barW)))
			default:
				b.WriteString(blank.Render(strings.Repeat(" ", barW)))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(axisStyle.Render(fmt.Sprintf("%*s└%s", yLabelW, "0", strings.Repeat("─", axisLen))))
	if len(labels) == n {
		b.WriteString("\n")
		b.WriteString(blank.Render(strings.Repeat(" ", yLabelW+1)))
		b.WriteString(axisStyle.Render(xAxisLabels(labels, barW+gap, axisLen)))
	}
	return b.String()
}

// fitBars picks a bar width for chartW, sampling the series when even
// two-column bars would not fit.
func fitBars(values []float64, labels []string, chartW int) ([]float64, []string, int, int) {
	n := len(values)
	if n == 1 {
		return values, labels, min(chartW, 6), 0
	}
	barW := (chartW - (n - 1)) / n
	if barW >= 2 {
		return values, labels, min(barW, 6), 1
	}

	keep := max((chartW+1)/3, 2)
	sampled := make([]float64, keep)
	var sampledLabels []string
	if len(labels) == n {
		sampledLabels = make([]string, keep)
	}
	for i := range keep {
		src := i * (n - 1) / (keep - 1)
		sampled[i] = values[src]
		if sampledLabels != nil {
			sampledLabels[i] = labels[src]
		}
	}
	return sampled, sampledLabels, 2, 1
}

// xAxisLabels places labels under their bars, skipping any that would
// overlap the previous one. The last label is always attempted.
func xAxisLabels(labels []string, stride, axisLen int) string {
	buf := []byte(strings.Repeat(" ", axisLen))
	lastEnd := -1
	place := func(i int) {
		lbl := labels[i]
		pos := i * stride
		if pos+len(lbl) > axisLen {
			pos = axisLen - len(lbl)
		}
		if pos < 0 || pos <= lastEnd {
			return
		}
		copy(buf[pos:], lbl)
		lastEnd = pos + len(lbl)
	}
	for i := range labels {
		place(i)
	}
	return strings.TrimRight(string(buf), " ")
}

// Heatmap renders the most recent weeks of hm that fit in width, one row per
// weekday Monday first.
func Heatmap(hm model.Heatmap, width int) string {
	if len(hm.Weeks) == 0 {
		return ""
	}
	t := theme.Active
	const labelW = 4
	weeks := hm.Weeks
	if fit := (width - labelW) / 2; fit > 0 && len(weeks) > fit {
		weeks = weeks[len(weeks)-fit:]
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	blank := lipgloss.NewStyle().Background(t.Surface)
	dayNames := [7]string{"Mon", "", "Wed", "", "Fri", "", "Sun"}

	var b strings.Builder
	for d := range 7 {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", labelW, dayNames[d])))
		for _, week := range weeks {
			if d >= len(week) || week[d].IsFuture {
				b.WriteString(blank.Render("  "))
				continue
			}
			cell := lipgloss.NewStyle().Foreground(t.Heat(week[d].Level)).Background(t.Surface)
			b.WriteString(cell.Render("■ "))
		}
		b.WriteString("\n")
	}

	b.WriteString(labelStyle.Render(strings.Repeat(" ", labelW) + "less "))
	for level := range 5 {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Heat(level)).Background(t.Surface).Render("■ "))
	}
	b.WriteString(labelStyle.Render("more"))
	return b.String()
}

// chartTickStep computes a round tick interval targeting about five ticks.
func chartTickStep(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	rough := maxVal / 5
	base := math.Pow(10, math.Floor(math.Log10(rough)))
	switch frac := rough / base; {
	case frac < 1.5:
		return base
	case frac < 3.5:
		return 2 * base
	default:
		return 5 * base
	}
}

func formatChartLabel(v float64) string {
	scaled := func(div float64, suffix string) string {
		if v == math.Trunc(v/div)*div {
			return fmt.Sprintf("%.0f%s", v/div, suffix)
		}
		return fmt.Sprintf("%.1f%s", v/div, suffix)
	}
	switch {
	case v >= 1e9:
		return scaled(1e9, "B")
	case v >= 1e6:
		return scaled(1e6, "M")
	case v >= 1e3:
		return scaled(1e3, "k")
	case v >= 1:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
