package pipeline

import (
	"sort"
	"time"

	"github.com/theirongolddev/cxburn/internal/model"
)

// FreshnessWindow is how old a rate-limit capture may be and still count as fresh.
const FreshnessWindow = 15 * time.Minute

// RateLimitSnapshots expands an event into one snapshot per recognised
// window, ordered by window length. Windows of any other length are dropped.
func RateLimitSnapshots(ev *model.RateLimitEvent) []model.RateLimitSnapshot {
	if ev == nil {
		return nil
	}

	var out []model.RateLimitSnapshot
	for _, w := range []*model.RateLimitWindow{ev.Primary, ev.Secondary} {
		if w == nil {
			continue
		}
		kind, ok := windowKind(w.WindowMinutes)
		if !ok {
			continue
		}
		used := min(max(w.UsedPercent, 0), 100)
		out = append(out, model.RateLimitSnapshot{
			Kind:             kind,
			WindowMinutes:    w.WindowMinutes,
			UsedPercent:      used,
			RemainingPercent: 100 - used,
			ResetsAt:         w.ResetsAt,
			CapturedAt:       ev.CapturedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WindowMinutes < out[j].WindowMinutes
	})
	return out
}

func windowKind(minutes int) (model.WindowKind, bool) {
	switch minutes {
	case model.FiveHourWindowMinutes:
		return model.WindowFiveHour, true
	case model.WeeklyWindowMinutes:
		return model.WindowWeekly, true
	default:
		return "", false
	}
}

// ClassifyFreshness reports how current a rate-limit capture is.
// A zero capture time means no rate-limit data has been seen.
func ClassifyFreshness(capturedAt, now time.Time) model.Freshness {
	if capturedAt.IsZero() {
		return model.FreshnessUnavailable
	}
	if now.Sub(capturedAt) <= FreshnessWindow {
		return model.FreshnessFresh
	}
	return model.FreshnessStale
}
