// Package alerts decides when a rate-limit window is low enough to notify
// about, and makes sure each notification is sent once.
package alerts

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/theirongolddev/cxburn/internal/model"
)

// DefaultThresholds are the remaining-percent levels that trigger an alert.
var DefaultThresholds = []float64{50, 25, 10}

// Alert is one threshold crossing for one window instance.
type Alert struct {
	Key              string           `json:"key"`
	Kind             model.WindowKind `json:"kind"`
	Threshold        float64          `json:"threshold"`
	RemainingPercent float64          `json:"remaining_percent"`
	ResetsAt         time.Time        `json:"resets_at"`
}

// Title is a short headline for the alert.
func (a Alert) Title() string {
	return a.Kind.Label() + " window low"
}

// Body describes the remaining budget and reset time in loc.
func (a Alert) Body(loc *time.Location) string {
	return fmt.Sprintf("%d%% remaining. Resets at %s.",
		int(math.Round(a.RemainingPercent)), a.ResetsAt.In(loc).Format("15:04"))
}

// AlertKey identifies a threshold for a single window instance. The reset
// time distinguishes one window from the next.
func AlertKey(kind model.WindowKind, resetsAt time.Time, threshold float64) string {
	return fmt.Sprintf("rate-%s-%d-%d", kind, resetsAt.Unix(), int(threshold))
}

// Policy holds the thresholds, highest first.
type Policy struct {
	thresholds []float64
}

// NewPolicy builds a policy from thresholds in (0, 100]. Out-of-range and
// duplicate values are ignored; an empty result falls back to DefaultThresholds.
func NewPolicy(thresholds []float64) Policy {
	valid := lo.Uniq(lo.Filter(thresholds, func(t float64, _ int) bool {
		return t > 0 && t <= 100
	}))
	if len(valid) == 0 {
		valid = append([]float64(nil), DefaultThresholds...)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(valid)))
	return Policy{thresholds: valid}
}

// Thresholds returns the configured thresholds, highest first.
func (p Policy) Thresholds() []float64 {
	return append([]float64(nil), p.thresholds...)
}

// Crossed returns an alert for every threshold the window is at or below,
// least severe first.
func (p Policy) Crossed(s model.RateLimitSnapshot) []Alert {
	remaining := min(max(s.RemainingPercent, 0), 100)

	var out []Alert
	for _, t := range p.thresholds {
		if remaining > t {
			continue
		}
		out = append(out, Alert{
			Key:              AlertKey(s.Kind, s.ResetsAt, t),
			Kind:             s.Kind,
			Threshold:        t,
			RemainingPercent: remaining,
			ResetsAt:         s.ResetsAt,
		})
	}
	return out
}
