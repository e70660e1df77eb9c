package model

import (
	"fmt"
	"time"
)

// Fixed rate-limit window lengths reported by the agent.
const (
	FiveHourWindowMinutes = 300
	WeeklyWindowMinutes   = 10080
)

// WindowKind names a rate-limit window.
type WindowKind string

// Window kinds surfaced to consumers.
const (
	WindowFiveHour WindowKind = "five_hour"
	WindowWeekly   WindowKind = "weekly"
)

// Label returns a short human label.
func (k WindowKind) Label() string {
	switch k {
	case WindowFiveHour:
		return "5-hour"
	case WindowWeekly:
		return "Weekly"
	default:
		return string(k)
	}
}

// RateLimitWindow is one window payload from a token_count event.
type RateLimitWindow struct {
	UsedPercent   float64   `json:"used_percent"`
	WindowMinutes int       `json:"window_minutes"`
	ResetsAt      time.Time `json:"resets_at"`
}

// RateLimitEvent is the latest rate-limit state captured from a file.
type RateLimitEvent struct {
	CapturedAt time.Time        `json:"captured_at"`
	Primary    *RateLimitWindow `json:"primary,omitempty"`
	Secondary  *RateLimitWindow `json:"secondary,omitempty"`
}

// RateLimitSnapshot is a normalized view of one window.
type RateLimitSnapshot struct {
	Kind             WindowKind `json:"kind"`
	WindowMinutes    int        `json:"window_minutes"`
	UsedPercent      float64    `json:"used_percent"`
	RemainingPercent float64    `json:"remaining_percent"`
	ResetsAt         time.Time  `json:"resets_at"`
	CapturedAt       time.Time  `json:"captured_at"`
}

// String formats the snapshot for logs.
func (s RateLimitSnapshot) String() string {
	return fmt.Sprintf("%s %.0f%% left (resets %s)", s.Kind.Label(), s.RemainingPercent, s.ResetsAt.Format(time.RFC3339))
}

// Freshness classifies how recent the latest rate-limit capture is.
type Freshness string

// Freshness states.
const (
	FreshnessFresh       Freshness = "fresh"
	FreshnessStale       Freshness = "stale"
	FreshnessUnavailable Freshness = "unavailable"
)
