// Package model defines domain types for cxburn sessions, rate limits and metrics.
package model

import "time"

// Fingerprint is the cheap change signal for a log file. Two equal
// fingerprints mean the file is treated as unchanged.
type Fingerprint struct {
	Size      int64 `json:"size"`
	ModTimeNs int64 `json:"mtime_ns"`
}

// Checkpoint is one observed cumulative token total.
type Checkpoint struct {
	Timestamp time.Time
	Total     int64
}

// SessionSummary is the cached, price-free result of parsing one session log.
type SessionSummary struct {
	SessionID   string    `json:"session_id"`
	Project     string    `json:"project,omitempty"`
	Model       string    `json:"model"`
	Timestamp   time.Time `json:"timestamp"`
	LatestUsage time.Time `json:"latest_usage,omitzero"`

	InputTokens       int64 `json:"input_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens"`
	OutputTokens      int64 `json:"output_tokens"`
	ReasoningTokens   int64 `json:"reasoning_tokens"`
	TotalTokens       int64 `json:"total_tokens"`
	TokensInLastHour  int64 `json:"tokens_in_last_hour"`
}

// HasProject reports whether the session resolved to a named project.
func (s SessionSummary) HasProject() bool {
	return s.Project != ""
}

// SessionUsage is a cost-annotated session, the unit every aggregate is built from.
type SessionUsage struct {
	SessionSummary

	FilePath            string  `json:"file_path"`
	PricingTier         string  `json:"pricing_tier"`
	EstimatedCost       float64 `json:"estimated_cost"`
	UsedFallbackPricing bool    `json:"used_fallback_pricing"`
}
