package source

import (
	"encoding/json"

	"github.com/theirongolddev/cxburn/internal/model"
)

// Record types recognized in a Codex session log.
const (
	typeSessionMeta = "session_meta"
	typeTurnContext = "turn_context"
	typeEventMsg    = "event_msg"

	eventTokenCount = "token_count"
)

// RawEnvelope is one line of a Codex JSONL session file. The payload is
// decoded lazily once the record type is known.
type RawEnvelope struct {
	Timestamp string          `json:"timestamp,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RawSessionMeta is the payload of a session_meta record.
type RawSessionMeta struct {
	ID        string  `json:"id,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Cwd       string  `json:"cwd,omitempty"`
	Git       *RawGit `json:"git,omitempty"`
}

// RawGit holds repository details attached to session metadata.
type RawGit struct {
	RepositoryURL string `json:"repository_url,omitempty"`
}

// RawTurnContext is the payload of a turn_context record.
type RawTurnContext struct {
	Model string `json:"model,omitempty"`
	Cwd   string `json:"cwd,omitempty"`
}

// RawEventMsg is the payload of an event_msg record.
type RawEventMsg struct {
	Type       string         `json:"type"`
	Info       *RawTokenInfo  `json:"info,omitempty"`
	RateLimits *RawRateLimits `json:"rate_limits,omitempty"`
}

// RawTokenInfo wraps the cumulative usage counters of a token_count event.
type RawTokenInfo struct {
	TotalTokenUsage *RawTokenUsage `json:"total_token_usage,omitempty"`
}

// RawTokenUsage holds cumulative token counters. A missing total marks the
// record as unusable.
type RawTokenUsage struct {
	InputTokens           int64  `json:"input_tokens"`
	CachedInputTokens     int64  `json:"cached_input_tokens"`
	OutputTokens          int64  `json:"output_tokens"`
	ReasoningOutputTokens int64  `json:"reasoning_output_tokens"`
	TotalTokens           *int64 `json:"total_tokens"`
}

// RawRateLimits holds the primary and secondary rate-limit windows.
type RawRateLimits struct {
	Primary   *RawRateWindow `json:"primary,omitempty"`
	Secondary *RawRateWindow `json:"secondary,omitempty"`
}

// RawRateWindow is one rate-limit window; resets_at is unix seconds.
type RawRateWindow struct {
	UsedPercent   *float64 `json:"used_percent"`
	WindowMinutes *int     `json:"window_minutes"`
	ResetsAt      *float64 `json:"resets_at"`
}

// DiscoveredFile represents a JSONL file found during directory scanning.
type DiscoveredFile struct {
	Path        string
	Fingerprint model.Fingerprint
}
