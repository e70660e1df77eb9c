package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 2, 8, 12, 30, 0, 0, time.UTC)

// writeSession creates a temp JSONL file and returns a DiscoveredFile for it.
func writeSession(t *testing.T, lines ...string) DiscoveredFile {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rollout-abc.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return DiscoveredFile{Path: path, Fingerprint: FingerprintOf(fi)}
}

func tokenCount(ts string, input, cached, output, total int64) string {
	return fmt.Sprintf(`{"timestamp":%q,"type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":%d,"cached_input_tokens":%d,"output_tokens":%d,"reasoning_output_tokens":0,"total_tokens":%d}},"rate_limits":null}}`,
		ts, input, cached, output, total)
}

func rateLimits(ts string, primaryUsed, secondaryUsed float64) string {
	tsField := ""
	if ts != "" {
		tsField = fmt.Sprintf(`"timestamp":%q,`, ts)
	}
	return fmt.Sprintf(`{%s"type":"event_msg","payload":{"type":"token_count","info":null,"rate_limits":{"primary":{"used_percent":%g,"window_minutes":300,"resets_at":1766000000},"secondary":{"used_percent":%g,"window_minutes":10080,"resets_at":1766600000}}}}`,
		tsField, primaryUsed, secondaryUsed)
}

func TestParseFile_EndToEnd(t *testing.T) {
	df := writeSession(t,
		`{"timestamp":"2026-02-08T12:00:00Z","type":"session_meta","payload":{"id":"s1","timestamp":"2026-02-08T12:00:00.000Z","cwd":"/Users/dev/projects/pulse","git":{"repository_url":"https://github.com/acme/codex-pulse.git"}}}`,
		`{"timestamp":"2026-02-08T12:00:00Z","type":"turn_context","payload":{"model":"gpt-5.3-codex","cwd":"/Users/dev/other"}}`,
		`{"timestamp":"2026-02-08T12:00:00Z","type":"response_item","payload":{"type":"message","content":"hello"}}`,
		tokenCount("2026-02-08T12:00:01Z", 80, 0, 20, 100),
		rateLimits("2026-02-08T12:00:02Z", 10, 20),
		`{"timestamp":"2026-02-08T12:00:03Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":200,"cached_input_tokens":50,"output_tokens":90,"reasoning_output_tokens":10,"total_tokens":300}},"rate_limits":{"primary":{"used_percent":37.5,"window_minutes":300,"resets_at":1766001234},"secondary":{"used_percent":12.5,"window_minutes":10080,"resets_at":1766601234}}}}`,
	)

	result := ParseFile(context.Background(), df, testNow)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	s := result.Summary
	if s == nil {
		t.Fatal("Summary = nil, want summary")
	}

	if s.SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", s.SessionID)
	}
	if s.Project != "codex-pulse" {
		t.Errorf("Project = %q, want codex-pulse", s.Project)
	}
	if s.Model != "gpt-5.3-codex" {
		t.Errorf("Model = %q, want gpt-5.3-codex", s.Model)
	}
	if !s.Timestamp.Equal(time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v, want 12:00:00", s.Timestamp)
	}
	if s.TotalTokens != 300 {
		t.Errorf("TotalTokens = %d, want 300", s.TotalTokens)
	}
	if s.InputTokens != 200 || s.CachedInputTokens != 50 || s.OutputTokens != 90 || s.ReasoningTokens != 10 {
		t.Errorf("tokens = %d/%d/%d/%d, want 200/50/90/10",
			s.InputTokens, s.CachedInputTokens, s.OutputTokens, s.ReasoningTokens)
	}
	if !s.LatestUsage.Equal(time.Date(2026, 2, 8, 12, 0, 3, 0, time.UTC)) {
		t.Errorf("LatestUsage = %v, want 12:00:03", s.LatestUsage)
	}
	if s.TokensInLastHour != 300 {
		t.Errorf("TokensInLastHour = %d, want 300", s.TokensInLastHour)
	}

	rl := result.RateLimit
	if rl == nil || rl.Primary == nil || rl.Secondary == nil {
		t.Fatalf("RateLimit = %+v, want both windows", rl)
	}
	if rl.Primary.UsedPercent != 37.5 {
		t.Errorf("Primary.UsedPercent = %v, want 37.5 (latest event)", rl.Primary.UsedPercent)
	}
	if rl.Primary.ResetsAt.Unix() != 1766001234 {
		t.Errorf("Primary.ResetsAt = %d, want 1766001234", rl.Primary.ResetsAt.Unix())
	}
	if rl.Secondary.WindowMinutes != 10080 {
		t.Errorf("Secondary.WindowMinutes = %d, want 10080", rl.Secondary.WindowMinutes)
	}
}

func TestParseFile_MaxTotalRegardlessOfOrder(t *testing.T) {
	df := writeSession(t,
		tokenCount("2026-02-08T12:00:05Z", 250, 0, 50, 300),
		tokenCount("2026-02-08T12:00:01Z", 80, 0, 20, 100),
		tokenCount("2026-02-08T12:00:03Z", 150, 0, 50, 200),
	)

	result := ParseFile(context.Background(), df, testNow)
	if result.Summary == nil {
		t.Fatal("Summary = nil")
	}
	if result.Summary.TotalTokens != 300 {
		t.Errorf("TotalTokens = %d, want 300", result.Summary.TotalTokens)
	}
	if result.Summary.InputTokens != 250 {
		t.Errorf("InputTokens = %d, want 250", result.Summary.InputTokens)
	}
}

func TestParseFile_TieKeepsEarliestMax(t *testing.T) {
	df := writeSession(t,
		tokenCount("2026-02-08T12:00:01Z", 200, 0, 100, 300),
		tokenCount("2026-02-08T12:00:02Z", 100, 0, 200, 300),
	)

	result := ParseFile(context.Background(), df, testNow)
	if result.Summary == nil {
		t.Fatal("Summary = nil")
	}
	if result.Summary.InputTokens != 200 {
		t.Errorf("InputTokens = %d, want 200 (earliest of tied totals)", result.Summary.InputTokens)
	}
	if !result.Summary.LatestUsage.Equal(time.Date(2026, 2, 8, 12, 0, 1, 0, time.UTC)) {
		t.Errorf("LatestUsage = %v, want 12:00:01", result.Summary.LatestUsage)
	}
}

func TestParseFile_MetadataPrecedence(t *testing.T) {
	df := writeSession(t,
		`{"type":"turn_context","payload":{"model":"gpt-5.2-codex","cwd":"/work/from-turn"}}`,
		`{"timestamp":"2026-02-08T09:00:00Z","type":"session_meta","payload":{"id":"first"}}`,
		`{"timestamp":"2026-02-08T10:00:00Z","type":"session_meta","payload":{"id":"second","cwd":"/work/late"}}`,
		`{"type":"turn_context","payload":{"model":""}}`,
		`{"type":"turn_context","payload":{"model":"gpt-5.2-codex-mini"}}`,
		tokenCount("2026-02-08T12:00:01Z", 10, 0, 10, 20),
	)

	s := ParseFile(context.Background(), df, testNow).Summary
	if s == nil {
		t.Fatal("Summary = nil")
	}
	if s.SessionID != "first" {
		t.Errorf("SessionID = %q, want first", s.SessionID)
	}
	// envelope timestamp is used when the payload has none
	if !s.Timestamp.Equal(time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v, want 09:00", s.Timestamp)
	}
	if s.Project != "from-turn" {
		t.Errorf("Project = %q, want from-turn", s.Project)
	}
	if s.Model != "gpt-5.2-codex-mini" {
		t.Errorf("Model = %q, want gpt-5.2-codex-mini (last non-empty)", s.Model)
	}
}

func TestParseFile_Defaults(t *testing.T) {
	df := writeSession(t,
		tokenCount("2026-02-08T11:00:00Z", 10, 0, 10, 20),
	)

	s := ParseFile(context.Background(), df, testNow).Summary
	if s == nil {
		t.Fatal("Summary = nil")
	}
	if s.SessionID != "rollout-abc" {
		t.Errorf("SessionID = %q, want rollout-abc", s.SessionID)
	}
	if s.Model != "unknown-codex" {
		t.Errorf("Model = %q, want unknown-codex", s.Model)
	}
	if s.Project != "" {
		t.Errorf("Project = %q, want empty", s.Project)
	}
	if !s.Timestamp.Equal(time.Date(2026, 2, 8, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v, want latest usage 11:00", s.Timestamp)
	}
}

func TestParseFile_StartFallsBackToModTime(t *testing.T) {
	df := writeSession(t,
		`{"type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"total_tokens":5}}}}`,
	)

	s := ParseFile(context.Background(), df, testNow).Summary
	if s == nil {
		t.Fatal("Summary = nil")
	}
	if s.Timestamp.UnixNano() != df.Fingerprint.ModTimeNs {
		t.Errorf("Timestamp = %v, want file mtime", s.Timestamp)
	}
	if !s.LatestUsage.IsZero() {
		t.Errorf("LatestUsage = %v, want zero", s.LatestUsage)
	}
	if s.TokensInLastHour != 0 {
		t.Errorf("TokensInLastHour = %d, want 0 without checkpoints", s.TokensInLastHour)
	}
}

func TestParseFile_NoUsageKeepsRateLimit(t *testing.T) {
	df := writeSession(t,
		`{"timestamp":"2026-02-08T12:00:00Z","type":"session_meta","payload":{"id":"s1"}}`,
		rateLimits("2026-02-08T12:00:02Z", 10, 20),
		`{"type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":5}}}}`,
	)

	result := ParseFile(context.Background(), df, testNow)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Summary != nil {
		t.Errorf("Summary = %+v, want nil without a total", result.Summary)
	}
	if result.RateLimit == nil {
		t.Fatal("RateLimit = nil, want event")
	}
}

func TestParseFile_RateLimitTieFavorsLaterRecord(t *testing.T) {
	df := writeSession(t,
		rateLimits("2026-02-08T12:00:02Z", 10, 20),
		rateLimits("2026-02-08T12:00:02Z", 55, 20),
		rateLimits("2026-02-08T12:00:01Z", 99, 99),
	)

	rl := ParseFile(context.Background(), df, testNow).RateLimit
	if rl == nil || rl.Primary == nil {
		t.Fatal("RateLimit missing")
	}
	if rl.Primary.UsedPercent != 55 {
		t.Errorf("Primary.UsedPercent = %v, want 55", rl.Primary.UsedPercent)
	}
}

func TestParseFile_RateLimitWithoutTimestampUsesModTime(t *testing.T) {
	df := writeSession(t, rateLimits("", 10, 20))

	rl := ParseFile(context.Background(), df, testNow).RateLimit
	if rl == nil {
		t.Fatal("RateLimit = nil")
	}
	if rl.CapturedAt.UnixNano() != df.Fingerprint.ModTimeNs {
		t.Errorf("CapturedAt = %v, want file mtime", rl.CapturedAt)
	}
}

func TestParseFile_IncompleteWindowDropped(t *testing.T) {
	df := writeSession(t,
		`{"timestamp":"2026-02-08T12:00:00Z","type":"event_msg","payload":{"type":"token_count","rate_limits":{"primary":{"used_percent":10,"window_minutes":300}}}}`,
	)

	if rl := ParseFile(context.Background(), df, testNow).RateLimit; rl != nil {
		t.Errorf("RateLimit = %+v, want nil for a window without resets_at", rl)
	}
}

func TestParseFile_EmptyFile(t *testing.T) {
	df := writeSession(t)
	result := ParseFile(context.Background(), df, testNow)
	if result.Err != nil {
		t.Fatalf("unexpected error on empty file: %v", result.Err)
	}
	if result.Summary != nil || result.RateLimit != nil {
		t.Error("expected no summary and no rate limit for empty file")
	}
}

func TestParseFile_MalformedLines(t *testing.T) {
	df := writeSession(t,
		`not json at all`,
		`{"type":"session_meta","payload":{"id":"s1"`,
		`{"type":"turn_context","payload":{"model":42}}`,
		tokenCount("2026-02-08T12:00:01Z", 10, 0, 10, 20),
		`{"type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"total_tokens":`,
	)

	result := ParseFile(context.Background(), df, testNow)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Summary == nil || result.Summary.TotalTokens != 20 {
		t.Fatalf("Summary = %+v, want total 20", result.Summary)
	}
	if result.ParseErrors != 3 {
		t.Errorf("ParseErrors = %d, want 3", result.ParseErrors)
	}
}

func TestParseFile_OverlongLineSkipped(t *testing.T) {
	prev := maxLineBytes
	maxLineBytes = 4096
	t.Cleanup(func() { maxLineBytes = prev })

	huge := `{"type":"response_item","payload":{"output":"` + strings.Repeat("x", 3*maxLineBytes) + `"}}`
	df := writeSession(t,
		tokenCount("2026-02-08T12:00:01Z", 10, 0, 10, 20),
		huge,
		tokenCount("2026-02-08T12:00:05Z", 40, 0, 20, 60),
	)

	result := ParseFile(context.Background(), df, testNow)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Summary == nil || result.Summary.TotalTokens != 60 {
		t.Fatalf("Summary = %+v, want total 60", result.Summary)
	}
	if result.Lines != 3 {
		t.Errorf("Lines = %d, want 3", result.Lines)
	}
	if result.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", result.ParseErrors)
	}
}

func TestParseFile_OverlongLastLineWithoutNewline(t *testing.T) {
	prev := maxLineBytes
	maxLineBytes = 1024
	t.Cleanup(func() { maxLineBytes = prev })

	path := filepath.Join(t.TempDir(), "rollout-tail.jsonl")
	data := tokenCount("2026-02-08T12:00:01Z", 10, 0, 10, 20) + "\n" + strings.Repeat("y", 5000)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	result := ParseFile(context.Background(), DiscoveredFile{Path: path, Fingerprint: FingerprintOf(fi)}, testNow)
	if result.Err != nil || result.Summary == nil || result.Summary.TotalTokens != 20 {
		t.Fatalf("result = %+v", result)
	}
	if result.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", result.ParseErrors)
	}
}

func TestParseFile_LineAtLimitParsed(t *testing.T) {
	line := tokenCount("2026-02-08T12:00:01Z", 10, 0, 10, 20)
	prev := maxLineBytes
	maxLineBytes = len(line)
	t.Cleanup(func() { maxLineBytes = prev })

	df := writeSession(t, line)
	result := ParseFile(context.Background(), df, testNow)
	if result.Summary == nil || result.ParseErrors != 0 {
		t.Fatalf("line at the limit rejected: %+v", result)
	}
}

func TestParseFile_NegativeTotalIgnored(t *testing.T) {
	df := writeSession(t,
		tokenCount("2026-02-08T12:10:00Z", 10, 0, 10, 20),
		tokenCount("2026-02-08T12:20:00Z", 0, 0, 0, -500),
	)

	result := ParseFile(context.Background(), df, testNow)
	if result.Summary == nil {
		t.Fatal("Summary = nil")
	}
	if result.Summary.TotalTokens != 20 {
		t.Errorf("TotalTokens = %d, want 20", result.Summary.TotalTokens)
	}
	// Both records fall inside the trailing hour; only the valid one counts.
	if result.Summary.TokensInLastHour != 20 {
		t.Errorf("TokensInLastHour = %d, want 20", result.Summary.TokensInLastHour)
	}
	if want := time.Date(2026, 2, 8, 12, 10, 0, 0, time.UTC); !result.Summary.LatestUsage.Equal(want) {
		t.Errorf("LatestUsage = %v, want %v", result.Summary.LatestUsage, want)
	}
}

func TestParseFile_MissingFile(t *testing.T) {
	df := DiscoveredFile{Path: filepath.Join(t.TempDir(), "gone.jsonl")}
	if result := ParseFile(context.Background(), df, testNow); result.Err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseFile_Cancelled(t *testing.T) {
	lines := make([]string, 0, 2*cancelCheckLines)
	for i := 0; i < 2*cancelCheckLines; i++ {
		lines = append(lines, tokenCount("2026-02-08T12:00:01Z", int64(i), 0, 0, int64(i)))
	}
	df := writeSession(t, lines...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := ParseFile(ctx, df, testNow)
	if !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("Err = %v, want context.Canceled", result.Err)
	}
	if result.Summary != nil {
		t.Error("cancelled parse must not produce a summary")
	}
}

func TestResolveProjectName(t *testing.T) {
	tests := []struct {
		name string
		cwd  string
		repo string
		want string
	}{
		{"https repo", "/work/x", "https://github.com/acme/widgets.git", "widgets"},
		{"scp repo", "", "git@github.com:acme/widgets.git", "widgets"},
		{"trailing slash", "", "https://github.com/acme/widgets/", "widgets"},
		{"repo without ext", "", "https://example.com/acme/tool", "tool"},
		{"cwd fallback", "/Users/dev/projects/pulse/", "", "pulse"},
		{"blank repo falls back", "/srv/app", "   ", "app"},
		{"root cwd", "/", "", ""},
		{"nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveProjectName(tt.cwd, tt.repo); got != tt.want {
				t.Errorf("ResolveProjectName(%q, %q) = %q, want %q", tt.cwd, tt.repo, got, tt.want)
			}
		})
	}
}

func TestExtractTopLevelType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"session_meta", `{"type":"session_meta","payload":{}}`, "session_meta"},
		{"turn_context", `{"timestamp":"x","type": "turn_context"}`, "turn_context"},
		{"event_msg", `{"type":"event_msg","payload":{"type":"token_count"}}`, "event_msg"},
		{"nested type ignored", `{"payload":{"type":"token_count"},"type":"event_msg"}`, "event_msg"},
		{"type as value", `{"kind":"type","type":"turn_context"}`, "turn_context"},
		{"unknown type", `{"type":"response_item","payload":{}}`, ""},
		{"no type field", `{"message":"hello"}`, ""},
		{"empty", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTopLevelType([]byte(tt.input))
			if got != tt.want {
				t.Errorf("extractTopLevelType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// FuzzExtractTopLevelType checks the byte-level scanner never panics on
// arbitrary input.
func FuzzExtractTopLevelType(f *testing.F) {
	f.Add([]byte(`{"type":"session_meta","payload":{"id":"x"}}`))
	f.Add([]byte(`{"type":"event_msg","payload":{"type":"token_count"}}`))
	f.Add([]byte(`{"payload":{"type":"nested"},"type":"turn_context"}`))
	f.Add([]byte(`not json`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"type":null}`))
	f.Add([]byte(`{"type":123}`))
	f.Add([]byte(``))
	f.Add([]byte(`{"type":"event_msg`))

	f.Fuzz(func(t *testing.T, data []byte) {
		switch result := extractTopLevelType(data); result {
		case "", typeSessionMeta, typeTurnContext, typeEventMsg:
		default:
			t.Errorf("unexpected type %q from input %q", result, data)
		}
	})
}
