// Package source discovers and parses Codex JSONL session files.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/model"
)

// cancelCheckLines is how many lines are read between context checks.
const cancelCheckLines = 512

// maxLineBytes caps a single log line. Longer lines are skipped and
// counted as parse errors.
var maxLineBytes = 16 * 1024 * 1024

var patTokenCount = []byte(`"token_count"`)

// ParseResult holds the output of parsing a single JSONL file.
// Summary is nil when the file never reported a usable token total.
type ParseResult struct {
	Summary     *model.SessionSummary
	RateLimit   *model.RateLimitEvent
	Lines       int
	ParseErrors int
	Err         error
}

// ParseFile streams a session log and reduces it to a summary plus the
// latest rate-limit event. now anchors the trailing-hour token delta.
//
// Record routing by top-level "type" field:
//   - "session_meta" → session id, start time, cwd, repository (first wins)
//   - "turn_context" → model (last non-empty wins), cwd if still unset
//   - "event_msg"    → token_count usage and rate limits
//   - everything else → skip
func ParseFile(ctx context.Context, df DiscoveredFile, now time.Time) ParseResult {
	f, err := os.Open(df.Path)
	if err != nil {
		return ParseResult{Err: err}
	}
	defer func() { _ = f.Close() }()

	return parseStream(ctx, f, df, now)
}

type sessionState struct {
	sessionID string
	started   time.Time
	cwd       string
	repoURL   string
	model     string

	maxTotal    int64
	maxUsage    *RawTokenUsage
	latestUsage time.Time
	checkpoints []model.Checkpoint

	rateLimit *model.RateLimitEvent
}

func parseStream(ctx context.Context, r io.Reader, df DiscoveredFile, now time.Time) ParseResult {
	st := sessionState{maxTotal: -1}
	var lines, parseErrors int

	br := bufio.NewReaderSize(r, 512*1024)
	var buf []byte

	for done := false; !done; {
		line, tooLong, readErr := readLine(br, buf[:0])
		buf = line
		switch {
		case readErr == io.EOF:
			done = true
		case readErr != nil:
			return ParseResult{Err: readErr}
		}
		if len(line) == 0 && !tooLong {
			continue
		}

		lines++
		if lines%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return ParseResult{Err: err}
			}
		}
		if tooLong {
			parseErrors++
			continue
		}

		entryType := extractTopLevelType(line)
		if entryType == "" {
			continue
		}
		if entryType == typeEventMsg && !bytes.Contains(line, patTokenCount) {
			continue
		}

		var env RawEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			parseErrors++
			continue
		}

		var err error
		switch entryType {
		case typeSessionMeta:
			err = st.applySessionMeta(env)
		case typeTurnContext:
			err = st.applyTurnContext(env)
		case typeEventMsg:
			err = st.applyEventMsg(env, df)
		}
		if err != nil {
			parseErrors++
		}
	}

	return ParseResult{
		Summary:     st.summary(df, now),
		RateLimit:   st.rateLimit,
		Lines:       lines,
		ParseErrors: parseErrors,
	}
}

// readLine reads one newline-terminated line into buf, without the line
// ending. A line longer than maxLineBytes is drained and reported as
// tooLong with no content. err is io.EOF on the last line of the stream.
func readLine(br *bufio.Reader, buf []byte) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineBytes+2 {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		buf = bytes.TrimSuffix(buf, []byte("\n"))
		buf = bytes.TrimSuffix(buf, []byte("\r"))
		if !tooLong && len(buf) > maxLineBytes {
			tooLong = true
			buf = buf[:0]
		}
		return buf, tooLong, err
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (st *sessionState) applySessionMeta(env RawEnvelope) error {
	var p RawSessionMeta
	if err := decodePayload(env.Payload, &p); err != nil {
		return err
	}

	if st.sessionID == "" {
		st.sessionID = p.ID
	}
	if st.started.IsZero() {
		if ts, ok := parseTimestamp(p.Timestamp); ok {
			st.started = ts
		} else if ts, ok := parseTimestamp(env.Timestamp); ok {
			st.started = ts
		}
	}
	if st.cwd == "" {
		st.cwd = p.Cwd
	}
	if st.repoURL == "" && p.Git != nil {
		st.repoURL = p.Git.RepositoryURL
	}
	return nil
}

func (st *sessionState) applyTurnContext(env RawEnvelope) error {
	var p RawTurnContext
	if err := decodePayload(env.Payload, &p); err != nil {
		return err
	}

	if p.Model != "" {
		st.model = p.Model
	}
	if st.cwd == "" {
		st.cwd = p.Cwd
	}
	return nil
}

func (st *sessionState) applyEventMsg(env RawEnvelope, df DiscoveredFile) error {
	var p RawEventMsg
	if err := decodePayload(env.Payload, &p); err != nil {
		return err
	}
	if p.Type != eventTokenCount {
		return nil
	}

	ts, hasTS := parseTimestamp(env.Timestamp)

	if p.Info != nil && p.Info.TotalTokenUsage != nil && p.Info.TotalTokenUsage.TotalTokens != nil &&
		*p.Info.TotalTokenUsage.TotalTokens >= 0 {
		usage := *p.Info.TotalTokenUsage
		total := *usage.TotalTokens

		// Counters are cumulative; the highest total is the session total.
		// Strictly greater keeps the earliest record on ties.
		if total > st.maxTotal {
			st.maxTotal = total
			st.maxUsage = &usage
			st.latestUsage = ts
		}
		if hasTS {
			st.checkpoints = append(st.checkpoints, model.Checkpoint{Timestamp: ts, Total: total})
		}
	}

	if p.RateLimits != nil {
		capturedAt := ts
		if !hasTS {
			capturedAt = time.Unix(0, df.Fingerprint.ModTimeNs)
		}
		ev := newRateLimitEvent(p.RateLimits, capturedAt)
		if ev != nil && (st.rateLimit == nil || !ev.CapturedAt.Before(st.rateLimit.CapturedAt)) {
			st.rateLimit = ev
		}
	}
	return nil
}

func (st *sessionState) summary(df DiscoveredFile, now time.Time) *model.SessionSummary {
	if st.maxUsage == nil {
		return nil
	}
	u := st.maxUsage

	sessionID := st.sessionID
	if sessionID == "" {
		base := filepath.Base(df.Path)
		sessionID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	latest := st.latestUsage
	if latest.IsZero() {
		for _, cp := range st.checkpoints {
			if cp.Timestamp.After(latest) {
				latest = cp.Timestamp
			}
		}
	}

	started := st.started
	if started.IsZero() {
		started = latest
	}
	if started.IsZero() {
		started = time.Unix(0, df.Fingerprint.ModTimeNs)
	}

	modelName := st.model
	if modelName == "" {
		modelName = config.UnknownModel
	}

	return &model.SessionSummary{
		SessionID:         sessionID,
		Project:           ResolveProjectName(st.cwd, st.repoURL),
		Model:             modelName,
		Timestamp:         started,
		LatestUsage:       latest,
		InputTokens:       u.InputTokens,
		CachedInputTokens: u.CachedInputTokens,
		OutputTokens:      u.OutputTokens,
		ReasoningTokens:   u.ReasoningOutputTokens,
		TotalTokens:       *u.TotalTokens,
		TokensInLastHour:  RollingHourDelta(st.checkpoints, now),
	}
}

// newRateLimitEvent keeps only complete window payloads. It returns nil
// when neither window is complete.
func newRateLimitEvent(rl *RawRateLimits, capturedAt time.Time) *model.RateLimitEvent {
	primary := newRateLimitWindow(rl.Primary)
	secondary := newRateLimitWindow(rl.Secondary)
	if primary == nil && secondary == nil {
		return nil
	}
	return &model.RateLimitEvent{
		CapturedAt: capturedAt,
		Primary:    primary,
		Secondary:  secondary,
	}
}

func newRateLimitWindow(w *RawRateWindow) *model.RateLimitWindow {
	if w == nil || w.UsedPercent == nil || w.WindowMinutes == nil || w.ResetsAt == nil {
		return nil
	}
	return &model.RateLimitWindow{
		UsedPercent:   *w.UsedPercent,
		WindowMinutes: *w.WindowMinutes,
		ResetsAt:      unixSeconds(*w.ResetsAt),
	}
}

func unixSeconds(v float64) time.Time {
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// parseTimestamp accepts RFC 3339 timestamps with or without fractional seconds.
func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ResolveProjectName prefers the repository name from its URL and falls
// back to the last element of the working directory. An empty result means
// the session has no project.
func ResolveProjectName(cwd, repositoryURL string) string {
	if name := repoName(repositoryURL); name != "" {
		return name
	}

	cwd = strings.TrimSpace(cwd)
	if cwd == "" {
		return ""
	}
	name := strings.TrimSpace(filepath.Base(filepath.Clean(cwd)))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// repoName handles both URL and scp-like ("git@host:org/repo.git") remotes.
func repoName(repositoryURL string) string {
	u := strings.TrimRight(strings.TrimSpace(repositoryURL), "/")
	if u == "" {
		return ""
	}
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndexAny(u, "/:"); i >= 0 {
		u = u[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(u, path.Ext(u)))
}

// typeKey is the byte sequence for a JSON key named "type" (with quotes).
var typeKey = []byte(`"type"`)

// extractTopLevelType finds the top-level "type" field in a JSONL line.
// Tracks brace depth and string boundaries so the nested payload "type"
// is ignored. Lines of other record types are skipped without decoding.
func extractTopLevelType(line []byte) string {
	depth := 0
	for i := 0; i < len(line); {
		switch line[i] {
		case '"':
			if depth == 1 && bytes.HasPrefix(line[i:], typeKey) {
				val, isKey := classifyType(line, i+len(typeKey))
				if isKey {
					return val
				}
			}
			i = skipJSONString(line, i)
		case '{':
			depth++
			i++
		case '}':
			depth--
			i++
		default:
			i++
		}
	}
	return ""
}

// classifyType checks whether pos follows a JSON key (expects : then value).
// isKey=false means "type" appeared as a value, not a key.
func classifyType(line []byte, pos int) (val string, isKey bool) {
	i := skipSpaces(line, pos)
	if i >= len(line) || line[i] != ':' {
		return "", false
	}
	i = skipSpaces(line, i+1)
	if i >= len(line) || line[i] != '"' {
		return "", true
	}
	i++

	end := bytes.IndexByte(line[i:], '"')
	if end < 0 || end > 20 {
		return "", true
	}
	v := string(line[i : i+end])
	switch v {
	case typeSessionMeta, typeTurnContext, typeEventMsg:
		return v, true
	}
	return "", true
}

// skipJSONString advances past a JSON string starting at the opening quote.
//
//nolint:gosec // manual bounds checking throughout
func skipJSONString(line []byte, i int) int {
	i++
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipSpaces(line []byte, i int) int {
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i
}
