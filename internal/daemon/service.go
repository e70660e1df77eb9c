// Package daemon provides the long-running background usage monitor service.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/theirongolddev/cxburn/internal/alerts"
	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/pipeline"
)

// Event types.
const (
	EventSnapshot       = "snapshot"
	EventUsageDelta     = "usage_delta"
	EventRateLimitAlert = "rate_limit_alert"
)

// Config controls the daemon runtime behavior.
type Config struct {
	SessionsDir  string
	CachePath    string
	Days         int
	Scope        string
	Workers      int
	Interval     time.Duration
	Debounce     time.Duration
	Watch        bool
	Addr         string
	EventsBuffer int
	Location     *time.Location
	Pricing      *config.PricingTable

	// Alerts is nil when rate-limit alerts are disabled.
	Alerts *AlertsConfig
}

// AlertsConfig wires the alert policy. Alerts are always published as
// events; Notifier receives them as well when set.
type AlertsConfig struct {
	Policy   alerts.Policy
	Ledger   alerts.Ledger
	Notifier alerts.Notifier
}

// Snapshot is a compact usage state for status/event payloads.
type Snapshot struct {
	At                time.Time                 `json:"at"`
	Sessions          int                       `json:"sessions"`
	InputTokens       int64                     `json:"input_tokens"`
	CachedInputTokens int64                     `json:"cached_input_tokens"`
	OutputTokens      int64                     `json:"output_tokens"`
	Tokens            int64                     `json:"tokens"`
	EstimatedCostUSD  float64                   `json:"estimated_cost_usd"`
	TokensLastHour    int64                     `json:"tokens_last_hour"`
	TodayTokens       int64                     `json:"today_tokens"`
	TodayCostUSD      float64                   `json:"today_cost_usd"`
	RateLimits        []model.RateLimitSnapshot `json:"rate_limits,omitempty"`
	Freshness         model.Freshness           `json:"rate_limit_freshness"`
}

// Delta captures snapshot deltas between scans.
type Delta struct {
	Sessions         int     `json:"sessions"`
	Tokens           int64   `json:"tokens"`
	TokensLastHour   int64   `json:"tokens_last_hour"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

func (d Delta) isZero() bool {
	return d.Sessions == 0 &&
		d.Tokens == 0 &&
		d.TokensLastHour == 0 &&
		d.EstimatedCostUSD == 0
}

// Event is emitted whenever the usage snapshot updates or an alert fires.
type Event struct {
	ID        int64         `json:"id"`
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Snapshot  Snapshot      `json:"snapshot"`
	Delta     Delta         `json:"delta"`
	Alert     *alerts.Alert `json:"alert,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastScanAt      time.Time `json:"last_scan_at"`
	IntervalSec     int       `json:"interval_sec"`
	ScanCount       int64     `json:"scan_count"`
	SessionsDir     string    `json:"sessions_dir"`
	Days            int       `json:"days"`
	Scope           string    `json:"scope,omitempty"`
	Summary         Snapshot  `json:"summary"`
	TotalFiles      int       `json:"total_files"`
	ScannedFiles    int       `json:"scanned_files"`
	CacheHits       int       `json:"cache_hits"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Report is served at /v1/snapshot.
type Report struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Scope       string                    `json:"scope"`
	Scopes      []string                  `json:"scopes"`
	Daily       []model.DailyUsage        `json:"daily"`
	Analytics   model.Analytics           `json:"analytics"`
	RateLimits  []model.RateLimitSnapshot `json:"rate_limits"`
	Freshness   model.Freshness           `json:"rate_limit_freshness"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg       Config
	scanner   *pipeline.Scanner
	scheduler *Scheduler
	alerts    *alerts.Dispatcher
	refresh   *rate.Limiter
	now       func() time.Time

	mu          sync.RWMutex
	startedAt   time.Time
	lastScanAt  time.Time
	scanCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	latest      *pipeline.Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 750 * time.Millisecond
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.Days < 1 {
		cfg.Days = 30
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Pricing == nil {
		cfg.Pricing = config.DefaultPricingTable()
	}

	s := &Service{
		cfg:       cfg,
		now:       time.Now,
		startedAt: time.Now(),
		refresh:   rate.NewLimiter(rate.Every(5*time.Second), 2),
		subs:      make(map[int]chan Event),
	}
	s.scanner = pipeline.NewScanner(pipeline.ScannerConfig{
		Root:      cfg.SessionsDir,
		CachePath: cfg.CachePath,
		Workers:   cfg.Workers,
		Pricing:   cfg.Pricing,
		Logf: func(format string, args ...any) {
			log.Printf("cxburn daemon level=warn event=scan_warning msg=%q", fmt.Sprintf(format, args...))
		},
	})
	if a := cfg.Alerts; a != nil && a.Ledger != nil {
		var notifier alerts.Notifier = alerts.NotifierFunc(s.publishAlert)
		if a.Notifier != nil {
			notifier = alerts.Multi(notifier, a.Notifier)
		}
		s.alerts = alerts.NewDispatcher(a.Policy, a.Ledger, notifier)
	}
	return s
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.HandleFunc("GET /v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)
	return mux
}

// Run starts HTTP endpoints, the file watcher and periodic scans until ctx
// is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.mu.Lock()
	s.scheduler = NewScheduler(ctx, s.cfg.Debounce, s.scan, s.applySnapshot, s.recordError)
	s.mu.Unlock()
	defer s.scheduler.Stop()

	if s.cfg.Watch {
		go func() {
			if err := WatchTree(ctx, s.cfg.SessionsDir, s.scheduler.Trigger); err != nil {
				log.Printf("cxburn daemon level=warn event=watch_failed err=%v", err)
			}
		}()
	}

	// Seed initial snapshot so status is useful quickly.
	s.scheduler.Trigger()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.scheduler.Trigger()
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) scan(ctx context.Context) (*pipeline.Snapshot, error) {
	return s.scanner.Scan(ctx, s.now())
}

func (s *Service) recordError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.lastScanAt = s.now()
	s.scanCount++
	s.mu.Unlock()
	log.Printf("cxburn daemon level=error event=scan_failed err=%v", err)
}

// applySnapshot stores a completed scan, publishes the resulting event and
// evaluates rate-limit alerts.
func (s *Service) applySnapshot(ps *pipeline.Snapshot) {
	now := s.now()
	snap := s.summarize(ps, now)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.latest = ps
	s.lastScanAt = now
	s.scanCount++
	s.lastError = ""

	if !prevExists {
		ev = Event{Type: EventSnapshot, Timestamp: now, Snapshot: snap}
		publish = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		ev = Event{Type: EventUsageDelta, Timestamp: now, Snapshot: snap, Delta: delta}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}

	if s.alerts != nil {
		if _, err := s.alerts.Evaluate(context.Background(), ps.RateLimits, now); err != nil {
			log.Printf("cxburn daemon level=warn event=alert_failed err=%v", err)
		}
	}
}

// summarize reduces a scan to the configured scope and day window.
func (s *Service) summarize(ps *pipeline.Snapshot, now time.Time) Snapshot {
	loc := s.cfg.Location
	today := pipeline.StartOfDay(now, loc)
	since := today.AddDate(0, 0, -(s.cfg.Days - 1))
	scoped := pipeline.FilterByScope(ps.Sessions, s.cfg.Scope)

	snap := Snapshot{At: now, RateLimits: ps.RateLimits}
	if ps.RateLimitEvent != nil {
		snap.Freshness = pipeline.ClassifyFreshness(ps.RateLimitEvent.CapturedAt, now)
	} else {
		snap.Freshness = model.FreshnessUnavailable
	}

	for _, sess := range scoped {
		snap.TokensLastHour += sess.TokensInLastHour
		if sess.Timestamp.Before(since) {
			continue
		}
		snap.Sessions++
		snap.InputTokens += sess.InputTokens
		snap.CachedInputTokens += sess.CachedInputTokens
		snap.OutputTokens += sess.OutputTokens
		snap.Tokens += sess.TotalTokens
		snap.EstimatedCostUSD += sess.EstimatedCost
		if !sess.Timestamp.Before(today) {
			snap.TodayTokens += sess.TotalTokens
			snap.TodayCostUSD += sess.EstimatedCost
		}
	}
	return snap
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Sessions:         curr.Sessions - prev.Sessions,
		Tokens:           curr.Tokens - prev.Tokens,
		TokensLastHour:   curr.TokensLastHour - prev.TokensLastHour,
		EstimatedCostUSD: curr.EstimatedCostUSD - prev.EstimatedCostUSD,
	}
}

func (s *Service) publishAlert(_ context.Context, a alerts.Alert) error {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	s.publishEvent(Event{
		Type:      EventRateLimitAlert,
		Timestamp: s.now(),
		Snapshot:  snap,
		Alert:     &a,
	})
	return nil
}

// publishEvent assigns the event ID, appends to the ring buffer and fans out
// to stream subscribers without blocking.
func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		StartedAt:       s.startedAt,
		LastScanAt:      s.lastScanAt,
		IntervalSec:     int(s.cfg.Interval.Seconds()),
		ScanCount:       s.scanCount,
		SessionsDir:     s.cfg.SessionsDir,
		Days:            s.cfg.Days,
		Scope:           s.cfg.Scope,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
	if s.latest != nil {
		st.TotalFiles = s.latest.TotalFiles
		st.ScannedFiles = s.latest.ScannedFiles
		st.CacheHits = s.latest.CacheHits
	}
	return st
}

func (s *Service) buildReport() (Report, bool) {
	s.mu.RLock()
	ps := s.latest
	s.mu.RUnlock()
	if ps == nil {
		return Report{}, false
	}

	now := s.now()
	loc := s.cfg.Location
	scoped := pipeline.FilterByScope(ps.Sessions, s.cfg.Scope)
	daily := pipeline.AggregateDaily(scoped, time.Time{}, time.Time{}, loc)

	r := Report{
		GeneratedAt: now,
		Scope:       s.cfg.Scope,
		Scopes:      pipeline.ProjectScopes(ps.Sessions),
		Daily:       daily,
		Analytics:   pipeline.Analyze(scoped, pipeline.IndexByDay(daily, loc), now, loc),
		RateLimits:  ps.RateLimits,
		Freshness:   model.FreshnessUnavailable,
	}
	if ps.RateLimitEvent != nil {
		r.Freshness = pipeline.ClassifyFreshness(ps.RateLimitEvent.CapturedAt, now)
	}
	return r, true
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.buildReport()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no scan has completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Service) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if !s.refresh.Allow() {
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "refresh rate limited"})
		return
	}

	s.mu.RLock()
	sched := s.scheduler
	s.mu.RUnlock()
	if sched == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "daemon not running"})
		return
	}
	sched.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      EventSnapshot,
		Timestamp: s.now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if ev.ID > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
