package daemon

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/theirongolddev/cxburn/internal/alerts"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/pipeline"
)

var testNow = time.Date(2026, 2, 8, 12, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	if cfg.SessionsDir == "" {
		cfg.SessionsDir = t.TempDir()
	}
	cfg.Location = time.UTC
	s := New(cfg)
	s.now = func() time.Time { return testNow }
	return s
}

func usage(ts time.Time, project string, total int64, cost float64, lastHour int64) model.SessionUsage {
	return model.SessionUsage{
		SessionSummary: model.SessionSummary{
			SessionID:        ts.Format(time.RFC3339Nano),
			Project:          project,
			Timestamp:        ts,
			InputTokens:      total,
			TotalTokens:      total,
			TokensInLastHour: lastHour,
		},
		EstimatedCost: cost,
	}
}

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{
		Sessions:         10,
		Tokens:           1_000_000,
		TokensLastHour:   5_000,
		EstimatedCostUSD: 10.5,
	}
	curr := Snapshot{
		Sessions:         12,
		Tokens:           1_250_000,
		TokensLastHour:   2_000,
		EstimatedCostUSD: 13.1,
	}

	delta := diffSnapshots(prev, curr)
	if delta.Sessions != 2 {
		t.Fatalf("Sessions delta = %d, want 2", delta.Sessions)
	}
	if delta.Tokens != 250_000 {
		t.Fatalf("Tokens delta = %d, want 250000", delta.Tokens)
	}
	if delta.TokensLastHour != -3_000 {
		t.Fatalf("TokensLastHour delta = %d, want -3000", delta.TokensLastHour)
	}
	if math.Abs(delta.EstimatedCostUSD-2.6) > 1e-9 {
		t.Fatalf("Cost delta = %.2f, want 2.60", delta.EstimatedCostUSD)
	}
	if delta.isZero() {
		t.Fatal("delta unexpectedly reported as zero")
	}
	if !diffSnapshots(curr, curr).isZero() {
		t.Fatal("identical snapshots produced a non-zero delta")
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := newTestService(t, Config{EventsBuffer: 2})

	s.publishEvent(Event{Type: EventSnapshot})
	s.publishEvent(Event{Type: EventUsageDelta})
	s.publishEvent(Event{Type: EventUsageDelta})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

func TestSummarizeScopesAndWindows(t *testing.T) {
	s := newTestService(t, Config{Days: 7, Scope: "api"})
	ps := &pipeline.Snapshot{
		Sessions: []model.SessionUsage{
			usage(testNow.Add(-time.Hour), "api", 100, 1, 40),
			usage(testNow.AddDate(0, 0, -3), "api", 200, 2, 0),
			usage(testNow.AddDate(0, 0, -30), "api", 999, 9, 0),
			usage(testNow.Add(-time.Hour), "web", 500, 5, 500),
		},
	}

	snap := s.summarize(ps, testNow)
	if snap.Sessions != 2 || snap.Tokens != 300 {
		t.Errorf("sessions/tokens = %d/%d, want 2/300", snap.Sessions, snap.Tokens)
	}
	if snap.TodayTokens != 100 || snap.TodayCostUSD != 1 {
		t.Errorf("today = %d/%.2f, want 100/1.00", snap.TodayTokens, snap.TodayCostUSD)
	}
	if snap.TokensLastHour != 40 {
		t.Errorf("last hour = %d, want 40", snap.TokensLastHour)
	}
	if snap.Freshness != model.FreshnessUnavailable {
		t.Errorf("freshness = %s, want unavailable", snap.Freshness)
	}
}

func TestApplySnapshotPublishesEvents(t *testing.T) {
	s := newTestService(t, Config{})
	first := &pipeline.Snapshot{Sessions: []model.SessionUsage{usage(testNow.Add(-time.Hour), "", 100, 1, 0)}}

	s.applySnapshot(first)
	s.applySnapshot(first)

	second := &pipeline.Snapshot{Sessions: append(first.Sessions, usage(testNow.Add(-time.Minute), "", 50, 0.5, 50))}
	s.applySnapshot(second)

	s.mu.RLock()
	events := append([]Event(nil), s.events...)
	scans := s.scanCount
	s.mu.RUnlock()

	if scans != 3 {
		t.Errorf("scan count = %d, want 3", scans)
	}
	if len(events) != 2 {
		t.Fatalf("events = %+v, want snapshot then usage_delta", events)
	}
	if events[0].Type != EventSnapshot || events[1].Type != EventUsageDelta {
		t.Errorf("event types = %s, %s", events[0].Type, events[1].Type)
	}
	if d := events[1].Delta; d.Sessions != 1 || d.Tokens != 50 || d.TokensLastHour != 50 {
		t.Errorf("delta = %+v", d)
	}
}

func TestApplySnapshotPublishesAlerts(t *testing.T) {
	var notified []alerts.Alert
	s := newTestService(t, Config{
		Alerts: &AlertsConfig{
			Policy: alerts.NewPolicy(nil),
			Ledger: alerts.NewMemoryLedger(),
			Notifier: alerts.NotifierFunc(func(_ context.Context, a alerts.Alert) error {
				notified = append(notified, a)
				return nil
			}),
		},
	})
	ps := &pipeline.Snapshot{
		RateLimits: []model.RateLimitSnapshot{{
			Kind:             model.WindowFiveHour,
			WindowMinutes:    model.FiveHourWindowMinutes,
			UsedPercent:      80,
			RemainingPercent: 20,
			ResetsAt:         testNow.Add(2 * time.Hour),
			CapturedAt:       testNow,
		}},
	}

	s.applySnapshot(ps)
	s.applySnapshot(ps)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var alertEvents []Event
	for _, ev := range s.events {
		if ev.Type == EventRateLimitAlert {
			alertEvents = append(alertEvents, ev)
		}
	}
	if len(alertEvents) != 1 || alertEvents[0].Alert.Threshold != 25 {
		t.Fatalf("alert events = %+v, want one 25%% alert", alertEvents)
	}
	if len(notified) != 1 {
		t.Errorf("external notifier got %d alerts, want 1", len(notified))
	}
}

func TestHandlers(t *testing.T) {
	s := newTestService(t, Config{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/v1/snapshot")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("snapshot before scan = %d, want 503", resp.StatusCode)
	}

	s.applySnapshot(&pipeline.Snapshot{
		Sessions:   []model.SessionUsage{usage(testNow.Add(-time.Hour), "api", 100, 1, 0)},
		TotalFiles: 1,
	})

	resp, err = http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	var st Status
	err = json.NewDecoder(resp.Body).Decode(&st)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if st.ScanCount != 1 || st.TotalFiles != 1 || st.Summary.Tokens != 100 {
		t.Errorf("status = %+v", st)
	}

	resp, err = http.Get(srv.URL + "/v1/snapshot")
	if err != nil {
		t.Fatal(err)
	}
	var report Report
	err = json.NewDecoder(resp.Body).Decode(&report)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Daily) != 1 || report.Analytics.Rollups.Today.Tokens != 100 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Scopes) == 0 {
		t.Error("report has no scopes")
	}

	resp, err = http.Get(srv.URL + "/v1/events")
	if err != nil {
		t.Fatal(err)
	}
	var events []Event
	err = json.NewDecoder(resp.Body).Decode(&events)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ID != 1 {
		t.Errorf("events = %+v", events)
	}
}

func TestRefreshIsRateLimited(t *testing.T) {
	s := newTestService(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.scheduler = NewScheduler(ctx, time.Hour, s.scan, s.applySnapshot, s.recordError)
	defer s.scheduler.Stop()

	h := s.Handler()
	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/refresh", nil))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Error("429 without Retry-After")
		}
	}

	want := []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("refresh codes = %v, want %v", codes, want)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/refresh", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET refresh = %d, want 405", rec.Code)
	}
}
