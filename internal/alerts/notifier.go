package alerts

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/theirongolddev/cxburn/internal/store"
)

// Notifier delivers an alert to a human or another system.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, a Alert) error {
	return f(ctx, a)
}

// LogNotifier writes alerts as log lines.
type LogNotifier struct {
	Logf func(format string, args ...any)
	Loc  *time.Location
}

// Notify logs the alert.
func (n LogNotifier) Notify(_ context.Context, a Alert) error {
	logf := n.Logf
	if logf == nil {
		logf = log.Printf
	}
	loc := n.Loc
	if loc == nil {
		loc = time.Local
	}
	logf("cxburn alert level=warn event=rate_limit_alert key=%s window=%s threshold=%.0f msg=%q",
		a.Key, a.Kind, a.Threshold, a.Title()+": "+a.Body(loc))
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, a Alert) error {
		var errs []error
		for _, n := range notifiers {
			if err := n.Notify(ctx, a); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// MemoryLedger is a Ledger that lives only for the process.
type MemoryLedger struct {
	mu   sync.Mutex
	sent map[string]store.SentAlert
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{sent: make(map[string]store.SentAlert)}
}

// Seen reports whether key was recorded.
func (m *MemoryLedger) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sent[key]
	return ok, nil
}

// Record stores a; an existing key is kept.
func (m *MemoryLedger) Record(_ context.Context, a store.SentAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sent[a.Key]; !ok {
		m.sent[a.Key] = a
	}
	return nil
}

// Prune drops alerts whose window reset before the given time.
func (m *MemoryLedger) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, a := range m.sent {
		if a.ResetsAt.Before(before) {
			delete(m.sent, k)
			n++
		}
	}
	return n, nil
}
