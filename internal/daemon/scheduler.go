package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/theirongolddev/cxburn/internal/pipeline"
)

// ScanFunc runs one scan. It returns the context error when cancelled.
type ScanFunc func(ctx context.Context) (*pipeline.Snapshot, error)

// Scheduler debounces scan triggers and runs at most one scan at a time.
// Starting a scan cancels the one in flight; results of a scan that was
// superseded are dropped, so consumers keep their previous state.
type Scheduler struct {
	base     context.Context
	delay    time.Duration
	scan     ScanFunc
	onResult func(*pipeline.Snapshot)
	onError  func(error)

	mu         sync.Mutex
	generation uint64
	started    uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	stopped    bool
	wg         sync.WaitGroup

	deliverMu sync.Mutex
	delivered uint64
}

// NewScheduler returns a scheduler whose scans derive from ctx.
func NewScheduler(ctx context.Context, delay time.Duration, scan ScanFunc, onResult func(*pipeline.Snapshot), onError func(error)) *Scheduler {
	if onError == nil {
		onError = func(error) {}
	}
	return &Scheduler{
		base:     ctx,
		delay:    delay,
		scan:     scan,
		onResult: onResult,
		onError:  onError,
	}
}

// Trigger requests a scan after the debounce delay. Another trigger within
// the delay restarts the wait.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.base.Err() != nil {
		return
	}

	s.generation++
	gen := s.generation
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		s.run(gen)
	})
}

// Stop cancels pending and running scans and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.generation || s.base.Err() != nil {
		// Stale timer
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.started = gen
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer cancel()

	snap, err := s.scan(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	superseded := s.started != gen
	s.mu.Unlock()
	if superseded || gen <= s.delivered {
		return
	}
	s.delivered = gen

	if err != nil {
		s.onError(err)
		return
	}
	s.onResult(snap)
}
