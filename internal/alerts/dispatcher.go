package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/store"
)

// Ledger remembers which alert keys were already sent.
type Ledger interface {
	Seen(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, a store.SentAlert) error
	Prune(ctx context.Context, before time.Time) (int64, error)
}

var (
	_ Ledger = (*store.Ledger)(nil)
	_ Ledger = (*MemoryLedger)(nil)
)

// Dispatcher applies a Policy to rate-limit snapshots and notifies once per
// key.
type Dispatcher struct {
	policy   Policy
	ledger   Ledger
	notifier Notifier
}

// NewDispatcher wires a policy to its ledger and notifier.
func NewDispatcher(policy Policy, ledger Ledger, notifier Notifier) *Dispatcher {
	return &Dispatcher{policy: policy, ledger: ledger, notifier: notifier}
}

// Evaluate notifies about the most severe unsent threshold of each window and
// returns the alerts that were sent. Less severe thresholds crossed at the
// same time are recorded as sent so they never fire later for that window.
// Windows that already reset are skipped.
func (d *Dispatcher) Evaluate(ctx context.Context, snaps []model.RateLimitSnapshot, now time.Time) ([]Alert, error) {
	if _, err := d.ledger.Prune(ctx, now); err != nil {
		return nil, fmt.Errorf("pruning alert ledger: %w", err)
	}

	var sent []Alert
	for _, s := range snaps {
		if s.ResetsAt.IsZero() || s.ResetsAt.Before(now) {
			continue
		}

		var pending []Alert
		for _, a := range d.policy.Crossed(s) {
			seen, err := d.ledger.Seen(ctx, a.Key)
			if err != nil {
				return sent, err
			}
			if !seen {
				pending = append(pending, a)
			}
		}
		if len(pending) == 0 {
			continue
		}

		worst := pending[len(pending)-1]
		if err := d.notifier.Notify(ctx, worst); err != nil {
			return sent, fmt.Errorf("sending %s: %w", worst.Key, err)
		}
		sent = append(sent, worst)

		for _, a := range pending {
			err := d.ledger.Record(ctx, store.SentAlert{
				Key:              a.Key,
				WindowKind:       string(a.Kind),
				Threshold:        a.Threshold,
				RemainingPercent: a.RemainingPercent,
				ResetsAt:         a.ResetsAt,
				SentAt:           now,
			})
			if err != nil {
				return sent, err
			}
		}
	}
	return sent, nil
}
