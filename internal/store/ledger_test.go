package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_RecordAndSeen(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

	seen, err := l.Seen(ctx, "rate-five_hour-1766000000-50")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatal("fresh ledger reports key as seen")
	}

	a := SentAlert{
		Key:              "rate-five_hour-1766000000-50",
		WindowKind:       "five_hour",
		Threshold:        50,
		RemainingPercent: 42,
		ResetsAt:         now.Add(time.Hour),
		SentAt:           now,
	}
	if err := l.Record(ctx, a); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, a); err != nil {
		t.Fatalf("Record duplicate: %v", err)
	}

	seen, err = l.Seen(ctx, a.Key)
	if err != nil || !seen {
		t.Fatalf("Seen = %v, %v; want true", seen, err)
	}

	recent, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Recent = %d rows, want 1", len(recent))
	}
	if !recent[0].ResetsAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ResetsAt = %v, want %v", recent[0].ResetsAt, now.Add(time.Hour))
	}
}

func TestLedger_Prune(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

	for i, resets := range []time.Time{now.Add(-2 * time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		err := l.Record(ctx, SentAlert{
			Key:        "k" + string(rune('a'+i)),
			WindowKind: "weekly",
			Threshold:  25,
			ResetsAt:   resets,
			SentAt:     now,
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	n, err := l.Prune(ctx, now)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned %d rows, want 2", n)
	}
	if seen, _ := l.Seen(ctx, "kc"); !seen {
		t.Error("future window was pruned")
	}
}
