package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Ledger is a SQLite record of rate-limit alerts that were already sent.
type Ledger struct {
	db *sql.DB
}

// SentAlert is one ledger row.
type SentAlert struct {
	Key              string
	WindowKind       string
	Threshold        float64
	RemainingPercent float64
	ResetsAt         time.Time
	SentAt           time.Time
}

// OpenLedger opens or creates the ledger database at the given path.
func OpenLedger(dbPath string) (*Ledger, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Seen reports whether an alert with this key was already recorded.
func (l *Ledger) Seen(ctx context.Context, key string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sent_alerts WHERE alert_key = ?", key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}
	return n > 0, nil
}

// Record stores a sent alert. Recording an existing key is a no-op.
func (l *Ledger) Record(ctx context.Context, a SentAlert) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO sent_alerts
		(alert_key, window_kind, threshold, remaining_percent, resets_at, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Key, a.WindowKind, a.Threshold, a.RemainingPercent,
		a.ResetsAt.UTC().Format(time.RFC3339), a.SentAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording alert: %w", err)
	}

	return tx.Commit()
}

// Prune deletes alerts whose window reset before the given time and returns
// how many rows were removed.
func (l *Ledger) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM sent_alerts WHERE resets_at < ?",
		before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("pruning ledger: %w", err)
	}
	return res.RowsAffected()
}

// Recent returns the most recently sent alerts, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]SentAlert, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT
		alert_key, window_kind, threshold, remaining_percent, resets_at, sent_at
		FROM sent_alerts ORDER BY sent_at DESC, alert_key LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SentAlert
	for rows.Next() {
		var a SentAlert
		var resetsStr, sentStr string
		if err := rows.Scan(&a.Key, &a.WindowKind, &a.Threshold, &a.RemainingPercent, &resetsStr, &sentStr); err != nil {
			return nil, err
		}
		a.ResetsAt, _ = time.Parse(time.RFC3339, resetsStr)
		a.SentAt, _ = time.Parse(time.RFC3339, sentStr)
		out = append(out, a)
	}
	return out, rows.Err()
}
