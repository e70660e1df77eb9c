// Package pipeline scans session logs incrementally and derives aggregates
// and analytics from the resulting snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/model"
	"github.com/theirongolddev/cxburn/internal/source"
	"github.com/theirongolddev/cxburn/internal/store"
)

// ErrScanFailed is returned when a scan could not complete. Cancellation is
// reported as the context error instead.
var ErrScanFailed = errors.New("unable to refresh usage data")

// ProgressFunc is called during a scan to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// ScannerConfig controls a Scanner.
type ScannerConfig struct {
	// Root is the sessions directory to walk.
	Root string
	// CachePath is the scan cache file. Empty keeps the cache in memory for
	// the lifetime of the Scanner.
	CachePath string
	// Workers bounds parallel parsing. Zero uses GOMAXPROCS.
	Workers  int
	Pricing  *config.PricingTable
	Progress ProgressFunc
	// Logf receives non-fatal warnings. Nil uses log.Printf.
	Logf func(format string, args ...any)
}

// Snapshot is the immutable result of one scan.
type Snapshot struct {
	Sessions       []model.SessionUsage      `json:"sessions"`
	RateLimits     []model.RateLimitSnapshot `json:"rate_limits"`
	RateLimitEvent *model.RateLimitEvent     `json:"rate_limit_event,omitempty"`

	ScannedAt    time.Time `json:"scanned_at"`
	TotalFiles   int       `json:"total_files"`
	ScannedFiles int       `json:"scanned_files"`
	CacheHits    int       `json:"cache_hits"`
	RemovedFiles int       `json:"removed_files"`
	FileErrors   int       `json:"file_errors"`
	ParseErrors  int       `json:"parse_errors"`
	CacheWritten bool      `json:"cache_written"`
}

// Scanner owns the scan cache. Only one scan runs at a time; a caller
// waiting for its turn gives up when its context ends.
type Scanner struct {
	cfg ScannerConfig
	sem chan struct{}

	// memory holds the cache between scans when no CachePath is set.
	memory *store.ScanCache
}

// NewScanner returns a Scanner for the given config.
func NewScanner(cfg ScannerConfig) *Scanner {
	if cfg.Pricing == nil {
		cfg.Pricing = config.DefaultPricingTable()
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Scanner{
		cfg:    cfg,
		sem:    make(chan struct{}, 1),
		memory: store.NewScanCache(),
	}
}

// Scan discovers session logs, re-parses new, changed and recently active
// files, and returns a snapshot. Unchanged files are served from the cache.
// A cancelled scan returns the context error and leaves the persisted cache
// untouched.
func (s *Scanner) Scan(ctx context.Context, now time.Time) (*Snapshot, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	prev := s.loadCache()

	files, err := source.ScanDir(s.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %w", ErrScanFailed, s.cfg.Root, err)
	}

	snap := &Snapshot{ScannedAt: now, TotalFiles: len(files)}

	// Diff: partition into cache hits and files to parse
	next := make(map[string]store.CachedFile, len(files))
	var toParse []source.DiscoveredFile
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, ok := prev.Files[f.Path]
		if ok && entry.Fingerprint == f.Fingerprint && !source.NeedsRescan(entry.Summary, now) {
			next[f.Path] = entry
			snap.CacheHits++
			continue
		}
		toParse = append(toParse, f)
	}

	results, err := s.parseAll(ctx, toParse, now, snap.CacheHits, len(files))
	if err != nil {
		return nil, err
	}

	// Merge on this goroutine only; workers never touch the map.
	for i, f := range toParse {
		r := results[i]
		entry := store.CachedFile{Fingerprint: f.Fingerprint}
		if r.Err != nil {
			snap.FileErrors++
			s.cfg.Logf("cxburn: skipping %s: %v", f.Path, r.Err)
		} else {
			entry.Summary = r.Summary
			entry.RateLimit = r.RateLimit
			snap.ParseErrors += r.ParseErrors
		}
		next[f.Path] = entry
	}
	snap.ScannedFiles = len(toParse)

	for path := range prev.Files {
		if _, ok := next[path]; !ok {
			snap.RemovedFiles++
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updated := &store.ScanCache{
		Version:   store.ScanCacheVersion,
		UpdatedAt: now,
		Files:     next,
	}
	if snap.ScannedFiles > 0 || snap.RemovedFiles > 0 || len(next) != len(prev.Files) {
		if err := store.SaveScanCache(s.cfg.CachePath, updated); err != nil {
			s.cfg.Logf("cxburn: cache not saved: %v", err)
		} else {
			snap.CacheWritten = s.cfg.CachePath != ""
		}
	}
	s.memory = updated

	s.assemble(snap, files, updated)
	return snap, nil
}

func (s *Scanner) loadCache() *store.ScanCache {
	if s.cfg.CachePath == "" {
		return s.memory
	}
	c, err := store.LoadScanCache(s.cfg.CachePath)
	if err != nil {
		s.cfg.Logf("cxburn: ignoring scan cache: %v", err)
	}
	return c
}

func (s *Scanner) workers(n int) int {
	w := s.cfg.Workers
	if w < 1 {
		w = runtime.GOMAXPROCS(0)
	}
	if w < 1 {
		w = 4
	}
	return min(w, n)
}

// parseAll parses files on a bounded pool. Each worker writes only its own
// result slot. The only error is cancellation.
func (s *Scanner) parseAll(ctx context.Context, files []source.DiscoveredFile, now time.Time, done, total int) ([]source.ParseResult, error) {
	results := make([]source.ParseResult, len(files))
	if len(files) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers(len(files)))
	var processed atomic.Int64

	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = source.ParseFile(gctx, f, now)
			n := processed.Add(1)
			if s.cfg.Progress != nil {
				s.cfg.Progress(done+int(n), total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// assemble prices every cached summary and surfaces the latest rate-limit
// event across all files. Pricing happens here so cached summaries always
// reflect the current rates.
func (s *Scanner) assemble(snap *Snapshot, files []source.DiscoveredFile, c *store.ScanCache) {
	snap.Sessions = make([]model.SessionUsage, 0, len(files))
	for _, f := range files {
		entry := c.Files[f.Path]
		if entry.Summary != nil {
			snap.Sessions = append(snap.Sessions, PriceSession(s.cfg.Pricing, f.Path, *entry.Summary))
		}
		if ev := entry.RateLimit; ev != nil {
			if snap.RateLimitEvent == nil || ev.CapturedAt.After(snap.RateLimitEvent.CapturedAt) {
				snap.RateLimitEvent = ev
			}
		}
	}
	snap.RateLimits = RateLimitSnapshots(snap.RateLimitEvent)
}

// PriceSession projects a cached summary into a cost-annotated session.
func PriceSession(pricing *config.PricingTable, path string, sum model.SessionSummary) model.SessionUsage {
	est := pricing.Estimate(sum.Model, sum.InputTokens, sum.CachedInputTokens, sum.OutputTokens)
	return model.SessionUsage{
		SessionSummary:      sum,
		FilePath:            path,
		PricingTier:         string(est.Tier),
		EstimatedCost:       est.Cost,
		UsedFallbackPricing: est.UsedFallbackPricing,
	}
}
