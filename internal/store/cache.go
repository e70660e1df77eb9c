// Package store persists the scan cache and the alert ledger.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/cxburn/internal/model"
)

// ScanCacheVersion is bumped whenever CachedFile changes shape. A cache with
// any other version is discarded on load.
const ScanCacheVersion = 1

// ScanCache maps a log file path to what was learned from it.
type ScanCache struct {
	Version   int                   `json:"version"`
	UpdatedAt time.Time             `json:"updated_at"`
	Files     map[string]CachedFile `json:"files"`
}

// CachedFile is one cache entry. A nil Summary records a file that had no
// usable token data or failed to parse.
type CachedFile struct {
	Fingerprint model.Fingerprint     `json:"fingerprint"`
	Summary     *model.SessionSummary `json:"summary,omitempty"`
	RateLimit   *model.RateLimitEvent `json:"rate_limit,omitempty"`
}

// NewScanCache returns an empty cache at the current version.
func NewScanCache() *ScanCache {
	return &ScanCache{
		Version: ScanCacheVersion,
		Files:   make(map[string]CachedFile),
	}
}

// LoadScanCache reads the cache at path. A missing file or a version
// mismatch yields an empty cache and no error. A corrupt file yields an
// empty cache and the decode error, which callers may log and ignore.
func LoadScanCache(path string) (*ScanCache, error) {
	if path == "" {
		return NewScanCache(), nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // cache path is chosen by the local user
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewScanCache(), nil
		}
		return NewScanCache(), fmt.Errorf("reading scan cache: %w", err)
	}

	var c ScanCache
	if err := json.Unmarshal(data, &c); err != nil {
		return NewScanCache(), fmt.Errorf("decoding scan cache: %w", err)
	}
	if c.Version != ScanCacheVersion {
		return NewScanCache(), nil
	}
	if c.Files == nil {
		c.Files = make(map[string]CachedFile)
	}
	return &c, nil
}

// SaveScanCache atomically replaces the cache at path: the document is
// written to a temp file in the same directory, synced, then renamed.
// An empty path is a no-op.
func SaveScanCache(path string, c *ScanCache) error {
	if path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding scan cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".scan-cache-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("replacing scan cache: %w", err)
	}
	return nil
}
