package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/cxburn/internal/model"
)

func TestScanCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scan-cache.json")
	ts := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

	c := NewScanCache()
	c.UpdatedAt = ts
	c.Files["/logs/a.jsonl"] = CachedFile{
		Fingerprint: model.Fingerprint{Size: 42, ModTimeNs: 1_700_000_000_123_456_789},
		Summary: &model.SessionSummary{
			SessionID:   "a",
			Model:       "gpt-5.2-codex",
			Timestamp:   ts,
			LatestUsage: ts.Add(time.Minute),
			TotalTokens: 300,
		},
		RateLimit: &model.RateLimitEvent{
			CapturedAt: ts,
			Primary:    &model.RateLimitWindow{UsedPercent: 12.5, WindowMinutes: 300, ResetsAt: ts.Add(time.Hour)},
		},
	}
	c.Files["/logs/broken.jsonl"] = CachedFile{Fingerprint: model.Fingerprint{Size: 7, ModTimeNs: 1}}

	if err := SaveScanCache(path, c); err != nil {
		t.Fatalf("SaveScanCache: %v", err)
	}

	got, err := LoadScanCache(path)
	if err != nil {
		t.Fatalf("LoadScanCache: %v", err)
	}
	if len(got.Files) != 2 {
		t.Fatalf("Files = %d, want 2", len(got.Files))
	}

	a := got.Files["/logs/a.jsonl"]
	if a.Fingerprint.ModTimeNs != 1_700_000_000_123_456_789 {
		t.Errorf("ModTimeNs = %d, want nanosecond precision preserved", a.Fingerprint.ModTimeNs)
	}
	if a.Summary == nil || a.Summary.TotalTokens != 300 {
		t.Errorf("Summary = %+v, want total 300", a.Summary)
	}
	if !a.Summary.LatestUsage.Equal(ts.Add(time.Minute)) {
		t.Errorf("LatestUsage = %v", a.Summary.LatestUsage)
	}
	if a.RateLimit == nil || a.RateLimit.Primary == nil || a.RateLimit.Secondary != nil {
		t.Errorf("RateLimit = %+v, want primary only", a.RateLimit)
	}
	if got.Files["/logs/broken.jsonl"].Summary != nil {
		t.Error("broken entry should round-trip without a summary")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("cache dir has %d entries, want only the cache file", len(entries))
	}
}

func TestLoadScanCache_Missing(t *testing.T) {
	c, err := LoadScanCache(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("LoadScanCache: %v", err)
	}
	if c.Version != ScanCacheVersion || len(c.Files) != 0 {
		t.Fatalf("got %+v, want empty current-version cache", c)
	}
}

func TestLoadScanCache_VersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan-cache.json")
	body := `{"version":999,"files":{"/logs/a.jsonl":{"fingerprint":{"size":1,"mtime_ns":1}}}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadScanCache(path)
	if err != nil {
		t.Fatalf("LoadScanCache: %v", err)
	}
	if len(c.Files) != 0 {
		t.Fatalf("Files = %d, want 0 after version mismatch", len(c.Files))
	}
}

func TestLoadScanCache_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan-cache.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"files":{`), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadScanCache(path)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if c == nil || len(c.Files) != 0 {
		t.Fatal("corrupt cache should still yield an empty usable cache")
	}
}

func TestScanCache_EmptyPathIsInMemory(t *testing.T) {
	if err := SaveScanCache("", NewScanCache()); err != nil {
		t.Fatalf("SaveScanCache(\"\"): %v", err)
	}
	c, err := LoadScanCache("")
	if err != nil || c == nil {
		t.Fatalf("LoadScanCache(\"\") = %v, %v", c, err)
	}
}
