package source

import (
	"sort"
	"time"

	"github.com/theirongolddev/cxburn/internal/model"
)

const (
	// RollingWindow is the trailing window of TokensInLastHour.
	RollingWindow = time.Hour

	// RecentActivityWindow forces a re-parse of files whose latest usage is
	// this recent, even when the fingerprint is unchanged.
	RecentActivityWindow = 2 * time.Hour
)

// RollingHourDelta returns the tokens consumed in the hour before now from
// cumulative checkpoints. The baseline is the latest checkpoint at or before
// now-1h, or zero when there is none.
func RollingHourDelta(checkpoints []model.Checkpoint, now time.Time) int64 {
	if len(checkpoints) == 0 {
		return 0
	}

	sorted := make([]model.Checkpoint, len(checkpoints))
	copy(sorted, checkpoints)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Total < sorted[j].Total
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	cutoff := now.Add(-RollingWindow)
	var latest, baseline int64
	hasLatest := false
	for _, cp := range sorted {
		if cp.Timestamp.After(now) {
			break
		}
		latest = cp.Total
		hasLatest = true
		if !cp.Timestamp.After(cutoff) {
			baseline = cp.Total
		}
	}

	if !hasLatest {
		return 0
	}
	return max(0, latest-baseline)
}

// NeedsRescan reports whether a cached summary is recent enough that its
// trailing-hour figure may have decayed since it was computed.
func NeedsRescan(s *model.SessionSummary, now time.Time) bool {
	if s == nil {
		return false
	}
	if s.TokensInLastHour > 0 {
		return true
	}
	if s.LatestUsage.IsZero() {
		return false
	}
	return !s.LatestUsage.Before(now.Add(-RecentActivityWindow))
}
