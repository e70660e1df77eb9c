package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/theirongolddev/cxburn/internal/model"
)

// DayLayout is the canonical day key format.
const DayLayout = "2006-01-02"

// Project scope identifiers accepted by FilterByScope.
const (
	ScopeAll        = "all"
	ScopeUnassigned = "unassigned"
)

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayKey returns the calendar day of t in loc as "2006-01-02".
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// AggregateDaily buckets sessions whose start falls within [since, until)
// into calendar days in loc. A zero bound is unbounded. Only days with at
// least one session are returned, oldest first.
func AggregateDaily(sessions []model.SessionUsage, since, until time.Time, loc *time.Location) []model.DailyUsage {
	filtered := FilterByTime(sessions, since, until)

	dayMap := make(map[string]*model.DailyUsage)
	for _, s := range filtered {
		key := DayKey(s.Timestamp, loc)
		ds, ok := dayMap[key]
		if !ok {
			ds = &model.DailyUsage{Date: StartOfDay(s.Timestamp, loc)}
			dayMap[key] = ds
		}

		ds.Sessions++
		ds.InputTokens += s.InputTokens
		ds.CachedInputTokens += s.CachedInputTokens
		ds.OutputTokens += s.OutputTokens
		ds.ReasoningTokens += s.ReasoningTokens
		ds.TotalTokens += s.TotalTokens
		ds.EstimatedCost += s.EstimatedCost
		ds.UsedFallbackPricing = ds.UsedFallbackPricing || s.UsedFallbackPricing
	}

	days := make([]model.DailyUsage, 0, len(dayMap))
	for _, ds := range dayMap {
		days = append(days, *ds)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})
	return days
}

// IndexByDay keys daily buckets by DayKey.
func IndexByDay(days []model.DailyUsage, loc *time.Location) map[string]model.DailyUsage {
	return lo.KeyBy(days, func(d model.DailyUsage) string {
		return DayKey(d.Date, loc)
	})
}

// AggregateProjects computes per-project statistics from sessions.
// Sessions without a project are grouped under the empty name.
func AggregateProjects(sessions []model.SessionUsage, since, until time.Time) []model.ProjectStats {
	filtered := FilterByTime(sessions, since, until)

	projMap := make(map[string]*model.ProjectStats)
	for _, s := range filtered {
		name := normalizeProject(s.Project)
		ps, ok := projMap[name]
		if !ok {
			ps = &model.ProjectStats{Project: name}
			projMap[name] = ps
		}
		ps.Sessions++
		ps.TotalTokens += s.TotalTokens
		ps.EstimatedCost += s.EstimatedCost
	}

	// Sort by cost descending
	projects := make([]model.ProjectStats, 0, len(projMap))
	for _, ps := range projMap {
		projects = append(projects, *ps)
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].EstimatedCost != projects[j].EstimatedCost {
			return projects[i].EstimatedCost > projects[j].EstimatedCost
		}
		if projects[i].TotalTokens != projects[j].TotalTokens {
			return projects[i].TotalTokens > projects[j].TotalTokens
		}
		return projects[i].Project < projects[j].Project
	})
	return projects
}

// AggregateHourly computes token volume by hour of day in loc.
// Each session is attributed to its start hour.
func AggregateHourly(sessions []model.SessionUsage, since, until time.Time, loc *time.Location) []model.HourlyStats {
	filtered := FilterByTime(sessions, since, until)

	hours := make([]model.HourlyStats, 24)
	for i := range hours {
		hours[i].Hour = i
	}
	for _, s := range filtered {
		h := s.Timestamp.In(loc).Hour()
		hours[h].Sessions++
		hours[h].Tokens += s.TotalTokens
	}
	return hours
}

// FilterByTime returns sessions whose start time falls within [since, until).
func FilterByTime(sessions []model.SessionUsage, since, until time.Time) []model.SessionUsage {
	if since.IsZero() && until.IsZero() {
		return sessions
	}

	var result []model.SessionUsage
	for _, s := range sessions {
		if s.Timestamp.IsZero() {
			continue
		}
		if !since.IsZero() && s.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && !s.Timestamp.Before(until) {
			continue
		}
		result = append(result, s)
	}
	return result
}

// FilterByScope narrows sessions to one project scope. An empty scope or
// ScopeAll keeps everything; ScopeUnassigned keeps sessions without a project.
func FilterByScope(sessions []model.SessionUsage, scope string) []model.SessionUsage {
	switch scope {
	case "", ScopeAll:
		return sessions
	case ScopeUnassigned:
		return lo.Filter(sessions, func(s model.SessionUsage, _ int) bool {
			return normalizeProject(s.Project) == ""
		})
	default:
		want := strings.TrimSpace(scope)
		return lo.Filter(sessions, func(s model.SessionUsage, _ int) bool {
			return normalizeProject(s.Project) == want
		})
	}
}

// ProjectScopes lists the selectable scopes: ScopeAll, every project name in
// order, then ScopeUnassigned when any session has no project.
func ProjectScopes(sessions []model.SessionUsage) []string {
	names := lo.Uniq(lo.FilterMap(sessions, func(s model.SessionUsage, _ int) (string, bool) {
		name := normalizeProject(s.Project)
		return name, name != ""
	}))
	sort.Strings(names)

	scopes := append([]string{ScopeAll}, names...)
	if lo.SomeBy(sessions, func(s model.SessionUsage) bool { return normalizeProject(s.Project) == "" }) {
		scopes = append(scopes, ScopeUnassigned)
	}
	return scopes
}

func normalizeProject(name string) string {
	return strings.TrimSpace(name)
}
