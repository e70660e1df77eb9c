package pipeline

import (
	"sort"
	"time"

	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/model"
)

// TokenTypeCosts holds aggregate costs split by token type.
type TokenTypeCosts struct {
	InputCost       float64
	CachedInputCost float64
	OutputCost      float64
	TotalCost       float64
}

// AggregateModels computes a per-tier cost breakdown. Components are
// re-estimated from the session's raw counters so they sum to the session cost.
func AggregateModels(sessions []model.SessionUsage, since, until time.Time, pricing *config.PricingTable) ([]model.ModelStats, TokenTypeCosts) {
	if pricing == nil {
		pricing = config.DefaultPricingTable()
	}
	filtered := FilterByTime(sessions, since, until)

	var totals TokenTypeCosts
	byTier := make(map[config.PricingTier]*model.ModelStats)

	for _, s := range filtered {
		est := pricing.Estimate(s.Model, s.InputTokens, s.CachedInputTokens, s.OutputTokens)

		row, ok := byTier[est.Tier]
		if !ok {
			row = &model.ModelStats{Tier: string(est.Tier)}
			byTier[est.Tier] = row
		}
		row.Sessions++
		row.InputTokens += s.InputTokens
		row.CachedInputTokens += s.CachedInputTokens
		row.OutputTokens += s.OutputTokens
		row.InputCost += est.InputCost
		row.CachedInputCost += est.CachedInputCost
		row.OutputCost += est.OutputCost
		row.EstimatedCost += est.Cost
		row.UsedFallbackPricing = row.UsedFallbackPricing || est.UsedFallbackPricing

		totals.InputCost += est.InputCost
		totals.CachedInputCost += est.CachedInputCost
		totals.OutputCost += est.OutputCost
		totals.TotalCost += est.Cost
	}

	rows := make([]model.ModelStats, 0, len(byTier))
	for _, row := range byTier {
		if totals.TotalCost > 0 {
			row.SharePercent = row.EstimatedCost / totals.TotalCost * 100
		}
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EstimatedCost != rows[j].EstimatedCost {
			return rows[i].EstimatedCost > rows[j].EstimatedCost
		}
		return rows[i].Tier < rows[j].Tier
	})

	return rows, totals
}
