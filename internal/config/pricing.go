package config

import "strings"

// UnknownModel labels sessions whose logs never named a model.
const UnknownModel = "unknown-codex"

// PricingTier identifies a row of the rate table.
type PricingTier string

// Known pricing tiers. The alias tier prices a newer model name at the
// rates of the closest canonical model until official rates are known.
const (
	TierGPT52Codex        PricingTier = "gpt-5.2-codex"
	TierGPT52CodexMini    PricingTier = "gpt-5.2-codex-mini"
	TierGPT53CodexAlias   PricingTier = "gpt-5.3-codex-alias"
	TierFallbackCodex     PricingTier = "fallback-codex"
	TierFallbackCodexMini PricingTier = "fallback-codex-mini"
)

// Tiers lists every tier in display order.
var Tiers = []PricingTier{
	TierGPT52Codex,
	TierGPT52CodexMini,
	TierGPT53CodexAlias,
	TierFallbackCodex,
	TierFallbackCodexMini,
}

// UsesFallback reports whether costs for the tier are approximate.
func (t PricingTier) UsesFallback() bool {
	switch t {
	case TierGPT52Codex, TierGPT52CodexMini:
		return false
	default:
		return true
	}
}

// ModelPricing holds per-million-token prices for a tier.
type ModelPricing struct {
	InputPerMTok       float64
	CachedInputPerMTok float64
	OutputPerMTok      float64
}

var (
	standardPricing = ModelPricing{InputPerMTok: 1.50, CachedInputPerMTok: 0.125, OutputPerMTok: 6.00}
	miniPricing     = ModelPricing{InputPerMTok: 0.30, CachedInputPerMTok: 0.025, OutputPerMTok: 1.20}
)

// DefaultPricing maps each tier to its rates.
var DefaultPricing = map[PricingTier]ModelPricing{
	TierGPT52Codex:        standardPricing,
	TierGPT52CodexMini:    miniPricing,
	TierGPT53CodexAlias:   standardPricing,
	TierFallbackCodex:     standardPricing,
	TierFallbackCodexMini: miniPricing,
}

type pricingRule struct {
	pattern    string
	tier       PricingTier
	normalized string // empty keeps the normalized input
}

// pricingRules are matched in order; the first rule whose pattern is
// contained in the normalized model name wins. Mini patterns must precede
// their non-mini counterparts.
var pricingRules = []pricingRule{
	{pattern: "gpt-5.3-codex", tier: TierGPT53CodexAlias, normalized: "gpt-5.3-codex"},
	{pattern: "gpt-5.2-codex-mini", tier: TierGPT52CodexMini, normalized: "gpt-5.2-codex-mini"},
	{pattern: "gpt-5.2-codex", tier: TierGPT52Codex, normalized: "gpt-5.2-codex"},
	{pattern: "codex-mini", tier: TierFallbackCodexMini},
	{pattern: "codex", tier: TierFallbackCodex},
}

// PricingResolution is the outcome of matching a model name to a tier.
type PricingResolution struct {
	Tier            PricingTier
	NormalizedModel string
}

// UsedFallbackPricing reports whether the resolution is approximate.
func (r PricingResolution) UsedFallbackPricing() bool {
	return r.Tier.UsesFallback()
}

// NormalizeModelName trims and lowercases a model identifier.
func NormalizeModelName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ResolvePricing maps a free-text model name to a pricing tier.
func ResolvePricing(model string) PricingResolution {
	normalized := NormalizeModelName(model)
	for _, rule := range pricingRules {
		if !strings.Contains(normalized, rule.pattern) {
			continue
		}
		name := rule.normalized
		if name == "" {
			name = normalized
		}
		return PricingResolution{Tier: rule.tier, NormalizedModel: name}
	}

	if normalized == "" {
		normalized = UnknownModel
	}
	return PricingResolution{Tier: TierFallbackCodex, NormalizedModel: normalized}
}

// CostEstimate is the priced form of a set of token counts.
type CostEstimate struct {
	Cost            float64
	InputCost       float64
	CachedInputCost float64
	OutputCost      float64

	Tier                PricingTier
	NormalizedModel     string
	UsedFallbackPricing bool
}

// PricingTable resolves tiers to rates, optionally with user overrides.
type PricingTable struct {
	rates map[PricingTier]ModelPricing
}

// DefaultPricingTable returns a table backed by DefaultPricing.
func DefaultPricingTable() *PricingTable {
	return NewPricingTable(nil)
}

// NewPricingTable returns a table with overrides applied on top of the
// default rates. Unknown tier names are ignored.
func NewPricingTable(overrides map[string]ModelPricingOverride) *PricingTable {
	rates := make(map[PricingTier]ModelPricing, len(DefaultPricing))
	for tier, p := range DefaultPricing {
		rates[tier] = p
	}
	for name, o := range overrides {
		tier := PricingTier(name)
		p, ok := rates[tier]
		if !ok {
			continue
		}
		if o.InputPerMTok != nil {
			p.InputPerMTok = *o.InputPerMTok
		}
		if o.CachedInputPerMTok != nil {
			p.CachedInputPerMTok = *o.CachedInputPerMTok
		}
		if o.OutputPerMTok != nil {
			p.OutputPerMTok = *o.OutputPerMTok
		}
		rates[tier] = p
	}
	return &PricingTable{rates: rates}
}

// Rates returns the rates for a tier.
func (t *PricingTable) Rates(tier PricingTier) ModelPricing {
	if p, ok := t.rates[tier]; ok {
		return p
	}
	return DefaultPricing[TierFallbackCodex]
}

// Estimate prices the token counts for a model. Cached input is a subset of
// input, so only the non-cached remainder is billed at the input rate.
// Negative counts are treated as zero.
func (t *PricingTable) Estimate(model string, input, cachedInput, output int64) CostEstimate {
	res := ResolvePricing(model)
	p := t.Rates(res.Tier)

	input = max(0, input)
	cachedInput = max(0, cachedInput)
	output = max(0, output)
	nonCached := max(0, input-cachedInput)

	est := CostEstimate{
		InputCost:           float64(nonCached) * p.InputPerMTok / 1_000_000,
		CachedInputCost:     float64(cachedInput) * p.CachedInputPerMTok / 1_000_000,
		OutputCost:          float64(output) * p.OutputPerMTok / 1_000_000,
		Tier:                res.Tier,
		NormalizedModel:     res.NormalizedModel,
		UsedFallbackPricing: res.UsedFallbackPricing(),
	}
	est.Cost = est.InputCost + est.CachedInputCost + est.OutputCost
	return est
}

var defaultTable = DefaultPricingTable()

// EstimateCost prices token counts with the default rates.
func EstimateCost(model string, input, cachedInput, output int64) CostEstimate {
	return defaultTable.Estimate(model, input, cachedInput, output)
}
