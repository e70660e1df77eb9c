package config

import (
	"math"
	"testing"
)

func TestResolvePricing(t *testing.T) {
	tests := []struct {
		model      string
		tier       PricingTier
		normalized string
		fallback   bool
	}{
		{"gpt-5.3-codex", TierGPT53CodexAlias, "gpt-5.3-codex", true},
		{"  GPT-5.3-Codex-High ", TierGPT53CodexAlias, "gpt-5.3-codex", true},
		{"gpt-5.2-codex-mini", TierGPT52CodexMini, "gpt-5.2-codex-mini", false},
		{"gpt-5.2-codex", TierGPT52Codex, "gpt-5.2-codex", false},
		{"GPT-5.2-CODEX", TierGPT52Codex, "gpt-5.2-codex", false},
		{"codex-mini-latest", TierFallbackCodexMini, "codex-mini-latest", true},
		{"gpt-5-codex", TierFallbackCodex, "gpt-5-codex", true},
		{"o3", TierFallbackCodex, "o3", true},
		{"", TierFallbackCodex, UnknownModel, true},
		{"   ", TierFallbackCodex, UnknownModel, true},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got := ResolvePricing(tt.model)
			if got.Tier != tt.tier {
				t.Errorf("Tier = %q, want %q", got.Tier, tt.tier)
			}
			if got.NormalizedModel != tt.normalized {
				t.Errorf("NormalizedModel = %q, want %q", got.NormalizedModel, tt.normalized)
			}
			if got.UsedFallbackPricing() != tt.fallback {
				t.Errorf("UsedFallbackPricing = %v, want %v", got.UsedFallbackPricing(), tt.fallback)
			}
		})
	}
}

func TestEstimateCost_AliasMatchesCanonicalRates(t *testing.T) {
	alias := EstimateCost("gpt-5.3-codex", 200, 50, 90)
	canonical := EstimateCost("gpt-5.2-codex", 200, 50, 90)

	if math.Abs(alias.Cost-canonical.Cost) > 1e-12 {
		t.Fatalf("alias cost = %.10f, canonical = %.10f", alias.Cost, canonical.Cost)
	}
	if !alias.UsedFallbackPricing {
		t.Error("alias should be flagged as fallback pricing")
	}
	if canonical.UsedFallbackPricing {
		t.Error("canonical model should not be flagged as fallback pricing")
	}
	if math.Abs(alias.Cost-0.00077125) > 1e-12 {
		t.Fatalf("Cost = %.10f, want 0.00077125", alias.Cost)
	}
}

func TestEstimateCost_MiniRates(t *testing.T) {
	got := EstimateCost("gpt-5.2-codex-mini", 1_000_000, 0, 1_000_000)
	want := 0.30 + 1.20
	if math.Abs(got.Cost-want) > 1e-9 {
		t.Fatalf("Cost = %.6f, want %.6f", got.Cost, want)
	}
}

func TestEstimateCost_ClampsNegatives(t *testing.T) {
	got := EstimateCost("gpt-5.2-codex", -100, -50, -10)
	if got.Cost != 0 {
		t.Fatalf("Cost = %f, want 0", got.Cost)
	}

	// cached larger than input bills no non-cached input
	got = EstimateCost("gpt-5.2-codex", 10, 1_000_000, 0)
	if got.InputCost != 0 {
		t.Fatalf("InputCost = %f, want 0", got.InputCost)
	}
	if math.Abs(got.CachedInputCost-0.125) > 1e-9 {
		t.Fatalf("CachedInputCost = %f, want 0.125", got.CachedInputCost)
	}
}

func TestEstimateCost_AdditiveInInput(t *testing.T) {
	base := EstimateCost("gpt-5.2-codex", 1_000, 200, 300)
	more := EstimateCost("gpt-5.2-codex", 1_500, 200, 300)
	extra := 500 * DefaultPricing[TierGPT52Codex].InputPerMTok / 1_000_000

	if math.Abs(more.Cost-(base.Cost+extra)) > 1e-12 {
		t.Fatalf("cost(1500) = %.10f, want %.10f", more.Cost, base.Cost+extra)
	}
}

func TestNewPricingTable_Overrides(t *testing.T) {
	in := 2.0
	table := NewPricingTable(map[string]ModelPricingOverride{
		string(TierGPT52Codex): {InputPerMTok: &in},
		"not-a-tier":           {InputPerMTok: &in},
	})

	got := table.Rates(TierGPT52Codex)
	if got.InputPerMTok != 2.0 {
		t.Fatalf("InputPerMTok = %.2f, want 2.0", got.InputPerMTok)
	}
	if got.OutputPerMTok != DefaultPricing[TierGPT52Codex].OutputPerMTok {
		t.Fatalf("OutputPerMTok = %.2f, want default", got.OutputPerMTok)
	}
	if DefaultPricing[TierGPT52Codex].InputPerMTok != 1.50 {
		t.Fatal("overrides must not mutate DefaultPricing")
	}
}
