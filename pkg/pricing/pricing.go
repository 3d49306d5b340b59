package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Rate holds per-1K-token prices in USD for one model family.
type Rate struct {
	RealtimePer1K decimal.Decimal
	TextPer1K     decimal.Decimal
}

var (
	defaultRate = Rate{
		RealtimePer1K: decimal.NewFromFloat(0.06),
		TextPer1K:     decimal.NewFromFloat(0.01),
	}

	// Rates are keyed by model prefix; the longest matching prefix wins.
	ratesByPrefix = map[string]Rate{
		"gpt-4o-realtime": {
			RealtimePer1K: decimal.NewFromFloat(0.06),
			TextPer1K:     decimal.NewFromFloat(0.02),
		},
		"gpt-4o-mini-realtime": {
			RealtimePer1K: decimal.NewFromFloat(0.012),
			TextPer1K:     decimal.NewFromFloat(0.004),
		},
		"gpt-4o-mini": {
			RealtimePer1K: decimal.Zero,
			TextPer1K:     decimal.NewFromFloat(0.0006),
		},
		"gpt-4o": {
			RealtimePer1K: decimal.Zero,
			TextPer1K:     decimal.NewFromFloat(0.01),
		},
	}

	thousand = decimal.NewFromInt(1000)
)

// RateFor resolves the price table entry for a model name.
func RateFor(model string) Rate {
	model = strings.TrimSpace(strings.ToLower(model))
	best := ""
	for prefix := range ratesByPrefix {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return defaultRate
	}
	return ratesByPrefix[best]
}

// EstimateCost returns the approximate USD spend for the given token counts,
// rounded to four decimal places.
func EstimateCost(model string, realtimeTokens, textTokens int64) decimal.Decimal {
	rate := RateFor(model)
	realtime := decimal.NewFromInt(realtimeTokens).Div(thousand).Mul(rate.RealtimePer1K)
	text := decimal.NewFromInt(textTokens).Div(thousand).Mul(rate.TextPer1K)
	return realtime.Add(text).Round(4)
}
