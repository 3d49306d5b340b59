package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRateForPrefersLongestPrefix(t *testing.T) {
	mini := RateFor("gpt-4o-mini-realtime-preview-2024-12-17")
	assert.True(t, mini.RealtimePer1K.Equal(decimal.NewFromFloat(0.012)))

	full := RateFor("gpt-4o-realtime-preview")
	assert.True(t, full.RealtimePer1K.Equal(decimal.NewFromFloat(0.06)))

	unknown := RateFor("some-future-model")
	assert.True(t, unknown.RealtimePer1K.Equal(defaultRate.RealtimePer1K))
}

func TestEstimateCost(t *testing.T) {
	// 10K realtime at 0.06/1K plus 5K text at 0.02/1K
	cost := EstimateCost("gpt-4o-realtime-preview", 10_000, 5_000)
	assert.True(t, cost.Equal(decimal.NewFromFloat(0.7)), "got %s", cost)

	zero := EstimateCost("gpt-4o", 0, 0)
	assert.True(t, zero.IsZero())
}
