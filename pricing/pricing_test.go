package pricing_test

import (
	"math"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/ops-engine/errs"
	"github.com/krisalay/ops-engine/pricing"
)

func ptr(v float64) *float64 { return &v }

func newOptimizer() *pricing.Optimizer {
	return pricing.New(&log.Logger{Handler: discard.Default, Level: log.ErrorLevel})
}

func TestScenarioA(t *testing.T) {
	out, err := newOptimizer().Optimize(100, 0.5, &pricing.MarketData{
		CompetitorPrices: []float64{95, 96, 97},
		SeasonalFactor:   ptr(1.0),
		Elasticity:       ptr(1.2),
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.15, out.DemandMultiplier, 1e-9)
	assert.Equal(t, 1.0, out.CompetitiveAdjustment)
	assert.Equal(t, 1.0, out.SeasonalAdjustment)
	assert.Equal(t, 115.0, out.OptimizedPrice)
	assert.Equal(t, 94.3, out.ExpectedRevenue)
	assert.InDelta(t, 0.925, out.Confidence, 1e-9)
	assert.Equal(t, 100.0, out.BasePrice)
	assert.Equal(t, pricing.Factors{
		Demand:      out.DemandMultiplier,
		Competitive: 1.0,
		Seasonal:    1.0,
	}, out.AdjustmentFactors)
}

func TestDefaultsWithoutMarketData(t *testing.T) {
	out, err := newOptimizer().Optimize(200, 0, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, out.DemandMultiplier, 1e-9)
	assert.Equal(t, 1.0, out.CompetitiveAdjustment)
	assert.Equal(t, 1.0, out.SeasonalAdjustment)
	assert.Equal(t, 160.0, out.OptimizedPrice)
	// priceChange -0.2, demandChange +0.24 at the default elasticity
	assert.Equal(t, 198.4, out.ExpectedRevenue)
	assert.InDelta(t, 0.7, out.Confidence, 1e-9)
}

func TestDemandRangeLaw(t *testing.T) {
	prev := math.Inf(-1)
	for i := 0; i <= 100; i++ {
		m := pricing.DemandMultiplier(float64(i) / 100)
		assert.GreaterOrEqual(t, m, 0.8-1e-12)
		assert.LessOrEqual(t, m, 1.5+1e-12)
		assert.GreaterOrEqual(t, m, prev)
		prev = m
	}
}

func TestDemandLevelIsClamped(t *testing.T) {
	opt := newOptimizer()

	high, err := opt.Optimize(100, 7, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, high.DemandMultiplier, 1e-9)
	assert.InDelta(t, 0.85, high.Confidence, 1e-9)

	low, err := opt.Optimize(100, -3, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, low.DemandMultiplier, 1e-9)
	assert.InDelta(t, 0.7, low.Confidence, 1e-9)
}

func TestCompetitiveAdjustment(t *testing.T) {
	tests := []struct {
		name        string
		base        float64
		competitors []float64
		want        float64
	}{
		{"no competitors", 100, nil, 1.0},
		{"well below market", 90, []float64{100}, 1.05},
		{"well above market", 110, []float64{100}, 0.98},
		{"lower band edge", 95, []float64{100}, 1.0},
		{"upper band edge", 105, []float64{100}, 1.0},
		{"mean of several", 100, []float64{80, 120, 100}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pricing.CompetitiveAdjustment(tt.base, tt.competitors))
		})
	}
}

func TestConfidenceIsCapped(t *testing.T) {
	out, err := newOptimizer().Optimize(100, 1, &pricing.MarketData{
		CompetitorPrices: []float64{90, 91, 92, 93, 94, 95, 96, 97, 98, 99, 100, 101},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.95, out.Confidence)
}

func TestSeasonalAndElasticity(t *testing.T) {
	out, err := newOptimizer().Optimize(50, 1, &pricing.MarketData{
		SeasonalFactor: ptr(1.2),
		Elasticity:     ptr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1.2, out.SeasonalAdjustment)
	assert.Equal(t, 90.0, out.OptimizedPrice)
	// zero elasticity leaves demand unchanged
	assert.Equal(t, 90.0, out.ExpectedRevenue)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		base   float64
		demand float64
		md     *pricing.MarketData
		field  string
	}{
		{"zero base", 0, 0.5, nil, "basePrice"},
		{"negative base", -10, 0.5, nil, "basePrice"},
		{"infinite base", math.Inf(1), 0.5, nil, "basePrice"},
		{"NaN base", math.NaN(), 0.5, nil, "basePrice"},
		{"NaN demand", 100, math.NaN(), nil, "demandLevel"},
		{"zero competitor", 100, 0.5, &pricing.MarketData{CompetitorPrices: []float64{90, 0}}, "competitorPrices[1]"},
		{"NaN competitor", 100, 0.5, &pricing.MarketData{CompetitorPrices: []float64{math.NaN()}}, "competitorPrices[0]"},
		{"zero season", 100, 0.5, &pricing.MarketData{SeasonalFactor: ptr(0)}, "seasonalFactor"},
		{"infinite elasticity", 100, 0.5, &pricing.MarketData{Elasticity: ptr(math.Inf(-1))}, "elasticity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newOptimizer().Optimize(tt.base, tt.demand, tt.md)
			require.Error(t, err)
			assert.True(t, errs.IsInvalid(err))

			var ve *errs.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, pricing.Op, ve.Op)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestOverflowingResultIsRejected(t *testing.T) {
	tests := []struct {
		name   string
		base   float64
		demand float64
		md     *pricing.MarketData
	}{
		{"huge base", 1e308, 1, nil},
		{"huge season", 1e300, 0.5, &pricing.MarketData{SeasonalFactor: ptr(1e10)}},
		{"huge elasticity", 100, 1, &pricing.MarketData{Elasticity: ptr(1e308)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newOptimizer().Optimize(tt.base, tt.demand, tt.md)
			require.Error(t, err)
			assert.True(t, errs.IsInvalid(err))
			assert.Zero(t, out)
		})
	}
}

func TestInfiniteDemandIsClamped(t *testing.T) {
	out, err := newOptimizer().Optimize(100, math.Inf(1), nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, out.DemandMultiplier, 1e-9)
}
