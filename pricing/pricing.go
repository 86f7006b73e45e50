// Package pricing adjusts a base price for demand, competition and season and
// estimates the revenue the adjusted price would bring.
package pricing

import (
	"math"
	"time"

	"github.com/apex/log"

	"github.com/krisalay/ops-engine/errs"
)

// Op names pricing in errors and metrics.
const Op = "pricing"

const (
	// DefaultElasticity is used when MarketData carries none.
	DefaultElasticity = 1.2

	maxConfidence = 0.95
)

// MarketData is optional context for a pricing call. Nil pointers mean "not known".
type MarketData struct {
	CompetitorPrices []float64 `json:"competitorPrices,omitempty"`
	SeasonalFactor   *float64  `json:"seasonalFactor,omitempty"`
	Elasticity       *float64  `json:"elasticity,omitempty"`
}

// Factors mirrors the three multipliers applied to the base price.
type Factors struct {
	Demand      float64 `json:"demand"`
	Competitive float64 `json:"competitive"`
	Seasonal    float64 `json:"seasonal"`
}

// Optimization is the outcome of one pricing call.
type Optimization struct {
	BasePrice             float64 `json:"basePrice"`
	OptimizedPrice        float64 `json:"optimizedPrice"`
	AdjustmentFactors     Factors `json:"adjustmentFactors"`
	DemandMultiplier      float64 `json:"demandMultiplier"`
	CompetitiveAdjustment float64 `json:"competitiveAdjustment"`
	SeasonalAdjustment    float64 `json:"seasonalAdjustment"`
	ExpectedRevenue       float64 `json:"expectedRevenue"`
	Confidence            float64 `json:"confidence"`
	ProcessingTimeMs      float64 `json:"processingTimeMs"`
}

// Optimizer computes prices. It is stateless apart from its logger.
type Optimizer struct {
	logger log.Interface
}

// New builds an Optimizer. A nil logger falls back to log.Log.
func New(logger log.Interface) *Optimizer {
	if logger == nil {
		logger = log.Log
	}
	return &Optimizer{logger: logger}
}

// Optimize validates the input and prices it. demandLevel is clamped to [0, 1].
func (o *Optimizer) Optimize(basePrice, demandLevel float64, md *MarketData) (out Optimization, err error) {
	if err := Validate(basePrice, demandLevel, md); err != nil {
		return Optimization{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = errs.FromPanic(Op, r)
			o.logger.WithError(err).Error("pricing failed")
		}
	}()

	start := time.Now()
	out = Compute(basePrice, demandLevel, md)
	if !finite(out.OptimizedPrice) || !finite(out.ExpectedRevenue) {
		return Optimization{}, errs.Invalid(Op, "basePrice", "out of range: optimized price %v, expected revenue %v",
			out.OptimizedPrice, out.ExpectedRevenue)
	}
	out.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000

	o.logger.WithFields(log.Fields{
		"base":      basePrice,
		"demand":    demandLevel,
		"optimized": out.OptimizedPrice,
	}).Debug("price computed")
	return out, nil
}

// Compute is the pricing formula on already validated input.
func Compute(basePrice, demandLevel float64, md *MarketData) Optimization {
	if md == nil {
		md = &MarketData{}
	}
	demand := clamp01(demandLevel)

	demandMultiplier := DemandMultiplier(demand)
	competitive := CompetitiveAdjustment(basePrice, md.CompetitorPrices)
	seasonal := 1.0
	if md.SeasonalFactor != nil {
		seasonal = *md.SeasonalFactor
	}
	elasticity := DefaultElasticity
	if md.Elasticity != nil {
		elasticity = *md.Elasticity
	}

	optimized := round2(basePrice * demandMultiplier * competitive * seasonal)
	priceChange := (optimized - basePrice) / basePrice
	demandChange := -elasticity * priceChange

	return Optimization{
		BasePrice:      basePrice,
		OptimizedPrice: optimized,
		AdjustmentFactors: Factors{
			Demand:      demandMultiplier,
			Competitive: competitive,
			Seasonal:    seasonal,
		},
		DemandMultiplier:      demandMultiplier,
		CompetitiveAdjustment: competitive,
		SeasonalAdjustment:    seasonal,
		ExpectedRevenue:       round2(optimized * (1 + demandChange)),
		Confidence:            confidence(demand, len(md.CompetitorPrices)),
	}
}

// DemandMultiplier maps a demand level in [0, 1] linearly onto [0.8, 1.5].
func DemandMultiplier(demand float64) float64 {
	return 0.8 + clamp01(demand)*0.7
}

// CompetitiveAdjustment nudges prices toward the competitor mean: up 5% when we are
// more than 5% below it, down 2% when more than 5% above, unchanged otherwise.
func CompetitiveAdjustment(basePrice float64, competitors []float64) float64 {
	if len(competitors) == 0 {
		return 1.0
	}
	var sum float64
	for _, p := range competitors {
		sum += p
	}
	ratio := basePrice / (sum / float64(len(competitors)))
	switch {
	case ratio < 0.95:
		return 1.05
	case ratio > 1.05:
		return 0.98
	default:
		return 1.0
	}
}

func confidence(demand float64, competitors int) float64 {
	c := 0.7 + demand*0.15 + math.Min(float64(competitors)/10, 0.15)
	return math.Min(maxConfidence, c)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
