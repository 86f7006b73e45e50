package pricing

import (
	"fmt"
	"math"

	"github.com/krisalay/ops-engine/errs"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate rejects prices and market data the formula would turn into NaN,
// infinities or negative prices.
func Validate(basePrice, demandLevel float64, md *MarketData) error {
	if !finite(basePrice) || basePrice <= 0 {
		return errs.Invalid(Op, "basePrice", "must be a finite number > 0, got %v", basePrice)
	}
	if math.IsNaN(demandLevel) {
		return errs.Invalid(Op, "demandLevel", "must be a number")
	}
	if md == nil {
		return nil
	}
	for i, p := range md.CompetitorPrices {
		if !finite(p) || p <= 0 {
			return errs.Invalid(Op, fmt.Sprintf("competitorPrices[%d]", i), "must be a finite number > 0, got %v", p)
		}
	}
	if f := md.SeasonalFactor; f != nil && (!finite(*f) || *f <= 0) {
		return errs.Invalid(Op, "seasonalFactor", "must be a finite number > 0, got %v", *f)
	}
	if e := md.Elasticity; e != nil && !finite(*e) {
		return errs.Invalid(Op, "elasticity", "must be finite, got %v", *e)
	}
	return nil
}
