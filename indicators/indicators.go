// Package indicators provides technical analysis indicators for trading
package indicators

import (
	"fmt"

	"github.com/rustyeddy/pipcalc/market"
)

// Indicator computes a single streaming value from candles.
// It is deterministic and safe to use on live or replayed data.
type Indicator interface {
	// Name returns a stable identifier like "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* candle and updates internal state.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current indicator value, 0 until Ready().
	Value() float64
}

// Run resets ind, feeds it every candle in order and returns the final
// value. It fails if the candles never complete the warmup.
func Run(ind Indicator, candles []market.Candle) (float64, error) {
	ind.Reset()
	for _, c := range candles {
		ind.Update(c)
	}
	if !ind.Ready() {
		return 0, fmt.Errorf("%s: not enough candles: need %d, got %d", ind.Name(), ind.Warmup(), len(candles))
	}
	return ind.Value(), nil
}
