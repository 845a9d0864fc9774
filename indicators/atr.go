package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/pipcalc/market"
)

// TrueRange is the largest of high-low, |high-prevClose| and
// |low-prevClose|.
func TrueRange(current, previous market.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)

	return math.Max(highLow, math.Max(highClose, lowClose))
}

func trueRanges(candles []market.Candle, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return nil, fmt.Errorf("not enough candles: need %d, got %d", period+1, len(candles))
	}

	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trs = append(trs, TrueRange(candles[i], candles[i-1]))
	}
	return trs, nil
}

// SimpleATR is the plain mean of the last period true ranges. This is
// the rolling-window ATR most charting packages show for daily data.
func SimpleATR(candles []market.Candle, period int) (float64, error) {
	trs, err := trueRanges(candles, period)
	if err != nil {
		return 0, err
	}

	sum := 0.0
	for _, tr := range trs[len(trs)-period:] {
		sum += tr
	}
	return sum / float64(period), nil
}

// ATRFunc calculates the Wilder smoothed Average True Range for the
// given period by running the streaming ATR over candles. Returns an
// error if there aren't enough candles.
func ATRFunc(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	return Run(NewATR(period), candles)
}

// ATRMethod selects how true ranges are averaged.
type ATRMethod string

const (
	SimpleMethod ATRMethod = "simple"
	WilderMethod ATRMethod = "wilder"
)

// ParseATRMethod accepts "simple" or "wilder"; empty means simple.
func ParseATRMethod(s string) (ATRMethod, error) {
	switch m := ATRMethod(s); m {
	case "":
		return SimpleMethod, nil
	case SimpleMethod, WilderMethod:
		return m, nil
	default:
		return "", fmt.Errorf("unknown ATR method %q", s)
	}
}

// Compute returns the ATR of candles using m.
func (m ATRMethod) Compute(candles []market.Candle, period int) (float64, error) {
	switch m {
	case "", SimpleMethod:
		return SimpleATR(candles, period)
	case WilderMethod:
		return ATRFunc(candles, period)
	default:
		return 0, fmt.Errorf("unknown ATR method %q", string(m))
	}
}

// ATR is a streaming Average True Range indicator using Wilder's
// smoothing.
type ATR struct {
	period      int
	atr         float64
	count       int
	warmupSum   float64
	prevCandle  market.Candle
	hasPrevious bool
}

var _ Indicator = (*ATR)(nil)

// NewATR creates a new Average True Range indicator with the given period
func NewATR(period int) *ATR {
	return &ATR{
		period: period,
	}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

func (a *ATR) Warmup() int {
	// TR needs the previous candle
	return a.period + 1
}

func (a *ATR) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.hasPrevious = false
}

func (a *ATR) Update(c market.Candle) {
	if !a.hasPrevious {
		a.prevCandle = c
		a.hasPrevious = true
		return
	}

	tr := TrueRange(c, a.prevCandle)

	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
	} else {
		a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
	}

	a.prevCandle = c
}

func (a *ATR) Ready() bool {
	return a.period > 0 && a.count >= a.period
}

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}
