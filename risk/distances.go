package risk

import "fmt"

// Distances holds the stop loss and take profit distances derived from
// an ATR already expressed in pips.
type Distances struct {
	Pair     string  `json:"pair"`
	ATRPips  float64 `json:"atr_pips"`
	StopPips float64 `json:"sl_pips"`
	TPPips   float64 `json:"tp_pips"`
}

// NewDistances multiplies atrPips by the SL and TP multipliers and
// rounds both to one decimal.
func NewDistances(pair string, atrPips, slMult, tpMult float64) (Distances, error) {
	if !finite(atrPips) || !finite(slMult) || !finite(tpMult) {
		return Distances{}, ErrInvalidInput
	}
	return Distances{
		Pair:     pair,
		ATRPips:  Round1(atrPips),
		StopPips: Round1(atrPips * slMult),
		TPPips:   Round1(atrPips * tpMult),
	}, nil
}

// RR is the reward to risk ratio of the two distances, 0 when there is
// no stop.
func (d Distances) RR() float64 {
	if d.StopPips == 0 {
		return 0
	}
	return abs(d.TPPips) / abs(d.StopPips)
}

func (d Distances) String() string {
	return fmt.Sprintf("%s ATR: %s pips  SL: %s pips  TP: %s pips",
		d.Pair, FormatPips(d.ATRPips), FormatPips(d.StopPips), FormatPips(d.TPPips))
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
