// Package risk converts ATR volatility into stop loss and take profit
// distances expressed in pips.
package risk

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PipScale converts a price move into pips for a four decimal quote
// (1 pip = 0.0001). It is fixed; use Distances for JPY style pairs.
const PipScale = 10000

// InvalidInputMessage is what a host shows the user when the ATR or
// TP % field is not a number.
const InvalidInputMessage = "Please enter valid numbers for ATR and TP %"

// ErrInvalidInput is returned when ATR or TP % is not a finite number.
var ErrInvalidInput = errors.New(InvalidInputMessage)

// TakeProfit is the result of Compute.
type TakeProfit struct {
	Pair   string  `json:"pair"`
	TPPips float64 `json:"tp_pips"`
}

// String renders the result the way it is shown to the user,
// e.g. "EURUSD TP: 12.5 pips". Whole numbers drop the ".0".
func (tp TakeProfit) String() string {
	return fmt.Sprintf("%s TP: %s pips", tp.Pair, FormatPips(tp.TPPips))
}

// Compute returns the take profit distance in pips for an ATR given in
// price units and a TP multiplier: round1(atr * 10000 * tpPercent).
// The pair label is passed through untouched.
func Compute(pair string, atr, tpPercent float64) (TakeProfit, error) {
	if !finite(atr) || !finite(tpPercent) {
		return TakeProfit{}, ErrInvalidInput
	}
	return TakeProfit{
		Pair:   pair,
		TPPips: Round1(atr * PipScale * tpPercent),
	}, nil
}

// ParseInputs parses the ATR and TP % text fields.
func ParseInputs(atrText, tpText string) (atr, tpPercent float64, err error) {
	atr, err = parseFinite(atrText)
	if err != nil {
		return 0, 0, err
	}
	tpPercent, err = parseFinite(tpText)
	if err != nil {
		return 0, 0, err
	}
	return atr, tpPercent, nil
}

// ComputeText is ParseInputs followed by Compute.
func ComputeText(pair, atrText, tpText string) (TakeProfit, error) {
	atr, tp, err := ParseInputs(atrText, tpText)
	if err != nil {
		return TakeProfit{}, err
	}
	return Compute(pair, atr, tp)
}

// Round1 rounds x to one decimal place, halves away from zero.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// FormatPips renders a pip value with the shortest decimal
// representation, so 100.0 prints as "100".
func FormatPips(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !finite(v) {
		return 0, ErrInvalidInput
	}
	return v, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
