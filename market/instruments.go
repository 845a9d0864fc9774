// market/instruments.go
package market

import (
	"math"
	"strings"
)

type InstrumentMeta struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string
	PipLocation   int
}

// PipSize returns the price move of one pip, 10^PipLocation.
func (m InstrumentMeta) PipSize() float64 {
	return math.Pow(10, float64(m.PipLocation))
}

var Instruments = map[string]InstrumentMeta{
	"EUR_USD": {Name: "EUR_USD", BaseCurrency: "EUR", QuoteCurrency: "USD", PipLocation: -4},
	"GBP_USD": {Name: "GBP_USD", BaseCurrency: "GBP", QuoteCurrency: "USD", PipLocation: -4},
	"AUD_USD": {Name: "AUD_USD", BaseCurrency: "AUD", QuoteCurrency: "USD", PipLocation: -4},
	"NZD_USD": {Name: "NZD_USD", BaseCurrency: "NZD", QuoteCurrency: "USD", PipLocation: -4},
	"USD_CAD": {Name: "USD_CAD", BaseCurrency: "USD", QuoteCurrency: "CAD", PipLocation: -4},
	"USD_CHF": {Name: "USD_CHF", BaseCurrency: "USD", QuoteCurrency: "CHF", PipLocation: -4},
	"EUR_GBP": {Name: "EUR_GBP", BaseCurrency: "EUR", QuoteCurrency: "GBP", PipLocation: -4},
	"USD_JPY": {Name: "USD_JPY", BaseCurrency: "USD", QuoteCurrency: "JPY", PipLocation: -2},
	"EUR_JPY": {Name: "EUR_JPY", BaseCurrency: "EUR", QuoteCurrency: "JPY", PipLocation: -2},
	"GBP_JPY": {Name: "GBP_JPY", BaseCurrency: "GBP", QuoteCurrency: "JPY", PipLocation: -2},
}

// NormalizePair maps the common spellings of a currency pair
// ("EUR/USD", "eurusd", "EUR-USD", "EUR_USD") onto the OANDA
// instrument form "EUR_USD". Anything it cannot recognise is
// returned upper-cased and trimmed.
func NormalizePair(pair string) string {
	p := strings.ToUpper(strings.TrimSpace(pair))
	p = strings.NewReplacer("/", "_", "-", "_", " ", "").Replace(p)
	if len(p) == 6 && !strings.Contains(p, "_") {
		p = p[:3] + "_" + p[3:]
	}
	return p
}

// Lookup returns the instrument metadata for any spelling of pair.
func Lookup(pair string) (InstrumentMeta, bool) {
	m, ok := Instruments[NormalizePair(pair)]
	return m, ok
}

// PipSize returns the pip unit for pair. Known instruments use their
// pip location; for anything else JPY quoted pairs move in 0.01 and
// everything else in 0.0001.
func PipSize(pair string) float64 {
	if m, ok := Lookup(pair); ok {
		return m.PipSize()
	}
	if strings.Contains(strings.ToUpper(pair), "JPY") {
		return 0.01
	}
	return 0.0001
}
