package valuation

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

type rateSource interface {
	RatesFor(fiat string) []entity.Rate
}

// DefaultAliases maps tickers whose rate-provider symbol differs from the
// symbol exchanges report. Aliasing only widens the rate lookup; it never
// renames stored balances.
var DefaultAliases = map[string]string{
	"MIOTA": "IOTA",
}

// Converter turns an aggregated currency mapping into fiat figures,
// partitioning currencies into priced and unpriced.
type Converter struct {
	rates   rateSource
	aliases map[string]string
}

// NewConverter builds a converter with the given alias table; nil falls
// back to DefaultAliases.
func NewConverter(rates rateSource, aliases map[string]string) *Converter {
	if aliases == nil {
		aliases = DefaultAliases
	}
	return &Converter{rates: rates, aliases: aliases}
}

// ConvertToFiat classifies every balance as priced, self-priced or
// unpriced. A balance whose amount is not a usable number (NaN or ±Inf)
// is dropped from both outputs rather than failing the valuation; a
// garbage amount vanishes from the portfolio view instead of breaking it.
// Output order follows the input mapping's iteration order.
func (c *Converter) ConvertToFiat(cryptoBalances map[string]float64, fiat string) ([]entity.PricedBalance, []entity.UnpricedBalance) {
	lookup := c.rateLookup(fiat)

	priced := make([]entity.PricedBalance, 0, len(cryptoBalances))
	unpriced := make([]entity.UnpricedBalance, 0)

	for currency, amount := range cryptoBalances {
		if !isNumeric(amount) {
			// dropped from both lists, a garbage amount must not surface
			// as an unpriced row either
			continue
		}

		rate, ok := lookup[currency]
		switch {
		case ok:
			amountFiat, valid := mulFiat(amount, rate)
			if !valid {
				continue
			}
			priced = append(priced, entity.PricedBalance{
				Currency:   currency,
				Amount:     amount,
				AmountFiat: amountFiat,
			})
		case currency == fiat:
			// identity conversion: the balance already is the valuation currency
			priced = append(priced, entity.PricedBalance{
				Currency:   currency,
				Amount:     amount,
				AmountFiat: amount,
			})
		default:
			unpriced = append(unpriced, entity.UnpricedBalance{
				Currency: currency,
				Amount:   amount,
			})
		}
	}

	return priced, unpriced
}

// rateLookup loads the rate rows for the fiat and widens the mapping with
// the alias table in both directions. Existing keys are never replaced.
func (c *Converter) rateLookup(fiat string) map[string]float64 {
	rows := c.rates.RatesFor(fiat)

	lookup := make(map[string]float64, len(rows))
	for _, row := range rows {
		lookup[row.Currency] = row.Rate
	}

	for alias, canonical := range c.aliases {
		if rate, ok := lookup[canonical]; ok {
			if _, exists := lookup[alias]; !exists {
				lookup[alias] = rate
			}
		} else if rate, ok := lookup[alias]; ok {
			lookup[canonical] = rate
		}
	}

	return lookup
}

// mulFiat multiplies through decimal, which rejects NaN and infinities;
// a non-numeric operand makes the conversion undefined and the entry is
// skipped.
func mulFiat(amount, rate float64) (float64, bool) {
	if !isNumeric(amount) || !isNumeric(rate) {
		return 0, false
	}
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate)).InexactFloat64(), true
}

func isNumeric(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
