package valuation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

type stubRates struct {
	rows map[string][]entity.Rate
}

func (s *stubRates) RatesFor(fiat string) []entity.Rate {
	return s.rows[fiat]
}

func pricedByCurrency(priced []entity.PricedBalance) map[string]entity.PricedBalance {
	out := make(map[string]entity.PricedBalance, len(priced))
	for _, b := range priced {
		out[b.Currency] = b
	}
	return out
}

func TestConvertToFiatPartitions(t *testing.T) {
	rates := &stubRates{rows: map[string][]entity.Rate{
		"USD": {
			{Currency: "BTC", Fiat: "USD", Rate: 50000},
			{Currency: "ETH", Fiat: "USD", Rate: 2000},
		},
	}}

	c := NewConverter(rates, nil)
	priced, unpriced := c.ConvertToFiat(map[string]float64{
		"BTC":  0.5,
		"ETH":  2,
		"DOGE": 100,
	}, "USD")

	byCurrency := pricedByCurrency(priced)
	require.Len(t, byCurrency, 2)
	require.Equal(t, 25000.0, byCurrency["BTC"].AmountFiat)
	require.Equal(t, 4000.0, byCurrency["ETH"].AmountFiat)

	require.Len(t, unpriced, 1)
	require.Equal(t, "DOGE", unpriced[0].Currency)
	require.Equal(t, 100.0, unpriced[0].Amount)
}

func TestConvertToFiatSelfPriced(t *testing.T) {
	c := NewConverter(&stubRates{}, nil)
	priced, unpriced := c.ConvertToFiat(map[string]float64{"USD": 123.45}, "USD")

	require.Empty(t, unpriced)
	require.Len(t, priced, 1)
	require.Equal(t, "USD", priced[0].Currency)
	require.Equal(t, 123.45, priced[0].AmountFiat)
}

func TestConvertToFiatExplicitRateBeatsIdentity(t *testing.T) {
	rates := &stubRates{rows: map[string][]entity.Rate{
		"USD": {{Currency: "USD", Fiat: "USD", Rate: 2}},
	}}

	c := NewConverter(rates, nil)
	priced, _ := c.ConvertToFiat(map[string]float64{"USD": 10}, "USD")

	require.Len(t, priced, 1)
	require.Equal(t, 20.0, priced[0].AmountFiat)
}

func TestConvertToFiatAliasWidensLookup(t *testing.T) {
	testCases := []struct {
		name       string
		rateUnder  string
		balance    string
		wantAmount float64
	}{
		{name: "rate under canonical prices alias", rateUnder: "IOTA", balance: "MIOTA", wantAmount: 2.5},
		{name: "rate under alias prices canonical", rateUnder: "MIOTA", balance: "IOTA", wantAmount: 2.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rates := &stubRates{rows: map[string][]entity.Rate{
				"USD": {{Currency: tc.rateUnder, Fiat: "USD", Rate: 0.25}},
			}}

			c := NewConverter(rates, nil)
			priced, unpriced := c.ConvertToFiat(map[string]float64{tc.balance: 10}, "USD")

			require.Empty(t, unpriced)
			require.Len(t, priced, 1)
			require.Equal(t, tc.balance, priced[0].Currency)
			require.Equal(t, tc.wantAmount, priced[0].AmountFiat)
		})
	}
}

func TestConvertToFiatAliasNeverReplacesExistingRate(t *testing.T) {
	rates := &stubRates{rows: map[string][]entity.Rate{
		"USD": {
			{Currency: "IOTA", Fiat: "USD", Rate: 1},
			{Currency: "MIOTA", Fiat: "USD", Rate: 7},
		},
	}}

	c := NewConverter(rates, nil)
	priced, _ := c.ConvertToFiat(map[string]float64{"MIOTA": 1, "IOTA": 1}, "USD")

	byCurrency := pricedByCurrency(priced)
	require.Equal(t, 7.0, byCurrency["MIOTA"].AmountFiat)
	require.Equal(t, 1.0, byCurrency["IOTA"].AmountFiat)
}

func TestConvertToFiatDropsNonNumericAmounts(t *testing.T) {
	rates := &stubRates{rows: map[string][]entity.Rate{
		"USD": {{Currency: "BTC", Fiat: "USD", Rate: 50000}},
	}}

	c := NewConverter(rates, nil)

	// NaN/Inf hit every branch: BTC has a rate, USD is self-priced,
	// XYZ and ABC have no rate at all
	priced, unpriced := c.ConvertToFiat(map[string]float64{
		"BTC": math.NaN(),
		"USD": math.Inf(1),
		"XYZ": math.NaN(),
		"ABC": math.Inf(-1),
		"ETH": 1,
	}, "USD")

	// garbage amounts vanish from both lists instead of breaking the valuation
	require.Len(t, unpriced, 1)
	require.Equal(t, "ETH", unpriced[0].Currency)
	require.Empty(t, priced)
}

func TestConvertToFiatEmptyInput(t *testing.T) {
	c := NewConverter(&stubRates{}, nil)
	priced, unpriced := c.ConvertToFiat(nil, "USD")
	require.Empty(t, priced)
	require.Empty(t, unpriced)
}

func TestConvertToFiatCustomAliases(t *testing.T) {
	rates := &stubRates{rows: map[string][]entity.Rate{
		"EUR": {{Currency: "XBT", Fiat: "EUR", Rate: 40000}},
	}}

	c := NewConverter(rates, map[string]string{"BTC": "XBT"})
	priced, unpriced := c.ConvertToFiat(map[string]float64{"BTC": 2}, "EUR")

	require.Empty(t, unpriced)
	require.Len(t, priced, 1)
	require.Equal(t, 80000.0, priced[0].AmountFiat)
}
