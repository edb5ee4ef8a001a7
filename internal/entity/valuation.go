package entity

import "time"

// PricedBalance is a currency total with a fiat figure attached.
type PricedBalance struct {
	Currency   string  `json:"currency"`
	Amount     float64 `json:"amount"`
	AmountFiat float64 `json:"amount_fiat"`
}

// UnpricedBalance is a currency total for which no rate is known.
type UnpricedBalance struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// Valuation is one fiat-valued portfolio snapshot.
// TotalFiat is kept as a string to avoid float precision issues when
// rendered in UI layers.
type Valuation struct {
	Timestamp     time.Time         `json:"ts"`
	User          string            `json:"user"`
	Fiat          string            `json:"fiat"`
	TotalFiat     string            `json:"total_fiat"`
	Balances      []PricedBalance   `json:"balances"`
	OtherBalances []UnpricedBalance `json:"other_balances"`
}

// ValuationRecord bundles a snapshot with the log index it originated from.
type ValuationRecord struct {
	Index    uint64
	Snapshot Valuation
}
