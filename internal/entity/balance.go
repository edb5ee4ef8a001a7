package entity

import "time"

// ExchangeBalance is one row of the local mirror of an exchange account.
// At most one live record exists per (account, currency) pair; the set of
// rows for an account is rewritten by the synchronizer to match the
// exchange exactly.
//
// A nil Amount means "not yet known" and is never treated as zero.
type ExchangeBalance struct {
	AccountID string    `json:"account_id"`
	Currency  string    `json:"currency"`
	Amount    *float64  `json:"amount"`
	Timestamp time.Time `json:"ts"`
}

// ManualInput is a user-entered balance. Uniqueness per (user, currency)
// is not enforced; aggregation sums across duplicates.
type ManualInput struct {
	User      string    `json:"user"`
	Currency  string    `json:"currency"`
	Amount    *float64  `json:"amount"`
	Timestamp time.Time `json:"ts"`
}

// AddressInput is a balance derived from an on-chain address, keyed by
// (user, currency, address). Refreshes overwrite Amount in place.
type AddressInput struct {
	User      string    `json:"user"`
	Currency  string    `json:"currency"`
	Address   string    `json:"address"`
	Amount    *float64  `json:"amount"`
	Timestamp time.Time `json:"ts"`
}

// Amount returns a pointer to v, for building nullable amounts.
func Amount(v float64) *float64 {
	return &v
}
