package entity

// Rate is a conversion multiplier from a currency into a fiat:
// amountFiat = amount * Rate. A missing rate means the currency is
// unpriced under that fiat, which is not an error.
type Rate struct {
	Currency string  `yaml:"currency" json:"currency"`
	Fiat     string  `yaml:"fiat" json:"fiat"`
	Rate     float64 `yaml:"rate" json:"rate"`
}
