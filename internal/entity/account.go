package entity

// Platform identifies the exchange an account lives on.
type Platform string

const (
	PlatformBinance     Platform = "binance"
	PlatformBybit       Platform = "bybit"
	PlatformHyperliquid Platform = "hyperliquid"
)

// Valid reports whether the platform is one of the supported exchanges.
func (p Platform) Valid() bool {
	switch p {
	case PlatformBinance, PlatformBybit, PlatformHyperliquid:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

// ExchangeAccount holds the credentials for one exchange account.
// For Hyperliquid the Key field carries the hex-encoded private key
// and Secret is unused.
type ExchangeAccount struct {
	ID         string   `yaml:"id" json:"id"`
	User       string   `yaml:"user,omitempty" json:"user,omitempty"`
	Platform   Platform `yaml:"platform" json:"platform"`
	Key        string   `yaml:"key" json:"-"`
	Secret     string   `yaml:"secret,omitempty" json:"-"`
	Passphrase string   `yaml:"passphrase,omitempty" json:"-"`
}
