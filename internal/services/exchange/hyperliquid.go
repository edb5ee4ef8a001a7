package exchange

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/jango-blockchained/cryptofolio/internal/clients"
)

type HyperliquidFetcher struct {
	info        *hyperliquid.Info
	accountAddr string
}

func NewHyperliquidFetcher(client *clients.HyperliquidClient) *HyperliquidFetcher {
	return &HyperliquidFetcher{
		info:        client.Exchange().Info(),
		accountAddr: client.AccountAddress(),
	}
}

// FetchBalances returns all non-zero spot balances of the account.
func (f *HyperliquidFetcher) FetchBalances(ctx context.Context) (map[string]float64, error) {
	st, err := f.info.SpotUserState(ctx, f.accountAddr)
	if err != nil {
		return nil, errors.Wrap(err, "get spot user state")
	}

	balances := make(map[string]float64, len(st.Balances))
	for _, b := range st.Balances {
		total, err := decimal.NewFromString(b.Total)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse balance for %s", b.Coin)
		}
		if total.IsZero() {
			continue
		}
		balances[b.Coin] = total.InexactFloat64()
	}

	return balances, nil
}
