package exchange

import (
	"context"

	binance "github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type BinanceFetcher struct {
	client *binance.Client
}

func NewBinanceFetcher(client *binance.Client) *BinanceFetcher {
	return &BinanceFetcher{client: client}
}

// FetchBalances returns all spot balances with non-zero presence, free
// plus locked amounts summed per asset.
func (f *BinanceFetcher) FetchBalances(ctx context.Context) (map[string]float64, error) {
	account, err := f.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get binance account balances")
	}

	balances := make(map[string]float64, len(account.Balances))
	for _, balance := range account.Balances {
		free, err := decimal.NewFromString(balance.Free)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse free balance for %s", balance.Asset)
		}
		locked, err := decimal.NewFromString(balance.Locked)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse locked balance for %s", balance.Asset)
		}

		total := free.Add(locked)
		if total.IsZero() {
			continue
		}
		balances[balance.Asset] = total.InexactFloat64()
	}

	return balances, nil
}
