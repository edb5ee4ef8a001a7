package exchange

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type BybitFetcher struct {
	client *bybit.Client
}

func NewBybitFetcher(client *bybit.Client) *BybitFetcher {
	return &BybitFetcher{client: client}
}

// FetchBalances returns all non-zero coin balances of the UNIFIED account.
// The bybit SDK call is not context-aware; callers bound it with a timeout
// at a higher level.
func (f *BybitFetcher) FetchBalances(_ context.Context) (map[string]float64, error) {
	res, err := f.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bybit wallet balance")
	}

	balances := make(map[string]float64)
	if len(res.Result.List) == 0 {
		return balances, nil
	}

	for _, coin := range res.Result.List[0].Coin {
		total, err := decimal.NewFromString(coin.WalletBalance)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse wallet balance for %s", coin.Coin)
		}
		if total.IsZero() {
			continue
		}
		balances[string(coin.Coin)] = total.InexactFloat64()
	}

	return balances, nil
}
