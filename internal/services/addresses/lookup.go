package addresses

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

const (
	defaultCallTimeout = 15 * time.Second
	// one batch call per second is plenty for periodic refreshes and keeps
	// public RPC endpoints from throttling us
	defaultRPS   = 1
	defaultBurst = 3

	weiDecimals = 18
)

// Lookup resolves on-chain balances for a set of address inputs with one
// JSON-RPC batch call, never one round trip per address.
type Lookup struct {
	client      *ethclient.Client
	limiter     *rate.Limiter
	callTimeout time.Duration
}

// NewLookup wraps an ethclient for batched balance queries.
func NewLookup(client *ethclient.Client, callTimeout time.Duration) *Lookup {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Lookup{
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(defaultRPS), defaultBurst),
		callTimeout: callTimeout,
	}
}

// FetchBalances returns an address -> amount mapping (in whole coins) for
// every distinct address among the given inputs. Any element error fails
// the whole call; per-address isolation is the caller's concern.
func (l *Lookup) FetchBalances(ctx context.Context, inputs []entity.AddressInput) (map[string]float64, error) {
	if len(inputs) == 0 {
		return map[string]float64{}, nil
	}

	seen := make(map[string]struct{}, len(inputs))
	addrs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if _, ok := seen[in.Address]; ok {
			continue
		}
		seen[in.Address] = struct{}{}
		addrs = append(addrs, in.Address)
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter wait")
	}

	batch := make([]rpc.BatchElem, len(addrs))
	for i, addr := range addrs {
		batch[i] = rpc.BatchElem{
			Method: "eth_getBalance",
			Args:   []interface{}{common.HexToAddress(addr), "latest"},
			Result: new(*hexutil.Big),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
	defer cancel()

	if err := l.client.Client().BatchCallContext(callCtx, batch); err != nil {
		return nil, errors.Wrap(err, "RPC batch call failed")
	}

	balances := make(map[string]float64, len(addrs))
	for i, elem := range batch {
		if elem.Error != nil {
			return nil, errors.Wrapf(elem.Error, "failed to fetch balance for %s", addrs[i])
		}
		result, ok := elem.Result.(**hexutil.Big)
		if !ok || result == nil || *result == nil {
			return nil, errors.Errorf("failed to decode balance for %s: unexpected type or nil result", addrs[i])
		}
		balances[addrs[i]] = weiToCoin((*big.Int)(*result))
	}

	return balances, nil
}

func weiToCoin(wei *big.Int) float64 {
	return decimal.NewFromBigInt(wei, -weiDecimals).InexactFloat64()
}
