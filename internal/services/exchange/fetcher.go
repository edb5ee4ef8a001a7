package exchange

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jango-blockchained/cryptofolio/internal/clients"
	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

// BalanceFetcher returns a complete snapshot of all non-zero balances of
// one exchange account in a single call. Implementations assemble any
// paginated results before returning; the caller never sees partials.
type BalanceFetcher interface {
	FetchBalances(ctx context.Context) (map[string]float64, error)
}

// Provider hands out a fetcher for an exchange account.
type Provider interface {
	FetcherFor(account entity.ExchangeAccount) (BalanceFetcher, error)
}

// ClientProvider dispatches to platform-specific fetchers, constructing
// and caching one client per account ID.
type ClientProvider struct {
	mu       sync.Mutex
	fetchers map[string]BalanceFetcher
}

func NewClientProvider() *ClientProvider {
	return &ClientProvider{fetchers: make(map[string]BalanceFetcher)}
}

// FetcherFor returns the fetcher for the account, creating it on first use.
// This is the single point of truth for dispatching to platform-specific implementations.
func (p *ClientProvider) FetcherFor(account entity.ExchangeAccount) (BalanceFetcher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fetcher, ok := p.fetchers[account.ID]; ok {
		return fetcher, nil
	}

	fetcher, err := newFetcher(account)
	if err != nil {
		return nil, err
	}
	p.fetchers[account.ID] = fetcher

	return fetcher, nil
}

func newFetcher(account entity.ExchangeAccount) (BalanceFetcher, error) {
	switch account.Platform {
	case entity.PlatformBinance:
		return NewBinanceFetcher(clients.NewBinanceClient(account.Key, account.Secret)), nil
	case entity.PlatformBybit:
		return NewBybitFetcher(clients.NewBybitClient(account.Key, account.Secret)), nil
	case entity.PlatformHyperliquid:
		client, err := clients.NewHyperliquidClient(account.Key, "")
		if err != nil {
			return nil, errors.Wrap(err, "create hyperliquid client")
		}
		return NewHyperliquidFetcher(client), nil
	default:
		return nil, errors.Errorf("unsupported platform: %s", account.Platform)
	}
}
