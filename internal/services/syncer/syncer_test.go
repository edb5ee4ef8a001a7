package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
	"github.com/jango-blockchained/cryptofolio/internal/services/exchange"
)

type fakeMirror struct {
	mu   sync.Mutex
	rows map[string]map[string]float64
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{rows: make(map[string]map[string]float64)}
}

func (f *fakeMirror) seed(accountID string, balances map[string]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account := make(map[string]float64, len(balances))
	for currency, amount := range balances {
		account[currency] = amount
	}
	f.rows[accountID] = account
}

func (f *fakeMirror) CurrenciesFor(accountID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	currencies := make([]string, 0, len(f.rows[accountID]))
	for currency := range f.rows[accountID] {
		currencies = append(currencies, currency)
	}
	return currencies
}

func (f *fakeMirror) Upsert(accountID, currency string, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[accountID] == nil {
		f.rows[accountID] = make(map[string]float64)
	}
	f.rows[accountID][currency] = amount
	return nil
}

func (f *fakeMirror) Delete(accountID, currency string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows[accountID], currency)
	return nil
}

func (f *fakeMirror) snapshot(accountID string) map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64, len(f.rows[accountID]))
	for currency, amount := range f.rows[accountID] {
		out[currency] = amount
	}
	return out
}

type fetcherFunc func(ctx context.Context) (map[string]float64, error)

func (f fetcherFunc) FetchBalances(ctx context.Context) (map[string]float64, error) {
	return f(ctx)
}

type fakeProvider struct {
	fetchers map[string]exchange.BalanceFetcher
}

func (p *fakeProvider) FetcherFor(account entity.ExchangeAccount) (exchange.BalanceFetcher, error) {
	fetcher, ok := p.fetchers[account.ID]
	if !ok {
		return nil, errors.Errorf("no fetcher for %s", account.ID)
	}
	return fetcher, nil
}

func staticFetcher(balances map[string]float64) exchange.BalanceFetcher {
	return fetcherFunc(func(ctx context.Context) (map[string]float64, error) {
		return balances, nil
	})
}

func failingFetcher(err error) exchange.BalanceFetcher {
	return fetcherFunc(func(ctx context.Context) (map[string]float64, error) {
		return nil, err
	})
}

func account(id string) entity.ExchangeAccount {
	return entity.ExchangeAccount{ID: id, User: "default", Platform: entity.PlatformBinance}
}

func TestSyncAllReconcilesMirror(t *testing.T) {
	testCases := []struct {
		name     string
		prior    map[string]float64
		fetched  map[string]float64
		expected map[string]float64
	}{
		{
			name:     "stale currency replaced by new one",
			prior:    map[string]float64{"BTC": 1},
			fetched:  map[string]float64{"ETH": 2},
			expected: map[string]float64{"ETH": 2},
		},
		{
			name:     "shared currency updated, missing one deleted",
			prior:    map[string]float64{"BTC": 1, "ETH": 2},
			fetched:  map[string]float64{"BTC": 5},
			expected: map[string]float64{"BTC": 5},
		},
		{
			name:     "empty fetch clears the mirror",
			prior:    map[string]float64{"BTC": 1},
			fetched:  map[string]float64{},
			expected: map[string]float64{},
		},
		{
			name:     "empty mirror fills up",
			prior:    map[string]float64{},
			fetched:  map[string]float64{"SOL": 3.5},
			expected: map[string]float64{"SOL": 3.5},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mirror := newFakeMirror()
			mirror.seed("acc-1", tc.prior)

			provider := &fakeProvider{fetchers: map[string]exchange.BalanceFetcher{
				"acc-1": staticFetcher(tc.fetched),
			}}

			s := New(mirror, provider, time.Second, zap.NewNop())
			report := s.SyncAll(context.Background(), []entity.ExchangeAccount{account("acc-1")})

			require.False(t, report.HasErrors)
			require.NotEmpty(t, report.RunID)
			require.Equal(t, tc.expected, mirror.snapshot("acc-1"))
		})
	}
}

func TestSyncAllIsolatesAccountFailures(t *testing.T) {
	mirror := newFakeMirror()
	mirror.seed("good", map[string]float64{"BTC": 1})
	mirror.seed("bad", map[string]float64{"ETH": 2})

	provider := &fakeProvider{fetchers: map[string]exchange.BalanceFetcher{
		"good": staticFetcher(map[string]float64{"BTC": 9}),
		"bad":  failingFetcher(errors.New("exchange down")),
	}}

	// timeout well above the retry backoff so the fetch error itself surfaces
	s := New(mirror, provider, 10*time.Second, zap.NewNop())
	report := s.SyncAll(context.Background(), []entity.ExchangeAccount{account("good"), account("bad")})

	require.True(t, report.HasErrors)
	require.Len(t, report.Errors, 1)
	require.Equal(t, "bad", report.Errors[0].AccountID)
	require.Contains(t, report.Errors[0].Err, "exchange down")

	// healthy account got synced, failing account's mirror is untouched
	require.Equal(t, map[string]float64{"BTC": 9}, mirror.snapshot("good"))
	require.Equal(t, map[string]float64{"ETH": 2}, mirror.snapshot("bad"))
}

func TestSyncAllOrdersErrorsByAccountPosition(t *testing.T) {
	mirror := newFakeMirror()

	provider := &fakeProvider{fetchers: map[string]exchange.BalanceFetcher{
		"a": failingFetcher(errors.New("boom a")),
		"b": staticFetcher(map[string]float64{"BTC": 1}),
		"c": failingFetcher(errors.New("boom c")),
	}}

	s := New(mirror, provider, 10*time.Second, zap.NewNop())
	report := s.SyncAll(context.Background(), []entity.ExchangeAccount{account("a"), account("b"), account("c")})

	require.Len(t, report.Errors, 2)
	require.Equal(t, "a", report.Errors[0].AccountID)
	require.Equal(t, "c", report.Errors[1].AccountID)
}

func TestSyncAllTreatsTimeoutAsError(t *testing.T) {
	mirror := newFakeMirror()
	mirror.seed("slow", map[string]float64{"BTC": 1})

	hung := fetcherFunc(func(ctx context.Context) (map[string]float64, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	provider := &fakeProvider{fetchers: map[string]exchange.BalanceFetcher{"slow": hung}}

	s := New(mirror, provider, 50*time.Millisecond, zap.NewNop())
	report := s.SyncAll(context.Background(), []entity.ExchangeAccount{account("slow")})

	require.True(t, report.HasErrors)
	require.Len(t, report.Errors, 1)
	require.Contains(t, report.Errors[0].Err, context.DeadlineExceeded.Error())
	require.Equal(t, map[string]float64{"BTC": 1}, mirror.snapshot("slow"))
}

func TestSyncAllUnknownAccountReported(t *testing.T) {
	mirror := newFakeMirror()
	provider := &fakeProvider{fetchers: map[string]exchange.BalanceFetcher{}}

	s := New(mirror, provider, time.Second, zap.NewNop())
	report := s.SyncAll(context.Background(), []entity.ExchangeAccount{account("ghost")})

	require.True(t, report.HasErrors)
	require.Len(t, report.Errors, 1)
	require.Equal(t, "ghost", report.Errors[0].AccountID)
}
