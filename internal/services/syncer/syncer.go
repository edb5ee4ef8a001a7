package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
	"github.com/jango-blockchained/cryptofolio/internal/services/exchange"
	"github.com/jango-blockchained/cryptofolio/pkg/retrier"
)

const (
	defaultFetchTimeout   = 15 * time.Second
	defaultMaxConcurrency = 8
)

// mirrorStore is the slice of the balance store the syncer needs. The
// syncer is the sole writer of the mirror.
type mirrorStore interface {
	CurrenciesFor(accountID string) []string
	Upsert(accountID, currency string, amount float64) error
	Delete(accountID, currency string) error
}

// Syncer reconciles the local mirror of exchange balances against the
// exchanges. Accounts are synced concurrently; one account's failure
// never aborts its siblings.
type Syncer struct {
	store        mirrorStore
	fetchers     exchange.Provider
	retrier      *retrier.Retrier
	fetchTimeout time.Duration
	logger       *zap.Logger
}

func New(store mirrorStore, fetchers exchange.Provider, fetchTimeout time.Duration, logger *zap.Logger) *Syncer {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Syncer{
		store:    store,
		fetchers: fetchers,
		retrier: retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(500*time.Millisecond),
		),
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// SyncAll fetches and reconciles balances for every account. The batch is
// best-effort: per-account errors are collected into the report, ordered
// by the account's position in the input, and the failing account's
// mirror stays untouched.
func (s *Syncer) SyncAll(ctx context.Context, accounts []entity.ExchangeAccount) *entity.SyncReport {
	report := &entity.SyncReport{RunID: uuid.NewString()}

	failures := make([]*entity.SyncError, len(accounts))

	g := new(errgroup.Group)
	g.SetLimit(defaultMaxConcurrency)

	for i, account := range accounts {
		g.Go(func() error {
			if err := s.syncAccount(ctx, account); err != nil {
				s.logger.Error("exchange sync failed",
					zap.String("run_id", report.RunID),
					zap.String("account", account.ID),
					zap.String("platform", account.Platform.String()),
					zap.Error(err))
				failures[i] = &entity.SyncError{
					AccountID: account.ID,
					Platform:  account.Platform.String(),
					Err:       err.Error(),
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, failure := range failures {
		if failure != nil {
			report.HasErrors = true
			report.Errors = append(report.Errors, *failure)
		}
	}

	s.logger.Info("exchange sync finished",
		zap.String("run_id", report.RunID),
		zap.Int("accounts", len(accounts)),
		zap.Int("failed", len(report.Errors)))

	return report
}

// syncAccount reconciles one account's mirror: every fetched currency is
// upserted, then every previously stored currency absent from the fetch
// is deleted. Upserts run first so a currency present on both sides is
// updated in place, never deleted and recreated.
func (s *Syncer) syncAccount(ctx context.Context, account entity.ExchangeAccount) error {
	fetcher, err := s.fetchers.FetcherFor(account)
	if err != nil {
		return errors.Wrap(err, "resolve fetcher")
	}

	fetched, err := s.fetchWithTimeout(ctx, fetcher)
	if err != nil {
		// a timeout counts as a fetch error: mirror stays untouched
		return errors.Wrap(err, "fetch balances")
	}

	previous := s.store.CurrenciesFor(account.ID)

	for currency, amount := range fetched {
		if err := s.store.Upsert(account.ID, currency, amount); err != nil {
			return errors.Wrapf(err, "upsert %s", currency)
		}
	}

	for _, currency := range previous {
		if _, ok := fetched[currency]; ok {
			continue
		}
		if err := s.store.Delete(account.ID, currency); err != nil {
			return errors.Wrapf(err, "delete stale %s", currency)
		}
	}

	return nil
}

// fetchWithTimeout bounds the fetch even when the underlying SDK call is
// not context-aware; a hung exchange must not stall the batch.
func (s *Syncer) fetchWithTimeout(ctx context.Context, fetcher exchange.BalanceFetcher) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	type result struct {
		balances map[string]float64
		err      error
	}
	done := make(chan result, 1)

	go func() {
		balances, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (map[string]float64, error) {
			return fetcher.FetchBalances(ctx)
		})
		done <- result{balances: balances, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.balances, r.err
	}
}
