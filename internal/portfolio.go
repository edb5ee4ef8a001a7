package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jango-blockchained/cryptofolio/config"
	"github.com/jango-blockchained/cryptofolio/internal/entity"
	"github.com/jango-blockchained/cryptofolio/internal/events"
	"github.com/jango-blockchained/cryptofolio/internal/services/aggregator"
	"github.com/jango-blockchained/cryptofolio/internal/services/refresher"
	"github.com/jango-blockchained/cryptofolio/internal/services/syncer"
	"github.com/jango-blockchained/cryptofolio/internal/services/valuation"
)

type inputsReader interface {
	ManualFor(user string) []entity.ManualInput
	AddressesFor(user string) []entity.AddressInput
}

type snapshotWriter interface {
	Save(snapshot entity.Valuation) error
}

// PortfolioService owns the periodic sync/refresh loop and builds
// fiat-valued portfolio snapshots on demand.
type PortfolioService struct {
	conf        config.Config
	syncer      *syncer.Syncer
	refresher   *refresher.Refresher
	aggregator  *aggregator.Aggregator
	converter   *valuation.Converter
	inputs      inputsReader
	snapshots   snapshotWriter
	broadcaster *events.ValuationBroadcaster
	logger      *zap.Logger
}

func NewPortfolioService(
	conf config.Config,
	sync *syncer.Syncer,
	refresh *refresher.Refresher,
	agg *aggregator.Aggregator,
	conv *valuation.Converter,
	inputs inputsReader,
	snapshots snapshotWriter,
	broadcaster *events.ValuationBroadcaster,
	logger *zap.Logger,
) *PortfolioService {
	if logger == nil {
		logger = zap.L()
	}
	return &PortfolioService{
		conf:        conf,
		syncer:      sync,
		refresher:   refresh,
		aggregator:  agg,
		converter:   conv,
		inputs:      inputs,
		snapshots:   snapshots,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// SyncExchangeBalances reconciles every configured exchange account.
func (p *PortfolioService) SyncExchangeBalances(ctx context.Context) *entity.SyncReport {
	return p.syncer.SyncAll(ctx, p.conf.Accounts)
}

// RefreshAddressBalances re-derives amounts for the user's tracked addresses.
func (p *PortfolioService) RefreshAddressBalances(ctx context.Context) error {
	if p.refresher == nil {
		return nil
	}
	return p.refresher.Refresh(ctx, p.conf.User)
}

// Snapshot aggregates all sources and values them in the given fiat. An
// empty fiat falls back to the configured default, resolved here at call
// time rather than frozen at construction.
func (p *PortfolioService) Snapshot(fiat string) entity.Valuation {
	if fiat == "" {
		fiat = p.conf.Fiat
	}

	totals := p.aggregator.Aggregate(
		p.conf.Accounts,
		p.inputs.ManualFor(p.conf.User),
		p.inputs.AddressesFor(p.conf.User),
	)

	priced, unpriced := p.converter.ConvertToFiat(totals, fiat)

	total := decimal.Zero
	for _, b := range priced {
		total = total.Add(decimal.NewFromFloat(b.AmountFiat))
	}

	return entity.Valuation{
		Timestamp:     time.Now().UTC(),
		User:          p.conf.User,
		Fiat:          fiat,
		TotalFiat:     total.String(),
		Balances:      priced,
		OtherBalances: unpriced,
	}
}

// Run executes the periodic loop: exchange sync and address refresh on
// their own tickers, each followed by a snapshot that is persisted and
// broadcast. Errors are logged and the loop keeps going.
func (p *PortfolioService) Run(ctx context.Context) error {
	p.logger.Info("starting portfolio loop",
		zap.Duration("sync_interval", p.conf.SyncInterval),
		zap.Duration("refresh_interval", p.conf.RefreshInterval),
		zap.Int("accounts", len(p.conf.Accounts)))

	// first pass right away so the mirror is warm before the web layer
	// starts answering
	p.runSync(ctx)
	p.runRefresh(ctx)
	p.publishSnapshot()

	syncTicker := time.NewTicker(p.conf.SyncInterval)
	defer syncTicker.Stop()
	refreshTicker := time.NewTicker(p.conf.RefreshInterval)
	defer refreshTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("context done, stopping portfolio loop")
			return ctx.Err()
		case <-syncTicker.C:
			p.runSync(ctx)
			p.publishSnapshot()
		case <-refreshTicker.C:
			p.runRefresh(ctx)
			p.publishSnapshot()
		}
	}
}

func (p *PortfolioService) runSync(ctx context.Context) {
	if len(p.conf.Accounts) == 0 {
		return
	}
	report := p.SyncExchangeBalances(ctx)
	if report.HasErrors {
		p.logger.Warn("exchange sync finished with errors",
			zap.String("run_id", report.RunID),
			zap.Int("failed", len(report.Errors)))
	}
}

func (p *PortfolioService) runRefresh(ctx context.Context) {
	if err := p.RefreshAddressBalances(ctx); err != nil {
		p.logger.Error("address refresh failed", zap.Error(err))
	}
}

func (p *PortfolioService) publishSnapshot() {
	snapshot := p.Snapshot("")

	if p.snapshots != nil {
		if err := p.snapshots.Save(snapshot); err != nil {
			p.logger.Error("failed to persist valuation snapshot",
				zap.Error(errors.Wrap(err, "save snapshot")))
		}
	}
	if p.broadcaster != nil {
		p.broadcaster.Publish(snapshot)
	}
}
