package main

import (
	"context"
	"errors"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jango-blockchained/cryptofolio/config"
	"github.com/jango-blockchained/cryptofolio/internal"
	"github.com/jango-blockchained/cryptofolio/internal/clients"
	"github.com/jango-blockchained/cryptofolio/internal/entity"
	"github.com/jango-blockchained/cryptofolio/internal/events"
	"github.com/jango-blockchained/cryptofolio/internal/services/addresses"
	"github.com/jango-blockchained/cryptofolio/internal/services/aggregator"
	"github.com/jango-blockchained/cryptofolio/internal/services/exchange"
	"github.com/jango-blockchained/cryptofolio/internal/services/refresher"
	"github.com/jango-blockchained/cryptofolio/internal/services/syncer"
	"github.com/jango-blockchained/cryptofolio/internal/services/valuation"
	"github.com/jango-blockchained/cryptofolio/internal/setup"
	"github.com/jango-blockchained/cryptofolio/internal/storage/balances"
	"github.com/jango-blockchained/cryptofolio/internal/storage/inputs"
	"github.com/jango-blockchained/cryptofolio/internal/storage/rates"
	"github.com/jango-blockchained/cryptofolio/internal/storage/snapshots"
	"github.com/jango-blockchained/cryptofolio/internal/web"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	conf, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	if conf.Setup {
		if err := setup.RunTUI(); err != nil {
			logger.Fatal("setup wizard failed", zap.Error(err))
		}
		return
	}

	mirror, err := balances.NewStore(filepath.Join(conf.WalDir, "balances"))
	if err != nil {
		logger.Fatal("failed to open balance mirror store", zap.Error(err))
	}
	defer mirror.Close()

	inputStore, err := inputs.NewStore(filepath.Join(conf.WalDir, "inputs"))
	if err != nil {
		logger.Fatal("failed to open inputs store", zap.Error(err))
	}
	defer inputStore.Close()

	snapshotStore, err := snapshots.NewWALStore(filepath.Join(conf.WalDir, "snapshots"))
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.Error(err))
	}
	defer snapshotStore.Close()

	rateStore := rates.NewStore()
	for _, rate := range conf.Rates {
		rateStore.Put(rate)
	}

	// inputs from the config file seed the store on first boot only, after
	// that the store is the source of truth
	if inputStore.Empty() {
		for _, m := range conf.Manual {
			if err := inputStore.AddManual(conf.User, m.Currency, entity.Amount(m.Amount)); err != nil {
				logger.Fatal("failed to seed manual input", zap.Error(err))
			}
		}
		for _, a := range conf.Addresses {
			if err := inputStore.AddAddress(conf.User, a.Currency, a.Address); err != nil {
				logger.Fatal("failed to seed address input", zap.Error(err))
			}
		}
	}

	var refresh *refresher.Refresher
	if conf.Ethereum.RPCURL != "" {
		ethClient, err := clients.NewEthClient(conf.Ethereum.RPCURL, conf.Ethereum.FallbackRPCURLs)
		if err != nil {
			logger.Fatal("failed to connect to ethereum rpc", zap.Error(err))
		}
		defer ethClient.Close()

		lookup := addresses.NewLookup(ethClient, conf.FetchTimeout)
		refresh = refresher.New(inputStore, lookup, conf.FetchTimeout, logger)
	}

	sync := syncer.New(mirror, exchange.NewClientProvider(), conf.FetchTimeout, logger)
	agg := aggregator.New(mirror)
	converter := valuation.NewConverter(rateStore, conf.Aliases)
	broadcaster := events.NewValuationBroadcaster(64)

	portfolio := internal.NewPortfolioService(conf, sync, refresh, agg, converter,
		inputStore, snapshotStore, broadcaster, logger)

	server := web.NewServer(conf.Listen, conf.User, portfolio, snapshotStore, rateStore, inputStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return portfolio.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("web server listening", zap.String("addr", conf.Listen))
		return server.Start(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutdown with error", zap.Error(err))
	}
	logger.Info("bye")
}
