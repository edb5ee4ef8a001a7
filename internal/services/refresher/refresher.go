package refresher

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

const defaultLookupTimeout = 30 * time.Second

type addressStore interface {
	AddressesFor(user string) []entity.AddressInput
	SetAddressAmount(user, currency, address string, amount float64) error
}

// balanceLookup resolves amounts for a set of address inputs in one
// batched call.
type balanceLookup interface {
	FetchBalances(ctx context.Context, inputs []entity.AddressInput) (map[string]float64, error)
}

// Refresher re-derives the stored amount of every address input of a
// user. Unlike exchange sync there is no per-record error isolation: a
// lookup failure fails the whole refresh.
type Refresher struct {
	store         addressStore
	lookup        balanceLookup
	lookupTimeout time.Duration
	logger        *zap.Logger
}

func New(store addressStore, lookup balanceLookup, lookupTimeout time.Duration, logger *zap.Logger) *Refresher {
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Refresher{
		store:         store,
		lookup:        lookup,
		lookupTimeout: lookupTimeout,
		logger:        logger,
	}
}

// Refresh overwrites the amount of every address input belonging to the
// user with a freshly looked-up value. All addresses go out in a single
// batched call.
func (r *Refresher) Refresh(ctx context.Context, user string) error {
	inputs := r.store.AddressesFor(user)
	if len(inputs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	result, err := r.lookup.FetchBalances(ctx, inputs)
	if err != nil {
		return errors.Wrap(err, "lookup address balances")
	}

	for _, input := range inputs {
		amount, ok := result[input.Address]
		if !ok {
			return errors.Errorf("no balance returned for address %s", input.Address)
		}
		if err := r.store.SetAddressAmount(input.User, input.Currency, input.Address, amount); err != nil {
			return errors.Wrapf(err, "store amount for address %s", input.Address)
		}
	}

	r.logger.Info("address balances refreshed",
		zap.String("user", user),
		zap.Int("addresses", len(inputs)))

	return nil
}
