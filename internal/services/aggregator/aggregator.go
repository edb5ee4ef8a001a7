package aggregator

import (
	"sync"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

type mirrorReader interface {
	BalancesFor(accountID string) []entity.ExchangeBalance
}

// Aggregator merges balances from the three source types into one
// per-currency mapping. Exchange mirrors are read from storage at call
// time, not from a caller-supplied snapshot.
type Aggregator struct {
	store mirrorReader
}

func New(store mirrorReader) *Aggregator {
	return &Aggregator{store: store}
}

// Aggregate sums amounts per currency across exchange mirrors, manual
// inputs and address inputs. Nil amounts are skipped, never coerced to
// zero, so a currency observed only as nil never appears in the result.
// The order the three sources are visited in does not affect the output.
func (a *Aggregator) Aggregate(accounts []entity.ExchangeAccount, manualInputs []entity.ManualInput, addressInputs []entity.AddressInput) map[string]float64 {
	totals := make(map[string]float64)

	// mirror reads are independent per account; accumulate under a lock
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, account := range accounts {
		wg.Add(1)
		go func(accountID string) {
			defer wg.Done()
			rows := a.store.BalancesFor(accountID)

			mu.Lock()
			for _, row := range rows {
				if row.Amount == nil {
					continue
				}
				totals[row.Currency] += *row.Amount
			}
			mu.Unlock()
		}(account.ID)
	}
	wg.Wait()

	for _, input := range manualInputs {
		if input.Amount == nil {
			continue
		}
		totals[input.Currency] += *input.Amount
	}

	for _, input := range addressInputs {
		if input.Amount == nil {
			continue
		}
		totals[input.Currency] += *input.Amount
	}

	return totals
}
