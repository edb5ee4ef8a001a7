package rates

import (
	"sync"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

// Store is the in-memory currency-rate table. Rows are owned by an
// external rate-ingestion collaborator; the valuation core only reads.
type Store struct {
	mu    sync.RWMutex
	table map[string]map[string]float64 // fiat -> currency -> rate
}

// NewStore creates an empty rate table.
func NewStore() *Store {
	return &Store{table: make(map[string]map[string]float64)}
}

// Put inserts or replaces the rate for (currency, fiat).
func (s *Store) Put(rate entity.Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byFiat, ok := s.table[rate.Fiat]
	if !ok {
		byFiat = make(map[string]float64)
		s.table[rate.Fiat] = byFiat
	}
	byFiat[rate.Currency] = rate.Rate
}

// RatesFor returns all rate rows stored for the given fiat.
func (s *Store) RatesFor(fiat string) []entity.Rate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byFiat := s.table[fiat]
	rows := make([]entity.Rate, 0, len(byFiat))
	for currency, rate := range byFiat {
		rows = append(rows, entity.Rate{Currency: currency, Fiat: fiat, Rate: rate})
	}
	return rows
}
