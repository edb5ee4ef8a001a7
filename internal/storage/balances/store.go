package balances

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

const (
	defaultMirrorDir   = "./wal/balances"
	mirrorSegmentLimit = 1000
	mirrorMaxSegments  = 100
	upsertKeyPrefix    = "mirror_upsert_"
	deleteKeyPrefix    = "mirror_delete_"
)

// Store is the local mirror of exchange-held balances. State lives in
// memory behind a RWMutex and every mutation is journaled to a WAL, so a
// restart replays the journal and converges on the last synced state.
//
// The synchronizer is the sole writer; readers may observe a mirror that
// is mid-reconciliation, which callers accept as an eventual-consistency
// window.
type Store struct {
	wal    *gowal.Wal
	mu     sync.RWMutex
	mirror map[string]map[string]entity.ExchangeBalance
}

type journalEntry struct {
	AccountID string    `json:"account_id"`
	Currency  string    `json:"currency"`
	Amount    *float64  `json:"amount,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// NewStore opens the mirror store under dir and replays the journal.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = defaultMirrorDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "mirror_",
		SegmentThreshold: mirrorSegmentLimit,
		MaxSegments:      mirrorMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init balance mirror WAL")
	}

	s := &Store{
		wal:    wal,
		mirror: make(map[string]map[string]entity.ExchangeBalance),
	}

	if err := s.replay(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) replay() error {
	for idx := uint64(1); idx <= s.wal.CurrentIndex(); idx++ {
		key, payload, ok := s.wal.Get(idx)
		if !ok {
			continue
		}

		var e journalEntry
		if err := json.Unmarshal(payload, &e); err != nil {
			return errors.Wrap(err, "decode mirror journal entry")
		}

		switch {
		case strings.HasPrefix(key, upsertKeyPrefix):
			s.applyUpsert(e)
		case strings.HasPrefix(key, deleteKeyPrefix):
			s.applyDelete(e.AccountID, e.Currency)
		}
	}

	return nil
}

// Upsert creates or overwrites the mirror row for (accountID, currency).
func (s *Store) Upsert(accountID, currency string, amount float64) error {
	e := journalEntry{
		AccountID: accountID,
		Currency:  currency,
		Amount:    &amount,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.journal(upsertKeyPrefix+accountID+"_"+currency, e); err != nil {
		return err
	}
	s.applyUpsert(e)

	return nil
}

// Delete removes the mirror row for (accountID, currency), if present.
func (s *Store) Delete(accountID, currency string) error {
	e := journalEntry{
		AccountID: accountID,
		Currency:  currency,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.journal(deleteKeyPrefix+accountID+"_"+currency, e); err != nil {
		return err
	}
	s.applyDelete(accountID, currency)

	return nil
}

// journal must be called with s.mu held.
func (s *Store) journal(key string, e journalEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal mirror journal entry")
	}

	nextIndex := s.wal.CurrentIndex() + 1
	return errors.Wrap(s.wal.Write(nextIndex, key, payload), "write mirror journal")
}

func (s *Store) applyUpsert(e journalEntry) {
	account, ok := s.mirror[e.AccountID]
	if !ok {
		account = make(map[string]entity.ExchangeBalance)
		s.mirror[e.AccountID] = account
	}
	account[e.Currency] = entity.ExchangeBalance{
		AccountID: e.AccountID,
		Currency:  e.Currency,
		Amount:    e.Amount,
		Timestamp: e.Timestamp,
	}
}

func (s *Store) applyDelete(accountID, currency string) {
	if account, ok := s.mirror[accountID]; ok {
		delete(account, currency)
		if len(account) == 0 {
			delete(s.mirror, accountID)
		}
	}
}

// CurrenciesFor returns the currencies currently mirrored for an account.
func (s *Store) CurrenciesFor(accountID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account := s.mirror[accountID]
	currencies := make([]string, 0, len(account))
	for currency := range account {
		currencies = append(currencies, currency)
	}
	return currencies
}

// BalancesFor returns the mirror rows for an account.
func (s *Store) BalancesFor(accountID string) []entity.ExchangeBalance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account := s.mirror[accountID]
	rows := make([]entity.ExchangeBalance, 0, len(account))
	for _, row := range account {
		rows = append(rows, row)
	}
	return rows
}

// Close closes the underlying WAL.
func (s *Store) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("balance mirror store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
