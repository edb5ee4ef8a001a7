package inputs

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
	defaultInputsDir   = "./wal/inputs"
	inputsSegmentLimit = 1000
	inputsMaxSegments  = 100
	manualKeyPrefix    = "manual_input_"
	addressKeyPrefix   = "address_input_"
	amountKeyPrefix    = "address_amount_"
)

// Store keeps user-entered balances: manual inputs (append-only, summed
// across duplicates) and address inputs (one row per user/currency/address,
// amount overwritten by the refresher). Mutations are journaled to a WAL
// and replayed on start.
type Store struct {
	wal       *gowal.Wal
	mu        sync.RWMutex
	manual    map[string][]entity.ManualInput
	addresses map[string][]entity.AddressInput
}

type amountUpdate struct {
	User      string    `json:"user"`
	Currency  string    `json:"currency"`
	Address   string    `json:"address"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"ts"`
}

// NewStore opens the inputs store under dir and replays the journal.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = defaultInputsDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "inputs_",
		SegmentThreshold: inputsSegmentLimit,
		MaxSegments:      inputsMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init inputs WAL")
	}

	s := &Store{
		wal:       wal,
		manual:    make(map[string][]entity.ManualInput),
		addresses: make(map[string][]entity.AddressInput),
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

		switch {
		case strings.HasPrefix(key, manualKeyPrefix):
			var in entity.ManualInput
			if err := json.Unmarshal(payload, &in); err != nil {
				return errors.Wrap(err, "decode manual input")
			}
			s.manual[in.User] = append(s.manual[in.User], in)
		case strings.HasPrefix(key, addressKeyPrefix):
			var in entity.AddressInput
			if err := json.Unmarshal(payload, &in); err != nil {
				return errors.Wrap(err, "decode address input")
			}
			s.addresses[in.User] = append(s.addresses[in.User], in)
		case strings.HasPrefix(key, amountKeyPrefix):
			var u amountUpdate
			if err := json.Unmarshal(payload, &u); err != nil {
				return errors.Wrap(err, "decode address amount update")
			}
			s.applyAmount(u)
		}
	}

	return nil
}

func (s *Store) journal(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal inputs journal entry")
	}

	nextIndex := s.wal.CurrentIndex() + 1
	return errors.Wrap(s.wal.Write(nextIndex, key, payload), "write inputs journal")
}

// AddManual appends a manual input record for the user.
func (s *Store) AddManual(user, currency string, amount *float64) error {
	in := entity.ManualInput{
		User:      user,
		Currency:  currency,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.journal(manualKeyPrefix+user+"_"+currency, in); err != nil {
		return err
	}
	s.manual[user] = append(s.manual[user], in)

	return nil
}

// AddAddress registers an on-chain address for the user. The amount stays
// unknown until the next refresh. Re-adding an existing
// (user, currency, address) triple is a no-op.
func (s *Store) AddAddress(user, currency, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range s.addresses[user] {
		if in.Currency == currency && in.Address == address {
			return nil
		}
	}

	in := entity.AddressInput{
		User:      user,
		Currency:  currency,
		Address:   address,
		Timestamp: time.Now().UTC(),
	}

	if err := s.journal(addressKeyPrefix+user+"_"+address, in); err != nil {
		return err
	}
	s.addresses[user] = append(s.addresses[user], in)

	return nil
}

// SetAddressAmount overwrites the amount of one address input in place.
func (s *Store) SetAddressAmount(user, currency, address string, amount float64) error {
	u := amountUpdate{
		User:      user,
		Currency:  currency,
		Address:   address,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.journal(amountKeyPrefix+user+"_"+address, u); err != nil {
		return err
	}
	if !s.applyAmount(u) {
		return errors.Errorf("address input not found: user=%s currency=%s address=%s", user, currency, address)
	}

	return nil
}

func (s *Store) applyAmount(u amountUpdate) bool {
	rows := s.addresses[u.User]
	for i := range rows {
		if rows[i].Currency == u.Currency && rows[i].Address == u.Address {
			amount := u.Amount
			rows[i].Amount = &amount
			rows[i].Timestamp = u.Timestamp
			return true
		}
	}
	return false
}

// ManualFor returns all manual inputs belonging to the user.
func (s *Store) ManualFor(user string) []entity.ManualInput {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]entity.ManualInput, len(s.manual[user]))
	copy(rows, s.manual[user])
	return rows
}

// AddressesFor returns all address inputs belonging to the user.
func (s *Store) AddressesFor(user string) []entity.AddressInput {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]entity.AddressInput, len(s.addresses[user]))
	copy(rows, s.addresses[user])
	return rows
}

// Empty reports whether the store holds no records at all. Used to decide
// whether config seeds should be applied on boot.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.manual) == 0 && len(s.addresses) == 0
}

// Close closes the underlying WAL.
func (s *Store) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("inputs store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
