// Package memory is an in-process store.Store. Writes made inside a unit of work are staged
// and published together under the store lock, so readers never see half an order.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-papertrade/internal/store"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
)

type holdingKey struct {
	accountID string
	symbol    string
}

type Store struct {
	mu       sync.RWMutex
	accounts map[string]types.Account
	holdings map[holdingKey]types.Holding
	records  map[string][]types.TransactionRecord

	locks *store.AccountLocks
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		accounts: make(map[string]types.Account),
		holdings: make(map[holdingKey]types.Holding),
		records:  make(map[string][]types.TransactionRecord),
		locks:    store.NewAccountLocks(),
		now:      time.Now,
	}
}

// Accounts returns an auto-committing view; each write is published immediately.
func (s *Store) Accounts() store.AccountStore { return accountView{&unit{s: s}} }

func (s *Store) Holdings() store.HoldingsStore { return holdingView{&unit{s: s}} }

func (s *Store) Transactions() store.TransactionStore { return transactionView{&unit{s: s}} }

func (s *Store) Close() error { return nil }

// InAccountTx serializes units of work per account. Writes fn makes are only published
// when it returns nil.
func (s *Store) InAccountTx(ctx context.Context, accountID string, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	u := &unit{s: s, accountID: accountID, batch: newBatch()}
	if err := fn(u); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "unit of work abandoned before commit", err)
	}

	s.commit(u.batch)

	return nil
}

// batch holds staged writes. A holding entry of None means the holding was deleted.
type batch struct {
	accounts map[string]types.Account
	holdings map[holdingKey]optional.Option[types.Holding]
	records  []types.TransactionRecord
}

func newBatch() *batch {
	return &batch{
		accounts: make(map[string]types.Account),
		holdings: make(map[holdingKey]optional.Option[types.Holding]),
	}
}

func (s *Store) commit(b *batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, account := range b.accounts {
		s.accounts[id] = account
	}

	for key, holding := range b.holdings {
		if h, err := holding.Take(); err == nil {
			s.holdings[key] = h
		} else {
			delete(s.holdings, key)
		}
	}

	for _, record := range b.records {
		s.records[record.AccountID] = append(s.records[record.AccountID], record)
	}
}

// unit implements store.Tx. With a nil batch it auto-commits every write.
type unit struct {
	s         *Store
	accountID string
	batch     *batch
}

type (
	accountView     struct{ *unit }
	holdingView     struct{ *unit }
	transactionView struct{ *unit }
)

func (u *unit) Accounts() store.AccountStore         { return accountView{u} }
func (u *unit) Holdings() store.HoldingsStore         { return holdingView{u} }
func (u *unit) Transactions() store.TransactionStore { return transactionView{u} }

func (u *unit) write(accountID string, fn func(b *batch)) error {
	if u.batch == nil {
		b := newBatch()
		fn(b)
		u.s.commit(b)

		return nil
	}

	if accountID != u.accountID {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"unit of work for account %s cannot write account %s", u.accountID, accountID)
	}

	fn(u.batch)

	return nil
}

func (u *unit) account(id string) (types.Account, bool) {
	if u.batch != nil {
		if account, ok := u.batch.accounts[id]; ok {
			return account, true
		}
	}

	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	account, ok := u.s.accounts[id]

	return account, ok
}

func (u *unit) holding(key holdingKey) (types.Holding, bool) {
	if u.batch != nil {
		if staged, ok := u.batch.holdings[key]; ok {
			h, err := staged.Take()

			return h, err == nil
		}
	}

	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	h, ok := u.s.holdings[key]

	return h, ok
}

func (v accountView) GetAccount(_ context.Context, id string) (types.Account, error) {
	account, ok := v.account(id)
	if !ok {
		return types.Account{}, errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", id)
	}

	return account, nil
}

func (v accountView) GetBalance(ctx context.Context, id string) (types.Money, error) {
	account, err := v.GetAccount(ctx, id)
	if err != nil {
		return types.Money{}, err
	}

	return account.CashBalance, nil
}

func (v accountView) SetBalance(ctx context.Context, id string, balance types.Money) error {
	if balance.IsNegative() {
		return errors.Newf(errors.ErrCodeNegativeBalance, "balance of %s cannot be negative: %s", id, balance.Text())
	}

	account, err := v.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	account.CashBalance = balance
	account.Version++
	account.UpdatedAt = v.s.now()

	return v.write(id, func(b *batch) { b.accounts[id] = account })
}

func (v accountView) CreateAccount(_ context.Context, account types.Account) error {
	if account.ID == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "account id is required")
	}

	if account.CashBalance.IsNegative() {
		return errors.Newf(errors.ErrCodeNegativeBalance, "balance of %s cannot be negative", account.ID)
	}

	if _, exists := v.account(account.ID); exists {
		return errors.Newf(errors.ErrCodeAccountExists, "account %s already exists", account.ID)
	}

	return v.write(account.ID, func(b *batch) { b.accounts[account.ID] = account })
}

func (v holdingView) Get(_ context.Context, accountID, symbol string) (optional.Option[types.Holding], error) {
	h, ok := v.holding(holdingKey{accountID, symbol})
	if !ok {
		return optional.None[types.Holding](), nil
	}

	return optional.Some(h), nil
}

func (v holdingView) Upsert(_ context.Context, holding types.Holding) error {
	if err := holding.Validate(); err != nil {
		return err
	}

	key := holdingKey{holding.AccountID, holding.Symbol}

	return v.write(holding.AccountID, func(b *batch) { b.holdings[key] = optional.Some(holding) })
}

func (v holdingView) Delete(_ context.Context, accountID, symbol string) error {
	key := holdingKey{accountID, symbol}

	return v.write(accountID, func(b *batch) { b.holdings[key] = optional.None[types.Holding]() })
}

func (v holdingView) UpdateValuation(_ context.Context, holding types.Holding) error {
	key := holdingKey{holding.AccountID, holding.Symbol}

	current, ok := v.holding(key)
	if !ok {
		return nil
	}

	current.LastPrice = holding.LastPrice
	current.LastValue = holding.LastValue
	current.LastPnL = holding.LastPnL
	current.LastPnLPercent = holding.LastPnLPercent
	current.UpdatedAt = holding.UpdatedAt

	return v.write(holding.AccountID, func(b *batch) { b.holdings[key] = optional.Some(current) })
}

func (v holdingView) ListByAccount(_ context.Context, accountID string) ([]types.Holding, error) {
	merged := make(map[string]types.Holding)

	v.s.mu.RLock()
	for key, h := range v.s.holdings {
		if key.accountID == accountID {
			merged[key.symbol] = h
		}
	}
	v.s.mu.RUnlock()

	if v.batch != nil {
		for key, staged := range v.batch.holdings {
			if key.accountID != accountID {
				continue
			}

			if h, err := staged.Take(); err == nil {
				merged[key.symbol] = h
			} else {
				delete(merged, key.symbol)
			}
		}
	}

	holdings := make([]types.Holding, 0, len(merged))
	for _, h := range merged {
		holdings = append(holdings, h)
	}

	sort.Slice(holdings, func(i, j int) bool {
		if !holdings[i].UpdatedAt.Equal(holdings[j].UpdatedAt) {
			return holdings[i].UpdatedAt.After(holdings[j].UpdatedAt)
		}

		return holdings[i].Symbol < holdings[j].Symbol
	})

	return holdings, nil
}

func (v transactionView) Append(_ context.Context, record types.TransactionRecord) error {
	if record.ID == "" || record.AccountID == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "transaction record requires id and account id")
	}

	return v.write(record.AccountID, func(b *batch) { b.records = append(b.records, record) })
}

func (v transactionView) ListByAccount(_ context.Context, accountID string, limit int) ([]types.TransactionRecord, error) {
	v.s.mu.RLock()
	records := append([]types.TransactionRecord(nil), v.s.records[accountID]...)
	v.s.mu.RUnlock()

	if v.batch != nil {
		for _, record := range v.batch.records {
			if record.AccountID == accountID {
				records = append(records, record)
			}
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}

		return records[i].ID > records[j].ID
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}
