// Package storetest is the behavioural suite every store.Store backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-papertrade/internal/store"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// StoreSuite runs against a fresh store per test, produced by New.
type StoreSuite struct {
	suite.Suite

	New   func() store.Store
	Store store.Store
	ctx   context.Context
	base  time.Time
}

func (s *StoreSuite) SetupTest() {
	s.Require().NotNil(s.New, "StoreSuite.New must be set")
	s.Store = s.New()
	s.ctx = context.Background()
	s.base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) TearDownTest() {
	if s.Store != nil {
		s.NoError(s.Store.Close())
	}
}

func (s *StoreSuite) createAccount(id string, balance int64) {
	err := s.Store.Accounts().CreateAccount(s.ctx, types.Account{
		ID:             id,
		CashBalance:    types.M(balance),
		InitialBalance: types.M(balance),
		CreatedAt:      s.base,
		UpdatedAt:      s.base,
	})
	s.Require().NoError(err)
}

func (s *StoreSuite) holding(accountID, symbol string, qty int64, at time.Time) types.Holding {
	return types.Holding{
		AccountID:     accountID,
		Symbol:        symbol,
		Name:          symbol + " corp",
		Quantity:      qty,
		AvgCost:       types.M(1000),
		TotalInvested: types.M(1000 * qty),
		UpdatedAt:     at,
	}
}

func (s *StoreSuite) TestCreateAndGetAccount() {
	s.createAccount("acct-1", 10_000_000)

	account, err := s.Store.Accounts().GetAccount(s.ctx, "acct-1")
	s.Require().NoError(err)
	s.Equal("acct-1", account.ID)
	s.True(account.CashBalance.Equal(types.M(10_000_000)))
	s.True(account.InitialBalance.Equal(types.M(10_000_000)))

	balance, err := s.Store.Accounts().GetBalance(s.ctx, "acct-1")
	s.Require().NoError(err)
	s.Equal("10000000", balance.Text())
}

func (s *StoreSuite) TestCreateAccountTwice() {
	s.createAccount("acct-1", 100)

	err := s.Store.Accounts().CreateAccount(s.ctx, types.Account{ID: "acct-1", CashBalance: types.M(5)})
	s.Equal(errors.ErrCodeAccountExists, errors.GetCode(err))
}

func (s *StoreSuite) TestMissingAccount() {
	_, err := s.Store.Accounts().GetAccount(s.ctx, "nope")
	s.Equal(errors.ErrCodeAccountNotFound, errors.GetCode(err))

	_, err = s.Store.Accounts().GetBalance(s.ctx, "nope")
	s.Equal(errors.ErrCodeAccountNotFound, errors.GetCode(err))

	err = s.Store.Accounts().SetBalance(s.ctx, "nope", types.M(1))
	s.Equal(errors.ErrCodeAccountNotFound, errors.GetCode(err))
}

func (s *StoreSuite) TestSetBalanceKeepsFractions() {
	s.createAccount("acct-1", 100)

	amount, err := types.ParseMoney("99.1234")
	s.Require().NoError(err)
	s.Require().NoError(s.Store.Accounts().SetBalance(s.ctx, "acct-1", amount))

	balance, err := s.Store.Accounts().GetBalance(s.ctx, "acct-1")
	s.Require().NoError(err)
	s.Equal("99.1234", balance.Text())
}

func (s *StoreSuite) TestSetBalanceRejectsNegative() {
	s.createAccount("acct-1", 100)

	err := s.Store.Accounts().SetBalance(s.ctx, "acct-1", types.M(-1))
	s.Equal(errors.ErrCodeNegativeBalance, errors.GetCode(err))

	balance, err := s.Store.Accounts().GetBalance(s.ctx, "acct-1")
	s.Require().NoError(err)
	s.Equal("100", balance.Text())
}

func (s *StoreSuite) TestHoldingLifecycle() {
	s.createAccount("acct-1", 100)
	holdings := s.Store.Holdings()

	got, err := holdings.Get(s.ctx, "acct-1", "005930")
	s.Require().NoError(err)
	s.True(got.IsNone())

	s.Require().NoError(holdings.Upsert(s.ctx, s.holding("acct-1", "005930", 10, s.base)))

	got, err = holdings.Get(s.ctx, "acct-1", "005930")
	s.Require().NoError(err)
	s.Require().True(got.IsSome())
	h := got.Unwrap()
	s.Equal(int64(10), h.Quantity)
	s.Equal("005930 corp", h.Name)
	s.Equal("10000", h.TotalInvested.Text())

	h.Quantity = 4
	h.TotalInvested = types.M(4000)
	s.Require().NoError(holdings.Upsert(s.ctx, h))

	got, err = holdings.Get(s.ctx, "acct-1", "005930")
	s.Require().NoError(err)
	s.Equal(int64(4), got.Unwrap().Quantity)

	s.Require().NoError(holdings.Delete(s.ctx, "acct-1", "005930"))

	got, err = holdings.Get(s.ctx, "acct-1", "005930")
	s.Require().NoError(err)
	s.True(got.IsNone())
}

func (s *StoreSuite) TestUpsertRejectsEmptyHolding() {
	s.createAccount("acct-1", 100)

	err := s.Store.Holdings().Upsert(s.ctx, s.holding("acct-1", "005930", 0, s.base))
	s.Equal(errors.ErrCodeInvalidHolding, errors.GetCode(err))
}

func (s *StoreSuite) TestListHoldingsMostRecentFirst() {
	s.createAccount("acct-1", 100)
	s.createAccount("acct-2", 100)
	holdings := s.Store.Holdings()

	s.Require().NoError(holdings.Upsert(s.ctx, s.holding("acct-1", "000660", 1, s.base)))
	s.Require().NoError(holdings.Upsert(s.ctx, s.holding("acct-1", "005930", 1, s.base.Add(time.Minute))))
	s.Require().NoError(holdings.Upsert(s.ctx, s.holding("acct-2", "035420", 1, s.base)))

	list, err := holdings.ListByAccount(s.ctx, "acct-1")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("005930", list[0].Symbol)
	s.Equal("000660", list[1].Symbol)
}

func (s *StoreSuite) TestUpdateValuationLeavesQuantity() {
	s.createAccount("acct-1", 100)
	holdings := s.Store.Holdings()
	s.Require().NoError(holdings.Upsert(s.ctx, s.holding("acct-1", "005930", 10, s.base)))

	stale := s.holding("acct-1", "005930", 999, s.base)
	valued := stale.Valuate(types.M(1100), s.base.Add(time.Hour))
	s.Require().NoError(holdings.UpdateValuation(s.ctx, valued))

	got, err := holdings.Get(s.ctx, "acct-1", "005930")
	s.Require().NoError(err)
	h := got.Unwrap()
	s.Equal(int64(10), h.Quantity)
	s.Equal("10000", h.TotalInvested.Text())
	s.Equal("1100", h.LastPrice.Text())
	s.True(h.UpdatedAt.Equal(s.base.Add(time.Hour)))

	// a holding that vanished is skipped
	s.NoError(holdings.UpdateValuation(s.ctx, s.holding("acct-1", "000660", 1, s.base)))
	got, err = holdings.Get(s.ctx, "acct-1", "000660")
	s.Require().NoError(err)
	s.True(got.IsNone())
}

func (s *StoreSuite) record(accountID, id string, at time.Time) types.TransactionRecord {
	return types.TransactionRecord{
		ID:           id,
		AccountID:    accountID,
		Symbol:       "005930",
		Name:         "삼성전자",
		Side:         types.SideBuy,
		Quantity:     1,
		Price:        types.M(1000),
		TotalAmount:  types.M(1000),
		BalanceAfter: types.M(9000),
		Timestamp:    at,
	}
}

func (s *StoreSuite) TestTransactionsNewestFirstWithLimit() {
	s.createAccount("acct-1", 100)
	txs := s.Store.Transactions()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("01TX%02d", i)
		s.Require().NoError(txs.Append(s.ctx, s.record("acct-1", id, s.base.Add(time.Duration(i)*time.Second))))
	}
	// equal timestamps fall back to id order
	s.Require().NoError(txs.Append(s.ctx, s.record("acct-1", "01TX99", s.base.Add(4*time.Second))))

	list, err := txs.ListByAccount(s.ctx, "acct-1", 3)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal("01TX99", list[0].ID)
	s.Equal("01TX04", list[1].ID)
	s.Equal("01TX03", list[2].ID)
	s.Equal(types.SideBuy, list[0].Side)
	s.Equal("삼성전자", list[0].Name)
	s.Equal("9000", list[0].BalanceAfter.Text())

	all, err := txs.ListByAccount(s.ctx, "acct-1", 0)
	s.Require().NoError(err)
	s.Len(all, 6)

	none, err := txs.ListByAccount(s.ctx, "acct-2", 10)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *StoreSuite) TestTxCommitsEverything() {
	s.createAccount("acct-1", 10_000)

	err := s.Store.InAccountTx(s.ctx, "acct-1", func(tx store.Tx) error {
		balance, err := tx.Accounts().GetBalance(s.ctx, "acct-1")
		if err != nil {
			return err
		}

		if err := tx.Accounts().SetBalance(s.ctx, "acct-1", balance.Sub(types.M(1000))); err != nil {
			return err
		}

		if err := tx.Holdings().Upsert(s.ctx, s.holding("acct-1", "005930", 1, s.base)); err != nil {
			return err
		}

		// reads inside the unit see its own writes
		got, err := tx.Holdings().Get(s.ctx, "acct-1", "005930")
		if err != nil {
			return err
		}
		s.True(got.IsSome())

		return tx.Transactions().Append(s.ctx, s.record("acct-1", "01TXA", s.base))
	})
	s.Require().NoError(err)

	balance, err := s.Store.Accounts().GetBalance(s.ctx, "acct-1")
	s.Require().NoError(err)
	s.Equal("9000", balance.Text())

	got, err := s.Store.Holdings().Get(s.ctx, "acct-1", "005930")
	s.Require().NoError(err)
	s.True(got.IsSome())

	list, err := s.Store.Transactions().ListByAccount(s.ctx, "acct-1", 10)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *StoreSuite) TestTxRollsBackOnError() {
	s.createAccount("acct-1", 10_000)
	boom := errors.New(errors.ErrCodeUnknown, "boom")

	err := s.Store.InAccountTx(s.ctx, "acct-1", func(tx store.Tx) error {
		if err := tx.Accounts().SetBalance(s.ctx, "acct-1", types.M(1)); err != nil {
			return err
		}

		if err := tx.Holdings().Upsert(s.ctx, s.holding("acct-1", "005930", 1, s.base)); err != nil {
			return err
		}

		if err := tx.Transactions().Append(s.ctx, s.record("acct-1", "01TXA", s.base)); err != nil {
			return err
		}

		return boom
	})
	s.ErrorIs(err, boom)

	balance, err := s.Store.Accounts().GetBalance(s.ctx, "acct-1")
	s.Require().NoError(err)
	s.Equal("10000", balance.Text())

	got, err := s.Store.Holdings().Get(s.ctx, "acct-1", "005930")
	s.Require().NoError(err)
	s.True(got.IsNone())

	list, err := s.Store.Transactions().ListByAccount(s.ctx, "acct-1", 10)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *StoreSuite) TestTxDeleteIsStaged() {
	s.createAccount("acct-1", 10_000)
	s.Require().NoError(s.Store.Holdings().Upsert(s.ctx, s.holding("acct-1", "005930", 3, s.base)))

	err := s.Store.InAccountTx(s.ctx, "acct-1", func(tx store.Tx) error {
		if err := tx.Holdings().Delete(s.ctx, "acct-1", "005930"); err != nil {
			return err
		}

		list, err := tx.Holdings().ListByAccount(s.ctx, "acct-1")
		if err != nil {
			return err
		}
		s.Empty(list)

		return errors.New(errors.ErrCodeUnknown, "abort")
	})
	s.Error(err)

	got, err := s.Store.Holdings().Get(s.ctx, "acct-1", "005930")
	s.Require().NoError(err)
	s.True(got.IsSome())
}

func (s *StoreSuite) TestConcurrentIncrementsDoNotLoseUpdates() {
	s.createAccount("acct-1", 0)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.Store.InAccountTx(s.ctx, "acct-1", func(tx store.Tx) error {
				balance, err := tx.Accounts().GetBalance(s.ctx, "acct-1")
				if err != nil {
					return err
				}

				return tx.Accounts().SetBalance(s.ctx, "acct-1", balance.Add(types.M(1)))
			})
			if err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// a backend may refuse a racing unit, but it must never silently drop one
	for _, err := range failures {
		s.Equal(errors.ErrCodeConcurrentUpdate, errors.GetCode(err))
	}

	balance, err := s.Store.Accounts().GetBalance(s.ctx, "acct-1")
	s.Require().NoError(err)
	s.True(balance.Equal(types.M(int64(workers-len(failures)))), "balance %s failures %d", balance.Text(), len(failures))
}
