package memory

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-papertrade/internal/store"
	"github.com/rxtech-lab/argo-papertrade/internal/store/storetest"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &storetest.StoreSuite{New: func() store.Store { return New() }})
}

func TestTxCannotWriteOtherAccount(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Accounts().CreateAccount(ctx, types.Account{ID: "a", CashBalance: types.M(10)}))
	require.NoError(t, s.Accounts().CreateAccount(ctx, types.Account{ID: "b", CashBalance: types.M(10)}))

	err := s.InAccountTx(ctx, "a", func(tx store.Tx) error {
		return tx.Accounts().SetBalance(ctx, "b", types.M(0))
	})
	assert.Equal(t, errors.ErrCodeInvalidParameter, errors.GetCode(err))

	balance, err := s.Accounts().GetBalance(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "10", balance.Text())
}

func TestUncommittedWritesAreInvisible(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Accounts().CreateAccount(ctx, types.Account{ID: "a", CashBalance: types.M(10)}))

	written := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)

	go func() {
		done <- s.InAccountTx(ctx, "a", func(tx store.Tx) error {
			if err := tx.Accounts().SetBalance(ctx, "a", types.M(3)); err != nil {
				return err
			}
			close(written)
			<-release

			return nil
		})
	}()

	<-written
	balance, err := s.Accounts().GetBalance(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "10", balance.Text())

	close(release)
	require.NoError(t, <-done)

	balance, err = s.Accounts().GetBalance(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "3", balance.Text())
}

func TestCancelledContextSkipsUnit(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.InAccountTx(ctx, "a", func(store.Tx) error {
		called = true

		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestVersionIncrements(t *testing.T) {
	s := New()
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	require.NoError(t, s.Accounts().CreateAccount(ctx, types.Account{ID: "a", CashBalance: types.M(10)}))

	require.NoError(t, s.Accounts().SetBalance(ctx, "a", types.M(9)))
	require.NoError(t, s.Accounts().SetBalance(ctx, "a", types.M(8)))

	account, err := s.Accounts().GetAccount(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), account.Version)
	assert.Equal(t, s.now(), account.UpdatedAt)
}
