// Package store defines the persistence contracts the ledger runs on.
//
// Every mutation of an account happens inside Store.InAccountTx, which runs its callback as
// one atomic unit: either every write the callback made becomes visible or none does.
package store

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
)

// AccountStore reads and writes account cash.
type AccountStore interface {
	// GetAccount returns ErrCodeAccountNotFound when id does not exist.
	GetAccount(ctx context.Context, id string) (types.Account, error)
	GetBalance(ctx context.Context, id string) (types.Money, error)
	// SetBalance rejects negative amounts with ErrCodeNegativeBalance. Backends that detect a
	// write racing with another process return ErrCodeConcurrentUpdate.
	SetBalance(ctx context.Context, id string, balance types.Money) error
	// CreateAccount returns ErrCodeAccountExists when id is taken.
	CreateAccount(ctx context.Context, account types.Account) error
}

// HoldingsStore keeps one holding per (account, symbol).
type HoldingsStore interface {
	Get(ctx context.Context, accountID, symbol string) (optional.Option[types.Holding], error)
	// Upsert validates the holding before storing it.
	Upsert(ctx context.Context, holding types.Holding) error
	Delete(ctx context.Context, accountID, symbol string) error
	// ListByAccount returns the holdings most recently updated first.
	ListByAccount(ctx context.Context, accountID string) ([]types.Holding, error)
	// UpdateValuation writes only the Last* fields and UpdatedAt. Quantity and cost basis
	// are left as stored. Missing holdings are ignored.
	UpdateValuation(ctx context.Context, holding types.Holding) error
}

// TransactionStore is the append-only order log.
type TransactionStore interface {
	Append(ctx context.Context, record types.TransactionRecord) error
	// ListByAccount returns at most limit records, newest first. Records with an equal
	// timestamp are ordered by id, newest first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]types.TransactionRecord, error)
}

// Tx exposes the stores bound to one unit of work.
type Tx interface {
	Accounts() AccountStore
	Holdings() HoldingsStore
	Transactions() TransactionStore
}

// Store is a storage backend. The embedded Tx accessors read committed state outside of
// any unit of work.
type Store interface {
	Tx
	// InAccountTx runs fn atomically for accountID. An error from fn or from the commit
	// discards every write fn made.
	InAccountTx(ctx context.Context, accountID string, fn func(tx Tx) error) error
	Close() error
}
