// Package ledger executes paper orders against an account's cash and holdings.
//
// Every order is one unit of work on the store: the balance read, balance write, holding
// write and transaction append either all land or none do. Orders on the same account are
// serialized; orders on different accounts run in parallel.
package ledger

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-papertrade/internal/id"
	"github.com/rxtech-lab/argo-papertrade/internal/logger"
	"github.com/rxtech-lab/argo-papertrade/internal/store"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"go.uber.org/zap"
)

// QuoteSource prices holdings during a portfolio refresh.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) types.Quote
}

type Config struct {
	// HistoryLimit is used when GetHistory is called without a positive limit
	HistoryLimit int
	// MaxHistoryLimit caps any requested limit
	MaxHistoryLimit int
	// InitialBalance funds accounts created without an explicit amount
	InitialBalance types.Money
	// ConflictRetries is how often an order is replayed after a concurrent update
	ConflictRetries uint64
	// RefreshConcurrency bounds parallel quote lookups in GetPortfolio
	RefreshConcurrency int
}

// DefaultConfig mirrors config.Default.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:       50,
		MaxHistoryLimit:    1000,
		InitialBalance:     types.M(10_000_000),
		ConflictRetries:    3,
		RefreshConcurrency: 4,
	}
}

type Ledger struct {
	store  store.Store
	quotes QuoteSource
	locks  *store.AccountLocks
	ids    *id.Generator
	logger *logger.Logger
	config Config
	now    func() time.Time
}

type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator replaces the transaction id generator.
func WithIDGenerator(g *id.Generator) Option {
	return func(l *Ledger) { l.ids = g }
}

// New builds a Ledger. quotes may be nil if GetPortfolio is never called.
func New(st store.Store, quotes QuoteSource, cfg Config, log *logger.Logger, opts ...Option) *Ledger {
	defaults := DefaultConfig()
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}

	if cfg.MaxHistoryLimit <= 0 {
		cfg.MaxHistoryLimit = defaults.MaxHistoryLimit
	}

	if cfg.RefreshConcurrency <= 0 {
		cfg.RefreshConcurrency = defaults.RefreshConcurrency
	}

	if log == nil {
		log = logger.NewNop()
	}

	l := &Ledger{
		store:  st,
		quotes: quotes,
		locks:  store.NewAccountLocks(),
		ids:    id.NewGenerator(),
		logger: log.Named("ledger"),
		config: cfg,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// BuyResult is the state of the account right after a buy.
type BuyResult struct {
	NewBalance  types.Money
	Holding     types.Holding
	Transaction types.TransactionRecord
}

// SellResult is the state of the account right after a sell. Holding is None when the
// position was closed.
type SellResult struct {
	NewBalance  types.Money
	Holding     optional.Option[types.Holding]
	Transaction types.TransactionRecord
}

// CreateAccount opens an account funded with initialBalance, or with the configured
// default when initialBalance is zero.
func (l *Ledger) CreateAccount(ctx context.Context, initialBalance types.Money) (types.Account, error) {
	if initialBalance.IsNegative() {
		return types.Account{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"initial balance cannot be negative: %s", initialBalance.Text())
	}

	if initialBalance.IsZero() {
		initialBalance = l.config.InitialBalance
	}

	now := l.now()
	account := types.Account{
		ID:             uuid.New().String(),
		CashBalance:    initialBalance,
		InitialBalance: initialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := l.store.Accounts().CreateAccount(ctx, account); err != nil {
		return types.Account{}, surface("create account", err)
	}

	l.logger.Info("Account created",
		zap.String("account_id", account.ID),
		zap.String("initial_balance", initialBalance.String()),
	)

	return account, nil
}

// ExecuteBuy debits price×quantity and adds the shares to the holding, re-averaging its cost.
func (l *Ledger) ExecuteBuy(ctx context.Context, order types.BuyOrder) (BuyResult, error) {
	if err := order.Validate(); err != nil {
		return BuyResult{}, err
	}

	if order.AccountID == "" {
		return BuyResult{}, errors.New(errors.ErrCodeAccountNotFound, "account id is required")
	}

	if order.Name == "" {
		order.Name = order.Symbol
	}

	var result BuyResult

	err := l.execute(ctx, order.AccountID, func(tx store.Tx, now time.Time) error {
		balance, err := tx.Accounts().GetBalance(ctx, order.AccountID)
		if err != nil {
			return err
		}

		cost := order.Total()
		if balance.LessThan(cost) {
			return errors.Newf(errors.ErrCodeInsufficientFunds,
				"insufficient funds: balance %s, required %s", balance.Text(), cost.Text())
		}

		newBalance := balance.Sub(cost)
		if err := tx.Accounts().SetBalance(ctx, order.AccountID, newBalance); err != nil {
			return err
		}

		existing, err := tx.Holdings().Get(ctx, order.AccountID, order.Symbol)
		if err != nil {
			return err
		}

		holding := types.Holding{
			AccountID:     order.AccountID,
			Symbol:        order.Symbol,
			Name:          order.Name,
			Quantity:      order.Quantity,
			AvgCost:       order.Price,
			TotalInvested: cost,
		}

		if current, err := existing.Take(); err == nil {
			if current.Quantity > math.MaxInt64-order.Quantity {
				return errors.Newf(errors.ErrCodeInvalidQuantity,
					"buying %d more %s would overflow the held quantity %d", order.Quantity, order.Symbol, current.Quantity)
			}

			holding = current
			holding.Quantity = current.Quantity + order.Quantity
			holding.TotalInvested = current.TotalInvested.Add(cost)
			holding.AvgCost = holding.TotalInvested.Div(holding.Quantity)
		}

		holding = holding.Valuate(order.Price, now)
		if err := tx.Holdings().Upsert(ctx, holding); err != nil {
			return err
		}

		record := types.TransactionRecord{
			ID:           l.ids.New(now),
			AccountID:    order.AccountID,
			Symbol:       order.Symbol,
			Name:         order.Name,
			Side:         types.SideBuy,
			Quantity:     order.Quantity,
			Price:        order.Price,
			TotalAmount:  cost,
			BalanceAfter: newBalance,
			Timestamp:    now,
		}
		if err := tx.Transactions().Append(ctx, record); err != nil {
			return err
		}

		result = BuyResult{NewBalance: newBalance, Holding: holding, Transaction: record}

		return nil
	})
	if err != nil {
		return BuyResult{}, surface("buy", err)
	}

	l.logOrder(result.Transaction)

	return result, nil
}

// ExecuteSell credits price×quantity and reduces the holding, deleting it when it reaches zero.
//
// A partial sell recomputes the cost basis as avgCost × remaining rather than subtracting the
// sold cost, so the basis can drift from the exact remaining cost by the avgCost rounding.
func (l *Ledger) ExecuteSell(ctx context.Context, order types.SellOrder) (SellResult, error) {
	if err := order.Validate(); err != nil {
		return SellResult{}, err
	}

	if order.AccountID == "" {
		return SellResult{}, errors.New(errors.ErrCodeAccountNotFound, "account id is required")
	}

	var result SellResult

	err := l.execute(ctx, order.AccountID, func(tx store.Tx, now time.Time) error {
		balance, err := tx.Accounts().GetBalance(ctx, order.AccountID)
		if err != nil {
			return err
		}

		existing, err := tx.Holdings().Get(ctx, order.AccountID, order.Symbol)
		if err != nil {
			return err
		}

		holding, err := existing.Take()
		if err != nil {
			return errors.Newf(errors.ErrCodeNoHolding, "no holding of %s", order.Symbol)
		}

		if order.Quantity > holding.Quantity {
			return errors.NewInsufficientHoldingError(order.Symbol, holding.Quantity, order.Quantity)
		}

		proceeds := order.Total()
		newBalance := balance.Add(proceeds)
		if err := tx.Accounts().SetBalance(ctx, order.AccountID, newBalance); err != nil {
			return err
		}

		remaining := optional.None[types.Holding]()

		if left := holding.Quantity - order.Quantity; left == 0 {
			if err := tx.Holdings().Delete(ctx, order.AccountID, order.Symbol); err != nil {
				return err
			}
		} else {
			updated := holding
			updated.Quantity = left
			updated.TotalInvested = holding.AvgCost.Mul(left)
			updated = updated.Valuate(order.Price, now)

			if err := tx.Holdings().Upsert(ctx, updated); err != nil {
				return err
			}
			remaining = optional.Some(updated)
		}

		record := types.TransactionRecord{
			ID:           l.ids.New(now),
			AccountID:    order.AccountID,
			Symbol:       order.Symbol,
			Name:         holding.Name,
			Side:         types.SideSell,
			Quantity:     order.Quantity,
			Price:        order.Price,
			TotalAmount:  proceeds,
			BalanceAfter: newBalance,
			Timestamp:    now,
		}
		if err := tx.Transactions().Append(ctx, record); err != nil {
			return err
		}

		result = SellResult{NewBalance: newBalance, Holding: remaining, Transaction: record}

		return nil
	})
	if err != nil {
		return SellResult{}, surface("sell", err)
	}

	l.logOrder(result.Transaction)

	return result, nil
}

// execute runs fn as one unit of work under the account lock. A unit that loses an
// optimistic version race is replayed from scratch with exponential backoff.
func (l *Ledger) execute(ctx context.Context, accountID string, fn func(tx store.Tx, now time.Time) error) error {
	unlock := l.locks.Lock(accountID)
	defer unlock()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	attempt := 0
	operation := func() error {
		attempt++

		err := l.store.InAccountTx(ctx, accountID, func(tx store.Tx) error {
			return fn(tx, l.now())
		})
		if err == nil {
			return nil
		}

		if errors.HasCode(err, errors.ErrCodeConcurrentUpdate) {
			l.logger.Warn("Concurrent update, replaying order",
				zap.String("account_id", accountID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)

			return err
		}

		return backoff.Permanent(err)
	}

	return backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, l.config.ConflictRetries), ctx))
}

func (l *Ledger) logOrder(record types.TransactionRecord) {
	l.logger.Info("Order executed",
		zap.String("account_id", record.AccountID),
		zap.String("symbol", record.Symbol),
		zap.String("side", string(record.Side)),
		zap.Int64("quantity", record.Quantity),
		zap.String("price", record.Price.Text()),
		zap.String("balance_after", record.BalanceAfter.Text()),
		zap.String("transaction_id", record.ID),
	)
}

// GetHistory returns the newest transactions of the account first. A non-positive limit
// uses the configured default; larger limits are capped.
func (l *Ledger) GetHistory(ctx context.Context, accountID string, limit int) ([]types.TransactionRecord, error) {
	if _, err := l.store.Accounts().GetAccount(ctx, accountID); err != nil {
		return nil, surface("history", err)
	}

	if limit <= 0 {
		limit = l.config.HistoryLimit
	}

	if limit > l.config.MaxHistoryLimit {
		limit = l.config.MaxHistoryLimit
	}

	records, err := l.store.Transactions().ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, surface("history", err)
	}

	return records, nil
}

// surface passes business rule violations through untouched and turns everything else into
// a generic storage failure with the cause attached.
func surface(op string, err error) error {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidOrder,
		errors.ErrCodeInvalidQuantity,
		errors.ErrCodeInvalidParameter,
		errors.ErrCodeAccountNotFound,
		errors.ErrCodeAccountExists,
		errors.ErrCodeInsufficientFunds,
		errors.ErrCodeNoHolding,
		errors.ErrCodeInsufficientHolding:
		return err
	}

	return errors.Wrapf(errors.ErrCodeStorageFailed, err, "%s failed", op)
}
