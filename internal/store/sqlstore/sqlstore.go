// Package sqlstore is a database/sql store.Store for DuckDB, SQLite and PostgreSQL.
//
// Each unit of work is one SQL transaction. Balance writes carry an optimistic version
// check, so a unit racing with another process fails with ErrCodeConcurrentUpdate instead
// of overwriting it.
package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-papertrade/internal/logger"
	"github.com/rxtech-lab/argo-papertrade/internal/store"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"go.uber.org/zap"
)

// Supported driver names.
const (
	DriverDuckDB   = "duckdb"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

type Store struct {
	db     *sql.DB
	driver string
	sq     squirrel.StatementBuilderType
	logger *logger.Logger
	locks  *store.AccountLocks
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn with the named driver and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string, log *logger.Logger) (*Store, error) {
	var placeholder squirrel.PlaceholderFormat = squirrel.Question

	switch driver {
	case DriverDuckDB, DriverSQLite:
	case DriverPostgres:
		placeholder = squirrel.Dollar
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedStore, "unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to open database", err)
	}

	// a sqlite connection owns its database when it lives in memory, and sqlite only
	// allows one writer anyway
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if log == nil {
		log = logger.NewNop()
	}

	s := &Store{
		db:     db,
		driver: driver,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(placeholder),
		logger: log.Named("sqlstore"),
		locks:  store.NewAccountLocks(),
		now:    time.Now,
	}

	if err := s.Initialize(ctx); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

// Initialize creates the tables and indexes.
func (s *Store) Initialize(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(errors.ErrCodeStorageFailed, "failed to create schema", err)
		}
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Accounts() store.AccountStore         { return s.unit(s.db).Accounts() }
func (s *Store) Holdings() store.HoldingsStore         { return s.unit(s.db).Holdings() }
func (s *Store) Transactions() store.TransactionStore { return s.unit(s.db).Transactions() }

func (s *Store) unit(run squirrel.StdSqlCtx) *unit {
	return &unit{s: s, run: run, versions: make(map[string]int64)}
}

// InAccountTx runs fn inside one SQL transaction. Units on the same account are also
// serialized in-process so they do not trip each other's version checks.
func (s *Store) InAccountTx(ctx context.Context, accountID string, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to begin transaction", err)
	}

	u := s.unit(tx)
	u.accountID = accountID

	if err := fn(u); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("Rollback failed", zap.String("account_id", accountID), zap.Error(rbErr))
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return s.classify("failed to commit transaction", err)
	}

	return nil
}

// classify maps backend write conflicts to ErrCodeConcurrentUpdate.
func (s *Store) classify(msg string, err error) error {
	if isConflict(err) {
		return errors.Wrap(errors.ErrCodeConcurrentUpdate, msg, err)
	}

	return errors.Wrap(errors.ErrCodeStorageFailed, msg, err)
}

func isConflict(err error) bool {
	text := strings.ToLower(err.Error())

	return strings.Contains(text, "conflict") ||
		strings.Contains(text, "could not serialize") ||
		strings.Contains(text, "database is locked")
}

// unit implements store.Tx over either the pool or a transaction.
type unit struct {
	s         *Store
	run       squirrel.StdSqlCtx
	accountID string
	// versions remembers the account version each read saw
	versions map[string]int64
}

type (
	accountView     struct{ *unit }
	holdingView     struct{ *unit }
	transactionView struct{ *unit }
)

func (u *unit) Accounts() store.AccountStore         { return accountView{u} }
func (u *unit) Holdings() store.HoldingsStore         { return holdingView{u} }
func (u *unit) Transactions() store.TransactionStore { return transactionView{u} }

// remember records the version a unit of work last saw. Pool views never cache, so a
// balance write outside a transaction always checks against a fresh read.
func (u *unit) remember(id string, version int64) {
	if u.accountID != "" {
		u.versions[id] = version
	}
}

func (u *unit) checkScope(accountID string) error {
	if u.accountID != "" && accountID != u.accountID {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"unit of work for account %s cannot write account %s", u.accountID, accountID)
	}

	return nil
}

func (v accountView) GetAccount(ctx context.Context, id string) (types.Account, error) {
	row := v.s.sq.
		Select("id", "cash_balance", "initial_balance", "version", "created_at", "updated_at").
		From("accounts").
		Where(squirrel.Eq{"id": id}).
		RunWith(v.run).
		QueryRowContext(ctx)

	var account types.Account
	err := row.Scan(
		&account.ID,
		&account.CashBalance,
		&account.InitialBalance,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Account{}, errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", id)
	}

	if err != nil {
		return types.Account{}, errors.Wrap(errors.ErrCodeStorageFailed, "failed to query account", err)
	}

	v.remember(id, account.Version)

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

	if err := v.checkScope(id); err != nil {
		return err
	}

	version, seen := v.versions[id]
	if !seen {
		account, err := v.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		version = account.Version
	}

	result, err := v.s.sq.
		Update("accounts").
		Set("cash_balance", balance.Text()).
		Set("version", version+1).
		Set("updated_at", v.s.now().UTC()).
		Where(squirrel.Eq{"id": id, "version": version}).
		RunWith(v.run).
		ExecContext(ctx)
	if err != nil {
		return v.s.classify("failed to update balance", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to read affected rows", err)
	}

	if affected == 0 {
		if _, err := v.GetAccount(ctx, id); err != nil {
			return err
		}

		return errors.Newf(errors.ErrCodeConcurrentUpdate, "account %s changed since version %d", id, version)
	}

	v.remember(id, version+1)

	return nil
}

func (v accountView) CreateAccount(ctx context.Context, account types.Account) error {
	if account.ID == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "account id is required")
	}

	if account.CashBalance.IsNegative() {
		return errors.Newf(errors.ErrCodeNegativeBalance, "balance of %s cannot be negative", account.ID)
	}

	if err := v.checkScope(account.ID); err != nil {
		return err
	}

	if _, err := v.GetAccount(ctx, account.ID); err == nil {
		return errors.Newf(errors.ErrCodeAccountExists, "account %s already exists", account.ID)
	} else if !errors.HasCode(err, errors.ErrCodeAccountNotFound) {
		return err
	}

	_, err := v.s.sq.
		Insert("accounts").
		Columns("id", "cash_balance", "initial_balance", "version", "created_at", "updated_at").
		Values(account.ID, account.CashBalance.Text(), account.InitialBalance.Text(), account.Version,
			account.CreatedAt.UTC(), account.UpdatedAt.UTC()).
		RunWith(v.run).
		ExecContext(ctx)
	if err != nil {
		return v.s.classify("failed to insert account", err)
	}

	v.remember(account.ID, account.Version)

	return nil
}

func scanHolding(row squirrel.RowScanner) (types.Holding, error) {
	var h types.Holding
	err := row.Scan(
		&h.AccountID,
		&h.Symbol,
		&h.Name,
		&h.Quantity,
		&h.AvgCost,
		&h.TotalInvested,
		&h.LastPrice,
		&h.LastValue,
		&h.LastPnL,
		&h.LastPnLPercent,
		&h.UpdatedAt,
	)

	return h, err
}

func (v holdingView) Get(ctx context.Context, accountID, symbol string) (optional.Option[types.Holding], error) {
	row := v.s.sq.
		Select(holdingColumns...).
		From("holdings").
		Where(squirrel.Eq{"account_id": accountID, "symbol": symbol}).
		RunWith(v.run).
		QueryRowContext(ctx)

	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return optional.None[types.Holding](), nil
	}

	if err != nil {
		return optional.None[types.Holding](), errors.Wrap(errors.ErrCodeStorageFailed, "failed to query holding", err)
	}

	return optional.Some(h), nil
}

func (v holdingView) Upsert(ctx context.Context, h types.Holding) error {
	if err := h.Validate(); err != nil {
		return err
	}

	if err := v.checkScope(h.AccountID); err != nil {
		return err
	}

	_, err := v.s.sq.
		Insert("holdings").
		Columns(holdingColumns...).
		Values(h.AccountID, h.Symbol, h.Name, h.Quantity, h.AvgCost.Text(), h.TotalInvested.Text(),
			h.LastPrice.Text(), h.LastValue.Text(), h.LastPnL.Text(), h.LastPnLPercent, h.UpdatedAt.UTC()).
		Suffix(upsertHoldingSuffix).
		RunWith(v.run).
		ExecContext(ctx)
	if err != nil {
		return v.s.classify("failed to upsert holding", err)
	}

	return nil
}

func (v holdingView) Delete(ctx context.Context, accountID, symbol string) error {
	if err := v.checkScope(accountID); err != nil {
		return err
	}

	_, err := v.s.sq.
		Delete("holdings").
		Where(squirrel.Eq{"account_id": accountID, "symbol": symbol}).
		RunWith(v.run).
		ExecContext(ctx)
	if err != nil {
		return v.s.classify("failed to delete holding", err)
	}

	return nil
}

func (v holdingView) UpdateValuation(ctx context.Context, h types.Holding) error {
	if err := v.checkScope(h.AccountID); err != nil {
		return err
	}

	_, err := v.s.sq.
		Update("holdings").
		Set("last_price", h.LastPrice.Text()).
		Set("last_value", h.LastValue.Text()).
		Set("last_pnl", h.LastPnL.Text()).
		Set("last_pnl_percent", h.LastPnLPercent).
		Set("updated_at", h.UpdatedAt.UTC()).
		Where(squirrel.Eq{"account_id": h.AccountID, "symbol": h.Symbol}).
		RunWith(v.run).
		ExecContext(ctx)
	if err != nil {
		return v.s.classify("failed to update valuation", err)
	}

	return nil
}

func (v holdingView) ListByAccount(ctx context.Context, accountID string) ([]types.Holding, error) {
	rows, err := v.s.sq.
		Select(holdingColumns...).
		From("holdings").
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("updated_at DESC", "symbol ASC").
		RunWith(v.run).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to query holdings", err)
	}
	defer rows.Close()

	holdings := []types.Holding{}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to scan holding", err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "error iterating holdings", err)
	}

	return holdings, nil
}

func (v transactionView) Append(ctx context.Context, r types.TransactionRecord) error {
	if r.ID == "" || r.AccountID == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "transaction record requires id and account id")
	}

	if err := v.checkScope(r.AccountID); err != nil {
		return err
	}

	_, err := v.s.sq.
		Insert("transactions").
		Columns(transactionColumns...).
		Values(r.ID, r.AccountID, r.Symbol, r.Name, string(r.Side), r.Quantity,
			r.Price.Text(), r.TotalAmount.Text(), r.BalanceAfter.Text(), r.Timestamp.UTC()).
		RunWith(v.run).
		ExecContext(ctx)
	if err != nil {
		return v.s.classify("failed to append transaction", err)
	}

	return nil
}

func (v transactionView) ListByAccount(ctx context.Context, accountID string, limit int) ([]types.TransactionRecord, error) {
	query := v.s.sq.
		Select(transactionColumns...).
		From("transactions").
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("executed_at DESC", "id DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := query.RunWith(v.run).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to query transactions", err)
	}
	defer rows.Close()

	records := []types.TransactionRecord{}
	for rows.Next() {
		var r types.TransactionRecord
		var side string
		err := rows.Scan(
			&r.ID,
			&r.AccountID,
			&r.Symbol,
			&r.Name,
			&side,
			&r.Quantity,
			&r.Price,
			&r.TotalAmount,
			&r.BalanceAfter,
			&r.Timestamp,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to scan transaction", err)
		}
		r.Side = types.Side(side)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "error iterating transactions", err)
	}

	return records, nil
}
