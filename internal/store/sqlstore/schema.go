package sqlstore

// Amounts are stored as exact decimal text so every backend round-trips them unchanged.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		cash_balance TEXT NOT NULL,
		initial_balance TEXT NOT NULL,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity BIGINT NOT NULL CHECK (quantity > 0),
		avg_cost TEXT NOT NULL,
		total_invested TEXT NOT NULL,
		last_price TEXT NOT NULL,
		last_value TEXT NOT NULL,
		last_pnl TEXT NOT NULL,
		last_pnl_percent DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (account_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		name TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity BIGINT NOT NULL,
		price TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		executed_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions (account_id, executed_at)`,
}

var holdingColumns = []string{
	"account_id", "symbol", "name", "quantity", "avg_cost", "total_invested",
	"last_price", "last_value", "last_pnl", "last_pnl_percent", "updated_at",
}

var transactionColumns = []string{
	"id", "account_id", "symbol", "name", "side", "quantity",
	"price", "total_amount", "balance_after", "executed_at",
}

const upsertHoldingSuffix = `ON CONFLICT (account_id, symbol) DO UPDATE SET
	name = excluded.name,
	quantity = excluded.quantity,
	avg_cost = excluded.avg_cost,
	total_invested = excluded.total_invested,
	last_price = excluded.last_price,
	last_value = excluded.last_value,
	last_pnl = excluded.last_pnl,
	last_pnl_percent = excluded.last_pnl_percent,
	updated_at = excluded.updated_at`
