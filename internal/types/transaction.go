package types

import "time"

// Side is the direction of an executed order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TransactionRecord is an immutable entry of the append-only trade history.
type TransactionRecord struct {
	// ID is a ULID, so records created in the same instant still sort by creation order
	ID          string `yaml:"id" json:"id" csv:"id"`
	AccountID   string `yaml:"account_id" json:"account_id" csv:"account_id"`
	Symbol      string `yaml:"symbol" json:"symbol" csv:"symbol"`
	Name        string `yaml:"name" json:"name" csv:"name"`
	Side        Side   `yaml:"side" json:"side" csv:"side"`
	Quantity    int64  `yaml:"quantity" json:"quantity" csv:"quantity"`
	Price       Money  `yaml:"price" json:"price" csv:"price"`
	TotalAmount Money  `yaml:"total_amount" json:"total_amount" csv:"total_amount"`
	// BalanceAfter is the account cash balance right after this order committed
	BalanceAfter Money     `yaml:"balance_after" json:"balance_after" csv:"balance_after"`
	Timestamp    time.Time `yaml:"timestamp" json:"timestamp" csv:"timestamp"`
}
