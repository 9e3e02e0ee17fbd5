package types

import "time"

// Account is a cash account. CashBalance is only ever changed by the ledger while
// executing an order and never drops below zero.
type Account struct {
	// ID is the opaque account identifier
	ID string `yaml:"id" json:"id"`
	// CashBalance is the spendable cash
	CashBalance Money `yaml:"cash_balance" json:"cash_balance"`
	// InitialBalance is the cash the account was opened with, used for total PnL
	InitialBalance Money `yaml:"initial_balance" json:"initial_balance"`
	// Version increments on every balance write; SQL stores use it for optimistic checks
	Version   int64     `yaml:"version" json:"version"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// AccountSummary is the dashboard view of an account after a valuation refresh.
type AccountSummary struct {
	Account Account `json:"account"`
	// Holdings are the refreshed positions
	Holdings []Holding `json:"holdings"`
	// HoldingsValue is the sum of the last known market value of every holding
	HoldingsValue Money `json:"holdings_value"`
	// TotalEquity is CashBalance + HoldingsValue
	TotalEquity Money `json:"total_equity"`
	// TotalPnL is TotalEquity - InitialBalance
	TotalPnL        Money   `json:"total_pnl"`
	TotalPnLPercent float64 `json:"total_pnl_percent"`
}

// NewAccountSummary aggregates the holdings valuation of an account.
func NewAccountSummary(account Account, holdings []Holding) AccountSummary {
	var value Money
	for _, h := range holdings {
		value = value.Add(h.MarketValue())
	}

	equity := account.CashBalance.Add(value)
	pnl := equity.Sub(account.InitialBalance)

	return AccountSummary{
		Account:         account,
		Holdings:        holdings,
		HoldingsValue:   value,
		TotalEquity:     equity,
		TotalPnL:        pnl,
		TotalPnLPercent: pnl.PercentOf(account.InitialBalance),
	}
}
