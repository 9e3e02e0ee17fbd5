package types

import (
	"time"

	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
)

// Holding is an open position of one account in one symbol.
// A stored holding always has Quantity > 0; selling the last share deletes it.
type Holding struct {
	AccountID string `yaml:"account_id" json:"account_id"`
	Symbol    string `yaml:"symbol" json:"symbol"`
	Name      string `yaml:"name" json:"name"`
	Quantity  int64  `yaml:"quantity" json:"quantity"`
	// AvgCost is TotalInvested / Quantity, recomputed on every buy
	AvgCost Money `yaml:"avg_cost" json:"avg_cost"`
	// TotalInvested is the cost basis of the open quantity
	TotalInvested Money `yaml:"total_invested" json:"total_invested"`

	// Valuation fields, refreshed independently of quantity by a portfolio read.
	LastPrice      Money     `yaml:"last_price" json:"last_price"`
	LastValue      Money     `yaml:"last_value" json:"last_value"`
	LastPnL        Money     `yaml:"last_pnl" json:"last_pnl"`
	LastPnLPercent float64   `yaml:"last_pnl_percent" json:"last_pnl_percent"`
	UpdatedAt      time.Time `yaml:"updated_at" json:"updated_at"`
}

// Validate checks the invariants every persisted holding must satisfy.
func (h Holding) Validate() error {
	if h.AccountID == "" || h.Symbol == "" {
		return errors.New(errors.ErrCodeInvalidHolding, "holding requires account id and symbol")
	}

	if h.Quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidHolding, "holding %s quantity must be positive, got %d", h.Symbol, h.Quantity)
	}

	return nil
}

// Valuate returns a copy of the holding revalued at price.
func (h Holding) Valuate(price Money, at time.Time) Holding {
	value := price.Mul(h.Quantity)
	pnl := value.Sub(h.TotalInvested)

	h.LastPrice = price
	h.LastValue = value
	h.LastPnL = pnl
	h.LastPnLPercent = pnl.PercentOf(h.TotalInvested)
	h.UpdatedAt = at

	return h
}

// MarketValue is the last known value of the position, falling back to cost basis
// when the holding has never been valued.
func (h Holding) MarketValue() Money {
	if h.LastPrice.IsZero() {
		return h.TotalInvested
	}

	return h.LastPrice.Mul(h.Quantity)
}
