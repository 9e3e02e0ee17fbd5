package types

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type HoldingTestSuite struct {
	suite.Suite
}

func TestHoldingSuite(t *testing.T) {
	suite.Run(t, new(HoldingTestSuite))
}

func (suite *HoldingTestSuite) TestValidate() {
	h := Holding{AccountID: "a", Symbol: "005930", Quantity: 1}
	suite.NoError(h.Validate())

	h.Quantity = 0
	suite.Equal(errors.ErrCodeInvalidHolding, errors.GetCode(h.Validate()))

	h = Holding{Symbol: "005930", Quantity: 1}
	suite.Equal(errors.ErrCodeInvalidHolding, errors.GetCode(h.Validate()))
}

func (suite *HoldingTestSuite) TestValuate() {
	now := time.Now()
	h := Holding{AccountID: "a", Symbol: "005930", Quantity: 10, AvgCost: M(1000), TotalInvested: M(10000)}

	valued := h.Valuate(M(1100), now)
	suite.Equal("1100", valued.LastPrice.Text())
	suite.Equal("11000", valued.LastValue.Text())
	suite.Equal("1000", valued.LastPnL.Text())
	suite.InDelta(10.0, valued.LastPnLPercent, 1e-9)
	suite.Equal(now, valued.UpdatedAt)

	// the receiver is untouched
	suite.True(h.LastPrice.IsZero())
}

func (suite *HoldingTestSuite) TestValuateZeroCostBasis() {
	h := Holding{Quantity: 1}
	suite.Equal(0.0, h.Valuate(M(10), time.Now()).LastPnLPercent)
}

func (suite *HoldingTestSuite) TestMarketValue() {
	h := Holding{Quantity: 10, TotalInvested: M(10000)}
	suite.Equal("10000", h.MarketValue().Text())

	h.LastPrice = M(900)
	suite.Equal("9000", h.MarketValue().Text())
}

func (suite *HoldingTestSuite) TestAccountSummary() {
	account := Account{ID: "a", CashBalance: M(9_990_000), InitialBalance: M(10_000_000)}
	holdings := []Holding{
		{Symbol: "005930", Quantity: 10, TotalInvested: M(10000), LastPrice: M(1100)},
	}

	summary := NewAccountSummary(account, holdings)
	suite.Equal("11000", summary.HoldingsValue.Text())
	suite.Equal("10001000", summary.TotalEquity.Text())
	suite.Equal("1000", summary.TotalPnL.Text())
	suite.InDelta(0.01, summary.TotalPnLPercent, 1e-9)
}
