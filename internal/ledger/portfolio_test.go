package ledger

import (
	"sync"

	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
)

func (suite *LedgerTestSuite) TestPortfolioRevaluesAndPersists() {
	suite.buy("005930", 10, 1000)
	suite.buy("000660", 2, 5000)
	suite.quotes.set("005930", 1500)
	suite.quotes.set("000660", 4000)

	holdings, err := suite.ledger.GetPortfolio(suite.ctx, suite.account.ID)
	suite.Require().NoError(err)
	suite.Require().Len(holdings, 2)

	bySymbol := map[string]types.Holding{}
	for _, h := range holdings {
		bySymbol[h.Symbol] = h
	}

	samsung := bySymbol["005930"]
	suite.assertMoney("1500", samsung.LastPrice)
	suite.assertMoney("15000", samsung.LastValue)
	suite.assertMoney("5000", samsung.LastPnL)
	suite.InDelta(50.0, samsung.LastPnLPercent, 1e-9)

	hynix := bySymbol["000660"]
	suite.assertMoney("-2000", hynix.LastPnL)
	suite.InDelta(-20.0, hynix.LastPnLPercent, 1e-9)

	stored, err := suite.store.Holdings().Get(suite.ctx, suite.account.ID, "005930")
	suite.Require().NoError(err)
	suite.assertMoney("1500", stored.Unwrap().LastPrice)
	suite.Equal(int64(10), stored.Unwrap().Quantity)
}

func (suite *LedgerTestSuite) TestPortfolioKeepsValuationWhenQuoteUnusable() {
	suite.buy("005930", 10, 1000)
	suite.buy("035720", 3, 2000)
	suite.quotes.set("005930", 1200)
	// 035720 has no price

	holdings, err := suite.ledger.GetPortfolio(suite.ctx, suite.account.ID)
	suite.Require().NoError(err)
	suite.Require().Len(holdings, 2)

	for _, h := range holdings {
		switch h.Symbol {
		case "005930":
			suite.assertMoney("1200", h.LastPrice)
		case "035720":
			// still valued at the trade price
			suite.assertMoney("2000", h.LastPrice)
		}
	}
}

func (suite *LedgerTestSuite) TestPortfolioSkipsHoldingClosedDuringRefresh() {
	suite.buy("005930", 10, 1000)
	suite.buy("000660", 1, 1000)
	suite.quotes.set("005930", 1100)
	suite.quotes.set("000660", 1100)

	var once sync.Once
	suite.quotes.before = func(symbol string) {
		if symbol != "000660" {
			return
		}

		once.Do(func() {
			_, err := suite.sell("000660", 1, 1100)
			suite.NoError(err)
		})
	}

	holdings, err := suite.ledger.GetPortfolio(suite.ctx, suite.account.ID)
	suite.Require().NoError(err)
	suite.Require().Len(holdings, 1)
	suite.Equal("005930", holdings[0].Symbol)

	stored, err := suite.store.Holdings().Get(suite.ctx, suite.account.ID, "000660")
	suite.Require().NoError(err)
	suite.True(stored.IsNone())
}

func (suite *LedgerTestSuite) TestPortfolioUsesQuantityAtWriteTime() {
	suite.buy("005930", 10, 1000)
	suite.quotes.set("005930", 2000)

	var once sync.Once
	suite.quotes.before = func(string) {
		once.Do(func() { suite.buy("005930", 10, 1000) })
	}

	holdings, err := suite.ledger.GetPortfolio(suite.ctx, suite.account.ID)
	suite.Require().NoError(err)
	suite.Require().Len(holdings, 1)
	suite.Equal(int64(20), holdings[0].Quantity)
	suite.assertMoney("40000", holdings[0].LastValue)
}

func (suite *LedgerTestSuite) TestPortfolioEmptyAndUnknownAccount() {
	holdings, err := suite.ledger.GetPortfolio(suite.ctx, suite.account.ID)
	suite.NoError(err)
	suite.Empty(holdings)

	_, err = suite.ledger.GetPortfolio(suite.ctx, "missing")
	suite.True(errors.HasCode(err, errors.ErrCodeAccountNotFound))
}

func (suite *LedgerTestSuite) TestPortfolioWithoutQuoteSource() {
	l := New(suite.store, nil, DefaultConfig(), nil)
	suite.buy("005930", 1, 1000)

	holdings, err := l.GetPortfolio(suite.ctx, suite.account.ID)
	suite.Require().NoError(err)
	suite.Require().Len(holdings, 1)
	suite.assertMoney("1000", holdings[0].LastPrice)
}

func (suite *LedgerTestSuite) TestGetAccountSummary() {
	suite.buy("005930", 10, 1000)
	suite.quotes.set("005930", 1500)

	summary, err := suite.ledger.GetAccount(suite.ctx, suite.account.ID)
	suite.Require().NoError(err)

	suite.assertMoney("9990000", summary.Account.CashBalance)
	suite.assertMoney("15000", summary.HoldingsValue)
	suite.assertMoney("10005000", summary.TotalEquity)
	suite.assertMoney("5000", summary.TotalPnL)
	suite.InDelta(0.05, summary.TotalPnLPercent, 1e-9)
	suite.Len(summary.Holdings, 1)

	_, err = suite.ledger.GetAccount(suite.ctx, "missing")
	suite.True(errors.HasCode(err, errors.ErrCodeAccountNotFound))
}
