package ledger

import (
	"context"

	"github.com/rxtech-lab/argo-papertrade/internal/store"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GetPortfolio revalues every holding of the account at the current quote and persists the
// valuation. A symbol that cannot be priced or saved keeps its previous valuation; the
// refresh carries on with the other holdings.
func (l *Ledger) GetPortfolio(ctx context.Context, accountID string) ([]types.Holding, error) {
	if _, err := l.store.Accounts().GetAccount(ctx, accountID); err != nil {
		return nil, surface("portfolio", err)
	}

	holdings, err := l.store.Holdings().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, surface("portfolio", err)
	}

	if l.quotes == nil || len(holdings) == 0 {
		return holdings, nil
	}

	prices := l.fetchPrices(ctx, holdings)

	refreshed := make([]types.Holding, 0, len(holdings))
	for i, h := range holdings {
		price := prices[i]
		if !price.IsPositive() {
			refreshed = append(refreshed, h)

			continue
		}

		valued, exists, err := l.applyValuation(ctx, h, price)
		if err != nil {
			l.logger.Warn("Failed to persist valuation",
				zap.String("account_id", accountID),
				zap.String("symbol", h.Symbol),
				zap.Error(err),
			)
			refreshed = append(refreshed, h)

			continue
		}

		if exists {
			refreshed = append(refreshed, valued)
		}
	}

	return refreshed, nil
}

// fetchPrices quotes every holding concurrently. A slot stays zero when no usable price came back.
func (l *Ledger) fetchPrices(ctx context.Context, holdings []types.Holding) []types.Money {
	prices := make([]types.Money, len(holdings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.RefreshConcurrency)

	for i, h := range holdings {
		i, h := i, h
		g.Go(func() error {
			quote := l.quotes.GetQuote(gctx, h.Symbol)
			if !quote.Price.IsPositive() {
				l.logger.Warn("No usable quote for holding",
					zap.String("symbol", h.Symbol),
					zap.String("price", quote.Price.Text()),
				)

				return nil
			}

			prices[i] = quote.Price

			return nil
		})
	}

	// workers never return an error
	_ = g.Wait()

	return prices
}

// applyValuation revalues the holding as it is stored now, not as it was listed: an order
// may have changed its quantity or closed it while quotes were in flight.
func (l *Ledger) applyValuation(ctx context.Context, listed types.Holding, price types.Money) (types.Holding, bool, error) {
	unlock := l.locks.Lock(listed.AccountID)
	defer unlock()

	var (
		valued types.Holding
		exists bool
	)

	err := l.store.InAccountTx(ctx, listed.AccountID, func(tx store.Tx) error {
		current, err := tx.Holdings().Get(ctx, listed.AccountID, listed.Symbol)
		if err != nil {
			return err
		}

		h, err := current.Take()
		if err != nil {
			return nil
		}

		valued = h.Valuate(price, l.now())
		exists = true

		return tx.Holdings().UpdateValuation(ctx, valued)
	})
	if err != nil {
		return types.Holding{}, false, err
	}

	return valued, exists, nil
}

// GetAccount refreshes the portfolio and summarizes cash, market value and total PnL.
func (l *Ledger) GetAccount(ctx context.Context, accountID string) (types.AccountSummary, error) {
	holdings, err := l.GetPortfolio(ctx, accountID)
	if err != nil {
		return types.AccountSummary{}, err
	}

	account, err := l.store.Accounts().GetAccount(ctx, accountID)
	if err != nil {
		return types.AccountSummary{}, surface("account", err)
	}

	return types.NewAccountSummary(account, holdings), nil
}
