package provider

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
)

// polygonLookback is how far back daily aggregates are requested.
const polygonLookback = 120 * 24 * time.Hour

// PolygonAggsIterator walks a paged aggregate listing.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the subset of the Polygon REST client used here.
type PolygonAPIClient interface {
	GetPreviousCloseAgg(ctx context.Context, params *models.GetPreviousCloseAggParams) (*models.GetPreviousCloseAggResponse, error)
	ListAggs(ctx context.Context, params *models.ListAggsParams) PolygonAggsIterator
}

type polygonRESTClient struct {
	client *polygon.Client
}

func (c polygonRESTClient) GetPreviousCloseAgg(
	ctx context.Context,
	params *models.GetPreviousCloseAggParams,
) (*models.GetPreviousCloseAggResponse, error) {
	return c.client.GetPreviousCloseAgg(ctx, params)
}

func (c polygonRESTClient) ListAggs(ctx context.Context, params *models.ListAggsParams) PolygonAggsIterator {
	return c.client.ListAggs(ctx, params)
}

// PolygonClient serves quotes and daily bars from Polygon.io. Polygon authenticates with a
// static API key, so IssueToken just hands the key back.
type PolygonClient struct {
	api    PolygonAPIClient
	apiKey string
	now    func() time.Time
}

var _ Provider = (*PolygonClient)(nil)

func NewPolygonClient(apiKey string) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon provider requires an api key")
	}

	return NewPolygonClientWithAPI(polygonRESTClient{client: polygon.New(apiKey)}, apiKey), nil
}

// NewPolygonClientWithAPI wraps an existing API client.
func NewPolygonClientWithAPI(api PolygonAPIClient, apiKey string) *PolygonClient {
	return &PolygonClient{
		api:    api,
		apiKey: apiKey,
		now:    time.Now,
	}
}

func (c *PolygonClient) IssueToken(_ context.Context) (Token, error) {
	return Token{AccessToken: c.apiKey}, nil
}

// Quote is derived from the previous close aggregate.
func (c *PolygonClient) Quote(ctx context.Context, _ string, symbol string) (types.Quote, error) {
	params := &models.GetPreviousCloseAggParams{Ticker: symbol}

	resp, err := c.api.GetPreviousCloseAgg(ctx, params)
	if err != nil {
		return types.Quote{}, errors.Wrapf(errors.ErrCodeProviderUnavailable, err, "quote %s", symbol)
	}

	if len(resp.Results) == 0 {
		return types.Quote{}, errors.Newf(errors.ErrCodeMarketDataParseFailed, "quote %s: no previous close", symbol)
	}

	return quoteFromAgg(symbol, resp.Results[0])
}

// DailyCandles lists daily aggregates newest first.
func (c *PolygonClient) DailyCandles(ctx context.Context, _ string, symbol string) ([]types.Candle, error) {
	to := c.now()

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(to.Add(-polygonLookback)),
		To:         models.Millis(to),
	}.WithOrder(models.Desc).WithLimit(5000)

	iter := c.api.ListAggs(ctx, params)

	candles := []types.Candle{}
	for iter.Next() {
		candles = append(candles, candleFromAgg(iter.Item()))
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeProviderUnavailable, iter.Err(), "daily candles %s", symbol)
	}

	return candles, nil
}

func quoteFromAgg(symbol string, agg models.Agg) (types.Quote, error) {
	price := types.MoneyFromFloat(agg.Close)
	if !price.IsPositive() {
		return types.Quote{}, errors.Newf(errors.ErrCodeMarketDataParseFailed, "quote %s has non-positive close", symbol)
	}

	open := types.MoneyFromFloat(agg.Open)
	change := price.Sub(open)

	return types.Quote{
		Symbol:    symbol,
		Name:      symbol,
		Price:     price,
		ChangeAbs: change,
		ChangePct: change.PercentOf(open),
		High:      types.MoneyFromFloat(agg.High),
		Low:       types.MoneyFromFloat(agg.Low),
		Open:      open,
		Volume:    int64(agg.Volume),
	}, nil
}

func candleFromAgg(agg models.Agg) types.Candle {
	ts := time.Time(agg.Timestamp).UTC()

	return types.Candle{
		Date:   time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
		Open:   types.MoneyFromFloat(agg.Open),
		High:   types.MoneyFromFloat(agg.High),
		Low:    types.MoneyFromFloat(agg.Low),
		Close:  types.MoneyFromFloat(agg.Close),
		Volume: int64(agg.Volume),
	}
}
