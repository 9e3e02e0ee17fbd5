package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-papertrade/internal/marketdata/providertest"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type KISClientTestSuite struct {
	suite.Suite
	server *providertest.Server
	client *KISClient
}

func TestKISClientSuite(t *testing.T) {
	suite.Run(t, new(KISClientTestSuite))
}

func (suite *KISClientTestSuite) SetupTest() {
	suite.server = providertest.NewServer(providertest.Config{AppKey: "key", AppSecret: "secret", ExpiresIn: 3600})
	suite.Require().NoError(suite.server.Start(""))

	client, err := NewKISClient(Config{
		BaseURL:   suite.server.BaseURL(),
		AppKey:    "key",
		AppSecret: "secret",
		Timeout:   2 * time.Second,
	})
	suite.Require().NoError(err)
	suite.client = client

	suite.server.SetQuote(types.Quote{
		Symbol:    "005930",
		Name:      "삼성전자",
		Price:     types.M(71500),
		ChangeAbs: types.M(-500),
		ChangePct: -0.69,
		High:      types.M(72000),
		Low:       types.M(71000),
		Open:      types.M(71800),
		Volume:    12345678,
	})
}

func (suite *KISClientTestSuite) TearDownTest() {
	suite.NoError(suite.server.Stop())
}

func (suite *KISClientTestSuite) token() string {
	token, err := suite.client.IssueToken(context.Background())
	suite.Require().NoError(err)

	return token.AccessToken
}

func (suite *KISClientTestSuite) TestNewKISClientRequiresCredentials() {
	_, err := NewKISClient(Config{AppKey: "key"})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	client, err := NewKISClient(Config{AppKey: "key", AppSecret: "secret"})
	suite.NoError(err)
	suite.Equal(DefaultKISBaseURL, client.http.BaseURL)
}

func (suite *KISClientTestSuite) TestIssueToken() {
	token, err := suite.client.IssueToken(context.Background())
	suite.NoError(err)
	suite.NotEmpty(token.AccessToken)
	suite.Equal(time.Hour, token.ExpiresIn)
	suite.Equal(1, suite.server.Calls(providertest.EndpointToken))
}

func (suite *KISClientTestSuite) TestIssueTokenWrongCredentials() {
	client, err := NewKISClient(Config{BaseURL: suite.server.BaseURL(), AppKey: "key", AppSecret: "wrong"})
	suite.Require().NoError(err)

	_, err = client.IssueToken(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeAuthFailure))
}

func (suite *KISClientTestSuite) TestIssueTokenMissingAccessToken() {
	suite.server.Fail(providertest.EndpointToken, providertest.Failure{Garbled: true})

	_, err := suite.client.IssueToken(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeAuthFailure))
}

func (suite *KISClientTestSuite) TestQuote() {
	quote, err := suite.client.Quote(context.Background(), suite.token(), "005930")
	suite.Require().NoError(err)

	suite.Equal("005930", quote.Symbol)
	suite.Equal("삼성전자", quote.Name)
	suite.True(quote.Price.Equal(types.M(71500)))
	suite.True(quote.ChangeAbs.Equal(types.M(-500)))
	suite.InDelta(-0.69, quote.ChangePct, 1e-9)
	suite.True(quote.High.Equal(types.M(72000)))
	suite.True(quote.Low.Equal(types.M(71000)))
	suite.True(quote.Open.Equal(types.M(71800)))
	suite.Equal(int64(12345678), quote.Volume)
	suite.False(quote.Synthetic)
}

func (suite *KISClientTestSuite) TestQuoteEmptyNameFallsBackToSymbol() {
	suite.server.SetQuote(types.Quote{Symbol: "123456", Price: types.M(1000)})

	quote, err := suite.client.Quote(context.Background(), suite.token(), "123456")
	suite.Require().NoError(err)
	suite.Equal("123456", quote.Name)
}

func (suite *KISClientTestSuite) TestQuoteRejectsBadToken() {
	suite.token()

	_, err := suite.client.Quote(context.Background(), "stale", "005930")
	suite.True(errors.HasCode(err, errors.ErrCodeAuthFailure))
}

func (suite *KISClientTestSuite) TestQuoteUnknownSymbol() {
	_, err := suite.client.Quote(context.Background(), suite.token(), "999999")
	suite.True(errors.HasCode(err, errors.ErrCodeProviderUnavailable))
	suite.Contains(err.Error(), "EGW00001")
}

func (suite *KISClientTestSuite) TestQuoteGarbledPayload() {
	token := suite.token()
	suite.server.Fail(providertest.EndpointQuote, providertest.Failure{Garbled: true})

	_, err := suite.client.Quote(context.Background(), token, "005930")
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataParseFailed))
}

func (suite *KISClientTestSuite) TestQuoteServerError() {
	token := suite.token()
	suite.server.Fail(providertest.EndpointQuote, providertest.Failure{StatusCode: http.StatusInternalServerError})

	_, err := suite.client.Quote(context.Background(), token, "005930")
	suite.True(errors.HasCode(err, errors.ErrCodeProviderUnavailable))
}

func (suite *KISClientTestSuite) TestQuoteResultCodeFailure() {
	token := suite.token()
	suite.server.Fail(providertest.EndpointQuote, providertest.Failure{ResultCode: "1"})

	_, err := suite.client.Quote(context.Background(), token, "005930")
	suite.True(errors.HasCode(err, errors.ErrCodeProviderUnavailable))
}

func (suite *KISClientTestSuite) TestQuoteContextCancelled() {
	token := suite.token()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := suite.client.Quote(ctx, token, "005930")
	suite.True(errors.HasCode(err, errors.ErrCodeProviderUnavailable))
}

func day(s string) time.Time {
	t, err := time.ParseInLocation(types.CandleDateLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}

	return t
}

func (suite *KISClientTestSuite) TestDailyCandlesNewestFirst() {
	suite.server.SetCandles("005930", []types.Candle{
		{Date: day("20240513"), Open: types.M(100), High: types.M(110), Low: types.M(90), Close: types.M(105), Volume: 10},
		{Date: day("20240514"), Open: types.M(105), High: types.M(115), Low: types.M(100), Close: types.M(112), Volume: 20},
	})

	candles, err := suite.client.DailyCandles(context.Background(), suite.token(), "005930")
	suite.Require().NoError(err)
	suite.Require().Len(candles, 2)

	suite.Equal("20240514", candles[0].DateString())
	suite.Equal("20240513", candles[1].DateString())
	suite.True(candles[0].Close.Equal(types.M(112)))
	suite.Equal(int64(20), candles[0].Volume)
}

func (suite *KISClientTestSuite) TestDailyCandlesGarbledDate() {
	token := suite.token()
	suite.server.Fail(providertest.EndpointDaily, providertest.Failure{Garbled: true})

	_, err := suite.client.DailyCandles(context.Background(), token, "005930")
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataParseFailed))
}

func (suite *KISClientTestSuite) TestParseQuoteNonPositivePrice() {
	_, err := parseQuote("005930", kisPriceOutput{
		Price: "0", Change: "0", ChangePct: "0", High: "0", Low: "0", Open: "0", Volume: "0",
	})
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataParseFailed))
}

func (suite *KISClientTestSuite) TestParseQuoteReportsFirstBadField() {
	_, err := parseQuote("005930", kisPriceOutput{
		Price: "100", Change: "x", ChangePct: "y", High: "1", Low: "1", Open: "1", Volume: "1",
	})
	suite.Require().Error(err)
	suite.Contains(err.Error(), "prdy_vrss")
}

func (suite *KISClientTestSuite) TestParseCandleTrimsWhitespace() {
	candle, err := parseCandle(kisDailyOutput{
		Date: " 20240514 ", Open: " 1 ", High: "2", Low: "1", Close: "2", Volume: " 7",
	})
	suite.Require().NoError(err)
	suite.Equal("20240514", candle.DateString())
	suite.Equal(int64(7), candle.Volume)
}
