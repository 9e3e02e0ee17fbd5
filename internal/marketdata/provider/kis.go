package provider

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	DefaultKISBaseURL = "https://openapi.koreainvestment.com:9443"

	kisTokenPath  = "/oauth2/tokenP"
	kisPricePath  = "/uapi/domestic-stock/v1/quotations/inquire-price"
	kisDailyPath  = "/uapi/domestic-stock/v1/quotations/inquire-daily-price"
	kisPriceTrID  = "FHKST01010100"
	kisDailyTrID  = "FHKST01010400"
	kisMarketKRX  = "J"
	kisPeriodDay  = "D"
	kisRawPrices  = "0"
	kisResultCode = "0"
)

// KISClient is the Korea Investment & Securities REST client.
type KISClient struct {
	http      *resty.Client
	appKey    string
	appSecret string
}

var _ Provider = (*KISClient)(nil)

// NewKISClient requires the app key and secret. An empty BaseURL uses the production host.
func NewKISClient(config Config) (*KISClient, error) {
	if config.AppKey == "" || config.AppSecret == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "kis provider requires app key and app secret")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultKISBaseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json")

	if config.Timeout > 0 {
		client.SetTimeout(config.Timeout)
	}

	return &KISClient{
		http:      client,
		appKey:    config.AppKey,
		appSecret: config.AppSecret,
	}, nil
}

type kisTokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
}

type kisTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type kisEnvelope struct {
	ResultCode  string `json:"rt_cd"`
	MessageCode string `json:"msg_cd"`
	Message     string `json:"msg1"`
}

type kisPriceOutput struct {
	Name      string `json:"hts_kor_isnm"`
	Price     string `json:"stck_prpr"`
	Change    string `json:"prdy_vrss"`
	ChangePct string `json:"prdy_ctrt"`
	High      string `json:"stck_hgpr"`
	Low       string `json:"stck_lwpr"`
	Open      string `json:"stck_oprc"`
	Volume    string `json:"acml_vol"`
}

type kisPriceResponse struct {
	kisEnvelope
	Output *kisPriceOutput `json:"output"`
}

type kisDailyOutput struct {
	Date   string `json:"stck_bsop_date"`
	Open   string `json:"stck_oprc"`
	High   string `json:"stck_hgpr"`
	Low    string `json:"stck_lwpr"`
	Close  string `json:"stck_clpr"`
	Volume string `json:"acml_vol"`
}

type kisDailyResponse struct {
	kisEnvelope
	Output []kisDailyOutput `json:"output"`
}

func (c *KISClient) IssueToken(ctx context.Context) (Token, error) {
	var result kisTokenResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(kisTokenRequest{GrantType: "client_credentials", AppKey: c.appKey, AppSecret: c.appSecret}).
		SetResult(&result).
		Post(kisTokenPath)
	if err != nil {
		return Token{}, errors.Wrap(errors.ErrCodeAuthFailure, "token request failed", err)
	}

	if resp.IsError() {
		return Token{}, errors.Newf(errors.ErrCodeAuthFailure, "token request rejected: %s", resp.Status())
	}

	if result.AccessToken == "" {
		return Token{}, errors.New(errors.ErrCodeAuthFailure, "token response has no access_token")
	}

	return Token{
		AccessToken: result.AccessToken,
		ExpiresIn:   time.Duration(result.ExpiresIn) * time.Second,
	}, nil
}

func (c *KISClient) request(ctx context.Context, token, trID string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("authorization", "Bearer "+token).
		SetHeader("appkey", c.appKey).
		SetHeader("appsecret", c.appSecret).
		SetHeader("tr_id", trID)
}

func checkResponse(resp *resty.Response, envelope kisEnvelope) error {
	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return errors.Newf(errors.ErrCodeAuthFailure, "provider rejected token: %s", resp.Status())
	case resp.IsError():
		return errors.Newf(errors.ErrCodeProviderUnavailable, "provider returned %s", resp.Status())
	case envelope.ResultCode != kisResultCode:
		return errors.Newf(errors.ErrCodeProviderUnavailable, "provider error %s %s: %s",
			envelope.ResultCode, envelope.MessageCode, envelope.Message)
	}

	return nil
}

func (c *KISClient) Quote(ctx context.Context, token string, symbol string) (types.Quote, error) {
	var result kisPriceResponse

	resp, err := c.request(ctx, token, kisPriceTrID).
		SetQueryParams(map[string]string{
			"FID_COND_MRKT_DIV_CODE": kisMarketKRX,
			"FID_INPUT_ISCD":         symbol,
		}).
		SetResult(&result).
		Get(kisPricePath)
	if err != nil {
		return types.Quote{}, errors.Wrapf(errors.ErrCodeProviderUnavailable, err, "quote %s", symbol)
	}

	if err := checkResponse(resp, result.kisEnvelope); err != nil {
		return types.Quote{}, err
	}

	if result.Output == nil {
		return types.Quote{}, errors.Newf(errors.ErrCodeMarketDataParseFailed, "quote %s: response has no output", symbol)
	}

	return parseQuote(symbol, *result.Output)
}

func (c *KISClient) DailyCandles(ctx context.Context, token string, symbol string) ([]types.Candle, error) {
	var result kisDailyResponse

	resp, err := c.request(ctx, token, kisDailyTrID).
		SetQueryParams(map[string]string{
			"FID_COND_MRKT_DIV_CODE": kisMarketKRX,
			"FID_INPUT_ISCD":         symbol,
			"FID_PERIOD_DIV_CODE":    kisPeriodDay,
			"FID_ORG_ADJ_PRC":        kisRawPrices,
		}).
		SetResult(&result).
		Get(kisDailyPath)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeProviderUnavailable, err, "daily candles %s", symbol)
	}

	if err := checkResponse(resp, result.kisEnvelope); err != nil {
		return nil, err
	}

	if result.Output == nil {
		return nil, errors.Newf(errors.ErrCodeMarketDataParseFailed, "daily candles %s: response has no output", symbol)
	}

	candles := make([]types.Candle, 0, len(result.Output))
	for _, row := range result.Output {
		candle, err := parseCandle(row)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "daily candles %s", symbol)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// fieldParser collects the first parse failure so a response is parsed in one pass.
type fieldParser struct {
	err error
}

func (p *fieldParser) money(name, raw string) types.Money {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil && p.err == nil {
		p.err = errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "field %s=%q", name, raw)
	}

	return types.M(d)
}

func (p *fieldParser) int(name, raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil && p.err == nil {
		p.err = errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "field %s=%q", name, raw)
	}

	return v
}

func (p *fieldParser) float(name, raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil && p.err == nil {
		p.err = errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "field %s=%q", name, raw)
	}

	return v
}

func parseQuote(symbol string, out kisPriceOutput) (types.Quote, error) {
	var p fieldParser

	quote := types.Quote{
		Symbol:    symbol,
		Name:      out.Name,
		Price:     p.money("stck_prpr", out.Price),
		ChangeAbs: p.money("prdy_vrss", out.Change),
		ChangePct: p.float("prdy_ctrt", out.ChangePct),
		High:      p.money("stck_hgpr", out.High),
		Low:       p.money("stck_lwpr", out.Low),
		Open:      p.money("stck_oprc", out.Open),
		Volume:    p.int("acml_vol", out.Volume),
	}
	if p.err != nil {
		return types.Quote{}, p.err
	}

	if !quote.Price.IsPositive() {
		return types.Quote{}, errors.Newf(errors.ErrCodeMarketDataParseFailed, "quote %s has non-positive price %s", symbol, quote.Price.Text())
	}

	if quote.Name == "" {
		quote.Name = symbol
	}

	return quote, nil
}

func parseCandle(row kisDailyOutput) (types.Candle, error) {
	date, err := time.ParseInLocation(types.CandleDateLayout, strings.TrimSpace(row.Date), time.UTC)
	if err != nil {
		return types.Candle{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "field stck_bsop_date=%q", row.Date)
	}

	var p fieldParser

	candle := types.Candle{
		Date:   date,
		Open:   p.money("stck_oprc", row.Open),
		High:   p.money("stck_hgpr", row.High),
		Low:    p.money("stck_lwpr", row.Low),
		Close:  p.money("stck_clpr", row.Close),
		Volume: p.int("acml_vol", row.Volume),
	}
	if p.err != nil {
		return types.Candle{}, p.err
	}

	return candle, nil
}
