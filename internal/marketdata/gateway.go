// Package marketdata brokers prices from an external provider and falls back to synthetic
// data whenever the provider cannot be used.
//
// A Gateway is either Live or Degraded. It starts Live unless told otherwise and degrades
// on the first failed provider call. Quote and candle reads never return an error: a
// degraded gateway, or a live call that fails, answers with synthetic data.
package marketdata

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-papertrade/internal/logger"
	"github.com/rxtech-lab/argo-papertrade/internal/marketdata/provider"
	"github.com/rxtech-lab/argo-papertrade/internal/marketdata/synthetic"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Mode is the gateway state.
type Mode string

const (
	ModeLive     Mode = "live"
	ModeDegraded Mode = "degraded"
)

// DefaultLookbackDays is used when GetCandles is asked for a non-positive lookback.
const DefaultLookbackDays = 30

type Config struct {
	// MinInterval is the minimum spacing between any two outbound provider calls
	MinInterval time.Duration
	// RequestTimeout bounds a whole live read, throttle wait included
	RequestTimeout time.Duration
	// TokenTTL caps how long an issued token is reused
	TokenTTL time.Duration
	// RecoveryInterval lets a degraded gateway probe the provider again after this long.
	// Zero keeps a degraded gateway degraded for its lifetime.
	RecoveryInterval time.Duration
	// StartDegraded serves synthetic data only, without ever calling the provider
	StartDegraded bool
}

func DefaultConfig() Config {
	return Config{
		MinInterval:    150 * time.Millisecond,
		RequestTimeout: 5 * time.Second,
		TokenTTL:       23 * time.Hour,
	}
}

type session struct {
	token      string
	expiresAt  time.Time
	mode       Mode
	degradedAt time.Time
	// pinned sessions never probe for recovery
	pinned  bool
	probing bool
}

type Gateway struct {
	provider  provider.Provider
	synthetic *synthetic.Generator
	limiter   *rate.Limiter
	tokens    singleflight.Group
	config    Config
	logger    *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	session session
}

type Option func(*Gateway)

// WithClock replaces time.Now for token expiry and recovery timing.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithGenerator replaces the synthetic data generator.
func WithGenerator(gen *synthetic.Generator) Option {
	return func(g *Gateway) { g.synthetic = gen }
}

// NewGateway builds a gateway around p. A nil provider yields a permanently degraded gateway.
func NewGateway(p provider.Provider, cfg Config, log *logger.Logger, opts ...Option) *Gateway {
	defaults := DefaultConfig()
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaults.MinInterval
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}

	if log == nil {
		log = logger.NewNop()
	}

	g := &Gateway{
		provider: p,
		limiter:  rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		config:   cfg,
		logger:   log.Named("marketdata"),
		now:      time.Now,
		session:  session{mode: ModeLive},
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.synthetic == nil {
		g.synthetic = synthetic.NewGenerator(synthetic.WithClock(g.now))
	}

	if cfg.StartDegraded || p == nil {
		g.session = session{mode: ModeDegraded, degradedAt: g.now(), pinned: true}
	}

	return g
}

// Mode reports the current state.
func (g *Gateway) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.session.mode
}

// Degrade switches to synthetic data. It is a no-op when already degraded.
func (g *Gateway) Degrade(reason string) {
	g.degrade(errors.New(errors.ErrCodeProviderUnavailable, reason), false)
}

// GetQuote returns a live quote, or a synthetic one when the gateway is degraded or the
// live call fails.
func (g *Gateway) GetQuote(ctx context.Context, symbol string) types.Quote {
	symbol = strings.TrimSpace(symbol)

	quote, err := live(ctx, g, func(ctx context.Context, token string) (types.Quote, error) {
		return g.provider.Quote(ctx, token, symbol)
	})
	if err != nil {
		return g.synthetic.Quote(symbol)
	}

	return quote
}

// GetCandles returns at most lookbackDays daily candles, oldest first.
func (g *Gateway) GetCandles(ctx context.Context, symbol string, lookbackDays int) []types.Candle {
	symbol = strings.TrimSpace(symbol)
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	candles, err := live(ctx, g, func(ctx context.Context, token string) ([]types.Candle, error) {
		return g.provider.DailyCandles(ctx, token, symbol)
	})
	if err != nil {
		return g.synthetic.Candles(lookbackDays)
	}

	return chronological(candles, lookbackDays)
}

// SearchSymbols matches the static catalog; it never calls the provider.
func (g *Gateway) SearchSymbols(keyword string) []types.Symbol {
	return synthetic.Search(strings.TrimSpace(keyword))
}

// PopularQuotes quotes the popular symbol list one after another. The throttle gate spaces
// the provider calls. progress, if not nil, is called after each quote.
func (g *Gateway) PopularQuotes(ctx context.Context, progress func(done, total int)) []types.Quote {
	codes := synthetic.PopularCodes()

	quotes := make([]types.Quote, 0, len(codes))
	for i, code := range codes {
		quotes = append(quotes, g.GetQuote(ctx, code))

		if progress != nil {
			progress(i+1, len(codes))
		}
	}

	return quotes
}

// chronological keeps the newest limit candles with distinct dates and orders them oldest first.
func chronological(candles []types.Candle, limit int) []types.Candle {
	sorted := append([]types.Candle(nil), candles...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })

	out := make([]types.Candle, 0, min(limit, len(sorted)))
	for _, c := range sorted {
		if len(out) == limit {
			break
		}

		if len(out) > 0 && out[len(out)-1].Date.Equal(c.Date) {
			continue
		}
		out = append(out, c)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out
}

// errSkipped marks a read that was answered locally without touching the session.
var errSkipped = errors.New(errors.ErrCodeProviderUnavailable, "provider not consulted")

// live runs one provider read under the request timeout. Any provider failure degrades the
// gateway; the caller then falls back to synthetic data.
func live[T any](ctx context.Context, g *Gateway, call func(ctx context.Context, token string) (T, error)) (T, error) {
	var zero T

	allowed, probe := g.admit()
	if !allowed {
		return zero, errSkipped
	}

	parent := ctx

	ctx, cancel := context.WithTimeout(ctx, g.config.RequestTimeout)
	defer cancel()

	token, err := g.token(ctx)
	if err != nil {
		return zero, g.fail(parent, err, probe)
	}

	if err := g.throttle(ctx); err != nil {
		return zero, g.fail(parent, err, probe)
	}

	result, err := call(ctx, token)
	if err != nil {
		return zero, g.fail(parent, err, probe)
	}

	if probe {
		g.markRecovered()
	}

	return result, nil
}

// admit decides whether a read may go to the provider. A degraded gateway with a recovery
// interval lets exactly one read through once the interval has passed.
func (g *Gateway) admit() (allowed bool, probe bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := &g.session
	if s.mode == ModeLive {
		return true, false
	}

	if s.pinned || s.probing || g.config.RecoveryInterval <= 0 {
		return false, false
	}

	if g.now().Sub(s.degradedAt) < g.config.RecoveryInterval {
		return false, false
	}

	s.probing = true

	return true, true
}

// fail records a failed live read. Throttle waits cut short by a deadline and reads the
// caller abandoned are not provider faults and leave the mode alone. Only the gateway's own
// request timeout counts against the provider.
func (g *Gateway) fail(parent context.Context, err error, probe bool) error {
	if errors.HasCode(err, errors.ErrCodeThrottled) || parent.Err() != nil || errors.Is(err, context.Canceled) {
		g.logger.Debug("Live read abandoned without provider fault", zap.Error(err))

		if probe {
			g.mu.Lock()
			g.session.probing = false
			g.mu.Unlock()
		}

		return err
	}

	g.degrade(err, probe)

	return err
}

func (g *Gateway) degrade(reason error, probe bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := &g.session
	if errors.HasCode(reason, errors.ErrCodeAuthFailure) {
		s.token = ""
		s.expiresAt = time.Time{}
	}

	if probe {
		s.probing = false
		s.degradedAt = g.now()
		g.logger.Warn("Recovery probe failed, staying on synthetic market data", zap.Error(reason))

		return
	}

	if s.mode == ModeDegraded {
		return
	}

	s.mode = ModeDegraded
	s.degradedAt = g.now()
	g.logger.Warn("Switching to synthetic market data", zap.Error(reason))
}

func (g *Gateway) markRecovered() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.session.mode = ModeLive
	g.session.probing = false
	g.logger.Info("Provider recovered, serving live market data")
}

// throttle blocks until the process-wide gate opens.
func (g *Gateway) throttle(ctx context.Context) error {
	start := time.Now()

	if err := g.limiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeThrottled, "throttle wait aborted", err)
	}

	if waited := time.Since(start); waited > time.Millisecond {
		g.logger.Debug("Throttled provider call", zap.Duration("waited", waited))
	}

	return nil
}

// cachedToken returns the session token while it is unexpired.
func (g *Gateway) cachedToken() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.token != "" && g.now().Before(g.session.expiresAt) {
		return g.session.token, true
	}

	return "", false
}

// token reuses the session token or issues a new one. Concurrent callers share a single
// in-flight issuance.
func (g *Gateway) token(ctx context.Context) (string, error) {
	if token, ok := g.cachedToken(); ok {
		return token, nil
	}

	v, err, _ := g.tokens.Do("token", func() (any, error) {
		if token, ok := g.cachedToken(); ok {
			return token, nil
		}

		if err := g.throttle(ctx); err != nil {
			return "", err
		}

		issued, err := g.provider.IssueToken(ctx)
		if err != nil {
			switch errors.GetCode(err) {
			case errors.ErrCodeUnknown, errors.ErrCodeMarketDataParseFailed:
				err = errors.Wrap(errors.ErrCodeAuthFailure, "token issuance failed", err)
			}

			return "", err
		}

		ttl := g.config.TokenTTL
		if issued.ExpiresIn > 0 && issued.ExpiresIn < ttl {
			ttl = issued.ExpiresIn
		}

		g.mu.Lock()
		g.session.token = issued.AccessToken
		g.session.expiresAt = g.now().Add(ttl)
		expiresAt := g.session.expiresAt
		g.mu.Unlock()

		g.logger.Info("Access token issued", zap.Time("expires_at", expiresAt))

		return issued.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}
