// Package synthetic produces plausible quotes and daily candles without a provider.
// Values are self-consistent but do not track any real market.
package synthetic

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-papertrade/internal/types"
)

const (
	// UnknownName is used for symbols missing from the quote table.
	UnknownName = "Unknown"
	// UnknownPrice is the price of symbols missing from the quote table.
	UnknownPrice = 10_000

	maxQuoteVolume = 10_000_000

	candleBasePrice   = 50_000
	candleWalkRange   = 2_000
	candleNoiseRange  = 1_000
	candleOpenRange   = 500
	candleWickRange   = 300
	candleMinVolume   = 1_000_000
	candleVolumeRange = 5_000_000
)

type baseQuote struct {
	name      string
	price     int64
	change    int64
	changePct float64
}

var quoteTable = map[string]baseQuote{
	"005930": {name: "삼성전자", price: 95_200, change: 500, changePct: 0.71},
	"000660": {name: "SK하이닉스", price: 145_000, change: -2_000, changePct: -1.36},
	"035420": {name: "NAVER", price: 205_500, change: 3_000, changePct: 1.48},
	"035720": {name: "카카오", price: 48_500, change: -500, changePct: -1.02},
	"207940": {name: "삼성바이오로직스", price: 950_000, change: 10_000, changePct: 1.06},
	"068270": {name: "셀트리온", price: 185_000, change: -3_000, changePct: -1.6},
	"373220": {name: "LG에너지솔루션", price: 420_000, change: 5_000, changePct: 1.2},
}

// Generator is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

type Option func(*Generator)

// WithSeed makes the output reproducible.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rng = rand.New(rand.NewSource(seed)) }
}

// WithClock sets the day candles are generated back from.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *Generator) float() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.rng.Float64()
}

// Quote returns the table entry for symbol, or the generic default for unknown symbols.
// High, low and open are fixed ratios of the price; volume is random.
func (g *Generator) Quote(symbol string) types.Quote {
	base, ok := quoteTable[symbol]
	if !ok {
		base = baseQuote{name: UnknownName, price: UnknownPrice}
	}

	price := types.M(base.price)

	return types.Quote{
		Symbol:    symbol,
		Name:      base.name,
		Price:     price,
		ChangeAbs: types.M(base.change),
		ChangePct: base.changePct,
		High:      price.Scale(1.03).Floor(),
		Low:       price.Scale(0.97).Floor(),
		Open:      price.Scale(0.99).Floor(),
		Volume:    int64(math.Floor(g.float() * maxQuoteVolume)),
		Synthetic: true,
	}
}

// Candles walks back lookbackDays calendar days from today, today included, and emits one
// bar per weekday, oldest first.
func (g *Generator) Candles(lookbackDays int) []types.Candle {
	if lookbackDays <= 0 {
		return []types.Candle{}
	}

	now := g.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	candles := make([]types.Candle, 0, lookbackDays)
	for i := lookbackDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		candles = append(candles, g.candle(day))
	}

	return candles
}

func (g *Generator) candle(day time.Time) types.Candle {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := g.rng.Float64
	closePrice := math.Floor(candleBasePrice + (r()-0.5)*candleWalkRange + (r()-0.5)*candleNoiseRange)
	openPrice := math.Floor(closePrice + (r()-0.5)*candleOpenRange)
	high := math.Max(openPrice, closePrice) + math.Floor(r()*candleWickRange)
	low := math.Min(openPrice, closePrice) - math.Floor(r()*candleWickRange)
	volume := math.Floor(r()*candleVolumeRange) + candleMinVolume

	return types.Candle{
		Date:   day,
		Open:   types.M(int64(openPrice)),
		High:   types.M(int64(high)),
		Low:    types.M(int64(low)),
		Close:  types.M(int64(closePrice)),
		Volume: int64(volume),
	}
}
