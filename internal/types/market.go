package types

import "time"

// CandleDateLayout is the provider's day format.
const CandleDateLayout = "20060102"

// Quote is a point-in-time price snapshot for a symbol.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     Money   `json:"price"`
	ChangeAbs Money   `json:"change_abs"`
	ChangePct float64 `json:"change_pct"`
	High      Money   `json:"high"`
	Low       Money   `json:"low"`
	Open      Money   `json:"open"`
	Volume    int64   `json:"volume"`
	// Synthetic is true when the quote was generated locally instead of fetched
	Synthetic bool `json:"synthetic"`
}

// Candle is one daily OHLCV bar.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   Money     `json:"open"`
	High   Money     `json:"high"`
	Low    Money     `json:"low"`
	Close  Money     `json:"close"`
	Volume int64     `json:"volume"`
}

// DateString formats the candle day as YYYYMMDD.
func (c Candle) DateString() string {
	return c.Date.Format(CandleDateLayout)
}

// Symbol is a static catalog entry.
type Symbol struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
}
