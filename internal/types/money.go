package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the single settlement currency of every account.
const Currency = money.KRW

// AvgCostScale is the number of decimal places kept when an amount is divided by a share count.
const AvgCostScale int32 = 4

// Money is an exact fixed-point monetary amount in Currency.
// The zero value is zero won.
type Money struct {
	value decimal.Decimal
}

// M builds a Money from an integer or decimal amount in major units.
func M[T int | int32 | int64 | decimal.Decimal](value T) Money {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return Money{value: v}
	case int:
		return Money{value: decimal.NewFromInt(int64(v))}
	case int32:
		return Money{value: decimal.NewFromInt32(v)}
	case int64:
		return Money{value: decimal.NewFromInt(v)}
	}

	return Money{}
}

// MoneyFromFloat converts a provider float. It is only used at the edges where the
// source itself is a float; ledger arithmetic never goes through float64.
func MoneyFromFloat(f float64) Money {
	return Money{value: decimal.NewFromFloat(f)}
}

// ParseMoney parses an exact decimal string such as "1066.6667".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}

	return Money{value: d}, nil
}

func (m Money) Decimal() decimal.Decimal { return m.value }
func (m Money) IsZero() bool             { return m.value.IsZero() }
func (m Money) IsPositive() bool         { return m.value.IsPositive() }
func (m Money) IsNegative() bool         { return m.value.IsNegative() }
func (m Money) Equal(n Money) bool       { return m.value.Equal(n.value) }
func (m Money) LessThan(n Money) bool    { return m.value.LessThan(n.value) }
func (m Money) GreaterThan(n Money) bool { return m.value.GreaterThan(n.value) }
func (m Money) Add(n Money) Money        { return Money{value: m.value.Add(n.value)} }
func (m Money) Sub(n Money) Money        { return Money{value: m.value.Sub(n.value)} }
func (m Money) Neg() Money               { return Money{value: m.value.Neg()} }

// Mul multiplies the amount by a share count.
func (m Money) Mul(quantity int64) Money {
	return Money{value: m.value.Mul(decimal.NewFromInt(quantity))}
}

// Div divides the amount by a share count, rounded half-up to AvgCostScale places.
// Dividing by zero yields zero.
func (m Money) Div(quantity int64) Money {
	if quantity == 0 {
		return Money{}
	}

	return Money{value: m.value.DivRound(decimal.NewFromInt(quantity), AvgCostScale)}
}

// Floor rounds toward negative infinity to a whole won.
func (m Money) Floor() Money { return Money{value: m.value.Floor()} }

// Scale multiplies by a float factor and keeps the exact decimal result.
func (m Money) Scale(factor float64) Money {
	return Money{value: m.value.Mul(decimal.NewFromFloat(factor))}
}

// PercentOf returns m / base * 100, or 0 when base is zero.
func (m Money) PercentOf(base Money) float64 {
	if base.IsZero() {
		return 0
	}

	return m.value.Div(base.value).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// Float64 is for display and charting only.
func (m Money) Float64() float64 { return m.value.InexactFloat64() }

// Text returns the exact decimal representation used for persistence.
func (m Money) Text() string { return m.value.String() }

// String formats the amount with the currency symbol, e.g. "₩10,000".
func (m Money) String() string {
	cur := *money.New(0, Currency).Currency()
	dec := m.value.Shift(int32(cur.Fraction)).Round(0)

	return cur.Formatter().Format(dec.IntPart())
}

// Value implements driver.Valuer; amounts are stored as exact decimal text.
func (m Money) Value() (driver.Value, error) {
	return m.value.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	return m.value.Scan(src)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.value.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	return m.value.UnmarshalJSON(data)
}

// MarshalYAML keeps amounts readable in config files.
func (m Money) MarshalYAML() (any, error) {
	return m.value.String(), nil
}

func (m *Money) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}
