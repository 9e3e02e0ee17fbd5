package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"
)

type MoneyTestSuite struct {
	suite.Suite
}

func TestMoneySuite(t *testing.T) {
	suite.Run(t, new(MoneyTestSuite))
}

func (suite *MoneyTestSuite) TestArithmeticIsExact() {
	a := MoneyFromFloat(0.1)
	b := MoneyFromFloat(0.2)
	suite.Equal("0.3", a.Add(b).Text())

	balance := M(10_000_000)
	for i := 0; i < 1000; i++ {
		balance = balance.Sub(MoneyFromFloat(0.01)).Add(MoneyFromFloat(0.01))
	}
	suite.True(balance.Equal(M(10_000_000)))
}

func (suite *MoneyTestSuite) TestDivRoundsHalfUp() {
	suite.Equal("1066.6667", M(16000).Div(15).Text())
	suite.Equal("0.5", M(1).Div(2).Text())
	suite.True(M(100).Div(0).IsZero())
}

func (suite *MoneyTestSuite) TestFloorAndScale() {
	suite.Equal("98056", M(95200).Scale(1.03).Floor().Text())
	suite.Equal("92344", M(95200).Scale(0.97).Floor().Text())
}

func (suite *MoneyTestSuite) TestPercentOf() {
	suite.InDelta(25.0, M(250).PercentOf(M(1000)), 1e-9)
	suite.Equal(0.0, M(250).PercentOf(Money{}))
}

func (suite *MoneyTestSuite) TestComparisons() {
	suite.True(M(1).LessThan(M(2)))
	suite.True(M(2).GreaterThan(M(1)))
	suite.True(M(-1).IsNegative())
	suite.True(M(1).IsPositive())
	suite.True(M(decimal.NewFromInt(5)).Equal(M(int32(5))))
	suite.True(M(5).Neg().Equal(M(-5)))
}

func (suite *MoneyTestSuite) TestString() {
	suite.Equal("₩10,000", M(10000).String())
}

func (suite *MoneyTestSuite) TestParseMoney() {
	m, err := ParseMoney("1066.6667")
	suite.NoError(err)
	suite.Equal("1066.6667", m.Text())

	_, err = ParseMoney("abc")
	suite.Error(err)
}

func (suite *MoneyTestSuite) TestJSONRoundTrip() {
	data, err := json.Marshal(M(1500))
	suite.NoError(err)
	suite.Equal(`"1500"`, string(data))

	var m Money
	suite.NoError(json.Unmarshal([]byte(`"1066.6667"`), &m))
	suite.Equal("1066.6667", m.Text())
}

func (suite *MoneyTestSuite) TestYAMLRoundTrip() {
	type wrapper struct {
		Balance Money `yaml:"balance"`
	}

	data, err := yaml.Marshal(wrapper{Balance: M(10_000_000)})
	suite.NoError(err)

	var out wrapper
	suite.NoError(yaml.Unmarshal(data, &out))
	suite.True(out.Balance.Equal(M(10_000_000)))
}

func (suite *MoneyTestSuite) TestScanValue() {
	v, err := M(1234).Value()
	suite.NoError(err)
	suite.Equal("1234", v)

	var m Money
	suite.NoError(m.Scan("99.5"))
	suite.Equal("99.5", m.Text())
}
