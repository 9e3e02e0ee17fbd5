package provider

import (
	"testing"

	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ProviderRegistryTestSuite struct {
	suite.Suite
}

func TestProviderRegistrySuite(t *testing.T) {
	suite.Run(t, new(ProviderRegistryTestSuite))
}

func (suite *ProviderRegistryTestSuite) TestGetSupportedProviders() {
	suite.Equal([]string{"kis", "polygon"}, GetSupportedProviders())
}

func (suite *ProviderRegistryTestSuite) TestGetProviderInfo() {
	info, err := GetProviderInfo("kis")
	suite.NoError(err)
	suite.True(info.IssuesTokens)
	suite.True(info.RequiresAuth)

	info, err = GetProviderInfo("polygon")
	suite.NoError(err)
	suite.False(info.IssuesTokens)

	_, err = GetProviderInfo("binance")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))
}

func (suite *ProviderRegistryTestSuite) TestNewProvider() {
	p, err := NewProvider(ProviderKIS, Config{AppKey: "a", AppSecret: "b"})
	suite.NoError(err)
	suite.IsType(&KISClient{}, p)

	p, err = NewProvider(ProviderPolygon, Config{APIKey: "k"})
	suite.NoError(err)
	suite.IsType(&PolygonClient{}, p)

	_, err = NewProvider("binance", Config{})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))
}
