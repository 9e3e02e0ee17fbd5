// Package provider talks to external market data services.
package provider

import (
	"context"
	"sort"
	"time"

	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
)

// ProviderType names a live market data source.
type ProviderType string

const (
	ProviderKIS     ProviderType = "kis"
	ProviderPolygon ProviderType = "polygon"
)

// Token is an access token handed out by a provider. A zero ExpiresIn means the provider
// did not say; the caller applies its own TTL.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
}

type Provider interface {
	// IssueToken exchanges the configured credentials for an access token.
	IssueToken(ctx context.Context) (Token, error)
	// Quote returns the current price snapshot for symbol.
	Quote(ctx context.Context, token string, symbol string) (types.Quote, error)
	// DailyCandles returns daily bars for symbol, newest first.
	DailyCandles(ctx context.Context, token string, symbol string) ([]types.Candle, error)
}

// Config carries everything any provider needs; each provider reads its own fields.
type Config struct {
	BaseURL   string
	AppKey    string
	AppSecret string
	// APIKey is the Polygon key
	APIKey  string
	Timeout time.Duration
}

// NewProvider creates a provider based on the provider type.
func NewProvider(providerType ProviderType, config Config) (Provider, error) {
	switch providerType {
	case ProviderKIS:
		client, err := NewKISClient(config)
		if err != nil {
			return nil, err
		}

		return client, nil
	case ProviderPolygon:
		client, err := NewPolygonClient(config.APIKey)
		if err != nil {
			return nil, err
		}

		return client, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}
}

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
	// IssuesTokens is true when the provider exchanges credentials for expiring tokens
	IssuesTokens bool `json:"issuesTokens"`
}

var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderKIS: {
		Name:         string(ProviderKIS),
		DisplayName:  "Korea Investment & Securities",
		Description:  "Korean equities quotes and daily bars over the KIS Open API",
		RequiresAuth: true,
		IssuesTokens: true,
	},
	ProviderPolygon: {
		Name:         string(ProviderPolygon),
		DisplayName:  "Polygon.io",
		Description:  "US equities previous close and daily aggregates",
		RequiresAuth: true,
	},
}

// GetSupportedProviders returns all supported provider names, sorted.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	sort.Strings(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}

	return info, nil
}
