// Package config loads the papertrade configuration from a YAML file, then applies
// environment overrides.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-papertrade/internal/ledger"
	"github.com/rxtech-lab/argo-papertrade/internal/marketdata"
	"github.com/rxtech-lab/argo-papertrade/internal/marketdata/provider"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/internal/version"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory = "memory"

	DefaultDriver = "duckdb"
	DefaultDSN    = "papertrade.duckdb"
)

type Config struct {
	// Version is the release that wrote the file.
	Version    string           `yaml:"version,omitempty"`
	MarketData MarketDataConfig `yaml:"marketdata"`
	Storage    StorageConfig    `yaml:"storage"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Log        LogConfig        `yaml:"log"`
}

// MarketDataConfig selects the live provider. An empty provider serves synthetic data only.
type MarketDataConfig struct {
	Provider  string `yaml:"provider" env:"PAPERTRADE_PROVIDER" validate:"omitempty,oneof=kis polygon"`
	BaseURL   string `yaml:"base_url,omitempty" env:"KIS_API_URL" validate:"omitempty,url"`
	AppKey    string `yaml:"app_key,omitempty" env:"KIS_APP_KEY"`
	AppSecret string `yaml:"app_secret,omitempty" env:"KIS_APP_SECRET"`
	APIKey    string `yaml:"api_key,omitempty" env:"POLYGON_API_KEY"`
	// StartDegraded never calls the provider
	StartDegraded    bool          `yaml:"start_degraded" env:"KIS_MOCK_MODE"`
	MinInterval      time.Duration `yaml:"min_interval" validate:"gte=0"`
	RequestTimeout   time.Duration `yaml:"request_timeout" validate:"gte=0"`
	TokenTTL         time.Duration `yaml:"token_ttl" validate:"gte=0"`
	RecoveryInterval time.Duration `yaml:"recovery_interval" validate:"gte=0"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" env:"PAPERTRADE_DB_DRIVER" validate:"required,oneof=memory duckdb sqlite3 pgx"`
	DSN    string `yaml:"dsn" env:"PAPERTRADE_DB_DSN"`
}

type LedgerConfig struct {
	HistoryLimit       int         `yaml:"history_limit" validate:"gte=1"`
	MaxHistoryLimit    int         `yaml:"max_history_limit" validate:"gtefield=HistoryLimit"`
	InitialBalance     types.Money `yaml:"initial_balance"`
	ConflictRetries    uint64      `yaml:"conflict_retries" validate:"lte=20"`
	RefreshConcurrency int         `yaml:"refresh_concurrency" validate:"gte=1,lte=64"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"PAPERTRADE_LOG_LEVEL" validate:"oneof=debug info warn error"`
}

// Default returns a configuration that runs offline on a local DuckDB file.
func Default() Config {
	gateway := marketdata.DefaultConfig()
	ledgerDefaults := ledger.DefaultConfig()

	return Config{
		Version:    version.GetVersion(),
		MarketData: MarketDataConfig{
			MinInterval:    gateway.MinInterval,
			RequestTimeout: gateway.RequestTimeout,
			TokenTTL:       gateway.TokenTTL,
		},
		Storage: StorageConfig{
			Driver: DefaultDriver,
			DSN:    DefaultDSN,
		},
		Ledger: LedgerConfig{
			HistoryLimit:       ledgerDefaults.HistoryLimit,
			MaxHistoryLimit:    ledgerDefaults.MaxHistoryLimit,
			InitialBalance:     ledgerDefaults.InitialBalance,
			ConflictRetries:    ledgerDefaults.ConflictRetries,
			RefreshConcurrency: ledgerDefaults.RefreshConcurrency,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and validates the
// result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromFile decodes a YAML file on top of Default. Keys missing from the file keep
// their default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config file %s", path)
	}

	if err := version.CheckConfigCompatibility(version.GetVersion(), cfg.Version); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "config file %s", path)
	}

	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal config", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to write config file %s", path)
	}

	return nil
}

// ApplyEnv overrides fields whose environment variable is set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid environment override", err)
	}

	return nil
}

// Validate checks field ranges and the combinations the tags cannot express.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if !c.Ledger.InitialBalance.IsPositive() {
		return errors.New(errors.ErrCodeInvalidConfiguration, "ledger.initial_balance must be positive")
	}

	// duckdb and sqlite3 fall back to a private in-memory database without a dsn
	if c.Storage.Driver == "pgx" && c.Storage.DSN == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "storage.dsn is required for driver pgx")
	}

	if c.MarketData.StartDegraded {
		return nil
	}

	switch provider.ProviderType(c.MarketData.Provider) {
	case provider.ProviderKIS:
		if c.MarketData.AppKey == "" || c.MarketData.AppSecret == "" {
			return errors.New(errors.ErrCodeInvalidConfiguration, "kis provider requires app_key and app_secret")
		}
	case provider.ProviderPolygon:
		if c.MarketData.APIKey == "" {
			return errors.New(errors.ErrCodeInvalidConfiguration, "polygon provider requires api_key")
		}
	}

	return nil
}

// ForGateway maps the marketdata section onto the gateway.
func (c Config) ForGateway() marketdata.Config {
	return marketdata.Config{
		MinInterval:      c.MarketData.MinInterval,
		RequestTimeout:   c.MarketData.RequestTimeout,
		TokenTTL:         c.MarketData.TokenTTL,
		RecoveryInterval: c.MarketData.RecoveryInterval,
		StartDegraded:    c.MarketData.StartDegraded,
	}
}

// ForProvider maps the marketdata section onto the provider constructors.
func (c Config) ForProvider() provider.Config {
	return provider.Config{
		BaseURL:   c.MarketData.BaseURL,
		AppKey:    c.MarketData.AppKey,
		AppSecret: c.MarketData.AppSecret,
		APIKey:    c.MarketData.APIKey,
		Timeout:   c.MarketData.RequestTimeout,
	}
}

// ForLedger maps the ledger section.
func (c Config) ForLedger() ledger.Config {
	return ledger.Config{
		HistoryLimit:       c.Ledger.HistoryLimit,
		MaxHistoryLimit:    c.Ledger.MaxHistoryLimit,
		InitialBalance:     c.Ledger.InitialBalance,
		ConflictRetries:    c.Ledger.ConflictRetries,
		RefreshConcurrency: c.Ledger.RefreshConcurrency,
	}
}
