package main

import (
	"context"
	"io"

	"github.com/rxtech-lab/argo-papertrade/internal/config"
	"github.com/rxtech-lab/argo-papertrade/internal/ledger"
	"github.com/rxtech-lab/argo-papertrade/internal/logger"
	"github.com/rxtech-lab/argo-papertrade/internal/marketdata"
	"github.com/rxtech-lab/argo-papertrade/internal/marketdata/provider"
	"github.com/rxtech-lab/argo-papertrade/internal/store"
	"github.com/rxtech-lab/argo-papertrade/internal/store/memory"
	"github.com/rxtech-lab/argo-papertrade/internal/store/sqlstore"
	"github.com/urfave/cli/v3"
)

// app is everything a command needs, built from the loaded configuration.
type app struct {
	config  config.Config
	logger  *logger.Logger
	store   store.Store
	gateway *marketdata.Gateway
	ledger  *ledger.Ledger
	out     io.Writer
}

// loadConfig reads --config, applies the environment and the --log-level override.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, err
	}

	if level := cmd.String("log-level"); level != "" {
		cfg.Log.Level = level
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}

	return cfg, nil
}

func newApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLoggerTo(cfg.Log.Level, "stderr")
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	p, err := newProvider(cfg)
	if err != nil {
		st.Close()

		return nil, err
	}

	gateway := marketdata.NewGateway(p, cfg.ForGateway(), log)

	return &app{
		config:  cfg,
		logger:  log,
		store:   st,
		gateway: gateway,
		ledger:  ledger.New(st, gateway, cfg.ForLedger(), log),
		out:     cmd.Root().Writer,
	}, nil
}

// newProvider returns nil when no live provider is configured or the gateway starts degraded.
func newProvider(cfg config.Config) (provider.Provider, error) {
	if cfg.MarketData.Provider == "" || cfg.MarketData.StartDegraded {
		return nil, nil
	}

	return provider.NewProvider(provider.ProviderType(cfg.MarketData.Provider), cfg.ForProvider())
}

func openStore(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (store.Store, error) {
	if cfg.Driver == config.DriverMemory {
		return memory.New(), nil
	}

	st, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN, log)
	if err != nil {
		return nil, err
	}

	return st, nil
}

func (a *app) Close() error {
	_ = a.logger.Sync()

	return a.store.Close()
}

// withApp builds the app for one command invocation and closes it afterwards.
func withApp(action func(ctx context.Context, cmd *cli.Command, a *app) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return action(ctx, cmd, a)
	}
}
