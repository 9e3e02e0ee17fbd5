package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rxtech-lab/argo-papertrade/internal/config"
	"github.com/rxtech-lab/argo-papertrade/internal/marketdata"
	"github.com/rxtech-lab/argo-papertrade/internal/marketdata/provider"
	"github.com/rxtech-lab/argo-papertrade/internal/marketdata/synthetic"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
	"github.com/rxtech-lab/argo-papertrade/internal/version"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"github.com/urfave/cli/v3"
)

// parseMoney reads an amount flag such as "1000" or "1066.5".
func parseMoney(cmd *cli.Command, name string) (types.Money, error) {
	raw := cmd.String(name)
	if raw == "" {
		return types.Money{}, nil
	}

	m, err := types.ParseMoney(raw)
	if err != nil {
		return types.Money{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "--%s", name)
	}

	return m, nil
}

func requireArg(cmd *cli.Command, what string) (string, error) {
	arg := strings.TrimSpace(cmd.Args().First())
	if arg == "" {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "%s is required", what)
	}

	return arg, nil
}

func quoteAction(ctx context.Context, cmd *cli.Command, a *app) error {
	if cmd.NArg() == 0 {
		return errors.New(errors.ErrCodeInvalidParameter, "at least one symbol is required")
	}

	quotes := make([]types.Quote, 0, cmd.NArg())
	for _, symbol := range cmd.Args().Slice() {
		quotes = append(quotes, a.gateway.GetQuote(ctx, symbol))
	}

	printQuotes(a.out, quotes)

	return nil
}

func candlesAction(ctx context.Context, cmd *cli.Command, a *app) error {
	symbol, err := requireArg(cmd, "symbol")
	if err != nil {
		return err
	}

	printCandles(a.out, symbol, a.gateway.GetCandles(ctx, symbol, int(cmd.Int("days"))))

	return nil
}

func searchAction(_ context.Context, cmd *cli.Command, a *app) error {
	printSymbols(a.out, a.gateway.SearchSymbols(cmd.Args().First()))

	return nil
}

func popularAction(ctx context.Context, cmd *cli.Command, a *app) error {
	var progress func(done, total int)

	if !cmd.Bool("quiet") {
		update, finish := quoteProgress(cmd.Root().ErrWriter, len(synthetic.PopularCodes()))
		defer finish()
		progress = update
	}

	quotes := a.gateway.PopularQuotes(ctx, progress)
	printQuotes(a.out, quotes)

	if a.gateway.Mode() == marketdata.ModeDegraded {
		fmt.Fprintln(a.out, HelpStyle.Render("market data is synthetic"))
	}

	return nil
}

func providersAction(_ context.Context, cmd *cli.Command) error {
	t := newTable("NAME", "DISPLAY NAME", "AUTH", "TOKENS", "DESCRIPTION")
	for _, name := range provider.GetSupportedProviders() {
		info, err := provider.GetProviderInfo(name)
		if err != nil {
			return err
		}

		t.Row(info.Name, info.DisplayName, fmt.Sprint(info.RequiresAuth), fmt.Sprint(info.IssuesTokens), info.Description)
	}

	render(cmd.Root().Writer, t)

	return nil
}

func accountCreateAction(ctx context.Context, cmd *cli.Command, a *app) error {
	balance, err := parseMoney(cmd, "balance")
	if err != nil {
		return err
	}

	account, err := a.ledger.CreateAccount(ctx, balance)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "created account %s with %s\n", account.ID, price(account.CashBalance))

	return nil
}

func accountShowAction(ctx context.Context, cmd *cli.Command, a *app) error {
	accountID, err := requireArg(cmd, "account id")
	if err != nil {
		return err
	}

	summary, err := a.ledger.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	printSummary(a.out, summary)

	return nil
}

func buyAction(ctx context.Context, cmd *cli.Command, a *app) error {
	p, err := parseMoney(cmd, "price")
	if err != nil {
		return err
	}

	result, err := a.ledger.ExecuteBuy(ctx, types.BuyOrder{
		AccountID: cmd.String("account"),
		Symbol:    cmd.String("symbol"),
		Name:      cmd.String("name"),
		Quantity:  cmd.Int("quantity"),
		Price:     p,
	})
	if err != nil {
		return err
	}

	printTransaction(a.out, result.Transaction)

	return nil
}

func sellAction(ctx context.Context, cmd *cli.Command, a *app) error {
	p, err := parseMoney(cmd, "price")
	if err != nil {
		return err
	}

	result, err := a.ledger.ExecuteSell(ctx, types.SellOrder{
		AccountID: cmd.String("account"),
		Symbol:    cmd.String("symbol"),
		Quantity:  cmd.Int("quantity"),
		Price:     p,
	})
	if err != nil {
		return err
	}

	printTransaction(a.out, result.Transaction)

	if result.Holding.IsNone() {
		fmt.Fprintln(a.out, HelpStyle.Render("position closed"))
	}

	return nil
}

func portfolioAction(ctx context.Context, cmd *cli.Command, a *app) error {
	accountID, err := requireArg(cmd, "account id")
	if err != nil {
		return err
	}

	holdings, err := a.ledger.GetPortfolio(ctx, accountID)
	if err != nil {
		return err
	}

	printHoldings(a.out, holdings)

	return nil
}

func historyAction(ctx context.Context, cmd *cli.Command, a *app) error {
	accountID, err := requireArg(cmd, "account id")
	if err != nil {
		return err
	}

	records, err := a.ledger.GetHistory(ctx, accountID, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	printTransactions(a.out, records)

	return nil
}

func configInitAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("output")

	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return errors.Newf(errors.ErrCodeInvalidParameter, "%s already exists, pass --force to overwrite", path)
	}

	if err := config.Default().SaveToFile(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "wrote %s\n", path)

	return nil
}

func configValidateAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	mode := "live"
	if cfg.MarketData.Provider == "" || cfg.MarketData.StartDegraded {
		mode = "synthetic"
	}

	fmt.Fprintf(cmd.Root().Writer, "config ok: storage=%s market data=%s\n", cfg.Storage.Driver, mode)

	return nil
}

func configSchemaAction(_ context.Context, cmd *cli.Command) error {
	schema, err := config.Schema()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, schema)

	return nil
}

func versionAction(_ context.Context, cmd *cli.Command) error {
	fmt.Fprintln(cmd.Root().Writer, version.GetVersion())

	return nil
}

func orderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "account", Aliases: []string{"a"}, Usage: "Account id", Required: true},
		&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "Stock symbol", Required: true},
		&cli.IntFlag{Name: "quantity", Aliases: []string{"q"}, Usage: "Number of shares", Required: true},
		&cli.StringFlag{Name: "price", Aliases: []string{"p"}, Usage: "Price per share", Required: true},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "papertrade",
		Usage: "Paper stock trading against live or synthetic market data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Sources: cli.EnvVars("PAPERTRADE_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "quote",
				Usage:     "Show current quotes",
				ArgsUsage: "SYMBOL...",
				Action:    withApp(quoteAction),
			},
			{
				Name:      "candles",
				Usage:     "Show daily candles, oldest first",
				ArgsUsage: "SYMBOL",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Lookback in days", Value: marketdata.DefaultLookbackDays},
				},
				Action: withApp(candlesAction),
			},
			{
				Name:      "search",
				Usage:     "Search the symbol catalog by code or name",
				ArgsUsage: "KEYWORD",
				Action:    withApp(searchAction),
			},
			{
				Name:  "popular",
				Usage: "Quote the popular symbols",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "quiet", Usage: "Hide the progress bar"},
				},
				Action: withApp(popularAction),
			},
			{
				Name:   "providers",
				Usage:  "List supported market data providers",
				Action: providersAction,
			},
			{
				Name:  "account",
				Usage: "Manage accounts",
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "Open an account",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "balance", Aliases: []string{"b"}, Usage: "Initial cash, defaults to ledger.initial_balance"},
						},
						Action: withApp(accountCreateAction),
					},
					{
						Name:      "show",
						Usage:     "Show cash, holdings and total PnL",
						ArgsUsage: "ACCOUNT_ID",
						Action:    withApp(accountShowAction),
					},
				},
			},
			{
				Name:  "buy",
				Usage: "Buy shares",
				Flags: append(orderFlags(),
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name, defaults to the symbol"}),
				Action: withApp(buyAction),
			},
			{
				Name:   "sell",
				Usage:  "Sell shares",
				Flags:  orderFlags(),
				Action: withApp(sellAction),
			},
			{
				Name:      "portfolio",
				Usage:     "Revalue and list holdings",
				ArgsUsage: "ACCOUNT_ID",
				Action:    withApp(portfolioAction),
			},
			{
				Name:      "history",
				Usage:     "List transactions, newest first",
				ArgsUsage: "ACCOUNT_ID",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum number of records"},
				},
				Action: withApp(historyAction),
			},
			{
				Name:  "config",
				Usage: "Manage the config file",
				Commands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write the default config",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Destination path", Value: "papertrade.yaml"},
							&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
						},
						Action: configInitAction,
					},
					{
						Name:   "validate",
						Usage:  "Load and validate the config",
						Action: configValidateAction,
					},
					{
						Name:   "schema",
						Usage:  "Print the JSON schema of the config file",
						Action: configSchemaAction,
					},
				},
			},
			{
				Name:   "version",
				Usage:  "Print the papertrade version",
				Action: versionAction,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: ")+err.Error())
		stop()
		os.Exit(1)
	}
}
