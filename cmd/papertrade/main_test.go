package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/rxtech-lab/argo-papertrade/internal/version"
	"github.com/rxtech-lab/argo-papertrade/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type CLITestSuite struct {
	suite.Suite
	dir string
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}

func (suite *CLITestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.T().Setenv("PAPERTRADE_DB_DRIVER", "sqlite3")
	suite.T().Setenv("PAPERTRADE_DB_DSN", filepath.Join(suite.dir, "papertrade.db"))
	suite.T().Setenv("PAPERTRADE_LOG_LEVEL", "error")
}

func (suite *CLITestSuite) run(args ...string) (string, error) {
	var out bytes.Buffer

	cmd := newCommand()
	cmd.Writer = &out
	cmd.ErrWriter = io.Discard

	err := cmd.Run(context.Background(), append([]string{"papertrade"}, args...))

	return out.String(), err
}

func (suite *CLITestSuite) mustRun(args ...string) string {
	out, err := suite.run(args...)
	suite.Require().NoError(err, "papertrade %v", args)

	return out
}

var accountIDPattern = regexp.MustCompile(`created account (\S+) with`)

func (suite *CLITestSuite) createAccount(balance string) string {
	out := suite.mustRun("account", "create", "--balance", balance)

	match := accountIDPattern.FindStringSubmatch(out)
	suite.Require().Len(match, 2, out)

	return match[1]
}

func (suite *CLITestSuite) TestTradingFlow() {
	id := suite.createAccount("10000000")

	out := suite.mustRun("buy", "--account", id, "--symbol", "005930", "--quantity", "10", "--price", "1000")
	suite.Contains(out, "BUY 10 005930")

	out = suite.mustRun("buy", "-a", id, "-s", "005930", "-q", "5", "-p", "1200")
	suite.Contains(out, "BUY 5 005930")

	out = suite.mustRun("portfolio", id)
	suite.Contains(out, "005930")
	suite.Contains(out, "1066.67")

	out = suite.mustRun("sell", "-a", id, "-s", "005930", "-q", "15", "-p", "1300")
	suite.Contains(out, "SELL 15 005930")
	suite.Contains(out, "position closed")

	out = suite.mustRun("history", id, "--limit", "2")
	suite.Contains(out, "SELL")
	suite.Contains(out, "₩10,003,500")

	out = suite.mustRun("account", "show", id)
	suite.Contains(out, "Account "+id)
	suite.Contains(out, "no holdings")
}

func (suite *CLITestSuite) TestBusinessErrorsAreReturned() {
	id := suite.createAccount("1000")

	_, err := suite.run("sell", "-a", id, "-s", "005930", "-q", "1", "-p", "1000")
	suite.True(errors.HasCode(err, errors.ErrCodeNoHolding))

	_, err = suite.run("buy", "-a", id, "-s", "005930", "-q", "2", "-p", "1000")
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientFunds))

	_, err = suite.run("buy", "-a", id, "-s", "005930", "-q", "1", "-p", "cheap")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = suite.run("history", "missing-account")
	suite.True(errors.HasCode(err, errors.ErrCodeAccountNotFound))
}

func (suite *CLITestSuite) TestQuoteWithoutProviderIsSynthetic() {
	out := suite.mustRun("quote", "UNKNOWN", "005930")
	suite.Contains(out, "Unknown")
	suite.Contains(out, "삼성전자")
	suite.Contains(out, "synthetic")

	_, err := suite.run("quote")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *CLITestSuite) TestCandlesSearchAndPopular() {
	out := suite.mustRun("candles", "005930", "--days", "7")
	suite.Contains(out, "005930 daily candles")

	out = suite.mustRun("search", "삼성")
	suite.Contains(out, "삼성SDI")

	out = suite.mustRun("search", "없는종목")
	suite.Contains(out, "no matching symbols")

	out = suite.mustRun("popular", "--quiet")
	suite.Contains(out, "LG에너지솔루션")
	suite.Contains(out, "Unknown")
	suite.Contains(out, "market data is synthetic")
}

func (suite *CLITestSuite) TestProviders() {
	out := suite.mustRun("providers")
	suite.Contains(out, "kis")
	suite.Contains(out, "polygon")
}

func (suite *CLITestSuite) TestConfigInitAndValidate() {
	path := filepath.Join(suite.dir, "papertrade.yaml")

	out := suite.mustRun("config", "init", "--output", path)
	suite.Contains(out, "wrote "+path)

	_, err := os.Stat(path)
	suite.Require().NoError(err)

	_, err = suite.run("config", "init", "--output", path)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	suite.mustRun("config", "init", "--output", path, "--force")

	out = suite.mustRun("--config", path, "config", "validate")
	suite.Contains(out, "storage=sqlite3")
	suite.Contains(out, "market data=synthetic")
}

func (suite *CLITestSuite) TestInvalidLogLevel() {
	_, err := suite.run("--log-level", "loud", "config", "validate")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *CLITestSuite) TestVersionAndSchema() {
	out := suite.mustRun("version")
	suite.Equal(version.GetVersion()+"\n", out)

	out = suite.mustRun("config", "schema")
	suite.Contains(out, `"initial_balance"`)
	suite.Contains(out, `"marketdata"`)
}
