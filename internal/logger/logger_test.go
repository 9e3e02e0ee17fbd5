package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestNewLoggerWithLevel() {
	logger, err := NewLoggerWithLevel("debug")
	suite.NoError(err)
	suite.True(logger.Core().Enabled(-1))

	logger, err = NewLoggerWithLevel("warn")
	suite.NoError(err)
	suite.False(logger.Core().Enabled(0))
}

func (suite *LoggerTestSuite) TestNewLoggerWithInvalidLevel() {
	_, err := NewLoggerWithLevel("loud")
	suite.Error(err)
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}

	// Sync should not panic and should return nil for a nil inner logger
	err := logger.Sync()
	suite.NoError(err)
}

func (suite *LoggerTestSuite) TestNopAndNamed() {
	logger := NewNop().Named("ledger")
	suite.NotNil(logger)

	// These should not panic
	logger.Info("test info message")
	logger.Warn("test warn message")
}

func (suite *LoggerTestSuite) TestNewLoggerToFile() {
	path := filepath.Join(suite.T().TempDir(), "papertrade.log")

	logger, err := NewLoggerTo("info", path)
	suite.Require().NoError(err)

	logger.Info("order executed")
	suite.NoError(logger.Sync())

	data, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.Contains(string(data), "order executed")
}
