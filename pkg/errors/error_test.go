package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidOrder, "symbol is required")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidOrder, err.Code)
	suite.Equal("symbol is required", err.Message)
	suite.Nil(err.Cause)
	suite.Equal("[100] symbol is required", err.Error())
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeAccountNotFound, "account %s not found", "acct-1")
	suite.Equal(ErrCodeAccountNotFound, err.Code)
	suite.Equal("account acct-1 not found", err.Message)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("disk full")
	err := Wrap(ErrCodeStorageFailed, "failed to commit order", cause)
	suite.Equal(ErrCodeStorageFailed, err.Code)
	suite.Equal(cause, err.Cause)
	suite.Equal("[400] failed to commit order: disk full", err.Error())
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("timeout")
	err := Wrapf(ErrCodeProviderUnavailable, cause, "quote %s", "005930")
	suite.Equal("quote 005930", err.Message)
	suite.Equal(cause, errors.Unwrap(err))
}

func (suite *ErrorTestSuite) TestGetCodeThroughWrapping() {
	inner := New(ErrCodeInsufficientFunds, "not enough cash")
	wrapped := fmt.Errorf("buy: %w", inner)

	suite.Equal(ErrCodeInsufficientFunds, GetCode(wrapped))
	suite.True(HasCode(wrapped, ErrCodeInsufficientFunds))
	suite.False(HasCode(wrapped, ErrCodeNoHolding))
}

func (suite *ErrorTestSuite) TestGetCodeUnknown() {
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain")))
	suite.Equal(ErrCodeUnknown, GetCode(nil))
}

func (suite *ErrorTestSuite) TestInsufficientHoldingError() {
	err := NewInsufficientHoldingError("005930", 3, 5)
	suite.Equal(int64(3), err.Held)
	suite.Contains(err.Error(), "held 3")
	suite.Contains(err.Error(), "requested 5")

	wrapped := fmt.Errorf("sell: %w", err)
	suite.True(IsInsufficientHoldingError(wrapped))
	suite.Equal(ErrCodeInsufficientHolding, GetCode(wrapped))

	var target *InsufficientHoldingError
	suite.True(As(wrapped, &target))
	suite.Equal("005930", target.Symbol)
}
