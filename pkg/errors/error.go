// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Malformed orders and configuration
//   - Account errors (200-299): Missing accounts and balance rules
//   - Holding errors (300-399): Position lookups and sell-side rules
//   - Storage errors (400-499): Transaction and persistence failures
//   - Market data errors (700-799): Provider, authentication and parse failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidOrder, "symbol is required")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeAccountNotFound, "account %s not found", accountID)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeStorageFailed, "failed to commit order", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeInsufficientFunds) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from the first coded error in err's chain.
// Returns ErrCodeUnknown if there is none.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	var held *InsufficientHoldingError
	if errors.As(err, &held) {
		return ErrCodeInsufficientHolding
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// InsufficientHoldingError is returned when a sell asks for more shares than the
// account holds. Held is the quantity on record at the time of the rejection.
type InsufficientHoldingError struct {
	Symbol    string
	Held      int64
	Requested int64
}

// NewInsufficientHoldingError creates a new InsufficientHoldingError.
func NewInsufficientHoldingError(symbol string, held, requested int64) *InsufficientHoldingError {
	return &InsufficientHoldingError{
		Symbol:    symbol,
		Held:      held,
		Requested: requested,
	}
}

// Error implements the error interface.
func (e *InsufficientHoldingError) Error() string {
	return fmt.Sprintf("[%d] insufficient holding for %s: held %d, requested %d",
		ErrCodeInsufficientHolding, e.Symbol, e.Held, e.Requested)
}

// IsInsufficientHoldingError checks if an error is an InsufficientHoldingError.
func IsInsufficientHoldingError(err error) bool {
	var held *InsufficientHoldingError

	return errors.As(err, &held)
}
