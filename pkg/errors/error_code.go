package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidOrder         ErrorCode = 100
	ErrCodeInvalidQuantity      ErrorCode = 101
	ErrCodeInvalidConfiguration ErrorCode = 102
	ErrCodeInvalidParameter     ErrorCode = 103

	// Account errors (200-299)
	ErrCodeAccountNotFound   ErrorCode = 200
	ErrCodeInsufficientFunds ErrorCode = 201
	ErrCodeNegativeBalance   ErrorCode = 202
	ErrCodeAccountExists     ErrorCode = 203

	// Holding errors (300-399)
	ErrCodeNoHolding           ErrorCode = 300
	ErrCodeInsufficientHolding ErrorCode = 301
	ErrCodeInvalidHolding      ErrorCode = 302

	// Storage errors (400-499)
	ErrCodeStorageFailed    ErrorCode = 400
	ErrCodeConcurrentUpdate ErrorCode = 401
	ErrCodeUnsupportedStore ErrorCode = 402

	// Market data errors (700-799)
	ErrCodeProviderUnavailable   ErrorCode = 700
	ErrCodeAuthFailure           ErrorCode = 701
	ErrCodeMarketDataParseFailed ErrorCode = 702
	ErrCodeInvalidProvider       ErrorCode = 703
	ErrCodeThrottled             ErrorCode = 704
)
