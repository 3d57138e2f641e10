package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199). Fatal and non-retryable: surfaced to
	// the caller before any simulation starts.
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidParameter     ErrorCode = 101
	ErrCodeInvalidDateRange     ErrorCode = 102
	ErrCodeEmptyUniverse        ErrorCode = 103
	ErrCodeInvalidRiskPolicy    ErrorCode = 104
	ErrCodeUnknownStrategy      ErrorCode = 105

	// Data errors (200-299). Recoverable per symbol: the symbol is skipped
	// and recorded in the batch report while the batch continues.
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeInsufficientData      ErrorCode = 203

	// Ledger errors (300-399). The violating order is rejected outright;
	// ledger state is never mutated to make an order fit.
	ErrCodeInsufficientFunds   ErrorCode = 300
	ErrCodeInvalidSell         ErrorCode = 301
	ErrCodeSettlementViolation ErrorCode = 302
	ErrCodePositionNotFound    ErrorCode = 303
	ErrCodeLedgerStateFailed   ErrorCode = 304

	// Engine errors (400-499)
	ErrCodeSimulationFailed ErrorCode = 400

	// Batch errors (500-599)
	ErrCodeArtifactWriteFailed ErrorCode = 500
)
