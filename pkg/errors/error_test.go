package errors

import (
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

func (suite *ErrorTestSuite) TestNewAndNewf() {
	err := New(ErrCodeInvalidDateRange, "start is after end")
	suite.Equal(ErrCodeInvalidDateRange, err.Code)
	suite.Contains(err.Error(), "start is after end")

	err = Newf(ErrCodeDataNotFound, "no bars for %s", "600000")
	suite.Contains(err.Error(), "no bars for 600000")
}

func (suite *ErrorTestSuite) TestWrapPreservesCause() {
	cause := fmt.Errorf("connection reset")
	err := Wrap(ErrCodeQueryFailed, "failed to load bars", cause)

	suite.Equal(cause, err.Unwrap())
	suite.Contains(err.Error(), "connection reset")
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCodeThroughWrappedChain() {
	inner := New(ErrCodeInsufficientFunds, "not enough cash")
	outer := fmt.Errorf("order rejected: %w", inner)

	suite.Equal(ErrCodeInsufficientFunds, GetCode(outer))
	suite.True(HasCode(outer, ErrCodeInsufficientFunds))
	suite.False(HasCode(outer, ErrCodeInvalidSell))
}

func (suite *ErrorTestSuite) TestGetCodeOnPlainError() {
	suite.Equal(ErrCodeUnknown, GetCode(fmt.Errorf("plain")))
}

func (suite *ErrorTestSuite) TestIsConfigError() {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid configuration", New(ErrCodeInvalidConfiguration, "bad"), true},
		{"empty universe", New(ErrCodeEmptyUniverse, "no symbols"), true},
		{"unknown strategy", New(ErrCodeUnknownStrategy, "lstm"), true},
		{"data error", New(ErrCodeDataNotFound, "missing"), false},
		{"ledger error", New(ErrCodeInsufficientFunds, "broke"), false},
		{"plain error", fmt.Errorf("plain"), false},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.want, IsConfigError(tc.err))
		})
	}
}

func (suite *ErrorTestSuite) TestInsufficientDataError() {
	err := NewInsufficientDataErrorf(60, 10, "600000", "%s has %d bars, need %d", "600000", 10, 60)

	suite.True(IsInsufficientDataError(err))
	suite.Equal(60, err.Required)
	suite.Equal(10, err.Actual)
	suite.Equal("600000", err.Symbol)
	suite.Contains(err.Error(), "600000 has 10 bars")

	wrapped := fmt.Errorf("load failed: %w", err)
	suite.True(IsInsufficientDataError(wrapped))

	suite.False(IsInsufficientDataError(New(ErrCodeDataNotFound, "missing")))
}
