// Package indicator provides window-based indicator calculations over bar
// slices. Indicators read a causally-limited window and never touch the data
// source directly.
package indicator

import (
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

// SMA returns the simple moving average of the last period closes in window.
func SMA(window []types.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "period must be positive, got %d", period)
	}

	if len(window) < period {
		return 0, errors.NewInsufficientDataErrorf(period, len(window), symbolOf(window),
			"SMA needs %d bars, have %d", period, len(window))
	}

	sum := 0.0
	for _, bar := range window[len(window)-period:] {
		sum += bar.Close
	}

	return sum / float64(period), nil
}

// EMA returns the exponential moving average of the last period closes,
// seeded with an SMA over the first period bars of the window.
func EMA(window []types.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "period must be positive, got %d", period)
	}

	if len(window) < period {
		return 0, errors.NewInsufficientDataErrorf(period, len(window), symbolOf(window),
			"EMA needs %d bars, have %d", period, len(window))
	}

	seed := 0.0
	for _, bar := range window[:period] {
		seed += bar.Close
	}

	ema := seed / float64(period)
	multiplier := 2.0 / (float64(period) + 1.0)

	for _, bar := range window[period:] {
		ema = (bar.Close-ema)*multiplier + ema
	}

	return ema, nil
}

// Momentum returns the fractional close-to-close change over the last period bars.
func Momentum(window []types.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "period must be positive, got %d", period)
	}

	if len(window) < period+1 {
		return 0, errors.NewInsufficientDataErrorf(period+1, len(window), symbolOf(window),
			"momentum needs %d bars, have %d", period+1, len(window))
	}

	base := window[len(window)-period-1].Close
	if base == 0 {
		return 0, nil
	}

	return (window[len(window)-1].Close - base) / base, nil
}

func symbolOf(window []types.Bar) string {
	if len(window) == 0 {
		return ""
	}

	return window[0].Symbol
}
