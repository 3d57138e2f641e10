// Package risk implements the pre-trade risk gate. The gate reads an
// immutable portfolio snapshot and returns ordered check results; it never
// mutates ledger state itself.
package risk

import (
	"github.com/go-playground/validator/v10"

	"github.com/qveris-lab/quantsim/pkg/errors"
)

// Policy enumerates the thresholds enforced by the gate. Per-position limits
// are fractions relative to average cost (or the post-open high for the
// trailing stop); portfolio limits are fractions of total value.
type Policy struct {
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gte=0,lte=1"`
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gte=0"`
	// TrailingStopPct is the tolerated pullback from the highest price since
	// the position opened. Zero disables the check.
	TrailingStopPct float64 `yaml:"trailing_stop_pct" json:"trailing_stop_pct" validate:"gte=0,lte=1"`

	MaxSinglePositionPct float64 `yaml:"max_single_position_pct" json:"max_single_position_pct" validate:"gt=0,lte=1"`
	MaxTotalPositionPct  float64 `yaml:"max_total_position_pct" json:"max_total_position_pct" validate:"gt=0,lte=1"`
	// MaxDrawdownStop halts the run: all open positions are forced flat at
	// the next execution point and buys stay rejected afterwards.
	MaxDrawdownStop float64 `yaml:"max_drawdown_stop" json:"max_drawdown_stop" validate:"gt=0,lte=1"`
}

// DefaultPolicy mirrors the thresholds the simulator ships with.
func DefaultPolicy() Policy {
	return Policy{
		StopLossPct:          0.08,
		TakeProfitPct:        0.15,
		TrailingStopPct:      0.05,
		MaxSinglePositionPct: 0.20,
		MaxTotalPositionPct:  0.90,
		MaxDrawdownStop:      0.20,
	}
}

// Validate checks the policy thresholds.
func (p *Policy) Validate() error {
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRiskPolicy, "invalid risk policy", err)
	}

	return nil
}
