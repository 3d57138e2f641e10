package strategy

import (
	"github.com/qveris-lab/quantsim/internal/types"
)

// Hold never trades. It is the baseline used to validate accounting: a
// hold-only run must finish with total value equal to initial capital.
type Hold struct{}

// NewHold returns the hold-only strategy.
func NewHold() *Hold {
	return &Hold{}
}

// Name implements Strategy.
func (h *Hold) Name() string {
	return "hold"
}

// Decide implements Strategy.
func (h *Hold) Decide(window []types.Bar, state types.PortfolioState) types.Action {
	return types.ActionHold
}
