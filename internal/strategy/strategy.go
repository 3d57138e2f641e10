// Package strategy defines the decision interface consumed by the simulation
// engine and the strategies bundled with the simulator. A strategy is a pure
// function of its window and portfolio state: it never sees a bar dated on or
// after the day being simulated, and it never mutates the ledger.
package strategy

import (
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

// Strategy decides an action from a causally-limited bar window and an
// immutable portfolio snapshot. Rule-based, ML-driven and remote strategies
// all share this one-method abstraction (plus a name for reporting).
type Strategy interface {
	// Name identifies the strategy in trade reasons and reports.
	Name() string
	// Decide returns the desired action for the symbol the window belongs
	// to. The window contains only bars dated strictly before the current
	// simulated day and may be shorter than the strategy needs, in which
	// case the strategy must return ActionHold.
	Decide(window []types.Bar, state types.PortfolioState) types.Action
}

// New returns a bundled strategy by name. Used by the CLI boundary.
func New(name string) (Strategy, error) {
	switch name {
	case "hold":
		return NewHold(), nil
	case "sma":
		return NewSMACrossover(5, 20), nil
	case "momentum":
		return NewMomentum(20, 0.02), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy %q", name)
	}
}
