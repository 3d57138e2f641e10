package strategy

import (
	"github.com/qveris-lab/quantsim/internal/indicator"
	"github.com/qveris-lab/quantsim/internal/types"
)

// SMACrossover buys when the fast moving average crosses above the slow one
// and sells on the opposite cross.
type SMACrossover struct {
	fastPeriod int
	slowPeriod int
	last       types.IndicatorSnapshot
}

// NewSMACrossover creates a crossover strategy with the given periods.
func NewSMACrossover(fastPeriod, slowPeriod int) *SMACrossover {
	return &SMACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

// Name implements Strategy.
func (s *SMACrossover) Name() string {
	return "sma_crossover"
}

// LastSnapshot returns the indicator values from the most recent decision.
func (s *SMACrossover) LastSnapshot() types.IndicatorSnapshot {
	return s.last
}

// Decide implements Strategy.
func (s *SMACrossover) Decide(window []types.Bar, state types.PortfolioState) types.Action {
	// +1 so the previous day's averages exist for cross detection.
	if len(window) < s.slowPeriod+1 {
		return types.ActionHold
	}

	fast, err := indicator.SMA(window, s.fastPeriod)
	if err != nil {
		return types.ActionHold
	}

	slow, err := indicator.SMA(window, s.slowPeriod)
	if err != nil {
		return types.ActionHold
	}

	prevFast, err := indicator.SMA(window[:len(window)-1], s.fastPeriod)
	if err != nil {
		return types.ActionHold
	}

	prevSlow, err := indicator.SMA(window[:len(window)-1], s.slowPeriod)
	if err != nil {
		return types.ActionHold
	}

	s.last = types.IndicatorSnapshot{FastMA: fast, SlowMA: slow}

	crossedUp := prevFast <= prevSlow && fast > slow
	crossedDown := prevFast >= prevSlow && fast < slow

	switch {
	case crossedUp:
		return types.ActionBuy
	case crossedDown:
		return types.ActionSell
	default:
		return types.ActionHold
	}
}
