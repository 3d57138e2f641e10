package strategy

import (
	"github.com/qveris-lab/quantsim/internal/indicator"
	"github.com/qveris-lab/quantsim/internal/types"
)

// Momentum buys when the trailing return over the lookback exceeds the entry
// threshold and sells when it turns negative.
type Momentum struct {
	lookback  int
	threshold float64
	last      types.IndicatorSnapshot
}

// NewMomentum creates a momentum strategy with the given lookback (bars) and
// entry threshold (fractional return).
func NewMomentum(lookback int, threshold float64) *Momentum {
	return &Momentum{
		lookback:  lookback,
		threshold: threshold,
	}
}

// Name implements Strategy.
func (m *Momentum) Name() string {
	return "momentum"
}

// LastSnapshot returns the indicator values from the most recent decision.
func (m *Momentum) LastSnapshot() types.IndicatorSnapshot {
	return m.last
}

// Decide implements Strategy.
func (m *Momentum) Decide(window []types.Bar, state types.PortfolioState) types.Action {
	value, err := indicator.Momentum(window, m.lookback)
	if err != nil {
		return types.ActionHold
	}

	m.last = types.IndicatorSnapshot{Momentum: value}

	switch {
	case value >= m.threshold:
		return types.ActionBuy
	case value < 0:
		return types.ActionSell
	default:
		return types.ActionHold
	}
}
