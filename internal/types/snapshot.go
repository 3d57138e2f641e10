package types

import (
	"time"
)

// LedgerSnapshot is the end-of-day valuation of the ledger. One snapshot is
// appended per simulated day and never mutated afterwards.
type LedgerSnapshot struct {
	Date          time.Time `yaml:"date" json:"date" csv:"date"`
	Cash          float64   `yaml:"cash" json:"cash" csv:"cash"`
	PositionValue float64   `yaml:"position_value" json:"position_value" csv:"position_value"`
	TotalValue    float64   `yaml:"total_value" json:"total_value" csv:"total_value"`
	// DailyReturn is the fractional change in total value from the previous
	// snapshot. Zero for the first snapshot of a run.
	DailyReturn float64 `yaml:"daily_return" json:"daily_return" csv:"daily_return"`
}

// PortfolioState is an immutable view of the ledger handed to strategies and
// the risk gate. Only the engine applies mutations; decision code reads this
// snapshot and returns verdicts.
type PortfolioState struct {
	Date           time.Time
	Cash           float64
	InitialCapital float64
	// PeakValue is the running maximum of total value, used for the
	// portfolio drawdown stop.
	PeakValue     float64
	PositionValue float64
	TotalValue    float64
	Positions     map[string]Position
	// DrawdownStopFired is true once the portfolio drawdown stop has
	// triggered; buys stay rejected for the remainder of the run.
	DrawdownStopFired bool
}

// Drawdown returns the current fractional decline from the running peak.
func (s *PortfolioState) Drawdown() float64 {
	if s.PeakValue <= 0 {
		return 0
	}

	return (s.PeakValue - s.TotalValue) / s.PeakValue
}
