package types

// Severity grades a risk check result. Higher values win when multiple
// checks fire on the same day.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// RiskAction is the remedial action a risk check recommends.
type RiskAction string

const (
	// RiskActionNone means the check passed or only warns.
	RiskActionNone RiskAction = "none"
	// RiskActionBlockBuy vetoes new buys but never forces sells.
	RiskActionBlockBuy RiskAction = "block_buy"
	// RiskActionSell forces the position flat regardless of the strategy.
	RiskActionSell RiskAction = "sell"
	// RiskActionLiquidateAll forces every open position flat and blocks buys
	// for the remainder of the run.
	RiskActionLiquidateAll RiskAction = "liquidate_all"
)

// RiskCheckResult is the outcome of a single risk check. Results for one
// evaluation are ordered by the gate's fixed check priority.
type RiskCheckResult struct {
	Name     string     `yaml:"name" json:"name"`
	Passed   bool       `yaml:"passed" json:"passed"`
	Severity Severity   `yaml:"severity" json:"severity"`
	Message  string     `yaml:"message" json:"message"`
	Action   RiskAction `yaml:"action" json:"action"`
}
