package risk

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/qveris-lab/quantsim/internal/logger"
	"github.com/qveris-lab/quantsim/internal/types"
)

// Check names, also recorded as the reason of risk-forced trades.
const (
	CheckDrawdownStop        = "portfolio_drawdown_stop"
	CheckStopLoss            = "position_stop_loss"
	CheckTrailingStop        = "position_trailing_stop"
	CheckTakeProfit          = "position_take_profit"
	CheckSingleConcentration = "single_position_concentration"
	CheckTotalConcentration  = "total_position_concentration"
)

// Gate evaluates the risk policy against immutable portfolio snapshots.
// Evaluation is deterministic and idempotent: identical inputs always produce
// identical ordered results.
type Gate struct {
	policy Policy
	log    *logger.Logger
}

// NewGate builds a gate from a validated policy.
func NewGate(policy Policy, log *logger.Logger) *Gate {
	return &Gate{
		policy: policy,
		log:    log,
	}
}

// Policy returns the thresholds this gate enforces.
func (g *Gate) Policy() Policy {
	return g.policy
}

// Evaluate runs all checks in fixed priority order: portfolio drawdown stop,
// then per-position stop loss, trailing stop, take profit, then the
// concentration limits. pos may be nil when the symbol is flat.
func (g *Gate) Evaluate(state types.PortfolioState, pos *types.Position, price float64) []types.RiskCheckResult {
	results := make([]types.RiskCheckResult, 0, 6)

	results = append(results, g.checkDrawdownStop(state))

	if pos != nil && pos.Shares > 0 {
		results = append(results,
			g.checkStopLoss(pos, price),
			g.checkTrailingStop(pos, price),
			g.checkTakeProfit(pos, price),
		)
	}

	results = append(results,
		g.checkSingleConcentration(state, pos, price),
		g.checkTotalConcentration(state),
	)

	return results
}

// Verdict is the merged outcome of one evaluation.
type Verdict struct {
	// ForcedSell is true when any failed check demands the position flat.
	ForcedSell bool
	// LiquidateAll is true when the portfolio drawdown stop fired.
	LiquidateAll bool
	// BlockBuy is true when new buys must be vetoed.
	BlockBuy bool
	// Trigger is the highest-severity failed check, if any.
	Trigger *types.RiskCheckResult
}

// Resolve merges ordered check results into a single verdict. The most
// severe failed check wins; on equal severity the earlier (higher-priority)
// check wins. A forced sell always overrides the strategy's desired action.
func Resolve(results []types.RiskCheckResult) Verdict {
	var verdict Verdict

	for i := range results {
		result := results[i]
		if result.Passed {
			continue
		}

		switch result.Action {
		case types.RiskActionLiquidateAll:
			verdict.ForcedSell = true
			verdict.LiquidateAll = true
			verdict.BlockBuy = true
		case types.RiskActionSell:
			verdict.ForcedSell = true
		case types.RiskActionBlockBuy:
			verdict.BlockBuy = true
		}

		if verdict.Trigger == nil || result.Severity > verdict.Trigger.Severity {
			verdict.Trigger = &results[i]
		}
	}

	return verdict
}

// LogForced records a forced action. Risk overrides are expected control
// flow, not errors, but every one is logged with the triggering check.
func (g *Gate) LogForced(symbol string, trigger *types.RiskCheckResult) {
	if trigger == nil {
		return
	}

	g.log.Info("Risk gate forced action",
		zap.String("symbol", symbol),
		zap.String("check", trigger.Name),
		zap.String("severity", trigger.Severity.String()),
		zap.String("message", trigger.Message),
	)
}

func (g *Gate) checkDrawdownStop(state types.PortfolioState) types.RiskCheckResult {
	drawdown := state.Drawdown()

	if state.DrawdownStopFired || drawdown >= g.policy.MaxDrawdownStop {
		return types.RiskCheckResult{
			Name:     CheckDrawdownStop,
			Passed:   false,
			Severity: types.SeverityCritical,
			Message:  fmt.Sprintf("drawdown %.2f%% breached stop %.2f%%", drawdown*100, g.policy.MaxDrawdownStop*100),
			Action:   types.RiskActionLiquidateAll,
		}
	}

	return types.RiskCheckResult{
		Name:     CheckDrawdownStop,
		Passed:   true,
		Severity: types.SeverityLow,
		Message:  fmt.Sprintf("drawdown %.2f%% within stop %.2f%%", drawdown*100, g.policy.MaxDrawdownStop*100),
		Action:   types.RiskActionNone,
	}
}

func (g *Gate) checkStopLoss(pos *types.Position, price float64) types.RiskCheckResult {
	returnPct := pos.ReturnPct(price)

	if returnPct <= -g.policy.StopLossPct {
		return types.RiskCheckResult{
			Name:     CheckStopLoss,
			Passed:   false,
			Severity: types.SeverityCritical,
			Message:  fmt.Sprintf("%s down %.2f%% from cost, stop at %.2f%%", pos.Symbol, -returnPct*100, g.policy.StopLossPct*100),
			Action:   types.RiskActionSell,
		}
	}

	return types.RiskCheckResult{
		Name:     CheckStopLoss,
		Passed:   true,
		Severity: types.SeverityLow,
		Message:  fmt.Sprintf("%s return %.2f%%", pos.Symbol, returnPct*100),
		Action:   types.RiskActionNone,
	}
}

func (g *Gate) checkTrailingStop(pos *types.Position, price float64) types.RiskCheckResult {
	if g.policy.TrailingStopPct <= 0 || pos.HighestPrice <= 0 {
		return types.RiskCheckResult{
			Name:     CheckTrailingStop,
			Passed:   true,
			Severity: types.SeverityLow,
			Message:  "trailing stop disabled",
			Action:   types.RiskActionNone,
		}
	}

	pullback := (pos.HighestPrice - price) / pos.HighestPrice

	if pullback >= g.policy.TrailingStopPct {
		return types.RiskCheckResult{
			Name:     CheckTrailingStop,
			Passed:   false,
			Severity: types.SeverityHigh,
			Message:  fmt.Sprintf("%s pulled back %.2f%% from high %.2f", pos.Symbol, pullback*100, pos.HighestPrice),
			Action:   types.RiskActionSell,
		}
	}

	return types.RiskCheckResult{
		Name:     CheckTrailingStop,
		Passed:   true,
		Severity: types.SeverityLow,
		Message:  fmt.Sprintf("%s pullback %.2f%%", pos.Symbol, pullback*100),
		Action:   types.RiskActionNone,
	}
}

func (g *Gate) checkTakeProfit(pos *types.Position, price float64) types.RiskCheckResult {
	returnPct := pos.ReturnPct(price)

	if g.policy.TakeProfitPct > 0 && returnPct >= g.policy.TakeProfitPct {
		return types.RiskCheckResult{
			Name:     CheckTakeProfit,
			Passed:   false,
			Severity: types.SeverityMedium,
			Message:  fmt.Sprintf("%s up %.2f%%, target %.2f%%", pos.Symbol, returnPct*100, g.policy.TakeProfitPct*100),
			Action:   types.RiskActionSell,
		}
	}

	return types.RiskCheckResult{
		Name:     CheckTakeProfit,
		Passed:   true,
		Severity: types.SeverityLow,
		Message:  fmt.Sprintf("%s return %.2f%%", pos.Symbol, returnPct*100),
		Action:   types.RiskActionNone,
	}
}

// Concentration limits block new buys only. They never force sells.
func (g *Gate) checkSingleConcentration(state types.PortfolioState, pos *types.Position, price float64) types.RiskCheckResult {
	if state.TotalValue <= 0 || pos == nil || pos.Shares <= 0 {
		return types.RiskCheckResult{
			Name:     CheckSingleConcentration,
			Passed:   true,
			Severity: types.SeverityLow,
			Message:  "no position",
			Action:   types.RiskActionNone,
		}
	}

	weight := pos.MarketValue(price) / state.TotalValue

	if weight >= g.policy.MaxSinglePositionPct {
		return types.RiskCheckResult{
			Name:     CheckSingleConcentration,
			Passed:   false,
			Severity: types.SeverityHigh,
			Message:  fmt.Sprintf("%s weight %.2f%% at limit %.2f%%", pos.Symbol, weight*100, g.policy.MaxSinglePositionPct*100),
			Action:   types.RiskActionBlockBuy,
		}
	}

	return types.RiskCheckResult{
		Name:     CheckSingleConcentration,
		Passed:   true,
		Severity: types.SeverityLow,
		Message:  fmt.Sprintf("%s weight %.2f%%", pos.Symbol, weight*100),
		Action:   types.RiskActionNone,
	}
}

func (g *Gate) checkTotalConcentration(state types.PortfolioState) types.RiskCheckResult {
	if state.TotalValue <= 0 {
		return types.RiskCheckResult{
			Name:     CheckTotalConcentration,
			Passed:   true,
			Severity: types.SeverityLow,
			Message:  "empty portfolio",
			Action:   types.RiskActionNone,
		}
	}

	weight := state.PositionValue / state.TotalValue

	if weight >= g.policy.MaxTotalPositionPct {
		return types.RiskCheckResult{
			Name:     CheckTotalConcentration,
			Passed:   false,
			Severity: types.SeverityHigh,
			Message:  fmt.Sprintf("total position weight %.2f%% at limit %.2f%%", weight*100, g.policy.MaxTotalPositionPct*100),
			Action:   types.RiskActionBlockBuy,
		}
	}

	return types.RiskCheckResult{
		Name:     CheckTotalConcentration,
		Passed:   true,
		Severity: types.SeverityLow,
		Message:  fmt.Sprintf("total position weight %.2f%%", weight*100),
		Action:   types.RiskActionNone,
	}
}
