package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/qveris-lab/quantsim/internal/logger"
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

type GateTestSuite struct {
	suite.Suite

	gate *Gate
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateTestSuite))
}

func (suite *GateTestSuite) SetupTest() {
	suite.gate = NewGate(DefaultPolicy(), logger.NewNopLogger())
}

func flatState(total float64) types.PortfolioState {
	return types.PortfolioState{
		Date:           time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Cash:           total,
		InitialCapital: total,
		PeakValue:      total,
		TotalValue:     total,
		Positions:      map[string]types.Position{},
	}
}

func longState(cash, posValue, peak float64, pos types.Position) types.PortfolioState {
	return types.PortfolioState{
		Date:           time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Cash:           cash,
		InitialCapital: cash + posValue,
		PeakValue:      peak,
		PositionValue:  posValue,
		TotalValue:     cash + posValue,
		Positions:      map[string]types.Position{pos.Symbol: pos},
	}
}

func (suite *GateTestSuite) TestAllChecksPassWhenHealthy() {
	pos := types.Position{Symbol: "600000", Shares: 100, AvgCost: 100, HighestPrice: 101}
	state := longState(90_000, 10_100, 100_100, pos)

	results := suite.gate.Evaluate(state, &pos, 101)

	for _, result := range results {
		suite.True(result.Passed, "check %s should pass: %s", result.Name, result.Message)
	}

	verdict := Resolve(results)
	suite.False(verdict.ForcedSell)
	suite.False(verdict.BlockBuy)
	suite.Nil(verdict.Trigger)
}

func (suite *GateTestSuite) TestStopLossForcesSell() {
	// Cost 100, price 91: a 9% loss breaches the 8% stop.
	pos := types.Position{Symbol: "600000", Shares: 100, AvgCost: 100, HighestPrice: 100}
	state := longState(90_000, 9_100, 100_000, pos)

	results := suite.gate.Evaluate(state, &pos, 91)
	verdict := Resolve(results)

	suite.True(verdict.ForcedSell)
	suite.False(verdict.LiquidateAll)
	suite.Require().NotNil(verdict.Trigger)
	suite.Equal(CheckStopLoss, verdict.Trigger.Name)
	suite.Equal(types.SeverityCritical, verdict.Trigger.Severity)
	suite.Equal(types.RiskActionSell, verdict.Trigger.Action)
}

func (suite *GateTestSuite) TestEvaluationIsIdempotent() {
	pos := types.Position{Symbol: "600000", Shares: 100, AvgCost: 100, HighestPrice: 100}
	state := longState(90_000, 9_100, 100_000, pos)

	first := suite.gate.Evaluate(state, &pos, 91)
	second := suite.gate.Evaluate(state, &pos, 91)

	suite.Equal(first, second)
}

func (suite *GateTestSuite) TestDrawdownStopOutranksStopLoss() {
	// Both the portfolio stop and the position stop are breached; the
	// portfolio stop is evaluated first and wins the tie on severity.
	pos := types.Position{Symbol: "600000", Shares: 1000, AvgCost: 100, HighestPrice: 100}
	state := longState(10_000, 60_000, 110_000, pos)

	verdict := Resolve(suite.gate.Evaluate(state, &pos, 60))

	suite.True(verdict.ForcedSell)
	suite.True(verdict.LiquidateAll)
	suite.True(verdict.BlockBuy)
	suite.Require().NotNil(verdict.Trigger)
	suite.Equal(CheckDrawdownStop, verdict.Trigger.Name)
}

func (suite *GateTestSuite) TestTrailingStopOnPullback() {
	// Bought at 100, ran to 120, pulled back to 112: 6.67% off the high
	// breaches the 5% trailing stop while the position is still profitable.
	pos := types.Position{Symbol: "600000", Shares: 100, AvgCost: 100, HighestPrice: 120}
	state := longState(90_000, 11_200, 102_000, pos)

	verdict := Resolve(suite.gate.Evaluate(state, &pos, 112))

	suite.True(verdict.ForcedSell)
	suite.Require().NotNil(verdict.Trigger)
	suite.Equal(CheckTrailingStop, verdict.Trigger.Name)
	suite.Equal(types.SeverityHigh, verdict.Trigger.Severity)
}

func (suite *GateTestSuite) TestTakeProfitForcesSell() {
	pos := types.Position{Symbol: "600000", Shares: 100, AvgCost: 100, HighestPrice: 116}
	state := longState(90_000, 11_600, 101_600, pos)

	verdict := Resolve(suite.gate.Evaluate(state, &pos, 116))

	suite.True(verdict.ForcedSell)
	suite.Require().NotNil(verdict.Trigger)
	suite.Equal(CheckTakeProfit, verdict.Trigger.Name)
	suite.Equal(types.SeverityMedium, verdict.Trigger.Severity)
}

func (suite *GateTestSuite) TestConcentrationBlocksBuysOnly() {
	// 25% single-position weight breaches the 20% limit but must never
	// force a sell. The position is flat on cost so no other check fires.
	pos := types.Position{Symbol: "600000", Shares: 250, AvgCost: 100, HighestPrice: 100}
	state := longState(75_000, 25_000, 100_000, pos)

	verdict := Resolve(suite.gate.Evaluate(state, &pos, 100))

	suite.True(verdict.BlockBuy)
	suite.False(verdict.ForcedSell)
	suite.Require().NotNil(verdict.Trigger)
	suite.Equal(types.RiskActionBlockBuy, verdict.Trigger.Action)
}

func (suite *GateTestSuite) TestTotalConcentrationBlocksBuys() {
	// 95% aggregate position weight breaches the 90% cap even when the
	// symbol under evaluation is flat.
	state := flatState(100_000)
	state.Cash = 5_000
	state.PositionValue = 95_000

	verdict := Resolve(suite.gate.Evaluate(state, nil, 100))

	suite.True(verdict.BlockBuy)
	suite.False(verdict.ForcedSell)
	suite.Require().NotNil(verdict.Trigger)
	suite.Equal(CheckTotalConcentration, verdict.Trigger.Name)
}

func (suite *GateTestSuite) TestDrawdownStopStaysLatched() {
	state := flatState(100_000)
	state.DrawdownStopFired = true

	verdict := Resolve(suite.gate.Evaluate(state, nil, 0))

	suite.True(verdict.BlockBuy)
	suite.True(verdict.LiquidateAll)
	suite.Require().NotNil(verdict.Trigger)
	suite.Equal(CheckDrawdownStop, verdict.Trigger.Name)
}

func (suite *GateTestSuite) TestPolicyValidation() {
	tests := []struct {
		name    string
		mutate  func(*Policy)
		wantErr bool
	}{
		{"defaults valid", func(p *Policy) {}, false},
		{"stop loss above one", func(p *Policy) { p.StopLossPct = 1.5 }, true},
		{"zero drawdown stop", func(p *Policy) { p.MaxDrawdownStop = 0 }, true},
		{"single limit above one", func(p *Policy) { p.MaxSinglePositionPct = 2 }, true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			policy := DefaultPolicy()
			tc.mutate(&policy)

			err := policy.Validate()
			if tc.wantErr {
				suite.Error(err)
				suite.True(errors.HasCode(err, errors.ErrCodeInvalidRiskPolicy))
				suite.True(errors.IsConfigError(err))
			} else {
				suite.NoError(err)
			}
		})
	}
}
