package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/qveris-lab/quantsim/internal/engine/execution"
	"github.com/qveris-lab/quantsim/internal/logger"
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

type LedgerTestSuite struct {
	suite.Suite

	ledger *Ledger
	model  execution.Model
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (suite *LedgerTestSuite) SetupTest() {
	var err error
	suite.ledger, err = NewLedger(1_000_000, logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.model = execution.DefaultModel()
}

func (suite *LedgerTestSuite) TearDownTest() {
	suite.ledger.Close()
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func (suite *LedgerTestSuite) buy(d int, symbol string, shares, refPrice float64) types.Trade {
	fill, ok := suite.model.ComputeFill(types.TradeSideBuy, shares, refPrice)
	suite.Require().True(ok)

	trade, err := suite.ledger.ApplyBuy(day(d), symbol, fill, types.Reason{Reason: types.ReasonStrategy})
	suite.Require().NoError(err)

	return trade
}

func (suite *LedgerTestSuite) TestRejectsNonPositiveCapital() {
	_, err := NewLedger(0, logger.NewNopLogger())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *LedgerTestSuite) TestBuyDebitsCashAndOpensPosition() {
	suite.buy(1, "600000", 100, 10.00)

	suite.InDelta(1_000_000-1006.00, suite.ledger.Cash(), 1e-9)

	pos, ok := suite.ledger.GetPosition("600000")
	suite.True(ok)
	suite.InDelta(100, pos.Shares, 1e-9)
	suite.InDelta(10.01, pos.AvgCost, 1e-9)
	suite.Equal(day(1), pos.OpenDate)
	suite.Equal(day(1), pos.LastBuyDate)
}

func (suite *LedgerTestSuite) TestBuyRecomputesWeightedAverageCost() {
	suite.buy(1, "600000", 100, 10.00)
	suite.buy(2, "600000", 100, 20.00)

	pos, ok := suite.ledger.GetPosition("600000")
	suite.True(ok)
	suite.InDelta(200, pos.Shares, 1e-9)
	// (100*10.01 + 100*20.02) / 200
	suite.InDelta(15.015, pos.AvgCost, 1e-9)
	suite.Equal(day(2), pos.LastBuyDate)
}

func (suite *LedgerTestSuite) TestBuyRejectedWhenCashInsufficient() {
	fill, ok := suite.model.ComputeFill(types.TradeSideBuy, 200_000, 10.00)
	suite.Require().True(ok)

	_, err := suite.ledger.ApplyBuy(day(1), "600000", fill, types.Reason{Reason: types.ReasonStrategy})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientFunds))

	// Rejected orders leave the ledger untouched.
	suite.InDelta(1_000_000, suite.ledger.Cash(), 1e-9)
	suite.Empty(suite.ledger.Trades())
}

func (suite *LedgerTestSuite) TestSellBeforeSettlementRejected() {
	suite.buy(1, "600000", 100, 10.00)

	fill, ok := suite.model.ComputeFill(types.TradeSideSell, 100, 11.00)
	suite.Require().True(ok)

	_, err := suite.ledger.ApplySell(day(1), "600000", fill, types.Reason{Reason: types.ReasonStrategy})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSettlementViolation))
}

func (suite *LedgerTestSuite) TestSellAfterSettlementRealizesPnL() {
	suite.buy(1, "600000", 100, 10.00)

	fill, ok := suite.model.ComputeFill(types.TradeSideSell, 100, 11.00)
	suite.Require().True(ok)

	trade, err := suite.ledger.ApplySell(day(2), "600000", fill, types.Reason{Reason: types.ReasonStrategy})
	suite.NoError(err)

	// (10.989 - 10.01) * 100 - 5.00 - 1.0989
	suite.InDelta(91.8011, trade.RealizedPnL, 1e-9)

	_, stillOpen := suite.ledger.GetPosition("600000")
	suite.False(stillOpen)
}

func (suite *LedgerTestSuite) TestSellMoreThanHeldRejected() {
	suite.buy(1, "600000", 100, 10.00)

	fill, ok := suite.model.ComputeFill(types.TradeSideSell, 200, 11.00)
	suite.Require().True(ok)

	_, err := suite.ledger.ApplySell(day(2), "600000", fill, types.Reason{Reason: types.ReasonStrategy})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidSell))
}

func (suite *LedgerTestSuite) TestSellWithoutPositionRejected() {
	fill, ok := suite.model.ComputeFill(types.TradeSideSell, 100, 11.00)
	suite.Require().True(ok)

	_, err := suite.ledger.ApplySell(day(2), "600000", fill, types.Reason{Reason: types.ReasonStrategy})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePositionNotFound))
}

func (suite *LedgerTestSuite) TestCashNeverGoesNegative() {
	// Spend almost everything, then try to spend again.
	suite.buy(1, "600000", 99_800, 10.00)

	fill, ok := suite.model.ComputeFill(types.TradeSideBuy, 100, 10.00)
	suite.Require().True(ok)

	_, err := suite.ledger.ApplyBuy(day(2), "600001", fill, types.Reason{Reason: types.ReasonStrategy})
	suite.Error(err)
	suite.GreaterOrEqual(suite.ledger.Cash(), 0.0)
}

func (suite *LedgerTestSuite) TestMarkToMarketConservation() {
	suite.buy(1, "600000", 100, 10.00)

	prices := map[string]float64{"600000": 10.50}
	snapshot, err := suite.ledger.MarkToMarket(day(1), prices)
	suite.NoError(err)

	suite.InDelta(snapshot.Cash+snapshot.PositionValue, snapshot.TotalValue, 1e-9)
	suite.InDelta(100*10.50, snapshot.PositionValue, 1e-9)
	suite.InDelta(0.0, snapshot.DailyReturn, 1e-9)

	snapshot2, err := suite.ledger.MarkToMarket(day(2), map[string]float64{"600000": 11.00})
	suite.NoError(err)
	suite.InDelta((snapshot2.TotalValue-snapshot.TotalValue)/snapshot.TotalValue, snapshot2.DailyReturn, 1e-12)

	suite.Len(suite.ledger.Snapshots(), 2)
}

func (suite *LedgerTestSuite) TestMarkToMarketTracksHighestPrice() {
	suite.buy(1, "600000", 100, 10.00)

	_, err := suite.ledger.MarkToMarket(day(1), map[string]float64{"600000": 12.00})
	suite.NoError(err)

	pos, _ := suite.ledger.GetPosition("600000")
	suite.InDelta(12.00, pos.HighestPrice, 1e-9)

	// A lower mark never lowers the high-water mark.
	_, err = suite.ledger.MarkToMarket(day(2), map[string]float64{"600000": 9.00})
	suite.NoError(err)

	pos, _ = suite.ledger.GetPosition("600000")
	suite.InDelta(12.00, pos.HighestPrice, 1e-9)
}

func (suite *LedgerTestSuite) TestWriteExportsParquet() {
	suite.buy(1, "600000", 100, 10.00)

	_, err := suite.ledger.MarkToMarket(day(1), map[string]float64{"600000": 10.50})
	suite.Require().NoError(err)

	dir := filepath.Join(suite.T().TempDir(), "artifacts")
	suite.Require().NoError(suite.ledger.Write(dir))

	for _, name := range []string{"trades.parquet", "snapshots.parquet"} {
		info, err := os.Stat(filepath.Join(dir, name))
		suite.NoError(err)
		suite.Greater(info.Size(), int64(0))
	}
}
