package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/qveris-lab/quantsim/internal/datasource"
	"github.com/qveris-lab/quantsim/internal/engine"
	"github.com/qveris-lab/quantsim/internal/logger"
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

type CoordinatorTestSuite struct {
	suite.Suite
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorTestSuite))
}

func tradingDay(d int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func flatBars(symbol string, days int, price float64) []types.Bar {
	bars := make([]types.Bar, days)
	for i := range bars {
		bars[i] = types.Bar{
			Symbol: symbol,
			Date:   tradingDay(i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1_000_000,
		}
	}

	return bars
}

// universe builds five symbols: four with full history and one with only ten
// bars, which cannot satisfy the warm-up window.
func (suite *CoordinatorTestSuite) universe() (map[string][]types.Bar, []string) {
	bars := map[string][]types.Bar{
		"600000": flatBars("600000", 80, 10),
		"600001": flatBars("600001", 80, 20),
		"600002": flatBars("600002", 80, 30),
		"600003": flatBars("600003", 80, 40),
		"600004": flatBars("600004", 10, 50), // too short
	}

	return bars, []string{"600000", "600001", "600002", "600003", "600004"}
}

func (suite *CoordinatorTestSuite) newCoordinator(bars map[string][]types.Bar, workers int) *Coordinator {
	eng, err := engine.NewEngine(engine.DefaultConfig(), datasource.NewMemoryDataSource(bars), "hold", logger.NewNopLogger())
	suite.Require().NoError(err)

	return NewCoordinator(eng, workers, logger.NewNopLogger())
}

func (suite *CoordinatorTestSuite) TestUniverseCountsAccountForEverySymbol() {
	bars, symbols := suite.universe()
	coordinator := suite.newCoordinator(bars, 3)

	report, err := coordinator.RunUniverse(context.Background(), symbols, tradingDay(0), tradingDay(79))
	suite.Require().NoError(err)

	suite.Equal(5, report.Counts.Submitted)
	suite.Equal(4, report.Counts.Succeeded)
	suite.Equal(1, report.Counts.Skipped)
	suite.Equal(0, report.Counts.Failed)
	suite.Len(report.Results, 5)

	// Results are sorted by symbol for reproducible reports.
	for i := 1; i < len(report.Results); i++ {
		suite.Less(report.Results[i-1].Symbol, report.Results[i].Symbol)
	}

	for _, r := range report.Results {
		if r.Symbol == "600004" {
			suite.Equal(types.SymbolStatusSkipped, r.Status)
			suite.NotEmpty(r.Error)
		} else {
			suite.Equal(types.SymbolStatusSucceeded, r.Status)
		}
	}
}

func (suite *CoordinatorTestSuite) TestUnknownSymbolIsIsolatedAsFailure() {
	bars, _ := suite.universe()
	coordinator := suite.newCoordinator(bars, 2)

	symbols := []string{"600000", "does-not-exist"}
	report, err := coordinator.RunUniverse(context.Background(), symbols, tradingDay(0), tradingDay(79))
	suite.Require().NoError(err)

	suite.Equal(1, report.Counts.Succeeded)
	suite.Equal(1, report.Counts.Failed)
}

func (suite *CoordinatorTestSuite) TestEmptyUniverseRejected() {
	bars, _ := suite.universe()
	coordinator := suite.newCoordinator(bars, 2)

	_, err := coordinator.RunUniverse(context.Background(), nil, tradingDay(0), tradingDay(79))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEmptyUniverse))
	suite.True(errors.IsConfigError(err))
}

func (suite *CoordinatorTestSuite) TestCancellationStillAccountsForAllSymbols() {
	bars, symbols := suite.universe()
	coordinator := suite.newCoordinator(bars, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := coordinator.RunUniverse(ctx, symbols, tradingDay(0), tradingDay(79))
	suite.Require().NoError(err)

	total := report.Counts.Succeeded + report.Counts.Skipped + report.Counts.Failed
	suite.Equal(report.Counts.Submitted, total)
	suite.Len(report.Results, len(symbols))
}

func (suite *CoordinatorTestSuite) TestOnResultCallbackFiresPerSymbol() {
	bars, symbols := suite.universe()
	coordinator := suite.newCoordinator(bars, 3)

	var completed atomic.Int64
	coordinator.SetOnResult(func(types.SymbolResult) {
		completed.Add(1)
	})

	_, err := coordinator.RunUniverse(context.Background(), symbols, tradingDay(0), tradingDay(79))
	suite.Require().NoError(err)
	suite.Equal(int64(len(symbols)), completed.Load())
}

func (suite *CoordinatorTestSuite) TestSectorRollup() {
	bars, symbols := suite.universe()
	coordinator := suite.newCoordinator(bars, 2)
	coordinator.SetSectors(map[string]string{
		"600000": "banking",
		"600001": "banking",
		"600002": "energy",
	})

	report, err := coordinator.RunUniverse(context.Background(), symbols, tradingDay(0), tradingDay(79))
	suite.Require().NoError(err)

	suite.Require().Len(report.Sectors, 2)
	suite.Equal("banking", report.Sectors[0].Sector)
	suite.Equal(2, report.Sectors[0].Symbols)
	suite.Equal("energy", report.Sectors[1].Sector)
	suite.Equal(1, report.Sectors[1].Symbols)
}

func (suite *CoordinatorTestSuite) TestArtifactWritten() {
	bars, symbols := suite.universe()
	coordinator := suite.newCoordinator(bars, 2)

	dir := suite.T().TempDir()
	coordinator.SetResultsDir(dir)

	report, err := coordinator.RunUniverse(context.Background(), symbols, tradingDay(0), tradingDay(79))
	suite.Require().NoError(err)
	suite.NotEmpty(report.ID)

	info, err := os.Stat(filepath.Join(dir, report.ID, "report.yaml"))
	suite.NoError(err)
	suite.Greater(info.Size(), int64(0))

	// Succeeded symbols export their ledgers alongside the report.
	_, err = os.Stat(filepath.Join(dir, report.ID, "symbols", "600000", "trades.parquet"))
	suite.NoError(err)
}
