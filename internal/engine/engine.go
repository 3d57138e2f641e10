// Package engine drives the day-by-day simulation of a single symbol: window
// assembly, strategy decision, risk gate, execution at the day's open and
// mark-to-market at its close.
package engine

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/qveris-lab/quantsim/internal/analytics"
	"github.com/qveris-lab/quantsim/internal/datasource"
	"github.com/qveris-lab/quantsim/internal/ledger"
	"github.com/qveris-lab/quantsim/internal/logger"
	"github.com/qveris-lab/quantsim/internal/risk"
	"github.com/qveris-lab/quantsim/internal/strategy"
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

// runState is the lifecycle of one symbol's simulation.
type runState int

const (
	stateWarmup runState = iota
	stateFlat
	stateLong
	stateTerminated
)

func (s runState) String() string {
	switch s {
	case stateWarmup:
		return "WARMUP"
	case stateFlat:
		return "FLAT"
	case stateLong:
		return "LONG"
	case stateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Engine replays one symbol at a time. A single Engine is safe to share
// across goroutines: each run builds its own ledger and strategy instance.
type Engine struct {
	config Config
	data   datasource.MarketDataSource
	log    *logger.Logger

	// resultsDir, when set, receives per-symbol Parquet exports of the trade
	// log and snapshot series.
	resultsDir string

	// newStrategy builds a fresh strategy per run; strategies carry state, so
	// runs never share an instance.
	newStrategy func() (strategy.Strategy, error)
}

// NewEngine validates the config and builds an engine bound to the given
// data source and strategy.
func NewEngine(config Config, data datasource.MarketDataSource, strategyName string, log *logger.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Fail fast on an unknown strategy before any symbol runs.
	if _, err := strategy.New(strategyName); err != nil {
		return nil, err
	}

	return &Engine{
		config: config,
		data:   data,
		log:    log,
		newStrategy: func() (strategy.Strategy, error) {
			return strategy.New(strategyName)
		},
	}, nil
}

// SetResultsDir enables per-symbol artifact export under dir.
func (e *Engine) SetResultsDir(dir string) {
	e.resultsDir = dir
}

// RunSymbol simulates one symbol over [start, end]. A symbol with fewer bars
// than the warm-up window returns a skipped result and no error; data-source
// and ledger-store failures return an error for the caller to isolate.
func (e *Engine) RunSymbol(ctx context.Context, symbol string, start, end time.Time) (types.SymbolResult, error) {
	if e.config.Start.IsSome() && e.config.Start.Unwrap().After(start) {
		start = e.config.Start.Unwrap()
	}
	if e.config.End.IsSome() && e.config.End.Unwrap().Before(end) {
		end = e.config.End.Unwrap()
	}
	if start.After(end) {
		return types.SymbolResult{}, errors.Newf(errors.ErrCodeInvalidDateRange,
			"start %s is after end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	bars, err := e.data.GetBars(ctx, symbol, start, end)
	if err != nil {
		return types.SymbolResult{}, errors.Wrapf(errors.ErrCodeSimulationFailed, err,
			"failed to load bars for %s", symbol)
	}

	if len(bars) <= e.config.MinWarmupBars {
		insufficientErr := errors.NewInsufficientDataErrorf(
			e.config.MinWarmupBars+1, len(bars), symbol,
			"%s has %d bars, warm-up needs more than %d", symbol, len(bars), e.config.MinWarmupBars)

		e.log.Info("Symbol skipped",
			zap.String("symbol", symbol),
			zap.Int("bars", len(bars)),
			zap.Int("min_warmup_bars", e.config.MinWarmupBars),
		)

		return types.SymbolResult{
			Symbol: symbol,
			Status: types.SymbolStatusSkipped,
			Error:  insufficientErr.Error(),
		}, nil
	}

	return e.simulate(ctx, symbol, bars)
}

func (e *Engine) simulate(ctx context.Context, symbol string, bars []types.Bar) (types.SymbolResult, error) {
	book, err := ledger.NewLedger(e.config.InitialCapital, e.log)
	if err != nil {
		return types.SymbolResult{}, err
	}
	defer book.Close()

	strat, err := e.newStrategy()
	if err != nil {
		return types.SymbolResult{}, err
	}

	gate := risk.NewGate(e.config.Risk, e.log)
	state := stateWarmup

	for i := e.config.MinWarmupBars; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return types.SymbolResult{}, errors.Wrap(errors.ErrCodeSimulationFailed, "simulation cancelled", err)
		}

		bar := bars[i]
		// Decision code sees only bars dated strictly before today.
		window := bars[:i]

		// With no history the portfolio is all cash; valuation falls back to
		// the day's open.
		prevClose := bar.Open
		if len(window) > 0 {
			prevClose = window[len(window)-1].Close
		}

		portfolio := book.State(bar.Date, map[string]float64{symbol: prevClose})

		action := strat.Decide(window, portfolio)

		var posPtr *types.Position
		if pos, ok := book.GetPosition(symbol); ok {
			posPtr = &pos
		}

		verdict := risk.Resolve(gate.Evaluate(portfolio, posPtr, prevClose))

		state = e.execute(book, gate, symbol, bar, portfolio, posPtr, action, verdict, state)

		if e.config.ForceLiquidateOnEnd && i == len(bars)-1 {
			if e.liquidateAtEnd(book, symbol, bar) {
				state = stateFlat
			}
		}

		if _, err := book.MarkToMarket(bar.Date, map[string]float64{symbol: bar.Close}); err != nil {
			return types.SymbolResult{}, err
		}
	}

	state = stateTerminated
	e.log.Debug("Simulation finished",
		zap.String("symbol", symbol),
		zap.String("state", state.String()),
		zap.Int("trades", len(book.Trades())),
	)

	if e.resultsDir != "" {
		if err := book.Write(filepath.Join(e.resultsDir, symbol)); err != nil {
			return types.SymbolResult{}, err
		}
	}

	analyzer := &analytics.Analyzer{
		RiskFreeRate:       e.config.RiskFreeRate,
		TradingDaysPerYear: e.config.TradingDaysPerYear,
	}

	return types.SymbolResult{
		Symbol:    symbol,
		Status:    types.SymbolStatusSucceeded,
		Summary:   analyzer.Summarize(book.Snapshots(), book.Trades()),
		Trades:    book.Trades(),
		Snapshots: book.Snapshots(),
	}, nil
}

// execute applies at most one order at the day's open: a risk-forced sell
// wins over everything, then the strategy's action, with buys subject to the
// gate's veto. Ledger rejections drop the order and the run continues.
func (e *Engine) execute(book *ledger.Ledger, gate *risk.Gate, symbol string, bar types.Bar,
	portfolio types.PortfolioState, pos *types.Position, action types.Action,
	verdict risk.Verdict, state runState) runState {

	if state == stateWarmup {
		state = stateFlat
		if pos != nil {
			state = stateLong
		}
	}

	// The drawdown stop latches even when the symbol is already flat.
	if verdict.LiquidateAll {
		book.SetDrawdownStopFired()
	}

	switch {
	case verdict.ForcedSell && pos != nil:
		gate.LogForced(symbol, verdict.Trigger)
		if e.sellAll(book, symbol, bar, pos, forcedReason(verdict.Trigger)) {
			state = stateFlat
		}

	case action == types.ActionSell && pos != nil:
		if e.sellAll(book, symbol, bar, pos, types.Reason{Reason: types.ReasonStrategy, Message: "strategy sell"}) {
			state = stateFlat
		}

	case action == types.ActionBuy:
		if verdict.BlockBuy || portfolio.DrawdownStopFired {
			e.log.Debug("Buy vetoed", zap.String("symbol", symbol), zap.Time("date", bar.Date))
			return state
		}
		if e.buy(book, symbol, bar, portfolio) {
			state = stateLong
		}
	}

	return state
}

// buy sizes the order at the target weight of total value and shrinks it to
// what free cash can cover. Orders that shrink to nothing are dropped.
func (e *Engine) buy(book *ledger.Ledger, symbol string, bar types.Bar, portfolio types.PortfolioState) bool {
	desiredNotional := portfolio.TotalValue * e.config.MaxSinglePositionPct
	shares := e.config.Costs.RoundToLot(desiredNotional / bar.Open)

	affordable := e.config.Costs.MaxAffordableShares(book.Cash(), bar.Open)
	if affordable < shares {
		shares = affordable
	}

	fill, ok := e.config.Costs.ComputeFill(types.TradeSideBuy, shares, bar.Open)
	if !ok {
		return false
	}

	reason := types.Reason{Reason: types.ReasonStrategy, Message: "strategy buy"}
	if _, err := book.ApplyBuy(bar.Date, symbol, fill, reason); err != nil {
		e.log.Debug("Buy rejected",
			zap.String("symbol", symbol),
			zap.Time("date", bar.Date),
			zap.Error(err),
		)
		return false
	}

	return true
}

// sellAll flattens the position at the day's open. T+1 settlement can reject
// the sell when the position was bought today or yesterday's fill has not
// settled; the order is dropped and retried naturally on a later day.
func (e *Engine) sellAll(book *ledger.Ledger, symbol string, bar types.Bar, pos *types.Position, reason types.Reason) bool {
	fill, ok := e.config.Costs.ComputeFill(types.TradeSideSell, pos.Shares, bar.Open)
	if !ok {
		return false
	}

	if _, err := book.ApplySell(bar.Date, symbol, fill, reason); err != nil {
		e.log.Debug("Sell rejected",
			zap.String("symbol", symbol),
			zap.Time("date", bar.Date),
			zap.Error(err),
		)
		return false
	}

	return true
}

// liquidateAtEnd flattens the remaining position at the last bar's close,
// before that day's snapshot is taken. A T+1 rejection leaves the position
// open and marked at the last close instead.
func (e *Engine) liquidateAtEnd(book *ledger.Ledger, symbol string, last types.Bar) bool {
	pos, ok := book.GetPosition(symbol)
	if !ok {
		return false
	}

	fill, fillOK := e.config.Costs.ComputeFill(types.TradeSideSell, pos.Shares, last.Close)
	if !fillOK {
		return false
	}

	reason := types.Reason{Reason: types.ReasonEndOfRange, Message: "end of simulated range"}
	if _, err := book.ApplySell(last.Date, symbol, fill, reason); err != nil {
		e.log.Debug("End-of-range liquidation rejected",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return false
	}

	return true
}

func forcedReason(trigger *types.RiskCheckResult) types.Reason {
	if trigger == nil {
		return types.Reason{Reason: types.ReasonStrategy}
	}

	var reason string
	switch trigger.Name {
	case risk.CheckDrawdownStop:
		reason = types.ReasonDrawdownStop
	case risk.CheckStopLoss:
		reason = types.ReasonStopLoss
	case risk.CheckTrailingStop:
		reason = types.ReasonTrailingStop
	case risk.CheckTakeProfit:
		reason = types.ReasonTakeProfit
	default:
		reason = types.ReasonStrategy
	}

	return types.Reason{Reason: reason, Message: trigger.Message}
}
