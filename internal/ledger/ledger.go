// Package ledger is the portfolio's system of record: cash, open positions,
// the immutable trade log and the end-of-day snapshot series. All mutations
// go through ApplyBuy, ApplySell and MarkToMarket; everything else is a read.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/qveris-lab/quantsim/internal/engine/execution"
	"github.com/qveris-lab/quantsim/internal/logger"
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

// Ledger tracks one simulation run. Cash and positions live in memory for
// the hot path; every trade and snapshot is also persisted to an in-memory
// DuckDB so results can be queried and exported as Parquet.
type Ledger struct {
	db  *sql.DB
	log *logger.Logger

	initialCapital float64
	cash           float64
	peakValue      float64
	positions      map[string]types.Position

	trades    []types.Trade
	snapshots []types.LedgerSnapshot

	drawdownStopFired bool
}

// NewLedger opens the backing store and seeds the ledger with the initial
// capital.
func NewLedger(initialCapital float64, log *logger.Logger) (*Ledger, error) {
	if initialCapital <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "initial capital must be positive, got %f", initialCapital)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerStateFailed, "failed to open ledger store", err)
	}

	l := &Ledger{
		db:             db,
		log:            log,
		initialCapital: initialCapital,
		cash:           initialCapital,
		peakValue:      initialCapital,
		positions:      make(map[string]types.Position),
	}

	if err := l.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return l, nil
}

func (l *Ledger) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id VARCHAR PRIMARY KEY,
			trade_date TIMESTAMP,
			symbol VARCHAR,
			side VARCHAR,
			shares DOUBLE,
			price DOUBLE,
			commission DOUBLE,
			tax DOUBLE,
			slippage DOUBLE,
			realized_pnl DOUBLE,
			reason VARCHAR,
			message VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			snapshot_date TIMESTAMP,
			cash DOUBLE,
			position_value DOUBLE,
			total_value DOUBLE,
			daily_return DOUBLE
		)`,
	}

	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return errors.Wrap(errors.ErrCodeLedgerStateFailed, "failed to create ledger tables", err)
		}
	}

	return nil
}

// Close releases the backing store.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Cash returns the free cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// InitialCapital returns the seed capital of the run.
func (l *Ledger) InitialCapital() float64 {
	return l.initialCapital
}

// GetPosition returns the open position for symbol, if any.
func (l *Ledger) GetPosition(symbol string) (types.Position, bool) {
	pos, ok := l.positions[symbol]

	return pos, ok
}

// Positions returns a copy of all open positions.
func (l *Ledger) Positions() map[string]types.Position {
	out := make(map[string]types.Position, len(l.positions))
	for symbol, pos := range l.positions {
		out[symbol] = pos
	}

	return out
}

// Trades returns the trade log in execution order.
func (l *Ledger) Trades() []types.Trade {
	return l.trades
}

// Snapshots returns the end-of-day snapshot series in date order.
func (l *Ledger) Snapshots() []types.LedgerSnapshot {
	return l.snapshots
}

// SetDrawdownStopFired latches the portfolio drawdown stop. The flag is never
// cleared for the remainder of the run.
func (l *Ledger) SetDrawdownStopFired() {
	l.drawdownStopFired = true
}

// State returns the immutable view handed to strategies and the risk gate,
// marked at the given prices.
func (l *Ledger) State(date time.Time, prices map[string]float64) types.PortfolioState {
	positionValue := decimal.Zero
	for symbol, pos := range l.positions {
		price, ok := prices[symbol]
		if !ok {
			price = pos.AvgCost
		}

		positionValue = positionValue.Add(
			decimal.NewFromFloat(pos.Shares).Mul(decimal.NewFromFloat(price)))
	}

	posValue, _ := positionValue.Float64()
	totalValue, _ := positionValue.Add(decimal.NewFromFloat(l.cash)).Float64()

	peak := l.peakValue
	if totalValue > peak {
		peak = totalValue
	}

	return types.PortfolioState{
		Date:              date,
		Cash:              l.cash,
		InitialCapital:    l.initialCapital,
		PeakValue:         peak,
		PositionValue:     posValue,
		TotalValue:        totalValue,
		Positions:         l.Positions(),
		DrawdownStopFired: l.drawdownStopFired,
	}
}

// ApplyBuy debits cash for the fill and adds the shares at a recomputed
// weighted-average cost. The entire fill cost must be covered by free cash.
func (l *Ledger) ApplyBuy(date time.Time, symbol string, fill execution.Fill, reason types.Reason) (types.Trade, error) {
	cost := fill.TotalCost()
	if cost > l.cash {
		return types.Trade{}, errors.Newf(errors.ErrCodeInsufficientFunds,
			"buy %s needs %.2f, cash %.2f", symbol, cost, l.cash)
	}

	pos, exists := l.positions[symbol]
	if exists {
		oldNotional := decimal.NewFromFloat(pos.Shares).Mul(decimal.NewFromFloat(pos.AvgCost))
		newNotional := decimal.NewFromFloat(fill.Shares).Mul(decimal.NewFromFloat(fill.Price))
		totalShares := decimal.NewFromFloat(pos.Shares).Add(decimal.NewFromFloat(fill.Shares))

		avgCost, _ := oldNotional.Add(newNotional).Div(totalShares).Float64()
		shares, _ := totalShares.Float64()

		pos.Shares = shares
		pos.AvgCost = avgCost
		pos.LastBuyDate = date
		if fill.Price > pos.HighestPrice {
			pos.HighestPrice = fill.Price
		}
	} else {
		pos = types.Position{
			Symbol:       symbol,
			Shares:       fill.Shares,
			AvgCost:      fill.Price,
			OpenDate:     date,
			LastBuyDate:  date,
			HighestPrice: fill.Price,
		}
	}

	trade := types.Trade{
		ID:         uuid.New().String(),
		Date:       date,
		Symbol:     symbol,
		Side:       types.TradeSideBuy,
		Shares:     fill.Shares,
		Price:      fill.Price,
		Commission: fill.Commission,
		Tax:        fill.Tax,
		Slippage:   fill.Slippage,
		Reason:     reason,
	}

	if err := l.insertTrade(trade); err != nil {
		return types.Trade{}, err
	}

	l.positions[symbol] = pos
	l.cash, _ = decimal.NewFromFloat(l.cash).Sub(decimal.NewFromFloat(cost)).Float64()
	l.trades = append(l.trades, trade)

	l.log.Debug("Buy applied",
		zap.String("symbol", symbol),
		zap.Float64("shares", fill.Shares),
		zap.Float64("price", fill.Price),
		zap.Float64("cash", l.cash),
	)

	return trade, nil
}

// ApplySell credits net proceeds and reduces the position. Shares bought on
// or after the sell date cannot be sold: settlement is T+1, so the position's
// last buy must be strictly before the sell date.
func (l *Ledger) ApplySell(date time.Time, symbol string, fill execution.Fill, reason types.Reason) (types.Trade, error) {
	pos, exists := l.positions[symbol]
	if !exists {
		return types.Trade{}, errors.Newf(errors.ErrCodePositionNotFound, "no open position in %s", symbol)
	}

	if fill.Shares > pos.Shares {
		return types.Trade{}, errors.Newf(errors.ErrCodeInvalidSell,
			"sell %s of %.0f shares exceeds held %.0f", symbol, fill.Shares, pos.Shares)
	}

	if !pos.LastBuyDate.Before(date) {
		return types.Trade{}, errors.Newf(errors.ErrCodeSettlementViolation,
			"%s bought on %s cannot settle a sell on %s", symbol,
			pos.LastBuyDate.Format("2006-01-02"), date.Format("2006-01-02"))
	}

	grossPnL := decimal.NewFromFloat(fill.Price).
		Sub(decimal.NewFromFloat(pos.AvgCost)).
		Mul(decimal.NewFromFloat(fill.Shares))
	realizedPnL, _ := grossPnL.
		Sub(decimal.NewFromFloat(fill.Commission)).
		Sub(decimal.NewFromFloat(fill.Tax)).
		Float64()

	trade := types.Trade{
		ID:          uuid.New().String(),
		Date:        date,
		Symbol:      symbol,
		Side:        types.TradeSideSell,
		Shares:      fill.Shares,
		Price:       fill.Price,
		Commission:  fill.Commission,
		Tax:         fill.Tax,
		Slippage:    fill.Slippage,
		RealizedPnL: realizedPnL,
		Reason:      reason,
	}

	if err := l.insertTrade(trade); err != nil {
		return types.Trade{}, err
	}

	remaining, _ := decimal.NewFromFloat(pos.Shares).Sub(decimal.NewFromFloat(fill.Shares)).Float64()
	if remaining <= 0 {
		delete(l.positions, symbol)
	} else {
		pos.Shares = remaining
		l.positions[symbol] = pos
	}

	l.cash, _ = decimal.NewFromFloat(l.cash).Add(decimal.NewFromFloat(fill.NetProceeds())).Float64()
	l.trades = append(l.trades, trade)

	l.log.Debug("Sell applied",
		zap.String("symbol", symbol),
		zap.Float64("shares", fill.Shares),
		zap.Float64("price", fill.Price),
		zap.Float64("realized_pnl", realizedPnL),
		zap.String("reason", reason.Reason),
	)

	return trade, nil
}

// MarkToMarket values every open position at the given close prices, updates
// trailing highs and the running peak, and appends the end-of-day snapshot.
// The snapshot series is append-only; one call per simulated day.
func (l *Ledger) MarkToMarket(date time.Time, prices map[string]float64) (types.LedgerSnapshot, error) {
	positionValue := decimal.Zero

	for symbol, pos := range l.positions {
		price, ok := prices[symbol]
		if !ok {
			// No quote today; carry the position at cost.
			price = pos.AvgCost
		}

		if price > pos.HighestPrice {
			pos.HighestPrice = price
			l.positions[symbol] = pos
		}

		positionValue = positionValue.Add(
			decimal.NewFromFloat(pos.Shares).Mul(decimal.NewFromFloat(price)))
	}

	posValue, _ := positionValue.Float64()
	totalValue, _ := positionValue.Add(decimal.NewFromFloat(l.cash)).Float64()

	dailyReturn := 0.0
	if n := len(l.snapshots); n > 0 && l.snapshots[n-1].TotalValue > 0 {
		prev := l.snapshots[n-1].TotalValue
		dailyReturn = (totalValue - prev) / prev
	}

	if totalValue > l.peakValue {
		l.peakValue = totalValue
	}

	snapshot := types.LedgerSnapshot{
		Date:          date,
		Cash:          l.cash,
		PositionValue: posValue,
		TotalValue:    totalValue,
		DailyReturn:   dailyReturn,
	}

	if err := l.insertSnapshot(snapshot); err != nil {
		return types.LedgerSnapshot{}, err
	}

	l.snapshots = append(l.snapshots, snapshot)

	return snapshot, nil
}

func (l *Ledger) insertTrade(trade types.Trade) error {
	tx, err := l.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerStateFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = sq.Insert("trades").
		Columns("id", "trade_date", "symbol", "side", "shares", "price",
			"commission", "tax", "slippage", "realized_pnl", "reason", "message").
		Values(trade.ID, trade.Date, trade.Symbol, string(trade.Side), trade.Shares,
			trade.Price, trade.Commission, trade.Tax, trade.Slippage,
			trade.RealizedPnL, trade.Reason.Reason, trade.Reason.Message).
		RunWith(tx).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerStateFailed, "failed to insert trade", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerStateFailed, "failed to commit trade", err)
	}

	return nil
}

func (l *Ledger) insertSnapshot(snapshot types.LedgerSnapshot) error {
	tx, err := l.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerStateFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = sq.Insert("snapshots").
		Columns("snapshot_date", "cash", "position_value", "total_value", "daily_return").
		Values(snapshot.Date, snapshot.Cash, snapshot.PositionValue,
			snapshot.TotalValue, snapshot.DailyReturn).
		RunWith(tx).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerStateFailed, "failed to insert snapshot", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerStateFailed, "failed to commit snapshot", err)
	}

	return nil
}

// Write exports the trade log and snapshot series as Parquet files under dir.
func (l *Ledger) Write(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to create artifact directory", err)
	}

	exports := map[string]string{
		"trades":    filepath.Join(dir, "trades.parquet"),
		"snapshots": filepath.Join(dir, "snapshots.parquet"),
	}

	for table, path := range exports {
		query := fmt.Sprintf("COPY %s TO '%s' (FORMAT PARQUET)", table, path)
		if _, err := l.db.Exec(query); err != nil {
			return errors.Wrapf(errors.ErrCodeArtifactWriteFailed, err, "failed to export %s", table)
		}
	}

	return nil
}
