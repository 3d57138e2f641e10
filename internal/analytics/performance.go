// Package analytics derives performance statistics from a completed run's
// snapshot series and trade log. It is pure computation: no I/O, no state.
package analytics

import (
	"math"

	"github.com/qveris-lab/quantsim/internal/types"
)

// Analyzer computes a Summary from simulation output. Every ratio degrades to
// zero when its denominator is zero; NaN and Inf never appear in a Summary.
type Analyzer struct {
	// RiskFreeRate is the annualized rate subtracted in Sharpe and Sortino.
	RiskFreeRate float64
	// TradingDaysPerYear scales daily statistics to annual ones.
	TradingDaysPerYear float64
}

// NewAnalyzer returns an analyzer with the conventional 252-day year and a
// zero risk-free rate.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		RiskFreeRate:       0,
		TradingDaysPerYear: 252,
	}
}

// Summarize computes the full statistics block for one run. An empty snapshot
// series yields a zero-valued Summary.
func (a *Analyzer) Summarize(snapshots []types.LedgerSnapshot, trades []types.Trade) types.Summary {
	if len(snapshots) == 0 {
		return types.Summary{}
	}

	first := snapshots[0]
	last := snapshots[len(snapshots)-1]

	summary := types.Summary{
		TradingDays: len(snapshots),
		FinalValue:  last.TotalValue,
	}

	if first.TotalValue > 0 {
		summary.TotalReturn = (last.TotalValue - first.TotalValue) / first.TotalValue
	}

	returns := dailyReturns(snapshots)

	summary.AnnualizedReturn = a.annualize(summary.TotalReturn, len(snapshots))
	summary.Volatility = sanitize(stddev(returns) * math.Sqrt(a.TradingDaysPerYear))
	summary.SharpeRatio = sanitize(a.sharpe(returns))
	summary.SortinoRatio = sanitize(a.sortino(returns))

	dd, duration, ongoing := maxDrawdown(snapshots)
	summary.MaxDrawdown = dd
	summary.MaxDrawdownDuration = duration
	summary.DrawdownOngoing = ongoing

	summary.WinRate = winRate(trades)
	summary.ProfitFactor = sanitize(profitFactor(trades))
	summary.Turnover = turnover(trades, snapshots)

	return summary
}

func dailyReturns(snapshots []types.LedgerSnapshot) []float64 {
	if len(snapshots) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].TotalValue
		if prev <= 0 {
			returns = append(returns, 0)
			continue
		}

		returns = append(returns, (snapshots[i].TotalValue-prev)/prev)
	}

	return returns
}

func (a *Analyzer) annualize(totalReturn float64, days int) float64 {
	if days <= 0 || totalReturn <= -1 {
		return 0
	}

	years := float64(days) / a.TradingDaysPerYear
	if years <= 0 {
		return 0
	}

	return sanitize(math.Pow(1+totalReturn, 1/years) - 1)
}

func (a *Analyzer) sharpe(returns []float64) float64 {
	sd := stddev(returns)
	if sd == 0 {
		return 0
	}

	excess := mean(returns) - a.RiskFreeRate/a.TradingDaysPerYear

	return excess / sd * math.Sqrt(a.TradingDaysPerYear)
}

// sortino penalizes only downside deviation. Zero when there are no negative
// returns to measure.
func (a *Analyzer) sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var downSquares float64
	for _, r := range returns {
		if r < 0 {
			downSquares += r * r
		}
	}

	downside := math.Sqrt(downSquares / float64(len(returns)))
	if downside == 0 {
		return 0
	}

	excess := mean(returns) - a.RiskFreeRate/a.TradingDaysPerYear

	return excess / downside * math.Sqrt(a.TradingDaysPerYear)
}

// maxDrawdown walks the snapshot series against its running maximum. Duration
// is measured in snapshots from the peak preceding the deepest trough to the
// first snapshot recovering that peak; ongoing is true when the series ends
// before recovery.
func maxDrawdown(snapshots []types.LedgerSnapshot) (float64, int, bool) {
	var (
		peak        float64
		peakIdx     int
		worst       float64
		worstPeak   int
		recoveredAt = -1
	)

	for i, s := range snapshots {
		if s.TotalValue > peak {
			peak = s.TotalValue
			peakIdx = i
			continue
		}

		if peak <= 0 {
			continue
		}

		dd := (peak - s.TotalValue) / peak
		if dd > worst {
			worst = dd
			worstPeak = peakIdx
			recoveredAt = -1
		}
	}

	if worst == 0 {
		return 0, 0, false
	}

	// Find when (or whether) the deepest drawdown's peak was re-attained.
	peakValue := snapshots[worstPeak].TotalValue
	for i := worstPeak + 1; i < len(snapshots); i++ {
		if snapshots[i].TotalValue >= peakValue {
			recoveredAt = i
			break
		}
	}

	if recoveredAt < 0 {
		return worst, len(snapshots) - 1 - worstPeak, true
	}

	return worst, recoveredAt - worstPeak, false
}

// winRate counts closed (sell) trades with positive realized PnL.
func winRate(trades []types.Trade) float64 {
	var sells, wins int
	for _, t := range trades {
		if t.Side != types.TradeSideSell {
			continue
		}

		sells++
		if t.RealizedPnL > 0 {
			wins++
		}
	}

	if sells == 0 {
		return 0
	}

	return float64(wins) / float64(sells)
}

func profitFactor(trades []types.Trade) float64 {
	var grossProfit, grossLoss float64
	for _, t := range trades {
		if t.Side != types.TradeSideSell {
			continue
		}

		if t.RealizedPnL > 0 {
			grossProfit += t.RealizedPnL
		} else {
			grossLoss += -t.RealizedPnL
		}
	}

	if grossLoss == 0 {
		return 0
	}

	return grossProfit / grossLoss
}

// turnover is traded notional over average portfolio value.
func turnover(trades []types.Trade, snapshots []types.LedgerSnapshot) float64 {
	if len(snapshots) == 0 {
		return 0
	}

	var notional float64
	for i := range trades {
		notional += trades[i].Notional()
	}

	var totalValue float64
	for _, s := range snapshots {
		totalValue += s.TotalValue
	}

	avgValue := totalValue / float64(len(snapshots))
	if avgValue <= 0 {
		return 0
	}

	return notional / avgValue
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)

	var sumSquares float64
	for _, v := range values {
		d := v - m
		sumSquares += d * d
	}

	return math.Sqrt(sumSquares / float64(len(values)-1))
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}
