package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SymbolStatus classifies the outcome of one symbol's simulation.
type SymbolStatus string

const (
	SymbolStatusSucceeded SymbolStatus = "succeeded"
	SymbolStatusSkipped   SymbolStatus = "skipped_insufficient_data"
	SymbolStatusFailed    SymbolStatus = "failed"
)

// Summary holds the performance statistics derived from a snapshot series
// and trade log. All ratios are zero when their denominator is zero.
type Summary struct {
	TotalReturn      float64 `yaml:"total_return" json:"total_return"`
	AnnualizedReturn float64 `yaml:"annualized_return" json:"annualized_return"`
	Volatility       float64 `yaml:"volatility" json:"volatility"`
	SharpeRatio      float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	SortinoRatio     float64 `yaml:"sortino_ratio" json:"sortino_ratio"`
	MaxDrawdown      float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// MaxDrawdownDuration counts simulated days from peak to recovery.
	MaxDrawdownDuration int `yaml:"max_drawdown_duration" json:"max_drawdown_duration"`
	// DrawdownOngoing is true when the deepest drawdown had not recovered by
	// the end of the series.
	DrawdownOngoing bool    `yaml:"drawdown_ongoing" json:"drawdown_ongoing"`
	WinRate         float64 `yaml:"win_rate" json:"win_rate"`
	ProfitFactor    float64 `yaml:"profit_factor" json:"profit_factor"`
	Turnover        float64 `yaml:"turnover" json:"turnover"`
	TradingDays     int     `yaml:"trading_days" json:"trading_days"`
	FinalValue      float64 `yaml:"final_value" json:"final_value"`
}

// SymbolResult is the full outcome of one symbol's run: status, summary,
// trade log and daily snapshot series.
type SymbolResult struct {
	Symbol    string           `yaml:"symbol" json:"symbol"`
	Status    SymbolStatus     `yaml:"status" json:"status"`
	Sector    string           `yaml:"sector,omitempty" json:"sector,omitempty"`
	Summary   Summary          `yaml:"summary" json:"summary"`
	Trades    []Trade          `yaml:"trades" json:"trades"`
	Snapshots []LedgerSnapshot `yaml:"snapshots" json:"snapshots"`
	// Error is set for skipped and failed symbols.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// SectorSummary aggregates returns of succeeded symbols sharing a sector label.
type SectorSummary struct {
	Sector        string  `yaml:"sector" json:"sector"`
	Symbols       int     `yaml:"symbols" json:"symbols"`
	AverageReturn float64 `yaml:"average_return" json:"average_return"`
}

// BatchCounts enumerates outcomes so partial completion is never silent.
type BatchCounts struct {
	Submitted int `yaml:"submitted" json:"submitted"`
	Succeeded int `yaml:"succeeded" json:"succeeded"`
	Skipped   int `yaml:"skipped_insufficient_data" json:"skipped_insufficient_data"`
	Failed    int `yaml:"failed" json:"failed"`
}

// BatchReport is the cross-sectional result of a universe run, persisted as a
// batch artifact keyed by ID.
type BatchReport struct {
	ID        string          `yaml:"id" json:"id"`
	CreatedAt time.Time       `yaml:"created_at" json:"created_at"`
	Start     time.Time       `yaml:"start" json:"start"`
	End       time.Time       `yaml:"end" json:"end"`
	Counts    BatchCounts     `yaml:"counts" json:"counts"`
	Best      string          `yaml:"best,omitempty" json:"best,omitempty"`
	Worst     string          `yaml:"worst,omitempty" json:"worst,omitempty"`
	Sectors   []SectorSummary `yaml:"sectors,omitempty" json:"sectors,omitempty"`
	Results   []SymbolResult  `yaml:"results" json:"results"`
}

// WriteBatchReport serializes the report to YAML at the given path.
func WriteBatchReport(path string, report *BatchReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal batch report to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write batch report to file: %w", err)
	}

	return nil
}
