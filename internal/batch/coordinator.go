// Package batch fans one engine out over a universe of symbols. Each symbol
// simulates independently on a bounded worker pool; one symbol's failure
// never aborts the batch.
package batch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qveris-lab/quantsim/internal/engine"
	"github.com/qveris-lab/quantsim/internal/logger"
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

// DefaultWorkers bounds the pool when no explicit size is given.
const DefaultWorkers = 4

// Coordinator runs a universe of symbols through one engine.
type Coordinator struct {
	engine  *engine.Engine
	log     *logger.Logger
	workers int

	// resultsDir, when set, receives the batch artifact: one directory per
	// batch ID with report.yaml and per-symbol Parquet exports.
	resultsDir string

	// sectors optionally labels symbols for the sector rollup.
	sectors map[string]string

	// onResult, when set, is called once per completed symbol. Used by the
	// CLI for progress reporting.
	onResult func(types.SymbolResult)
}

// NewCoordinator builds a coordinator over the given engine. workers <= 0
// falls back to DefaultWorkers.
func NewCoordinator(eng *engine.Engine, workers int, log *logger.Logger) *Coordinator {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Coordinator{
		engine:  eng,
		log:     log,
		workers: workers,
	}
}

// SetResultsDir enables artifact persistence under dir.
func (c *Coordinator) SetResultsDir(dir string) {
	c.resultsDir = dir
}

// SetSectors attaches sector labels used for the per-sector rollup.
func (c *Coordinator) SetSectors(sectors map[string]string) {
	c.sectors = sectors
}

// SetOnResult registers a per-symbol completion callback. The callback runs
// on worker goroutines and must be safe for concurrent use.
func (c *Coordinator) SetOnResult(fn func(types.SymbolResult)) {
	c.onResult = fn
}

// RunUniverse simulates every symbol over [start, end] and aggregates the
// outcomes. Cancelling ctx stops scheduling new symbols; symbols already
// running finish and appear in the report. The report always accounts for
// every submitted symbol so partial completion is never silent.
func (c *Coordinator) RunUniverse(ctx context.Context, symbols []string, start, end time.Time) (*types.BatchReport, error) {
	if len(symbols) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyUniverse, "universe is empty")
	}

	batchID := uuid.New().String()

	if c.resultsDir != "" {
		c.engine.SetResultsDir(filepath.Join(c.resultsDir, batchID, "symbols"))
	}

	c.log.Info("Batch started",
		zap.String("batch_id", batchID),
		zap.Int("symbols", len(symbols)),
		zap.Int("workers", c.workers),
	)

	jobs := make(chan string)
	results := make([]types.SymbolResult, 0, len(symbols))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for range c.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				result := c.runOne(ctx, symbol, start, end)

				mu.Lock()
				results = append(results, result)
				mu.Unlock()

				if c.onResult != nil {
					c.onResult(result)
				}
			}
		}()
	}

scheduling:
	for _, symbol := range symbols {
		select {
		case jobs <- symbol:
		case <-ctx.Done():
			c.log.Warn("Batch cancelled, draining in-flight symbols",
				zap.String("batch_id", batchID),
				zap.Error(ctx.Err()),
			)
			break scheduling
		}
	}
	close(jobs)

	wg.Wait()

	// Symbols never scheduled due to cancellation are reported as failed.
	scheduled := make(map[string]bool, len(results))
	for _, r := range results {
		scheduled[r.Symbol] = true
	}
	for _, symbol := range symbols {
		if !scheduled[symbol] {
			results = append(results, types.SymbolResult{
				Symbol: symbol,
				Status: types.SymbolStatusFailed,
				Error:  "cancelled before scheduling",
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Symbol < results[j].Symbol
	})

	report := c.buildReport(batchID, start, end, symbols, results)

	if c.resultsDir != "" {
		if err := c.writeArtifact(report); err != nil {
			return nil, err
		}
	}

	c.log.Info("Batch finished",
		zap.String("batch_id", batchID),
		zap.Int("succeeded", report.Counts.Succeeded),
		zap.Int("skipped", report.Counts.Skipped),
		zap.Int("failed", report.Counts.Failed),
	)

	return report, nil
}

func (c *Coordinator) runOne(ctx context.Context, symbol string, start, end time.Time) types.SymbolResult {
	result, err := c.engine.RunSymbol(ctx, symbol, start, end)
	if err != nil {
		c.log.Error("Symbol failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)

		return types.SymbolResult{
			Symbol: symbol,
			Status: types.SymbolStatusFailed,
			Error:  err.Error(),
		}
	}

	if sector, ok := c.sectors[symbol]; ok {
		result.Sector = sector
	}

	return result
}

func (c *Coordinator) buildReport(batchID string, start, end time.Time, symbols []string, results []types.SymbolResult) *types.BatchReport {
	report := &types.BatchReport{
		ID:        batchID,
		CreatedAt: time.Now().UTC(),
		Start:     start,
		End:       end,
		Counts:    types.BatchCounts{Submitted: len(symbols)},
		Results:   results,
	}

	var (
		bestReturn  float64
		worstReturn float64
		haveAny     bool
	)

	sectorReturns := make(map[string][]float64)

	for _, r := range results {
		switch r.Status {
		case types.SymbolStatusSucceeded:
			report.Counts.Succeeded++
		case types.SymbolStatusSkipped:
			report.Counts.Skipped++
		case types.SymbolStatusFailed:
			report.Counts.Failed++
		}

		if r.Status != types.SymbolStatusSucceeded {
			continue
		}

		ret := r.Summary.TotalReturn
		if !haveAny || ret > bestReturn {
			bestReturn = ret
			report.Best = r.Symbol
		}
		if !haveAny || ret < worstReturn {
			worstReturn = ret
			report.Worst = r.Symbol
		}
		haveAny = true

		if r.Sector != "" {
			sectorReturns[r.Sector] = append(sectorReturns[r.Sector], ret)
		}
	}

	sectors := make([]string, 0, len(sectorReturns))
	for sector := range sectorReturns {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)

	for _, sector := range sectors {
		returns := sectorReturns[sector]

		var sum float64
		for _, ret := range returns {
			sum += ret
		}

		report.Sectors = append(report.Sectors, types.SectorSummary{
			Sector:        sector,
			Symbols:       len(returns),
			AverageReturn: sum / float64(len(returns)),
		})
	}

	return report
}

func (c *Coordinator) writeArtifact(report *types.BatchReport) error {
	dir := filepath.Join(c.resultsDir, report.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to create batch directory", err)
	}

	path := filepath.Join(dir, "report.yaml")
	if err := types.WriteBatchReport(path, report); err != nil {
		return errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to write batch report", err)
	}

	c.log.Info("Batch artifact written",
		zap.String("batch_id", report.ID),
		zap.String("path", path),
	)

	return nil
}
