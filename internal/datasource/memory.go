package datasource

import (
	"context"
	"sort"
	"time"

	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

// MemoryDataSource serves bars from an in-memory map. It is used by tests and
// by callers that already hold their bar series.
type MemoryDataSource struct {
	bars map[string][]types.Bar
}

// NewMemoryDataSource builds a data source from the given bars. Each symbol's
// slice is copied and sorted by date so later mutation of the caller's slices
// cannot affect the source.
func NewMemoryDataSource(bars map[string][]types.Bar) *MemoryDataSource {
	owned := make(map[string][]types.Bar, len(bars))

	for symbol, series := range bars {
		copied := make([]types.Bar, len(series))
		copy(copied, series)
		sort.Slice(copied, func(i, j int) bool {
			return copied[i].Date.Before(copied[j].Date)
		})
		owned[symbol] = copied
	}

	return &MemoryDataSource{bars: owned}
}

// GetBars implements MarketDataSource.
func (m *MemoryDataSource) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series, ok := m.bars[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "no bars for symbol %s", symbol)
	}

	var out []types.Bar

	for _, bar := range series {
		if bar.Date.Before(start) || bar.Date.After(end) {
			continue
		}

		out = append(out, bar)
	}

	return out, nil
}

// Close implements MarketDataSource.
func (m *MemoryDataSource) Close() error {
	return nil
}
