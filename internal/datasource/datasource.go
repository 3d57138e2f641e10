// Package datasource defines the market-data boundary of the simulator and
// its bundled implementations. The engine depends only on the MarketDataSource
// interface; retrieval, caching and retries all live on this side of the
// boundary.
package datasource

import (
	"context"
	"time"

	"github.com/qveris-lab/quantsim/internal/types"
)

// MarketDataSource supplies ordered OHLCV bars per symbol and date range.
// Implementations must return bars in ascending date order; missing trading
// days are simply absent from the slice.
type MarketDataSource interface {
	// GetBars returns all bars for symbol with start <= date <= end.
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error)
	// Close releases any resources held by the data source.
	Close() error
}
