package datasource

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/qveris-lab/quantsim/internal/logger"
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

// RetryPolicy configures the exponential backoff applied to transient
// data-source failures. Retries belong to this boundary only; the engine
// never retries.
type RetryPolicy struct {
	MaxRetries      uint          `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// DefaultRetryPolicy matches the defaults used by the batch CLI.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// RetryingDataSource decorates a MarketDataSource with retry-with-backoff on
// transient errors. Permanent conditions (symbol not found) fail immediately.
type RetryingDataSource struct {
	inner  MarketDataSource
	policy RetryPolicy
	log    *logger.Logger
}

// NewRetryingDataSource wraps inner with the given retry policy.
func NewRetryingDataSource(inner MarketDataSource, policy RetryPolicy, log *logger.Logger) *RetryingDataSource {
	return &RetryingDataSource{
		inner:  inner,
		policy: policy,
		log:    log,
	}
}

// GetBars implements MarketDataSource.
func (r *RetryingDataSource) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.policy.InitialInterval
	expo.MaxInterval = r.policy.MaxInterval

	var policy backoff.BackOff = backoff.WithMaxRetries(expo, uint64(r.policy.MaxRetries))
	policy = backoff.WithContext(policy, ctx)

	var bars []types.Bar

	operation := func() error {
		var err error

		bars, err = r.inner.GetBars(ctx, symbol, start, end)
		if err == nil {
			return nil
		}

		if errors.HasCode(err, errors.ErrCodeDataNotFound) {
			return backoff.Permanent(err)
		}

		return err
	}

	notify := func(err error, wait time.Duration) {
		r.log.Warn("Retrying market data fetch",
			zap.String("symbol", symbol),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	return bars, nil
}

// Close implements MarketDataSource.
func (r *RetryingDataSource) Close() error {
	return r.inner.Close()
}
