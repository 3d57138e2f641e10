package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/qveris-lab/quantsim/internal/logger"
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

// DuckDBDataSource reads daily bars from CSV or Parquet files through an
// in-memory DuckDB database. Files must carry the columns
// symbol, date, open, high, low, close, volume.
type DuckDBDataSource struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewDuckDBDataSource opens an in-memory DuckDB instance. Call Initialize to
// point it at data files before reading.
func NewDuckDBDataSource(log *logger.Logger) (*DuckDBDataSource, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	return &DuckDBDataSource{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates a bars view over the given file path. Glob patterns are
// passed through to DuckDB, so "data/*.parquet" loads a whole directory.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.log.Debug("Initializing DuckDB data source", zap.String("path", path))

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS bars;`); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop existing view", err)
	}

	reader := "read_parquet"
	if strings.HasSuffix(path, ".csv") {
		reader = "read_csv_auto"
	}

	// CREATE VIEW has no squirrel builder, raw SQL is used here.
	query := fmt.Sprintf(`CREATE VIEW bars AS SELECT * FROM %s('%s');`, reader, path)
	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to create bars view over %s", path)
	}

	return nil
}

// GetBars implements MarketDataSource.
func (d *DuckDBDataSource) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	query := d.sq.
		Select("symbol", "date", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol}).
		Where(squirrel.GtOrEq{"date": start}).
		Where(squirrel.LtOrEq{"date": end}).
		OrderBy("date ASC").
		RunWith(d.db)

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query bars for %s", symbol)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar

		err := rows.Scan(
			&bar.Symbol,
			&bar.Date,
			&bar.Open,
			&bar.High,
			&bar.Low,
			&bar.Close,
			&bar.Volume,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating bars", err)
	}

	return bars, nil
}

// Close implements MarketDataSource.
func (d *DuckDBDataSource) Close() error {
	return d.db.Close()
}
