package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/qveris-lab/quantsim/internal/batch"
	"github.com/qveris-lab/quantsim/internal/datasource"
	"github.com/qveris-lab/quantsim/internal/engine"
	"github.com/qveris-lab/quantsim/internal/logger"
	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

// exitConfigError signals an unrecoverable configuration problem. Per-symbol
// failures never change the exit code; the report accounts for them.
const exitConfigError = 2

func runAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	config := engine.DefaultConfig()
	if path := cmd.String("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
		}

		config, err = engine.ParseConfig(data)
		if err != nil {
			return err
		}
	}

	if capital := cmd.Float("capital"); capital > 0 {
		config.InitialCapital = capital
	}
	if err := config.Validate(); err != nil {
		return err
	}

	symbols := cmd.StringSlice("symbols")
	if len(symbols) == 0 {
		return errors.New(errors.ErrCodeEmptyUniverse, "no symbols given")
	}

	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")
	if start.After(end) {
		return errors.Newf(errors.ErrCodeInvalidDateRange,
			"start %s is after end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	source, err := buildDataSource(cmd.String("data"), log)
	if err != nil {
		return err
	}
	defer source.Close()

	eng, err := engine.NewEngine(config, source, cmd.String("strategy"), log)
	if err != nil {
		return err
	}

	coordinator := batch.NewCoordinator(eng, int(cmd.Int("workers")), log)
	if dir := cmd.String("results"); dir != "" {
		coordinator.SetResultsDir(dir)
	}

	bar := progressbar.Default(int64(len(symbols)), "backtesting")
	coordinator.SetOnResult(func(types.SymbolResult) {
		_ = bar.Add(1)
	})

	report, err := coordinator.RunUniverse(ctx, symbols, start, end)
	if err != nil {
		return err
	}

	_ = bar.Finish()
	printReport(report)

	return nil
}

// buildDataSource stacks the retry and cache decorators over the DuckDB
// reader, so transient I/O failures retry and concurrent symbol runs share
// one copy of each series.
func buildDataSource(path string, log *logger.Logger) (datasource.MarketDataSource, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "data path is required")
	}

	duck, err := datasource.NewDuckDBDataSource(log)
	if err != nil {
		return nil, err
	}

	if err := duck.Initialize(path); err != nil {
		duck.Close()
		return nil, err
	}

	retrying := datasource.NewRetryingDataSource(duck, datasource.DefaultRetryPolicy(), log)

	return datasource.NewCachedDataSource(retrying, nil), nil
}

func printReport(report *types.BatchReport) {
	fmt.Printf("\nbatch %s: %d submitted, %d succeeded, %d skipped, %d failed\n",
		report.ID,
		report.Counts.Submitted,
		report.Counts.Succeeded,
		report.Counts.Skipped,
		report.Counts.Failed,
	)

	if report.Best != "" {
		fmt.Printf("best  %s\nworst %s\n", report.Best, report.Worst)
	}

	for _, r := range report.Results {
		switch r.Status {
		case types.SymbolStatusSucceeded:
			fmt.Printf("  %-10s return %8.2f%%  sharpe %6.2f  max dd %6.2f%%  trades %d\n",
				r.Symbol,
				r.Summary.TotalReturn*100,
				r.Summary.SharpeRatio,
				r.Summary.MaxDrawdown*100,
				len(r.Trades),
			)
		default:
			fmt.Printf("  %-10s %s: %s\n", r.Symbol, r.Status, r.Error)
		}
	}
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	config := engine.DefaultConfig()

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run deterministic backtests over a universe of symbols",
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the engine configuration",
				Action: schemaAction,
			},
		},
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "symbols",
				Aliases: []string{"S"},
				Usage:   "Symbols to simulate",
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start date in `YYYY-MM-DD` format",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.FloatFlag{
				Name:  "capital",
				Usage: "Initial capital per symbol (overrides config file)",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "Bundled strategy name (hold, sma, momentum)",
				Value: "sma",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Worker pool size",
				Value:   batch.DefaultWorkers,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the engine config YAML",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path (or glob) to CSV/Parquet bar files",
			},
			&cli.StringFlag{
				Name:    "results",
				Aliases: []string{"r"},
				Usage:   "Directory for batch artifacts",
			},
		},
		Action: runAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)

		if errors.IsConfigError(err) {
			os.Exit(exitConfigError)
		}

		os.Exit(1)
	}
}
