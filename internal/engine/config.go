package engine

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/qveris-lab/quantsim/internal/engine/execution"
	"github.com/qveris-lab/quantsim/internal/risk"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

// Config drives one simulation run. Costs holds the execution model, Risk the
// gate thresholds; Start and End optionally narrow the simulated range below
// whatever the data source returns.
type Config struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,description=Starting capital per symbol,minimum=0"`
	// MinWarmupBars is the number of bars that must precede the first tradable
	// day. Symbols with less history are skipped, not failed.
	MinWarmupBars int `yaml:"min_warmup_bars" json:"min_warmup_bars" validate:"gte=0" jsonschema:"title=Minimum Warm-up Bars,description=Bars required before the first tradable day"`
	// MaxSinglePositionPct sizes new buys as a fraction of total value. Orders
	// that free cash cannot cover are shrunk to the affordable lot count.
	MaxSinglePositionPct float64 `yaml:"max_single_position_pct" json:"max_single_position_pct" validate:"gt=0,lte=1" jsonschema:"title=Max Single Position,description=Target position weight for new buys"`
	// ForceLiquidateOnEnd flattens any open position at the last bar's close.
	ForceLiquidateOnEnd bool `yaml:"force_liquidate_on_end" json:"force_liquidate_on_end" jsonschema:"title=Force Liquidate On End"`

	RiskFreeRate       float64 `yaml:"risk_free_rate" json:"risk_free_rate" validate:"gte=0" jsonschema:"title=Risk-Free Rate,description=Annualized rate used by Sharpe and Sortino"`
	TradingDaysPerYear float64 `yaml:"trading_days_per_year" json:"trading_days_per_year" validate:"gt=0" jsonschema:"title=Trading Days Per Year"`

	Costs execution.Model `yaml:"costs" json:"costs"`
	Risk  risk.Policy     `yaml:"risk" json:"risk"`

	Start optional.Option[time.Time] `yaml:"start" json:"start" jsonschema:"title=Start Date,description=Optional start of the simulated range"`
	End   optional.Option[time.Time] `yaml:"end" json:"end" jsonschema:"title=End Date,description=Optional end of the simulated range"`
}

// DefaultConfig returns the configuration the simulator ships with.
func DefaultConfig() Config {
	return Config{
		InitialCapital:       1_000_000,
		MinWarmupBars:        60,
		MaxSinglePositionPct: 0.20,
		ForceLiquidateOnEnd:  false,
		RiskFreeRate:         0,
		TradingDaysPerYear:   252,
		Costs:                execution.DefaultModel(),
		Risk:                 risk.DefaultPolicy(),
	}
}

// UnmarshalYAML implements custom unmarshaling so optional dates can be given
// as plain YAML timestamps. Fields absent from the document keep their
// current values, so unmarshaling into DefaultConfig() applies defaults.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain struct {
		InitialCapital       float64         `yaml:"initial_capital"`
		MinWarmupBars        int             `yaml:"min_warmup_bars"`
		MaxSinglePositionPct float64         `yaml:"max_single_position_pct"`
		ForceLiquidateOnEnd  bool            `yaml:"force_liquidate_on_end"`
		RiskFreeRate         float64         `yaml:"risk_free_rate"`
		TradingDaysPerYear   float64         `yaml:"trading_days_per_year"`
		Costs                execution.Model `yaml:"costs"`
		Risk                 risk.Policy     `yaml:"risk"`
		Start                *time.Time      `yaml:"start"`
		End                  *time.Time      `yaml:"end"`
	}

	p := plain{
		InitialCapital:       c.InitialCapital,
		MinWarmupBars:        c.MinWarmupBars,
		MaxSinglePositionPct: c.MaxSinglePositionPct,
		ForceLiquidateOnEnd:  c.ForceLiquidateOnEnd,
		RiskFreeRate:         c.RiskFreeRate,
		TradingDaysPerYear:   c.TradingDaysPerYear,
		Costs:                c.Costs,
		Risk:                 c.Risk,
	}

	if err := unmarshal(&p); err != nil {
		return err
	}

	c.InitialCapital = p.InitialCapital
	c.MinWarmupBars = p.MinWarmupBars
	c.MaxSinglePositionPct = p.MaxSinglePositionPct
	c.ForceLiquidateOnEnd = p.ForceLiquidateOnEnd
	c.RiskFreeRate = p.RiskFreeRate
	c.TradingDaysPerYear = p.TradingDaysPerYear
	c.Costs = p.Costs
	c.Risk = p.Risk
	if p.Start != nil {
		c.Start = optional.Some(*p.Start)
	}
	if p.End != nil {
		c.End = optional.Some(*p.End)
	}

	return nil
}

// ParseConfig parses a YAML document into a Config, applying defaults for
// absent fields, and validates the result.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the configuration. Validation failures are fatal and never
// retried.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine config", err)
	}

	if err := c.Risk.Validate(); err != nil {
		return err
	}

	if c.Start.IsSome() && c.End.IsSome() {
		start := c.Start.Unwrap()
		end := c.End.Unwrap()
		if start.After(end) {
			return errors.Newf(errors.ErrCodeInvalidDateRange,
				"start %s is after end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
		}
	}

	return nil
}

// GenerateSchema generates a JSON schema for the engine configuration.
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date",
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-engine-config"
	schema.Description = "Configuration schema for the backtest engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON returns the schema as indented JSON.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(data), nil
}
