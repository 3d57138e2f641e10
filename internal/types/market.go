package types

import (
	"time"
)

// Bar is a single OHLCV bar for one symbol and one trading day.
// Bars are immutable once produced by a data source.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Date   time.Time `yaml:"date" json:"date" csv:"date"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// IndicatorSnapshot is a named-field view of the indicator values a bundled
// strategy derived from its window. Strategies expose it for logging and
// debugging instead of loose key-value payloads.
type IndicatorSnapshot struct {
	FastMA   float64 `yaml:"fast_ma" json:"fast_ma"`
	SlowMA   float64 `yaml:"slow_ma" json:"slow_ma"`
	Momentum float64 `yaml:"momentum" json:"momentum"`
}
