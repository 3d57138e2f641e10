package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents the current holding of a single symbol. A position is
// created on the first buy, its average cost is recomputed on adds, and it is
// destroyed when shares reach zero.
type Position struct {
	Symbol string  `yaml:"symbol" json:"symbol" csv:"symbol"`
	Shares float64 `yaml:"shares" json:"shares" csv:"shares"`
	// AvgCost is the weighted-average entry price across all buys.
	AvgCost float64 `yaml:"avg_cost" json:"avg_cost" csv:"avg_cost"`
	// OpenDate is the date of the first buy that created this position.
	OpenDate time.Time `yaml:"open_date" json:"open_date" csv:"open_date"`
	// LastBuyDate is the date of the most recent buy. Under T+1 settlement a
	// sell is only allowed strictly after this date.
	LastBuyDate time.Time `yaml:"last_buy_date" json:"last_buy_date" csv:"last_buy_date"`
	// HighestPrice is the highest mark price observed since the position was
	// opened. Trailing-stop checks are evaluated against it.
	HighestPrice float64 `yaml:"highest_price" json:"highest_price" csv:"highest_price"`
}

// MarketValue returns the position value marked at the given price.
func (p *Position) MarketValue(price float64) float64 {
	value, _ := decimal.NewFromFloat(p.Shares).Mul(decimal.NewFromFloat(price)).Float64()

	return value
}

// UnrealizedPnL returns the open profit or loss marked at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	entry := decimal.NewFromFloat(p.Shares).Mul(decimal.NewFromFloat(p.AvgCost))
	mark := decimal.NewFromFloat(p.Shares).Mul(decimal.NewFromFloat(price))
	pnl, _ := mark.Sub(entry).Float64()

	return pnl
}

// ReturnPct returns the fractional return relative to average cost.
func (p *Position) ReturnPct(price float64) float64 {
	if p.AvgCost <= 0 {
		return 0
	}

	return (price - p.AvgCost) / p.AvgCost
}
