package types

import (
	"time"
)

// Trade is an executed fill. Trades are immutable once written to the ledger.
type Trade struct {
	ID     string    `yaml:"id" json:"id" csv:"id"`
	Date   time.Time `yaml:"date" json:"date" csv:"date"`
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side   TradeSide `yaml:"side" json:"side" csv:"side"`
	Shares float64   `yaml:"shares" json:"shares" csv:"shares"`
	// Price is the fill price after slippage.
	Price      float64 `yaml:"price" json:"price" csv:"price"`
	Commission float64 `yaml:"commission" json:"commission" csv:"commission"`
	// Tax is the stamp tax, charged on sells only.
	Tax      float64 `yaml:"tax" json:"tax" csv:"tax"`
	Slippage float64 `yaml:"slippage" json:"slippage" csv:"slippage"`
	// RealizedPnL is (price - avg_cost) * shares - commission - tax.
	// Zero for buys.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl" csv:"realized_pnl"`
	Reason      Reason  `yaml:"reason" json:"reason" csv:"reason"`
}

// Notional returns shares * fill price.
func (t *Trade) Notional() float64 {
	return t.Shares * t.Price
}
