// Package execution models fills: slippage, commission, sell-side stamp tax
// and lot rounding. It performs no ledger mutation; the engine applies the
// fills it computes.
package execution

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/qveris-lab/quantsim/internal/types"
)

// Model holds the cost parameters of the simulated exchange and broker.
type Model struct {
	// LotSize is the exchange's tradable lot; share counts are floored to a
	// multiple of it.
	LotSize float64 `yaml:"lot_size" json:"lot_size" validate:"gt=0"`
	// MinNotional is the smallest order value accepted; smaller orders are
	// silently dropped, not rejected as errors.
	MinNotional    float64 `yaml:"min_notional" json:"min_notional" validate:"gte=0"`
	SlippageRate   float64 `yaml:"slippage_rate" json:"slippage_rate" validate:"gte=0"`
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" validate:"gte=0"`
	MinCommission  float64 `yaml:"min_commission" json:"min_commission" validate:"gte=0"`
	// StampTaxRate is charged on sells only.
	StampTaxRate float64 `yaml:"stamp_tax_rate" json:"stamp_tax_rate" validate:"gte=0"`
}

// DefaultModel mirrors A-share retail cost assumptions: 100-share lots,
// 0.025% commission with a 5.00 floor, 0.1% sell-side stamp tax, 0.1%
// slippage.
func DefaultModel() Model {
	return Model{
		LotSize:        100,
		MinNotional:    1000,
		SlippageRate:   0.001,
		CommissionRate: 0.00025,
		MinCommission:  5.0,
		StampTaxRate:   0.001,
	}
}

// Fill is the priced outcome of an order.
type Fill struct {
	Shares float64
	// Price is the reference price adjusted for slippage: up for buys, down
	// for sells.
	Price      float64
	Commission float64
	// Tax is the stamp tax. Zero for buys.
	Tax float64
	// Slippage is the total cost of the price adjustment in cash terms.
	Slippage float64
}

// TotalCost returns the cash required for a buy fill.
func (f *Fill) TotalCost() float64 {
	cost, _ := decimal.NewFromFloat(f.Shares).
		Mul(decimal.NewFromFloat(f.Price)).
		Add(decimal.NewFromFloat(f.Commission)).
		Float64()

	return cost
}

// NetProceeds returns the cash received from a sell fill.
func (f *Fill) NetProceeds() float64 {
	proceeds, _ := decimal.NewFromFloat(f.Shares).
		Mul(decimal.NewFromFloat(f.Price)).
		Sub(decimal.NewFromFloat(f.Commission)).
		Sub(decimal.NewFromFloat(f.Tax)).
		Float64()

	return proceeds
}

// RoundToLot floors shares to the tradable lot.
func (m *Model) RoundToLot(shares float64) float64 {
	if m.LotSize <= 0 {
		return math.Floor(shares)
	}

	return math.Floor(shares/m.LotSize) * m.LotSize
}

// ComputeFill prices an order of the given side and share count against the
// reference price. Shares are floored to the lot; a count that rounds to
// zero, or a buy notional below MinNotional, drops the order (ok == false).
// That is a silent skip, never an error. Sells have no notional floor so a
// position can always be flattened.
func (m *Model) ComputeFill(side types.TradeSide, shares, refPrice float64) (Fill, bool) {
	shares = m.RoundToLot(shares)
	if shares <= 0 || refPrice <= 0 {
		return Fill{}, false
	}

	ref := decimal.NewFromFloat(refPrice)
	slip := ref.Mul(decimal.NewFromFloat(m.SlippageRate))

	var price decimal.Decimal
	if side == types.TradeSideBuy {
		price = ref.Add(slip)
	} else {
		price = ref.Sub(slip)
	}

	qty := decimal.NewFromFloat(shares)
	notional := qty.Mul(price)

	if value, _ := notional.Float64(); side == types.TradeSideBuy && value < m.MinNotional {
		return Fill{}, false
	}

	commission := notional.Mul(decimal.NewFromFloat(m.CommissionRate))
	if floor := decimal.NewFromFloat(m.MinCommission); commission.LessThan(floor) {
		commission = floor
	}

	tax := decimal.Zero
	if side == types.TradeSideSell {
		tax = notional.Mul(decimal.NewFromFloat(m.StampTaxRate))
	}

	fillPrice, _ := price.Float64()
	fillCommission, _ := commission.Float64()
	fillTax, _ := tax.Float64()
	fillSlippage, _ := qty.Mul(slip).Float64()

	return Fill{
		Shares:     shares,
		Price:      fillPrice,
		Commission: fillCommission,
		Tax:        fillTax,
		Slippage:   fillSlippage,
	}, true
}

// MaxAffordableShares returns the largest lot-rounded share count whose buy
// fill fits within the available cash. Used for shrink-to-affordable sizing
// when cash cannot cover the desired notional.
func (m *Model) MaxAffordableShares(cash, refPrice float64) float64 {
	if cash <= 0 || refPrice <= 0 {
		return 0
	}

	fillPrice := refPrice * (1 + m.SlippageRate)
	shares := m.RoundToLot(cash / fillPrice)

	// Fees may still push the cost over; step down lot by lot.
	for shares > 0 {
		fill, ok := m.ComputeFill(types.TradeSideBuy, shares, refPrice)
		if ok && fill.TotalCost() <= cash {
			return shares
		}

		shares -= m.LotSize
	}

	return 0
}
