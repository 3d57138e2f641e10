package types

// Action is the closed set of decisions a strategy can return for a single
// symbol and day.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// TradeSide is the direction of an executed trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

const (
	ReasonStrategy     string = "strategy"
	ReasonStopLoss     string = "stop_loss"
	ReasonTrailingStop string = "trailing_stop"
	ReasonTakeProfit   string = "take_profit"
	ReasonDrawdownStop string = "drawdown_stop"
	ReasonEndOfRange   string = "end_of_range"
)

// Reason records why a trade happened. Risk-forced trades carry the name of
// the check that triggered them.
type Reason struct {
	Reason  string `yaml:"reason" json:"reason" csv:"reason"`
	Message string `yaml:"message" json:"message" csv:"message"`
}
