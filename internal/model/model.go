package model

import "strings"

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	ProductMIS     = "MIS"
	ProductNRML    = "NRML"
	ProductBracket = "BO"

	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
	OrderTypeSL     = "SL"

	ValidityDay = "DAY"

	ExchangeNSE = "NSE"
	ExchangeNFO = "NFO"

	StatusOpen           = "open"
	StatusTriggerPending = "trigger pending"
)

// Position is a venue-reported open position. It is never owned by this
// service: positions are read through the broker gateway on every query and
// never cached across dispatch cycles.
type Position struct {
	Symbol           string  `json:"symbol" db:"symbol"`
	Exchange         string  `json:"exchange" db:"exchange"`
	Product          string  `json:"product" db:"product"`
	Quantity         int     `json:"quantity" db:"quantity"`
	AverageBuyPrice  float64 `json:"average_buy_price" db:"average_buy_price"`
	AverageSellPrice float64 `json:"average_sell_price" db:"average_sell_price"`
	BuyValue         float64 `json:"buy_value" db:"buy_value"`
	SellValue        float64 `json:"sell_value" db:"sell_value"`
	NetAmount        float64 `json:"net_amount" db:"net_amount"`
	LTP              float64 `json:"ltp" db:"ltp"`
}

// Side is the side that closes this position: a short position (negative
// quantity) is closed by a BUY, a long one by a SELL. The sign convention is
// load-bearing for every exit, stop and target computation downstream.
func (p Position) Side() string {
	if p.Quantity < 0 {
		return SideBuy
	}
	return SideSell
}

type PendingOrder struct {
	OMSOrderID        string  `json:"oms_order_id" db:"oms_order_id"`
	LegOrderIndicator string  `json:"leg_order_indicator" db:"leg_order_indicator"`
	Symbol            string  `json:"symbol" db:"symbol"`
	Exchange          string  `json:"exchange" db:"exchange"`
	Product           string  `json:"product" db:"product"`
	Side              string  `json:"side" db:"side"`
	Status            string  `json:"status" db:"status"`
	OrderType         string  `json:"order_type" db:"order_type"`
	Quantity          int     `json:"quantity" db:"quantity"`
	Price             float64 `json:"price" db:"price"`
	TriggerPrice      float64 `json:"trigger_price" db:"trigger_price"`
}

type OrderRequest struct {
	Symbol        string  `json:"symbol"`
	Exchange      string  `json:"exchange"`
	Product       string  `json:"product"`
	Side          string  `json:"side"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price,omitempty"`
	TriggerPrice  float64 `json:"trigger_price,omitempty"`
	OrderType     string  `json:"order_type"`
	Validity      string  `json:"validity"`
	ClientOrderID string  `json:"client_order_id,omitempty"`
	// Bracket legs, used only when Product is BO.
	SquareOffValue float64 `json:"square_off_value,omitempty"`
	StopLossValue  float64 `json:"stop_loss_value,omitempty"`
	TrailingTicks  float64 `json:"trailing_stop_loss,omitempty"`
}

type OrderResult struct {
	ClientID   string `json:"client_id,omitempty"`
	OMSOrderID string `json:"oms_order_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Modifications is the set of mutable fields applied to pending orders
// matched by a filter. Zero values mean "leave unchanged", except Price
// which the venue always expects.
type Modifications struct {
	Quantity     int     `json:"quantity,omitempty"`
	Price        float64 `json:"price"`
	TriggerPrice float64 `json:"trigger_price,omitempty"`
}

// OrderFilters select pending orders by attribute. Empty fields match
// everything; symbol comparison is case-insensitive.
type OrderFilters struct {
	Symbol    string `json:"symbol,omitempty"`
	Exchange  string `json:"exchange,omitempty"`
	Product   string `json:"product,omitempty"`
	Side      string `json:"side,omitempty"`
	Status    string `json:"status,omitempty"`
	OrderType string `json:"order_type,omitempty"`
}

func (f OrderFilters) Match(o PendingOrder) bool {
	if f.Symbol != "" && !strings.EqualFold(f.Symbol, o.Symbol) {
		return false
	}
	if f.Exchange != "" && f.Exchange != o.Exchange {
		return false
	}
	if f.Product != "" && f.Product != o.Product {
		return false
	}
	if f.Side != "" && f.Side != o.Side {
		return false
	}
	if f.Status != "" && f.Status != o.Status {
		return false
	}
	if f.OrderType != "" && f.OrderType != o.OrderType {
		return false
	}
	return true
}

// MTMEntry is one row of the per-account mark-to-market snapshot.
type MTMEntry struct {
	ClientID string  `json:"client_id" db:"client_id"`
	MTM      float64 `json:"mtm" db:"mtm"`
	MaxMTM   float64 `json:"max_mtm" db:"max_mtm"`
}
