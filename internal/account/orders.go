package account

import (
	"math"

	"github.com/multibroker/oms/internal/model"
	"github.com/multibroker/oms/internal/tools"
)

const (
	// NFO derivative contracts trade in multiples of 50.
	_nfoLotSize = 50
	_priceTick  = 0.05
	// Limit price buffer around the trigger for stop-limit orders.
	_stopLimitBuffer = 0.01
)

// exitQuantity computes how much of a position a percent-exit covers.
// percent is clamped to [0,1] by absolute value, the result truncates toward
// zero, and NFO quantities are floored to a whole number of lots.
func exitQuantity(p model.Position, percent float64) int {
	percent = math.Min(math.Abs(percent), 1.0)
	quantity := int(math.Abs(float64(p.Quantity)) * percent)
	if p.Exchange == model.ExchangeNFO {
		quantity = tools.FloorToLot(quantity, _nfoLotSize)
	}
	return quantity
}

// ExitOrder builds the market order closing percent of the position.
// Returns nil when the computed quantity is zero: nothing to exit is a
// no-op, not an error.
func ExitOrder(p model.Position, percent float64) *model.OrderRequest {
	quantity := exitQuantity(p, percent)
	if quantity == 0 {
		return nil
	}
	return &model.OrderRequest{
		Symbol:    p.Symbol,
		Exchange:  p.Exchange,
		Product:   p.Product,
		Side:      p.Side(),
		Quantity:  quantity,
		OrderType: model.OrderTypeMarket,
		Validity:  model.ValidityDay,
	}
}

// StopOrder builds the stop-limit order closing percent of the position at
// triggerPrice. The limit price sits 1% beyond the trigger (above it for a
// BUY-side stop closing a short, below it for a SELL-side stop closing a
// long) so the order still fills after the trigger trades through.
func StopOrder(p model.Position, triggerPrice, percent float64) *model.OrderRequest {
	quantity := exitQuantity(p, percent)
	if quantity == 0 {
		return nil
	}

	delta := -1.0
	if p.Side() == model.SideBuy {
		delta = 1.0
	}
	price := tools.RoundToTick(triggerPrice+delta*_stopLimitBuffer*triggerPrice, _priceTick)

	return &model.OrderRequest{
		Symbol:       p.Symbol,
		Exchange:     p.Exchange,
		Product:      p.Product,
		Side:         p.Side(),
		Quantity:     quantity,
		Price:        price,
		TriggerPrice: triggerPrice,
		OrderType:    model.OrderTypeSL,
		Validity:     model.ValidityDay,
	}
}

// TargetOrder builds the limit order closing percent of the position at the
// caller-supplied price.
func TargetOrder(p model.Position, limitPrice, percent float64) *model.OrderRequest {
	quantity := exitQuantity(p, percent)
	if quantity == 0 {
		return nil
	}
	return &model.OrderRequest{
		Symbol:    p.Symbol,
		Exchange:  p.Exchange,
		Product:   p.Product,
		Side:      p.Side(),
		Quantity:  quantity,
		Price:     limitPrice,
		OrderType: model.OrderTypeLimit,
		Validity:  model.ValidityDay,
	}
}
