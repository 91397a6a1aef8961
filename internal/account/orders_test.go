package account

import (
	"testing"

	"github.com/multibroker/oms/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitOrderClampsPercent(t *testing.T) {
	t.Parallel()

	pos := model.Position{Symbol: "ABC", Exchange: model.ExchangeNSE, Product: model.ProductMIS, Quantity: 300}

	full := ExitOrder(pos, 1.0)
	over := ExitOrder(pos, 1.5)
	negative := ExitOrder(pos, -1.0)

	require.NotNil(t, full)
	require.NotNil(t, over)
	require.NotNil(t, negative)
	assert.Equal(t, full.Quantity, over.Quantity)
	assert.Equal(t, full.Quantity, negative.Quantity)
	assert.Equal(t, 300, full.Quantity)
}

func TestExitOrderZeroQuantityIsNoop(t *testing.T) {
	t.Parallel()

	pos := model.Position{Symbol: "ABC", Exchange: model.ExchangeNSE, Product: model.ProductMIS, Quantity: 0}

	assert.Nil(t, ExitOrder(pos, 1.0))
	assert.Nil(t, StopOrder(pos, 100, 1.0))
	assert.Nil(t, TargetOrder(pos, 100, 1.0))
}

func TestExitOrderClosesShortPosition(t *testing.T) {
	t.Parallel()

	pos := model.Position{Symbol: "ABC", Exchange: model.ExchangeNFO, Product: model.ProductNRML, Quantity: -200}

	req := ExitOrder(pos, 0.5)
	require.NotNil(t, req)
	assert.Equal(t, model.SideBuy, req.Side)
	assert.Equal(t, 100, req.Quantity)
	assert.Equal(t, model.OrderTypeMarket, req.OrderType)
	assert.Equal(t, model.ValidityDay, req.Validity)
	assert.Equal(t, model.ProductNRML, req.Product)
}

func TestNFOQuantityFlooredToLot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		quantity int
		percent  float64
		want     int
	}{
		{"exact lots", 200, 1.0, 200},
		{"partial floors down", 175, 1.0, 150},
		{"half of odd count", 150, 0.5, 50},
		{"below one lot is noop", 40, 1.0, 0},
		{"short partial", -280, 0.5, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pos := model.Position{Symbol: "ABC", Exchange: model.ExchangeNFO, Product: model.ProductNRML, Quantity: tt.quantity}
			req := ExitOrder(pos, tt.percent)
			if tt.want == 0 {
				assert.Nil(t, req)
				return
			}
			require.NotNil(t, req)
			assert.Equal(t, tt.want, req.Quantity)
			assert.Zero(t, req.Quantity%50)
		})
	}
}

func TestNSEQuantityNotLotFloored(t *testing.T) {
	t.Parallel()

	pos := model.Position{Symbol: "ABC", Exchange: model.ExchangeNSE, Product: model.ProductMIS, Quantity: 175}
	req := ExitOrder(pos, 1.0)
	require.NotNil(t, req)
	assert.Equal(t, 175, req.Quantity)
}

func TestStopOrderLimitPrice(t *testing.T) {
	t.Parallel()

	short := model.Position{Symbol: "ABC", Exchange: model.ExchangeNSE, Product: model.ProductNRML, Quantity: -100}
	long := model.Position{Symbol: "ABC", Exchange: model.ExchangeNSE, Product: model.ProductNRML, Quantity: 100}

	// BUY-side stop closing a short sits 1% above the trigger.
	buyStop := StopOrder(short, 100, 1.0)
	require.NotNil(t, buyStop)
	assert.Equal(t, model.SideBuy, buyStop.Side)
	assert.InDelta(t, 101.0, buyStop.Price, 1e-9)
	assert.InDelta(t, 100.0, buyStop.TriggerPrice, 1e-9)
	assert.Equal(t, model.OrderTypeSL, buyStop.OrderType)

	// SELL-side stop closing a long sits 1% below.
	sellStop := StopOrder(long, 100, 1.0)
	require.NotNil(t, sellStop)
	assert.Equal(t, model.SideSell, sellStop.Side)
	assert.InDelta(t, 99.0, sellStop.Price, 1e-9)
}

func TestStopOrderPriceSnapsToTick(t *testing.T) {
	t.Parallel()

	long := model.Position{Symbol: "ABC", Exchange: model.ExchangeNSE, Product: model.ProductNRML, Quantity: 100}
	req := StopOrder(long, 123.45, 1.0)
	require.NotNil(t, req)
	// 123.45 * 0.99 = 122.2155, nearest 0.05 tick is 122.20.
	assert.InDelta(t, 122.20, req.Price, 1e-9)
}

func TestTargetOrderUsesCallerPrice(t *testing.T) {
	t.Parallel()

	long := model.Position{Symbol: "ABC", Exchange: model.ExchangeNSE, Product: model.ProductNRML, Quantity: 100}
	req := TargetOrder(long, 137.35, 0.5)
	require.NotNil(t, req)
	assert.Equal(t, model.OrderTypeLimit, req.OrderType)
	assert.InDelta(t, 137.35, req.Price, 1e-9)
	assert.Equal(t, 50, req.Quantity)
	assert.Equal(t, model.SideSell, req.Side)
}
