package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multibroker/oms/internal/model"
)

func TestBuildReport_BreakEven(t *testing.T) {
	t.Parallel()

	positions := []model.Position{
		{Symbol: "NIFTY24SEP22500CE", Quantity: 100, NetAmount: -12550, LTP: 130},
		{Symbol: "nifty24sep22500ce", Quantity: 50, NetAmount: -6300, LTP: 131},
	}

	rows := BuildReport(positions, nil)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "NIFTY24SEP22500CE", row.Symbol)
	assert.Equal(t, 150, row.Quantity)
	// (-12550 + -6300) / 150 = -125.67, reported as magnitude.
	assert.InDelta(t, 125.67, row.BEP, 1e-9)
	assert.InDelta(t, 131, row.LTP, 1e-9)
}

func TestBuildReport_FlatSymbolHasZeroBEP(t *testing.T) {
	t.Parallel()

	positions := []model.Position{
		{Symbol: "BANKNIFTY24SEP48000PE", Quantity: 25, NetAmount: -5000, LTP: 210},
		{Symbol: "BANKNIFTY24SEP48000PE", Quantity: -25, NetAmount: 5500, LTP: 210},
	}

	rows := BuildReport(positions, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].Quantity)
	assert.Zero(t, rows[0].BEP)
}

func TestBuildReport_PendingWeightedByTriggerThenPrice(t *testing.T) {
	t.Parallel()

	pending := []model.PendingOrder{
		{Symbol: "NIFTY24SEP22500CE", OrderType: model.OrderTypeSL, Quantity: 100, Price: 99, TriggerPrice: 100},
		{Symbol: "NIFTY24SEP22500CE", OrderType: model.OrderTypeSL, Quantity: 100, Price: 109, TriggerPrice: 110},
		{Symbol: "NIFTY24SEP22500CE", OrderType: model.OrderTypeLimit, Quantity: 50, Price: 150},
	}

	rows := BuildReport(nil, pending)
	require.Len(t, rows, 1)

	row := rows[0]
	// Stops weight on trigger: (100*100 + 110*100) / 200.
	assert.InDelta(t, 105, row.StopPrice, 1e-9)
	// Limits carry no trigger, so the limit price is used.
	assert.InDelta(t, 150, row.LimitPrice, 1e-9)
}

func TestBuildReport_SortedBySymbol(t *testing.T) {
	t.Parallel()

	positions := []model.Position{
		{Symbol: "ZEEL", Quantity: 10, NetAmount: -1000, LTP: 100},
		{Symbol: "ACC", Quantity: 5, NetAmount: -500, LTP: 100},
	}

	rows := BuildReport(positions, nil)
	require.Len(t, rows, 2)
	assert.Equal(t, "ACC", rows[0].Symbol)
	assert.Equal(t, "ZEEL", rows[1].Symbol)
}
