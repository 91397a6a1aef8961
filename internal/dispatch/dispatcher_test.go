package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/multibroker/oms/internal/account"
	"github.com/multibroker/oms/internal/broker/brokertest"
	"github.com/multibroker/oms/internal/config"
	"github.com/multibroker/oms/internal/logger"
	"github.com/multibroker/oms/internal/model"
	"github.com/multibroker/oms/internal/registry"
	"github.com/multibroker/oms/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T, cfgs []config.AccountConfig, fakes []*brokertest.Fake) (*Dispatcher, *registry.Registry) {
	t.Helper()
	require.Equal(t, len(cfgs), len(fakes))

	accounts := make([]*account.Account, 0, len(cfgs))
	for i := range cfgs {
		accounts = append(accounts, account.New(cfgs[i], fakes[i], logger.NewNopLogger()))
	}
	reg := registry.New(accounts)
	return NewDispatcher(reg, 6, 5*time.Second, logger.NewNopLogger()), reg
}

func placeCommand(exchange string, quantity, lotSize int) model.Command {
	return model.Command{
		Kind: model.Place,
		Order: model.OrderRequest{
			Symbol:    "ABC",
			Exchange:  exchange,
			Product:   model.ProductMIS,
			Side:      model.SideBuy,
			Quantity:  quantity,
			OrderType: model.OrderTypeMarket,
			Validity:  model.ValidityDay,
		},
		LotSize: lotSize,
	}
}

func outcomeByClient(r Result, clientID string) (Outcome, bool) {
	for _, o := range r {
		if o.ClientID == clientID {
			return o, true
		}
	}
	return Outcome{}, false
}

func TestDispatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	fakes := []*brokertest.Fake{
		{ID: "A1"},
		{ID: "B2", PlaceErr: errors.New("order rejected")},
		{ID: "C3"},
	}
	cfgs := []config.AccountConfig{
		{ClientID: "A1", Capital: 1, ExcCode: 1},
		{ClientID: "B2", Capital: 1, ExcCode: 1},
		{ClientID: "C3", Capital: 1, ExcCode: 1},
	}
	d, _ := newDispatcher(t, cfgs, fakes)

	result := d.Dispatch(context.Background(), placeCommand(model.ExchangeNSE, 100, 0))
	require.Len(t, result, 3)

	var failures int
	for _, o := range result {
		if o.Err != "" {
			failures++
			assert.Equal(t, "B2", o.ClientID)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestDispatchConfinesPanics(t *testing.T) {
	t.Parallel()

	fakes := []*brokertest.Fake{
		{ID: "A1", PanicOnPlace: true},
		{ID: "B2"},
	}
	cfgs := []config.AccountConfig{
		{ClientID: "A1", Capital: 1, ExcCode: 1},
		{ClientID: "B2", Capital: 1, ExcCode: 1},
	}
	d, _ := newDispatcher(t, cfgs, fakes)

	result := d.Dispatch(context.Background(), placeCommand(model.ExchangeNSE, 100, 0))
	require.Len(t, result, 2)

	panicked, ok := outcomeByClient(result, "A1")
	require.True(t, ok)
	assert.Contains(t, panicked.Err, "panic")

	healthy, ok := outcomeByClient(result, "B2")
	require.True(t, ok)
	assert.Empty(t, healthy.Err)
}

func TestPlaceSkipsDisabledAndWrongSegment(t *testing.T) {
	t.Parallel()

	fakes := []*brokertest.Fake{{ID: "A1"}, {ID: "B2"}, {ID: "C3"}}
	cfgs := []config.AccountConfig{
		{ClientID: "A1", Capital: 1, ExcCode: 3},
		{ClientID: "B2", Capital: 1, ExcCode: 1}, // NSE only
		{ClientID: "C3", Capital: 1, ExcCode: 3},
	}
	d, reg := newDispatcher(t, cfgs, fakes)
	reg.Disable("C3")

	result := d.Dispatch(context.Background(), placeCommand(model.ExchangeNFO, 100, 0))

	// Skips are silent: no entry at all, not a failure.
	require.Len(t, result, 1)
	assert.Equal(t, "A1", result[0].ClientID)
	assert.Empty(t, fakes[1].PlacedOrders())
	assert.Empty(t, fakes[2].PlacedOrders())
}

func TestModifySkipsOnlyDisabled(t *testing.T) {
	t.Parallel()

	fakes := []*brokertest.Fake{{ID: "A1"}, {ID: "B2"}}
	cfgs := []config.AccountConfig{
		{ClientID: "A1", Capital: 1, ExcCode: 1}, // NSE only, but segment must not gate modify
		{ClientID: "B2", Capital: 1, ExcCode: 3},
	}
	d, reg := newDispatcher(t, cfgs, fakes)
	reg.Disable("B2")

	result := d.Dispatch(context.Background(), model.Command{
		Kind:          model.Modify,
		Filters:       model.OrderFilters{Symbol: "ABC", Exchange: model.ExchangeNFO, Status: model.StatusOpen},
		Modifications: model.Modifications{Price: 101.5},
	})

	require.Len(t, result, 1)
	assert.Equal(t, "A1", result[0].ClientID)
	assert.Len(t, fakes[0].Modified, 1)
	assert.Empty(t, fakes[1].Modified)
}

func TestExitRunsOnDisabledAccounts(t *testing.T) {
	t.Parallel()

	pos := []model.Position{{Symbol: "ABC", Exchange: model.ExchangeNSE, Product: model.ProductMIS, Quantity: 100}}
	fakes := []*brokertest.Fake{
		{ID: "A1", PositionsResult: pos},
		{ID: "B2", PositionsResult: pos},
	}
	cfgs := []config.AccountConfig{
		{ClientID: "A1", Capital: 1, ExcCode: 1},
		{ClientID: "B2", Capital: 1, ExcCode: 1},
	}
	d, reg := newDispatcher(t, cfgs, fakes)
	reg.Disable("B2")

	result := d.Dispatch(context.Background(), model.Command{
		Kind:    model.ExitBySymbol,
		Symbol:  "ABC",
		Percent: 1.0,
		Product: model.ProductMIS,
	})

	// Disabling blocks new placement only; risk unwind still reaches B2.
	require.Len(t, result, 2)
	assert.Len(t, fakes[1].PlacedOrders(), 1)
}

func TestExitWithoutPositionYieldsNoOutcome(t *testing.T) {
	t.Parallel()

	fakes := []*brokertest.Fake{
		{ID: "A1", PositionsResult: []model.Position{{Symbol: "ABC", Exchange: model.ExchangeNSE, Product: model.ProductMIS, Quantity: 50}}},
		{ID: "B2"}, // holds nothing
	}
	cfgs := []config.AccountConfig{
		{ClientID: "A1", Capital: 1, ExcCode: 1},
		{ClientID: "B2", Capital: 1, ExcCode: 1},
	}
	d, _ := newDispatcher(t, cfgs, fakes)

	result := d.Dispatch(context.Background(), model.Command{
		Kind:    model.ExitBySymbol,
		Symbol:  "ABC",
		Percent: 1.0,
		Product: model.ProductMIS,
	})

	require.Len(t, result, 1)
	assert.Equal(t, "A1", result[0].ClientID)
}

func TestPlaceQuantityNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		capital  float64
		quantity int
		lotSize  int
		want     int
	}{
		{"default lot rounds up", 1, 130, 0, 150},
		{"default lot rounds down", 1, 120, 0, 100},
		{"capital scales first", 2, 130, 0, 250},
		{"explicit lot", 1, 100, 75, 75},
		{"exact multiple unchanged", 1, 200, 0, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := &brokertest.Fake{ID: "A1"}
			d, _ := newDispatcher(t,
				[]config.AccountConfig{{ClientID: "A1", Capital: tt.capital, ExcCode: 1}},
				[]*brokertest.Fake{fake},
			)

			result := d.Dispatch(context.Background(), placeCommand(model.ExchangeNSE, tt.quantity, tt.lotSize))
			require.Len(t, result, 1)

			placed := fake.PlacedOrders()
			require.Len(t, placed, 1)
			assert.Equal(t, tt.want, placed[0].Quantity)
			assert.NotEmpty(t, placed[0].ClientOrderID)
		})
	}
}

func TestSweepRiskFlattensBreachedAccountOnly(t *testing.T) {
	t.Parallel()

	pos := []model.Position{{Symbol: "ABC", Exchange: model.ExchangeNSE, Product: model.ProductMIS, Quantity: 100}}
	fakes := []*brokertest.Fake{
		{ID: "A1", PositionsResult: pos, MTMResult: 500},
		{ID: "B2", PositionsResult: pos, MTMResult: -20000},
	}
	cfgs := []config.AccountConfig{
		{ClientID: "A1", Capital: 1, ExcCode: 1, Risk: risk.Params{MaxLoss: 10000, TrailAfter: 100, TrailPercent: 0.2, Target: 1e9}},
		{ClientID: "B2", Capital: 1, ExcCode: 1, Risk: risk.Params{MaxLoss: 10000, TrailAfter: 100, TrailPercent: 0.2, Target: 1e9}},
	}
	d, _ := newDispatcher(t, cfgs, fakes)

	result := d.SweepRisk(context.Background())

	require.Len(t, result, 2)
	assert.Empty(t, fakes[0].PlacedOrders())
	require.Len(t, fakes[1].PlacedOrders(), 1)
	assert.Equal(t, model.SideSell, fakes[1].PlacedOrders()[0].Side)
}

func TestMTMSnapshot(t *testing.T) {
	t.Parallel()

	fakes := []*brokertest.Fake{
		{ID: "A1", MTMResult: 1500},
		{ID: "B2", MTMErr: errors.New("venue down")},
	}
	cfgs := []config.AccountConfig{
		{ClientID: "A1", Capital: 1, ExcCode: 1},
		{ClientID: "B2", Capital: 1, ExcCode: 1},
	}
	d, _ := newDispatcher(t, cfgs, fakes)

	// Seed the high-water mark through the outward risk API.
	verdict, err := d.UpdateRisk("A1", 3000)
	require.NoError(t, err)
	assert.False(t, verdict.MustExitAll)

	entries := d.MTM(context.Background())
	require.Len(t, entries, 1)
	assert.Equal(t, "A1", entries[0].ClientID)
	assert.Equal(t, 1500.0, entries[0].MTM)
	assert.Equal(t, 3000.0, entries[0].MaxMTM)
}

func TestUpdateRiskUnknownAccount(t *testing.T) {
	t.Parallel()

	d, _ := newDispatcher(t,
		[]config.AccountConfig{{ClientID: "A1", Capital: 1, ExcCode: 1}},
		[]*brokertest.Fake{{ID: "A1"}},
	)

	_, err := d.UpdateRisk("ZZ", 0)
	assert.Error(t, err)
}

func TestResolvePositionOutwardAPI(t *testing.T) {
	t.Parallel()

	fake := &brokertest.Fake{PositionsResult: []model.Position{
		{Symbol: "ABC", Product: model.ProductNRML, Quantity: -200},
	}}
	d, _ := newDispatcher(t,
		[]config.AccountConfig{{ClientID: "A1", Capital: 1, ExcCode: 1}},
		[]*brokertest.Fake{fake},
	)

	pos, err := d.ResolvePosition(context.Background(), "a1", "abc", model.ProductNRML)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, model.SideBuy, pos.Side())
}
