// Package brokertest provides a configurable in-memory Gateway for tests.
package brokertest

import (
	"context"
	"sync"

	"github.com/multibroker/oms/internal/model"
)

// Fake implements broker.Gateway. Zero value is usable; set the *Result and
// *Err fields to shape responses. All mutating state is mutex-guarded so a
// Fake survives concurrent dispatch tests, even though real gateways are
// only ever driven by their owning account.
type Fake struct {
	ID string

	PositionsResult []model.Position
	PendingResult   []model.PendingOrder
	MTMResult       float64
	PlaceResult     model.OrderResult

	AuthErr      error
	PositionsErr error
	PendingErr   error
	PlaceErr     error
	ModifyErr    error
	CancelErr    error
	MTMErr       error

	// PanicOnPlace makes PlaceOrder panic, for fault-isolation tests.
	PanicOnPlace bool

	mu        sync.Mutex
	Calls     []string
	Placed    []model.OrderRequest
	Modified  []model.Modifications
	Cancelled []model.OrderFilters
	Exited    []string
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.mu.Unlock()
}

// CallOrder returns a copy of the recorded call sequence.
func (f *Fake) CallOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	copy(out, f.Calls)
	return out
}

// PlacedOrders returns a copy of every order request placed so far.
func (f *Fake) PlacedOrders() []model.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.OrderRequest, len(f.Placed))
	copy(out, f.Placed)
	return out
}

func (f *Fake) ClientID() string { return f.ID }

func (f *Fake) Authenticate(context.Context) error {
	f.record("authenticate")
	return f.AuthErr
}

func (f *Fake) Positions(context.Context) ([]model.Position, error) {
	f.record("positions")
	return f.PositionsResult, f.PositionsErr
}

func (f *Fake) PendingOrders(context.Context) ([]model.PendingOrder, error) {
	f.record("pending")
	return f.PendingResult, f.PendingErr
}

func (f *Fake) PlaceOrder(_ context.Context, req model.OrderRequest) (model.OrderResult, error) {
	f.record("place")
	if f.PanicOnPlace {
		panic("venue client lost its mind")
	}
	if f.PlaceErr != nil {
		return model.OrderResult{}, f.PlaceErr
	}
	f.mu.Lock()
	f.Placed = append(f.Placed, req)
	f.mu.Unlock()
	res := f.PlaceResult
	if res.Status == "" {
		res.Status = "success"
	}
	return res, nil
}

func (f *Fake) ModifyOrdersByConditions(_ context.Context, mods model.Modifications, _ model.OrderFilters, _ int) ([]model.OrderResult, error) {
	f.record("modify")
	if f.ModifyErr != nil {
		return nil, f.ModifyErr
	}
	f.mu.Lock()
	f.Modified = append(f.Modified, mods)
	f.mu.Unlock()
	return []model.OrderResult{{Status: "success"}}, nil
}

func (f *Fake) CancelOrdersByConditions(_ context.Context, filters model.OrderFilters, _ int) ([]model.OrderResult, error) {
	f.record("cancel")
	if f.CancelErr != nil {
		return nil, f.CancelErr
	}
	f.mu.Lock()
	f.Cancelled = append(f.Cancelled, filters)
	f.mu.Unlock()
	return []model.OrderResult{{Status: "success"}}, nil
}

func (f *Fake) CancelAllOrders(context.Context) ([]model.OrderResult, error) {
	f.record("cancel_all")
	if f.CancelErr != nil {
		return nil, f.CancelErr
	}
	return []model.OrderResult{{Status: "success"}}, nil
}

func (f *Fake) ExitBracketOrder(_ context.Context, omsOrderID, legOrderIndicator string) (model.OrderResult, error) {
	f.record("exit_bracket")
	f.mu.Lock()
	f.Exited = append(f.Exited, omsOrderID+"/"+legOrderIndicator)
	f.mu.Unlock()
	return model.OrderResult{Status: "success"}, nil
}

func (f *Fake) MTM(context.Context, []model.Position) (float64, error) {
	return f.MTMResult, f.MTMErr
}
