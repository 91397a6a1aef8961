package broker

import (
	"context"

	"github.com/multibroker/oms/internal/model"
)

// Gateway is the per-account capability against a remote venue. Each account
// owns exactly one Gateway; implementations need not be safe for use by more
// than one account. The core depends only on this interface, one
// implementation exists per venue.
type Gateway interface {
	ClientID() string

	Authenticate(ctx context.Context) error

	Positions(ctx context.Context) ([]model.Position, error)
	PendingOrders(ctx context.Context) ([]model.PendingOrder, error)

	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResult, error)

	// ModifyOrdersByConditions applies mods to every pending order matching
	// filters. n > 0 limits the count of orders touched.
	ModifyOrdersByConditions(ctx context.Context, mods model.Modifications, filters model.OrderFilters, n int) ([]model.OrderResult, error)
	CancelOrdersByConditions(ctx context.Context, filters model.OrderFilters, n int) ([]model.OrderResult, error)
	CancelAllOrders(ctx context.Context) ([]model.OrderResult, error)

	// ExitBracketOrder squares off one leg of a bracket order.
	ExitBracketOrder(ctx context.Context, omsOrderID, legOrderIndicator string) (model.OrderResult, error)

	// MTM computes mark-to-market over the given positions, fetching them
	// from the venue when positions is nil.
	MTM(ctx context.Context, positions []model.Position) (float64, error)
}
