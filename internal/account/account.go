package account

import (
	"context"
	"strings"

	"github.com/multibroker/oms/internal/broker"
	"github.com/multibroker/oms/internal/config"
	"github.com/multibroker/oms/internal/logger"
	"github.com/multibroker/oms/internal/model"
	"github.com/multibroker/oms/internal/risk"
)

var _exchangeSegments = map[int][]string{
	1: {model.ExchangeNSE},
	2: {model.ExchangeNFO},
	3: {model.ExchangeNSE, model.ExchangeNFO},
}

// Account couples one authenticated broker gateway with its capital
// multiplier, allowed segments and risk state. Gateway and risk state are
// exclusively owned: no two accounts share either, so account-local
// operations need no locking beyond what the risk state does itself.
type Account struct {
	clientID string
	capital  float64
	segments []string

	gateway broker.Gateway
	risk    *risk.State
	logger  logger.Logger
}

func New(cfg config.AccountConfig, gw broker.Gateway, log logger.Logger) *Account {
	segments, ok := _exchangeSegments[cfg.ExcCode]
	if !ok {
		segments = _exchangeSegments[1]
	}

	clientID := strings.ToUpper(cfg.ClientID)
	return &Account{
		clientID: clientID,
		capital:  cfg.Capital,
		segments: segments,
		gateway:  gw,
		risk:     risk.NewState(cfg.Risk),
		logger:   log.With("client_id", clientID),
	}
}

func (a *Account) ClientID() string { return a.clientID }

func (a *Account) Gateway() broker.Gateway { return a.gateway }

func (a *Account) Risk() *risk.State { return a.risk }

func (a *Account) SegmentAllowed(exchange string) bool {
	for _, s := range a.segments {
		if s == exchange {
			return true
		}
	}
	return false
}

// Quantity scales a requested quantity by the account's capital multiplier.
func (a *Account) Quantity(quantity int) int {
	return int(a.capital * float64(quantity))
}

// ResolvePosition finds the open position matching symbol and product.
// Symbol matching is case-insensitive. No match returns (nil, nil): callers
// treat a missing position as a no-op. At most one position is expected per
// (symbol, product) pair; more than one is a venue data anomaly, which is
// logged, and the first one is used.
func (a *Account) ResolvePosition(ctx context.Context, symbol, product string) (*model.Position, error) {
	positions, err := a.gateway.Positions(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]model.Position, 0, 1)
	for _, p := range positions {
		if strings.EqualFold(p.Symbol, symbol) && p.Product == product {
			matched = append(matched, p)
		}
	}

	if len(matched) == 0 {
		a.logger.Debugf("no %s positions for %s", product, symbol)
		return nil, nil
	}
	if len(matched) > 1 {
		a.logger.Warnf("data anomaly: %d positions matched %s/%s, using first", len(matched), symbol, product)
	}
	return &matched[0], nil
}

// ExitPositionBySymbol closes percent of the matching position at market.
func (a *Account) ExitPositionBySymbol(ctx context.Context, symbol string, percent float64, product string) (*model.OrderResult, error) {
	pos, err := a.ResolvePosition(ctx, symbol, product)
	if err != nil || pos == nil {
		return nil, err
	}

	req := ExitOrder(*pos, percent)
	if req == nil {
		a.logger.Infof("nothing to exit for %s, position quantity is zero", symbol)
		return nil, nil
	}

	return a.placeOrder(ctx, *req)
}

// StopForPositionBySymbol posts a stop-limit exit for the matching position.
func (a *Account) StopForPositionBySymbol(ctx context.Context, symbol string, triggerPrice, percent float64, product string) (*model.OrderResult, error) {
	pos, err := a.ResolvePosition(ctx, symbol, product)
	if err != nil || pos == nil {
		return nil, err
	}

	req := StopOrder(*pos, triggerPrice, percent)
	if req == nil {
		a.logger.Infof("nothing to stop for %s, position quantity is zero", symbol)
		return nil, nil
	}

	return a.placeOrder(ctx, *req)
}

// TargetForPositionBySymbol posts a limit exit for the matching position.
func (a *Account) TargetForPositionBySymbol(ctx context.Context, symbol string, limitPrice, percent float64, product string) (*model.OrderResult, error) {
	pos, err := a.ResolvePosition(ctx, symbol, product)
	if err != nil || pos == nil {
		return nil, err
	}

	req := TargetOrder(*pos, limitPrice, percent)
	if req == nil {
		a.logger.Infof("nothing to target for %s, position quantity is zero", symbol)
		return nil, nil
	}

	return a.placeOrder(ctx, *req)
}

func (a *Account) placeOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	res, err := a.gateway.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	res.ClientID = a.clientID
	return &res, nil
}

// ExitBracketBySymbol squares off the open bracket-order legs for symbol.
// firstOnly limits the square-off to the first matching leg.
func (a *Account) ExitBracketBySymbol(ctx context.Context, symbol string, firstOnly bool) ([]model.OrderResult, error) {
	orders, err := a.gateway.PendingOrders(ctx)
	if err != nil {
		return nil, err
	}

	filter := model.OrderFilters{Symbol: symbol, Product: model.ProductBracket, Status: model.StatusOpen}
	results := make([]model.OrderResult, 0)
	for _, o := range orders {
		if !filter.Match(o) {
			continue
		}
		res, err := a.gateway.ExitBracketOrder(ctx, o.OMSOrderID, o.LegOrderIndicator)
		if err != nil {
			a.logger.Errorf("%s: can't exit bracket order %s", err, o.OMSOrderID)
			continue
		}
		res.ClientID = a.clientID
		results = append(results, res)
		if firstOnly {
			break
		}
	}
	return results, nil
}

// ExitAllBracketOrders squares off every open bracket-order leg. Failures on
// individual legs are logged and skipped.
func (a *Account) ExitAllBracketOrders(ctx context.Context) {
	orders, err := a.gateway.PendingOrders(ctx)
	if err != nil {
		a.logger.Errorf("%s: can't fetch pending orders", err)
		return
	}

	filter := model.OrderFilters{Product: model.ProductBracket, Status: model.StatusOpen}
	for _, o := range orders {
		if !filter.Match(o) {
			continue
		}
		if _, err := a.gateway.ExitBracketOrder(ctx, o.OMSOrderID, o.LegOrderIndicator); err != nil {
			a.logger.Errorf("%s: can't exit bracket order %s", err, o.OMSOrderID)
		}
	}
}

// ExitAllPositions flattens every open position at market.
func (a *Account) ExitAllPositions(ctx context.Context) []model.OrderResult {
	positions, err := a.gateway.Positions(ctx)
	if err != nil {
		a.logger.Errorf("%s: can't fetch positions", err)
		return nil
	}

	results := make([]model.OrderResult, 0, len(positions))
	for _, p := range positions {
		req := ExitOrder(p, 1.0)
		if req == nil {
			continue
		}
		res, err := a.placeOrder(ctx, *req)
		if err != nil {
			a.logger.Errorf("%s: can't flatten %s", err, p.Symbol)
			continue
		}
		results = append(results, *res)
	}
	return results
}

// EnforceRisk runs the forced-flatten sequence after a MustExitAll verdict:
// square off bracket legs and cancel the remaining pending orders first,
// then flatten open positions. An unresolved pending order can re-open a
// position after a flatten, so cancel always precedes flatten. Every step is
// best effort; failures are logged and left for the next polling cycle.
func (a *Account) EnforceRisk(ctx context.Context) {
	pending, err := a.gateway.PendingOrders(ctx)
	if err != nil {
		a.logger.Errorf("%s: can't fetch pending orders for risk exit", err)
	}
	if len(pending) > 0 {
		a.logger.Warnf("risk exit triggered, squaring off %d pending orders", len(pending))
		a.ExitAllBracketOrders(ctx)
		if _, err := a.gateway.CancelOrdersByConditions(ctx, model.OrderFilters{}, 0); err != nil {
			a.logger.Errorf("%s: can't cancel pending orders", err)
		}
	} else {
		a.logger.Infof("risk exit triggered, no pending orders to cancel")
	}
	a.ExitAllPositions(ctx)
}

// Sweep fetches positions, updates the risk state from their mark-to-market
// and enforces the verdict. Returns the fetched positions for aggregation.
func (a *Account) Sweep(ctx context.Context) ([]model.Position, error) {
	positions, err := a.gateway.Positions(ctx)
	if err != nil {
		return nil, err
	}

	mtm, err := a.gateway.MTM(ctx, positions)
	if err != nil {
		return positions, err
	}

	verdict := a.risk.Update(mtm)
	_, maxMTM := a.risk.Snapshot()
	a.logger.Infof("mtm=%.2f max_mtm=%.2f trailing=%v", mtm, maxMTM, verdict.IsTrailing)

	if verdict.MustExitAll {
		a.EnforceRisk(ctx)
	}
	return positions, nil
}
