package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/multibroker/oms/internal/account"
	"github.com/multibroker/oms/internal/logger"
	"github.com/multibroker/oms/internal/model"
	"github.com/multibroker/oms/internal/registry"
	"github.com/multibroker/oms/internal/risk"
	"github.com/multibroker/oms/internal/tools"
)

const (
	_lotSizeDefault     = 50
	_taskTimeoutDefault = 30 * time.Second
	_orderIDPrefix      = "oms-"
)

// Outcome is one account's result of a dispatched command. Either Response
// or Err is set, never both.
type Outcome struct {
	ClientID string `json:"client_id"`
	Response any    `json:"response,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Result aggregates per-account outcomes. Order carries no meaning: tasks
// complete in whatever order the venue answers. Accounts skipped by the
// eligibility filter have no entry at all, and so do clean no-ops such as
// exiting a symbol an account holds no position in.
type Result []Outcome

type task func(ctx context.Context, acc *account.Account) (any, error)

// Dispatcher fans a command out to every eligible account concurrently.
// One account's failure, error or panic alike, never aborts another
// account's task and never escalates out of Dispatch: it is captured in
// that account's outcome. Broker call failures are not retried.
type Dispatcher struct {
	registry *registry.Registry
	logger   logger.Logger

	// orderWorkers bounds in-flight tasks for order placement, the
	// highest-traffic command. Everything else runs one worker per account.
	orderWorkers int
	taskTimeout  time.Duration
}

func NewDispatcher(reg *registry.Registry, orderWorkers int, taskTimeout time.Duration, log logger.Logger) *Dispatcher {
	if taskTimeout <= 0 {
		taskTimeout = _taskTimeoutDefault
	}
	return &Dispatcher{
		registry:     reg,
		logger:       log,
		orderWorkers: orderWorkers,
		taskTimeout:  taskTimeout,
	}
}

// Dispatch executes cmd against every eligible account and returns the
// aggregated result. It never returns an error: failures stay local to the
// account that produced them.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd model.Command) Result {
	switch cmd.Kind {
	case model.Place:
		return d.fanOut(ctx, d.eligibleForPlace(cmd.Order.Exchange), d.orderWorkers, d.placeTask(cmd))
	case model.PlaceBracket:
		return d.fanOut(ctx, d.enabled(), 0, d.placeBracketTask(cmd))
	case model.Modify:
		return d.fanOut(ctx, d.enabled(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
			return acc.Gateway().ModifyOrdersByConditions(ctx, cmd.Modifications, cmd.Filters, cmd.N)
		})
	case model.Cancel:
		return d.fanOut(ctx, d.enabled(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
			return acc.Gateway().CancelOrdersByConditions(ctx, cmd.Filters, cmd.N)
		})
	case model.ExitBySymbol:
		// Exit, stop and target sweeps unwind risk, so the disabled flag
		// does not gate them: disabling only blocks new placement.
		return d.fanOut(ctx, d.registry.Accounts(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
			return orMissing(acc.ExitPositionBySymbol(ctx, cmd.Symbol, cmd.Percent, cmd.Product))
		})
	case model.StopBySymbol:
		return d.fanOut(ctx, d.registry.Accounts(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
			return orMissing(acc.StopForPositionBySymbol(ctx, cmd.Symbol, cmd.TriggerPrice, cmd.Percent, cmd.Product))
		})
	case model.TargetBySymbol:
		return d.fanOut(ctx, d.registry.Accounts(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
			return orMissing(acc.TargetForPositionBySymbol(ctx, cmd.Symbol, cmd.LimitPrice, cmd.Percent, cmd.Product))
		})
	case model.ExitBracket:
		return d.fanOut(ctx, d.registry.Accounts(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
			results, err := acc.ExitBracketBySymbol(ctx, cmd.Symbol, cmd.First)
			if err != nil || len(results) == 0 {
				return nil, err
			}
			return results, nil
		})
	}

	d.logger.Errorf("unknown command kind %d", cmd.Kind)
	return Result{}
}

func (d *Dispatcher) placeTask(cmd model.Command) task {
	lot := cmd.LotSize
	if lot <= 0 {
		lot = _lotSizeDefault
	}
	return func(ctx context.Context, acc *account.Account) (any, error) {
		req := cmd.Order
		// round half away from zero, then snap to the lot multiple
		req.Quantity = tools.RoundToLot(acc.Quantity(cmd.Order.Quantity), lot)
		req.ClientOrderID = _orderIDPrefix + uuid.NewString()

		res, err := acc.Gateway().PlaceOrder(ctx, req)
		if err != nil {
			return nil, err
		}
		res.ClientID = acc.ClientID()
		return res, nil
	}
}

func (d *Dispatcher) placeBracketTask(cmd model.Command) task {
	return func(ctx context.Context, acc *account.Account) (any, error) {
		req := cmd.Order
		req.Product = model.ProductBracket
		req.Quantity = acc.Quantity(cmd.Order.Quantity)
		req.ClientOrderID = _orderIDPrefix + uuid.NewString()

		res, err := acc.Gateway().PlaceOrder(ctx, req)
		if err != nil {
			return nil, err
		}
		res.ClientID = acc.ClientID()
		return res, nil
	}
}

// orMissing turns the typed nil of a clean no-op into an untyped one so the
// fan-out drops the outcome instead of reporting a nil response.
func orMissing(res *model.OrderResult, err error) (any, error) {
	if err != nil || res == nil {
		return nil, err
	}
	return res, nil
}

// fanOut runs fn once per account with at most limit tasks in flight
// (limit <= 0 means one per account). The only synchronization point is the
// barrier waiting for every submitted task; per-task timeouts keep that
// barrier from hanging on a stuck venue call.
func (d *Dispatcher) fanOut(ctx context.Context, accounts []*account.Account, limit int, fn task) Result {
	if len(accounts) == 0 {
		return Result{}
	}
	if limit <= 0 || limit > len(accounts) {
		limit = len(accounts)
	}

	sem := make(chan struct{}, limit)
	outcomes := make(chan Outcome, len(accounts))

	var wg sync.WaitGroup
	for _, acc := range accounts {
		wg.Add(1)
		go func(acc *account.Account) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			taskCtx, cancel := context.WithTimeout(ctx, d.taskTimeout)
			defer cancel()

			resp, err := runTask(taskCtx, acc, fn)
			if err != nil {
				d.logger.Errorf("%s: dispatch failed for %s", err, acc.ClientID())
				outcomes <- Outcome{ClientID: acc.ClientID(), Err: err.Error()}
				return
			}
			if resp == nil {
				return
			}
			outcomes <- Outcome{ClientID: acc.ClientID(), Response: resp}
		}(acc)
	}
	wg.Wait()
	close(outcomes)

	result := make(Result, 0, len(accounts))
	for o := range outcomes {
		result = append(result, o)
	}
	return result
}

// runTask confines a panic to the task that raised it.
func runTask(ctx context.Context, acc *account.Account, fn task) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn(ctx, acc)
}

func (d *Dispatcher) eligibleForPlace(exchange string) []*account.Account {
	eligible := make([]*account.Account, 0)
	for _, acc := range d.registry.Accounts() {
		if d.registry.IsDisabled(acc.ClientID()) {
			continue
		}
		if !acc.SegmentAllowed(exchange) {
			d.logger.Infof("segment %s not allowed for %s, skipping", exchange, acc.ClientID())
			continue
		}
		eligible = append(eligible, acc)
	}
	return eligible
}

func (d *Dispatcher) enabled() []*account.Account {
	eligible := make([]*account.Account, 0)
	for _, acc := range d.registry.Accounts() {
		if d.registry.IsDisabled(acc.ClientID()) {
			continue
		}
		eligible = append(eligible, acc)
	}
	return eligible
}

// Positions fetches every account's open positions concurrently.
func (d *Dispatcher) Positions(ctx context.Context) Result {
	return d.fanOut(ctx, d.registry.Accounts(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
		positions, err := acc.Gateway().Positions(ctx)
		if err != nil || len(positions) == 0 {
			return nil, err
		}
		return positions, nil
	})
}

// PendingOrders fetches every account's pending orders concurrently.
func (d *Dispatcher) PendingOrders(ctx context.Context) Result {
	return d.fanOut(ctx, d.registry.Accounts(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
		orders, err := acc.Gateway().PendingOrders(ctx)
		if err != nil || len(orders) == 0 {
			return nil, err
		}
		return orders, nil
	})
}

// MTM collects the current and high-water mark-to-market per account.
// Accounts whose gateway fails are logged and left out of the snapshot.
func (d *Dispatcher) MTM(ctx context.Context) []model.MTMEntry {
	entries := make([]model.MTMEntry, 0, len(d.registry.Accounts()))
	for _, acc := range d.registry.Accounts() {
		mtm, err := acc.Gateway().MTM(ctx, nil)
		if err != nil {
			d.logger.Errorf("%s: can't compute mtm for %s", err, acc.ClientID())
			continue
		}
		_, maxMTM := acc.Risk().Snapshot()
		entries = append(entries, model.MTMEntry{ClientID: acc.ClientID(), MTM: mtm, MaxMTM: maxMTM})
	}
	return entries
}

// SweepRisk polls each account's positions, feeds the mark-to-market into
// its risk state and runs the forced flatten where the verdict demands it.
// Returns the per-account position lists.
func (d *Dispatcher) SweepRisk(ctx context.Context) Result {
	return d.fanOut(ctx, d.registry.Accounts(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
		positions, err := acc.Sweep(ctx)
		if err != nil || len(positions) == 0 {
			return nil, err
		}
		return positions, nil
	})
}

// ExitAll flattens every position on every account.
func (d *Dispatcher) ExitAll(ctx context.Context) Result {
	return d.fanOut(ctx, d.registry.Accounts(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
		results := acc.ExitAllPositions(ctx)
		if len(results) == 0 {
			return nil, nil
		}
		return results, nil
	})
}

// CancelAll cancels every pending order on every account.
func (d *Dispatcher) CancelAll(ctx context.Context) Result {
	return d.fanOut(ctx, d.registry.Accounts(), 0, func(ctx context.Context, acc *account.Account) (any, error) {
		return acc.Gateway().CancelAllOrders(ctx)
	})
}

// UpdateRisk feeds a reported mark-to-market into one account's risk state.
func (d *Dispatcher) UpdateRisk(clientID string, reportedMTM float64) (risk.Verdict, error) {
	acc, ok := d.registry.Lookup(clientID)
	if !ok {
		return risk.Verdict{}, fmt.Errorf("unknown client id %s", clientID)
	}
	return acc.Risk().Update(reportedMTM), nil
}

// ResolvePosition resolves symbol and product to one account's open position.
func (d *Dispatcher) ResolvePosition(ctx context.Context, clientID, symbol, product string) (*model.Position, error) {
	acc, ok := d.registry.Lookup(clientID)
	if !ok {
		return nil, fmt.Errorf("unknown client id %s", clientID)
	}
	return acc.ResolvePosition(ctx, symbol, product)
}
