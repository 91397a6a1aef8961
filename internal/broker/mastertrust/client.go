// Package mastertrust is the REST implementation of broker.Gateway.
// One Client per account; the session token is cached on disk so a restart
// does not burn a fresh login on every account.
package mastertrust

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/multibroker/oms/internal/logger"
	"github.com/multibroker/oms/internal/model"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

const (
	_loginPath       = "/api/v1/user/login"
	_twoFAPath       = "/api/v1/user/twofa"
	_positionsPath   = "/api/v1/positions"
	_ordersPath      = "/api/v1/orders"
	_bracketExitPath = "/api/v1/orders/bracket/exit"
)

type Config struct {
	BaseURL  string
	ClientID string
	Password string
	PIN      string
	Secret   string
	TokenDir string
}

type Client struct {
	c      *resty.Client
	cfg    Config
	logger logger.Logger

	// Venue order endpoints are rate limited tighter than queries.
	ordersLimiter ratelimit.Limiter
	queryLimiter  ratelimit.Limiter
}

func NewClient(cfg Config, log logger.Logger) *Client {
	cfg.ClientID = strings.ToUpper(cfg.ClientID)

	client := resty.New().
		SetLogger(log).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(20 * time.Second)

	return &Client{
		c:             client,
		cfg:           cfg,
		logger:        log.With("client_id", cfg.ClientID),
		ordersLimiter: ratelimit.New(100, ratelimit.Per(time.Minute)),
		queryLimiter:  ratelimit.New(300, ratelimit.Per(time.Minute)),
	}
}

func (c *Client) ClientID() string {
	return c.cfg.ClientID
}

type loginResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthToken string `json:"auth_token"`
	} `json:"data"`
}

func (c *Client) tokenFile() string {
	return filepath.Join(c.cfg.TokenDir, fmt.Sprintf("token_%s.tok", c.cfg.ClientID))
}

// Authenticate establishes a venue session. A token cached from an earlier
// run is reused as-is; the first broker call on a stale token fails with an
// auth error and the operator re-runs login out of band, same as the venue's
// own tooling behaves.
func (c *Client) Authenticate(ctx context.Context) error {
	if token, err := os.ReadFile(c.tokenFile()); err == nil && len(token) > 0 {
		c.c.SetAuthToken(strings.TrimSpace(string(token)))
		c.logger.Debugf("reusing cached session token")
		return nil
	}

	var login loginResponse
	resp, err := c.c.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"client_id": c.cfg.ClientID,
			"password":  c.cfg.Password,
		}).
		SetResult(&login).
		Post(_loginPath)
	if err != nil {
		return fmt.Errorf("%w: can't login", err)
	}
	if resp.IsError() {
		return fmt.Errorf("login rejected: %s", resp.Status())
	}

	var twofa loginResponse
	resp, err = c.c.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"client_id": c.cfg.ClientID,
			"pin":       c.cfg.PIN,
			"secret":    c.cfg.Secret,
		}).
		SetResult(&twofa).
		Post(_twoFAPath)
	if err != nil {
		return fmt.Errorf("%w: can't complete twofa", err)
	}
	if resp.IsError() || twofa.Data.AuthToken == "" {
		return fmt.Errorf("twofa rejected: %s", resp.Status())
	}

	c.c.SetAuthToken(twofa.Data.AuthToken)

	if err := os.MkdirAll(c.cfg.TokenDir, 0o700); err != nil {
		c.logger.Warnf("%s: can't create token dir", err)
	} else if err := os.WriteFile(c.tokenFile(), []byte(twofa.Data.AuthToken), 0o600); err != nil {
		c.logger.Warnf("%s: can't cache session token", err)
	}
	return nil
}

type positionsResponse struct {
	Status string           `json:"status"`
	Data   []model.Position `json:"data"`
}

func (c *Client) Positions(ctx context.Context) ([]model.Position, error) {
	c.queryLimiter.Take()

	var result positionsResponse
	resp, err := c.c.R().
		SetContext(ctx).
		SetQueryParam("type", "live").
		SetResult(&result).
		Get(_positionsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: can't fetch positions", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("positions request failed: %s", resp.Status())
	}
	return result.Data, nil
}

type ordersResponse struct {
	Status string               `json:"status"`
	Data   []model.PendingOrder `json:"data"`
}

func (c *Client) PendingOrders(ctx context.Context) ([]model.PendingOrder, error) {
	c.queryLimiter.Take()

	var result ordersResponse
	resp, err := c.c.R().
		SetContext(ctx).
		SetQueryParam("type", "pending").
		SetResult(&result).
		Get(_ordersPath)
	if err != nil {
		return nil, fmt.Errorf("%w: can't fetch pending orders", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pending orders request failed: %s", resp.Status())
	}
	return result.Data, nil
}

type orderAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		OMSOrderID string `json:"oms_order_id"`
	} `json:"data"`
}

func (r orderAck) toResult() model.OrderResult {
	return model.OrderResult{
		OMSOrderID: r.Data.OMSOrderID,
		Status:     r.Status,
		Message:    r.Message,
	}
}

func (c *Client) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	c.ordersLimiter.Take()

	var ack orderAck
	resp, err := c.c.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&ack).
		Post(_ordersPath)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("%w: can't place order", err)
	}
	if resp.IsError() {
		return model.OrderResult{}, fmt.Errorf("order rejected: %s %s", resp.Status(), ack.Message)
	}
	c.logger.Infof("order placed %s %s %d@%s", req.Side, req.Symbol, req.Quantity, req.OrderType)
	return ack.toResult(), nil
}

// matchPending fetches pending orders and applies filters, keeping at most
// n matches when n > 0.
func (c *Client) matchPending(ctx context.Context, filters model.OrderFilters, n int) ([]model.PendingOrder, error) {
	orders, err := c.PendingOrders(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]model.PendingOrder, 0, len(orders))
	for _, o := range orders {
		if !filters.Match(o) {
			continue
		}
		matched = append(matched, o)
		if n > 0 && len(matched) == n {
			break
		}
	}
	return matched, nil
}

func (c *Client) ModifyOrdersByConditions(ctx context.Context, mods model.Modifications, filters model.OrderFilters, n int) ([]model.OrderResult, error) {
	matched, err := c.matchPending(ctx, filters, n)
	if err != nil {
		return nil, err
	}

	results := make([]model.OrderResult, 0, len(matched))
	for _, o := range matched {
		c.ordersLimiter.Take()

		body := map[string]any{
			"oms_order_id": o.OMSOrderID,
			"price":        mods.Price,
		}
		if mods.Quantity != 0 {
			body["quantity"] = mods.Quantity
		}
		if mods.TriggerPrice != 0 {
			body["trigger_price"] = mods.TriggerPrice
		}

		var ack orderAck
		resp, err := c.c.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&ack).
			Put(_ordersPath)
		if err != nil {
			c.logger.Errorf("%s: can't modify order %s", err, o.OMSOrderID)
			continue
		}
		if resp.IsError() {
			c.logger.Errorf("modify rejected for %s: %s", o.OMSOrderID, resp.Status())
			continue
		}
		results = append(results, ack.toResult())
	}
	return results, nil
}

func (c *Client) CancelOrdersByConditions(ctx context.Context, filters model.OrderFilters, n int) ([]model.OrderResult, error) {
	matched, err := c.matchPending(ctx, filters, n)
	if err != nil {
		return nil, err
	}

	results := make([]model.OrderResult, 0, len(matched))
	for _, o := range matched {
		c.ordersLimiter.Take()

		var ack orderAck
		resp, err := c.c.R().
			SetContext(ctx).
			SetResult(&ack).
			Delete(_ordersPath + "/" + o.OMSOrderID)
		if err != nil {
			c.logger.Errorf("%s: can't cancel order %s", err, o.OMSOrderID)
			continue
		}
		if resp.IsError() {
			c.logger.Errorf("cancel rejected for %s: %s", o.OMSOrderID, resp.Status())
			continue
		}
		results = append(results, ack.toResult())
	}
	return results, nil
}

func (c *Client) CancelAllOrders(ctx context.Context) ([]model.OrderResult, error) {
	return c.CancelOrdersByConditions(ctx, model.OrderFilters{}, 0)
}

func (c *Client) ExitBracketOrder(ctx context.Context, omsOrderID, legOrderIndicator string) (model.OrderResult, error) {
	c.ordersLimiter.Take()

	var ack orderAck
	resp, err := c.c.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"oms_order_id":        omsOrderID,
			"leg_order_indicator": legOrderIndicator,
			"status":              model.StatusOpen,
			"client_id":           c.cfg.ClientID,
		}).
		SetResult(&ack).
		Put(_bracketExitPath)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("%w: can't exit bracket order", err)
	}
	if resp.IsError() {
		return model.OrderResult{}, fmt.Errorf("bracket exit rejected: %s", resp.Status())
	}
	return ack.toResult(), nil
}

// MTM is realized plus unrealized P&L over the given positions, fetched
// from the venue when positions is nil.
func (c *Client) MTM(ctx context.Context, positions []model.Position) (float64, error) {
	if positions == nil {
		var err error
		positions, err = c.Positions(ctx)
		if err != nil {
			return 0, err
		}
	}

	var mtm float64
	for _, p := range positions {
		mtm += p.SellValue - p.BuyValue + float64(p.Quantity)*p.LTP
	}
	return mtm, nil
}
