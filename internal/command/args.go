// Package command turns raw slash-separated argument strings into normalized
// commands for the dispatcher. Numeric fallbacks live here, at the boundary,
// as explicit policy: a missing or malformed lot size means 50, a missing
// percent means a full exit. Malformed input never fails a whole dispatch.
package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/multibroker/oms/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	LotSizeDefault = 50
	PercentDefault = 1.0
)

// DefaultShortcuts maps the abbreviated argument keys accepted on the wire
// to their full names, e.g. /order/exc=NSE/sym=SBIN-EQ/qty=50/side=BUY.
func DefaultShortcuts() map[string]string {
	return map[string]string{
		"exc":    "exchange",
		"sym":    "symbol",
		"qty":    "quantity",
		"prc":    "price",
		"pr":     "price",
		"trg":    "trigger_price",
		"ot":     "order_type",
		"prd":    "product",
		"val":    "validity",
		"sq_val": "square_off_value",
		"sl_val": "stop_loss_value",
		"tsl":    "trailing_stop_loss",
		"l":      "lot_size",
		"p":      "percent",
	}
}

// LoadShortcuts reads extra shortcut mappings from a yaml file and merges
// them over the defaults. User entries win on conflict.
func LoadShortcuts(filename string) (map[string]string, error) {
	shortcuts := DefaultShortcuts()
	if filename == "" {
		return shortcuts, nil
	}

	input, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: can't read file", err)
	}

	extra := make(map[string]string)
	if err := yaml.Unmarshal(input, &extra); err != nil {
		return nil, fmt.Errorf("%w: can't unmarshal shortcuts", err)
	}

	for k, v := range extra {
		shortcuts[k] = v
	}
	return shortcuts, nil
}

// Args is a parsed argument set with shortcut keys already expanded.
type Args map[string]string

// Parse splits a raw "k=v/k=v/..." string. Segments without '=' are dropped.
func Parse(raw string, shortcuts map[string]string) Args {
	args := make(Args)
	for _, part := range strings.Split(raw, "/") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			continue
		}
		if full, ok := shortcuts[k]; ok {
			k = full
		}
		args[k] = v
	}
	return args
}

func (a Args) String(key, fallback string) string {
	if v, ok := a[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (a Args) Int(key string, fallback int) int {
	v, ok := a[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (a Args) Float(key string, fallback float64) float64 {
	v, ok := a[key]
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (a Args) orderRequest(defaultExchange string) model.OrderRequest {
	return model.OrderRequest{
		Symbol:         strings.ToUpper(a.String("symbol", "")),
		Exchange:       strings.ToUpper(a.String("exchange", defaultExchange)),
		Product:        strings.ToUpper(a.String("product", model.ProductMIS)),
		Side:           strings.ToUpper(a.String("side", "")),
		Quantity:       a.Int("quantity", 0),
		Price:          a.Float("price", 0),
		TriggerPrice:   a.Float("trigger_price", 0),
		OrderType:      strings.ToUpper(a.String("order_type", model.OrderTypeMarket)),
		Validity:       strings.ToUpper(a.String("validity", model.ValidityDay)),
		SquareOffValue: a.Float("square_off_value", 0),
		StopLossValue:  a.Float("stop_loss_value", 0),
		TrailingTicks:  a.Float("trailing_stop_loss", 0),
	}
}

func (a Args) filters(defaultExchange string) model.OrderFilters {
	return model.OrderFilters{
		Symbol:    strings.ToUpper(a.String("symbol", "")),
		Exchange:  strings.ToUpper(a.String("exchange", defaultExchange)),
		Product:   strings.ToUpper(a.String("product", "")),
		Side:      strings.ToUpper(a.String("side", "")),
		Status:    a.String("status", ""),
		OrderType: strings.ToUpper(a.String("order_type", "")),
	}
}

// BuildPlace builds a Place command from raw order args.
func BuildPlace(raw string, shortcuts map[string]string, defaultExchange string) model.Command {
	args := Parse(raw, shortcuts)
	return model.Command{
		Kind:    model.Place,
		Order:   args.orderRequest(defaultExchange),
		LotSize: args.Int("lot_size", LotSizeDefault),
	}
}

// BuildPlaceBracket builds a PlaceBracket command; bracket orders carry
// their stop and target legs in the order itself and skip lot rounding.
func BuildPlaceBracket(raw string, shortcuts map[string]string, defaultExchange string) model.Command {
	args := Parse(raw, shortcuts)
	return model.Command{
		Kind:  model.PlaceBracket,
		Order: args.orderRequest(defaultExchange),
	}
}

// BuildModify builds a Modify command. A trigger-price modification targets
// orders still waiting on their trigger, anything else targets open orders.
func BuildModify(raw string, shortcuts map[string]string) model.Command {
	args := Parse(raw, shortcuts)

	mods := model.Modifications{
		Quantity:     args.Int("quantity", 0),
		Price:        args.Float("price", 0),
		TriggerPrice: args.Float("trigger_price", 0),
	}

	filters := args.filters(model.ExchangeNFO)
	filters.Status = model.StatusOpen
	if mods.TriggerPrice != 0 {
		filters.Status = model.StatusTriggerPending
	}

	return model.Command{
		Kind:          model.Modify,
		Filters:       filters,
		Modifications: mods,
		N:             args.Int("n", 0),
	}
}

// BuildCancel builds a Cancel command from raw filter args.
func BuildCancel(raw string, shortcuts map[string]string) model.Command {
	args := Parse(raw, shortcuts)
	return model.Command{
		Kind:    model.Cancel,
		Filters: args.filters(model.ExchangeNFO),
		N:       args.Int("n", 0),
	}
}
