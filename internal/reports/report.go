package reports

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/multibroker/oms/internal/model"
)

// ReportRow is the per-symbol summary across every account: net quantity,
// break-even price and the volume-weighted prices of resting limit and
// stop orders for that symbol.
type ReportRow struct {
	Symbol     string  `json:"symbol" db:"symbol"`
	Quantity   int     `json:"quantity" db:"quantity"`
	BEP        float64 `json:"bep" db:"bep"`
	LTP        float64 `json:"ltp" db:"ltp"`
	LimitPrice float64 `json:"limit_price" db:"limit_price"`
	StopPrice  float64 `json:"stop_price" db:"stop_price"`
}

type symbolAgg struct {
	quantity  int
	netAmount float64
	ltp       float64
	limitQty  int
	limitVal  float64
	stopQty   int
	stopVal   float64
}

// BuildReport folds positions and pending orders from all accounts into one
// row per symbol. The break-even price is net amount over net quantity,
// rounded to two places; a flat symbol reports zero. Pending orders are
// weighted by the trigger price when one is set, the limit price otherwise.
func BuildReport(positions []model.Position, pending []model.PendingOrder) []ReportRow {
	aggs := make(map[string]*symbolAgg)

	get := func(symbol string) *symbolAgg {
		key := strings.ToUpper(symbol)
		a, ok := aggs[key]
		if !ok {
			a = &symbolAgg{}
			aggs[key] = a
		}
		return a
	}

	for _, p := range positions {
		a := get(p.Symbol)
		a.quantity += p.Quantity
		a.netAmount += p.NetAmount
		a.ltp = p.LTP
	}

	for _, o := range pending {
		price := o.Price
		if o.TriggerPrice > 0 {
			price = o.TriggerPrice
		}
		a := get(o.Symbol)
		switch strings.ToUpper(o.OrderType) {
		case model.OrderTypeLimit:
			a.limitQty += o.Quantity
			a.limitVal += price * float64(o.Quantity)
		case model.OrderTypeSL:
			a.stopQty += o.Quantity
			a.stopVal += price * float64(o.Quantity)
		}
	}

	rows := make([]ReportRow, 0, len(aggs))
	for symbol, a := range aggs {
		rows = append(rows, ReportRow{
			Symbol:     symbol,
			Quantity:   a.quantity,
			BEP:        breakEven(a.netAmount, a.quantity),
			LTP:        a.ltp,
			LimitPrice: weighted(a.limitVal, a.limitQty),
			StopPrice:  weighted(a.stopVal, a.stopQty),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows
}

func breakEven(netAmount float64, quantity int) float64 {
	if quantity == 0 {
		return 0
	}
	bep := decimal.NewFromFloat(netAmount).
		Div(decimal.NewFromInt(int64(quantity))).
		Round(2).
		Abs()
	return bep.InexactFloat64()
}

func weighted(value float64, quantity int) float64 {
	if quantity == 0 {
		return 0
	}
	return decimal.NewFromFloat(value).
		Div(decimal.NewFromInt(int64(quantity))).
		Round(2).
		InexactFloat64()
}
