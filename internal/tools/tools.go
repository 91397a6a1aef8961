package tools

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundToTick snaps price to the nearest multiple of the exchange tick.
// The multiplication runs through decimal so that ticks like 0.05 don't
// leave float residue on the result.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	k := math.Round(price / tick)
	v, _ := decimal.NewFromFloat(tick).Mul(decimal.NewFromFloat(k)).Float64()
	return v
}

// RoundToLot rounds quantity to the nearest multiple of lot. Ties round
// half away from zero (math.Round semantics).
func RoundToLot(quantity, lot int) int {
	if lot <= 0 {
		return quantity
	}
	return int(math.Round(float64(quantity)/float64(lot))) * lot
}

// FloorToLot floors the absolute quantity down to a multiple of lot.
func FloorToLot(quantity, lot int) int {
	if lot <= 0 {
		return quantity
	}
	return quantity / lot * lot
}
