package model

import "time"

// Position is the net exposure on one pair. The ledger holds at most
// one position per pair; an overshooting opposite fill flips the side.
type Position struct {
	Pair          string
	Side          Side
	Quantity      float64
	AvgEntryPrice float64
	UnrealizedPnL float64
}

// direction multiplier: +1 long, -1 short.
func (p *Position) Dir() float64 {
	if p.Side == Long {
		return 1
	}
	return -1
}

// MarketValue returns the signed mark-to-market value of the position.
func (p *Position) MarketValue(mark float64) float64 {
	return p.Dir() * p.Quantity * mark
}

// PortfolioSnapshot is an immutable point-in-time copy of the ledger,
// taken on a fixed cadence or on every fill.
type PortfolioSnapshot struct {
	Time          time.Time
	Cash          float64
	Positions     []Position // copies, sorted by pair
	RealizedPnL   float64
	UnrealizedPnL float64
	TotalValue    float64
}
