package model

import "time"

// Direction is the structural bias vocabulary. Orders and signals use
// Side (long/short); market structure uses bullish/bearish/neutral.
// The two are never mixed.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Opposite returns the inverse direction. Neutral maps to itself.
func (d Direction) Opposite() Direction {
	switch d {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	}
	return Neutral
}

// ZoneKind classifies a market-structure zone.
type ZoneKind string

const (
	ZoneOrderBlock    ZoneKind = "order_block"
	ZoneFairValueGap  ZoneKind = "fair_value_gap"
	ZoneLiquidityPool ZoneKind = "liquidity_pool"
)

// ZoneStatus is the zone lifecycle. Transitions are one-way:
// active -> mitigated, active|mitigated -> invalidated. Invalidated
// zones are never resurrected.
type ZoneStatus string

const (
	ZoneActive      ZoneStatus = "active"
	ZoneMitigated   ZoneStatus = "mitigated"
	ZoneInvalidated ZoneStatus = "invalidated"
)

// Zone is a price area produced by the market-structure detector:
// an order block, fair value gap, or liquidity pool.
type Zone struct {
	ID        string
	Kind      ZoneKind
	Direction Direction
	PriceLow  float64
	PriceHigh float64
	FormedAt  time.Time
	Status    ZoneStatus
}

// Contains reports whether price falls inside the zone bounds.
func (z *Zone) Contains(price float64) bool {
	return price >= z.PriceLow && price <= z.PriceHigh
}

// Mid returns the zone midpoint.
func (z *Zone) Mid() float64 { return (z.PriceLow + z.PriceHigh) / 2 }
