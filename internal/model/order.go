package model

import "time"

// OrderType enumerates supported order kinds.
type OrderType string

const (
	OrderMarket       OrderType = "market"
	OrderLimit        OrderType = "limit"
	OrderStopMarket   OrderType = "stop_market"
	OrderStopLimit    OrderType = "stop_limit"
	OrderTrailingStop OrderType = "trailing_stop"
)

// OrderStatus is the order lifecycle state.
//
// pending_confirmation -> (confirm) -> pending -> (match) -> filled
// pending_confirmation -> (reject|ttl) -> rejected|cancelled
// pending -> (cancel) -> cancelled
type OrderStatus string

const (
	OrderPendingConfirmation OrderStatus = "pending_confirmation"
	OrderPending             OrderStatus = "pending"
	OrderFilled              OrderStatus = "filled"
	OrderCancelled           OrderStatus = "cancelled"
	OrderRejected            OrderStatus = "rejected"
)

// Resolved reports whether the status is terminal.
func (s OrderStatus) Resolved() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderRejected
}

// Order is an instruction to open or close exposure on a pair.
// LimitPrice/StopPrice/TrailDistance apply per type; unused fields
// stay zero.
type Order struct {
	ID            string
	Pair          string
	Side          Side
	Type          OrderType
	Quantity      float64
	LimitPrice    float64
	StopPrice     float64
	TrailDistance float64
	Status        OrderStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time // zero unless awaiting confirmation
	FillPrice     float64   // set once filled
	SignalID      string    // originating signal, if any
}

// Trade is an immutable fill record. Appended by the execution
// engine, never mutated.
type Trade struct {
	ID         string
	OrderID    string
	Pair       string
	Side       Side
	Quantity   float64
	FillPrice  float64
	Commission float64
	Slippage   float64
	Time       time.Time
}

// Notional returns the fill's quantity x price value.
func (t *Trade) Notional() float64 { return t.Quantity * t.FillPrice }
