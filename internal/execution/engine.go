// Package execution matches orders against price ticks for the paper
// trading simulation.
package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/config"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/portfolio"
)

// Tick is one mark-price update for a pair.
type Tick struct {
	Pair  string
	Price float64
	Time  time.Time
}

type idempEntry struct {
	orderID string
	at      time.Time
}

type tickInfo struct {
	price float64
	at    time.Time
}

// Engine owns the order lifecycle for the simulated book: it validates
// submissions, holds resting orders, matches them on ticks with
// modeled commission and slippage, and enforces the confirmation TTL.
// Every operation serializes through one mutex; in-flight fills always
// complete before Stop returns.
type Engine struct {
	mu sync.Mutex

	cfg    config.ExecutionConfig
	ledger *portfolio.Ledger
	clock  Clock
	ids    IDGenerator

	orders   map[string]*model.Order
	orderSeq []string // submission order, for deterministic matching
	idemp    map[string]idempEntry

	trailLevel map[string]float64 // trailing stop level per order id
	armed      map[string]bool    // stop_limit orders whose stop fired

	lastTick map[string]tickInfo
	running  bool

	onFill  func(model.Trade, model.Order)
	onOrder func(model.Order)
}

// NewEngine creates a stopped engine bound to one ledger.
func NewEngine(cfg config.ExecutionConfig, ledger *portfolio.Ledger, clock Clock, ids IDGenerator) *Engine {
	return &Engine{
		cfg:        cfg,
		ledger:     ledger,
		clock:      clock,
		ids:        ids,
		orders:     make(map[string]*model.Order),
		idemp:      make(map[string]idempEntry),
		trailLevel: make(map[string]float64),
		armed:      make(map[string]bool),
		lastTick:   make(map[string]tickInfo),
	}
}

// SetHooks wires fill and order-transition observers. Must be called
// before Start.
func (e *Engine) SetHooks(onFill func(model.Trade, model.Order), onOrder func(model.Order)) {
	e.onFill = onFill
	e.onOrder = onOrder
}

// Ledger returns the engine's portfolio.
func (e *Engine) Ledger() *portfolio.Ledger { return e.ledger }

// Start begins accepting submissions.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
}

// Stop rejects new submissions immediately. A fill being applied on
// another goroutine holds the mutex, so it completes before Stop
// returns; nothing is torn.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
}

// Reset drops all order state. The ledger is left to its owner.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders = make(map[string]*model.Order)
	e.orderSeq = nil
	e.idemp = make(map[string]idempEntry)
	e.trailLevel = make(map[string]float64)
	e.armed = make(map[string]bool)
	e.lastTick = make(map[string]tickInfo)
}

// Submit validates and accepts an order. A duplicate idempotency key
// within the configured window returns the original order instead of
// creating a second one. Orders start pending_confirmation when manual
// confirmation is configured, otherwise pending.
func (e *Engine) Submit(o *model.Order, idempotencyKey string) (*model.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil, model.ErrEngineStopped
	}

	now := e.clock.Now()
	if idempotencyKey != "" {
		if entry, ok := e.idemp[idempotencyKey]; ok && now.Sub(entry.at) <= e.cfg.IdempotencyWindow {
			dup := *e.orders[entry.orderID]
			return &dup, nil
		}
	}

	if err := e.validate(o); err != nil {
		return nil, err
	}
	ref := e.refPrice(o)
	if err := e.ledger.ValidateSubmit(o, ref); err != nil {
		return nil, err
	}

	accepted := *o
	accepted.ID = e.ids.NextOrderID()
	accepted.CreatedAt = now
	if e.cfg.RequireConfirmation {
		accepted.Status = model.OrderPendingConfirmation
		accepted.ExpiresAt = now.Add(e.cfg.ConfirmTTL)
	} else {
		accepted.Status = model.OrderPending
	}

	e.orders[accepted.ID] = &accepted
	e.orderSeq = append(e.orderSeq, accepted.ID)
	if idempotencyKey != "" {
		e.idemp[idempotencyKey] = idempEntry{orderID: accepted.ID, at: now}
	}
	e.notifyOrder(&accepted)

	out := accepted
	return &out, nil
}

func (e *Engine) validate(o *model.Order) error {
	if o.Pair == "" {
		return &model.ValidationError{Field: "pair", Reason: "required"}
	}
	if o.Side != model.Long && o.Side != model.Short {
		return &model.ValidationError{Field: "side", Reason: "must be long or short"}
	}
	if o.Quantity <= 0 {
		return &model.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	switch o.Type {
	case model.OrderMarket:
	case model.OrderLimit:
		if o.LimitPrice <= 0 {
			return &model.ValidationError{Field: "limit_price", Reason: "required for limit orders"}
		}
	case model.OrderStopMarket:
		if o.StopPrice <= 0 {
			return &model.ValidationError{Field: "stop_price", Reason: "required for stop orders"}
		}
	case model.OrderStopLimit:
		if o.StopPrice <= 0 || o.LimitPrice <= 0 {
			return &model.ValidationError{Field: "stop_price", Reason: "stop and limit prices required"}
		}
	case model.OrderTrailingStop:
		if o.TrailDistance <= 0 {
			return &model.ValidationError{Field: "trail_distance", Reason: "required for trailing stops"}
		}
	default:
		return &model.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown order type %q", o.Type)}
	}
	return nil
}

func (e *Engine) refPrice(o *model.Order) float64 {
	if t, ok := e.lastTick[o.Pair]; ok {
		return t.price
	}
	if o.LimitPrice > 0 {
		return o.LimitPrice
	}
	return o.StopPrice
}

// Confirm promotes a pending_confirmation order to pending. Confirming
// an already-resolved or expired order is a no-op
// model.ErrInvalidTransition, never a crash.
func (e *Engine) Confirm(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[id]
	if !ok {
		return model.ErrOrderNotFound
	}
	if o.Status != model.OrderPendingConfirmation {
		return fmt.Errorf("%w: confirm on %s order %s", model.ErrInvalidTransition, o.Status, id)
	}
	if e.clock.Now().After(o.ExpiresAt) {
		o.Status = model.OrderCancelled
		e.notifyOrder(o)
		return fmt.Errorf("%w: order %s expired before confirmation", model.ErrInvalidTransition, id)
	}
	o.Status = model.OrderPending
	o.ExpiresAt = time.Time{}
	e.notifyOrder(o)
	return nil
}

// Reject declines a pending_confirmation order.
func (e *Engine) Reject(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[id]
	if !ok {
		return model.ErrOrderNotFound
	}
	if o.Status != model.OrderPendingConfirmation {
		return fmt.Errorf("%w: reject on %s order %s", model.ErrInvalidTransition, o.Status, id)
	}
	o.Status = model.OrderRejected
	e.notifyOrder(o)
	return nil
}

// Cancel withdraws an unresolved order.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[id]
	if !ok {
		return model.ErrOrderNotFound
	}
	if o.Status.Resolved() {
		return fmt.Errorf("%w: cancel on %s order %s", model.ErrInvalidTransition, o.Status, id)
	}
	o.Status = model.OrderCancelled
	e.notifyOrder(o)
	return nil
}

// GetStatus returns a copy of the order.
func (e *Engine) GetStatus(id string) (*model.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[id]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	dup := *o
	return &dup, nil
}

// OnTick applies one price update: marks the ledger, expires stale
// confirmations, then matches resting orders for the pair in
// submission order. Matching runs even while stopped so in-flight
// exposure keeps valuing, but no new orders can arrive.
func (e *Engine) OnTick(t Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sc, ok := e.clock.(*SimClock); ok {
		sc.Advance(t.Time)
	}
	e.lastTick[t.Pair] = tickInfo{price: t.Price, at: t.Time}

	// Mark price first: the hot path stays O(1) per update.
	e.ledger.MarkPrice(t.Pair, t.Price)

	e.expireLocked(t.Time)

	for _, id := range e.orderSeq {
		o := e.orders[id]
		if o.Status != model.OrderPending || o.Pair != t.Pair {
			continue
		}
		if fillPrice, trigger, ok := e.match(o, t.Price); ok {
			e.fill(o, fillPrice, trigger, t)
		}
	}
}

// match decides whether the order fills on this tick. Returns the fill
// price (slippage applied) and the trigger reference price. Fills are
// conservative: never better than the trigger.
func (e *Engine) match(o *model.Order, price float64) (fillPrice, trigger float64, ok bool) {
	slip := e.cfg.SlippageRate
	adverse := func(p float64) float64 {
		if o.Side == model.Long {
			return p * (1 + slip)
		}
		return p * (1 - slip)
	}

	switch o.Type {
	case model.OrderMarket:
		return adverse(price), price, true

	case model.OrderLimit:
		if o.Side == model.Long && price <= o.LimitPrice {
			return adverse(o.LimitPrice), o.LimitPrice, true
		}
		if o.Side == model.Short && price >= o.LimitPrice {
			return adverse(o.LimitPrice), o.LimitPrice, true
		}

	case model.OrderStopMarket:
		if o.Side == model.Long && price >= o.StopPrice {
			return adverse(o.StopPrice), o.StopPrice, true
		}
		if o.Side == model.Short && price <= o.StopPrice {
			return adverse(o.StopPrice), o.StopPrice, true
		}

	case model.OrderStopLimit:
		if !e.armed[o.ID] {
			if (o.Side == model.Long && price >= o.StopPrice) ||
				(o.Side == model.Short && price <= o.StopPrice) {
				e.armed[o.ID] = true
			}
		}
		if !e.armed[o.ID] {
			break
		}
		if o.Side == model.Long && price <= o.LimitPrice {
			return adverse(o.LimitPrice), o.LimitPrice, true
		}
		if o.Side == model.Short && price >= o.LimitPrice {
			return adverse(o.LimitPrice), o.LimitPrice, true
		}

	case model.OrderTrailingStop:
		level, seen := e.trailLevel[o.ID]
		if o.Side == model.Short {
			// Exit-long stop trails below price, ratchets up only.
			if !seen || price-o.TrailDistance > level {
				level = price - o.TrailDistance
			}
			e.trailLevel[o.ID] = level
			if price <= level {
				return adverse(level), level, true
			}
		} else {
			// Exit-short stop trails above price, ratchets down only.
			if !seen || price+o.TrailDistance < level {
				level = price + o.TrailDistance
			}
			e.trailLevel[o.ID] = level
			if price >= level {
				return adverse(level), level, true
			}
		}
	}
	return 0, 0, false
}

func (e *Engine) fill(o *model.Order, fillPrice, trigger float64, t Tick) {
	commission := e.cfg.CommissionRate * o.Quantity * fillPrice
	slippage := (fillPrice - trigger) * o.Quantity
	if slippage < 0 {
		slippage = -slippage
	}

	trade := model.Trade{
		ID:         e.ids.NextTradeID(),
		OrderID:    o.ID,
		Pair:       o.Pair,
		Side:       o.Side,
		Quantity:   o.Quantity,
		FillPrice:  fillPrice,
		Commission: commission,
		Slippage:   slippage,
		Time:       t.Time,
	}

	if err := e.ledger.ApplyFill(trade); err != nil {
		log.Printf("[ERROR] fill rejected for order %s: %v", o.ID, err)
		o.Status = model.OrderRejected
		e.notifyOrder(o)
		return
	}

	o.Status = model.OrderFilled
	o.FillPrice = fillPrice
	delete(e.trailLevel, o.ID)
	delete(e.armed, o.ID)
	e.notifyOrder(o)

	if e.onFill != nil {
		e.onFill(trade, *o)
	}
	if e.cfg.SnapshotOnFill {
		e.ledger.Snapshot(t.Time)
	}
}

// SweepExpired cancels confirmations past their TTL. Safe to call from
// a background schedule; each order expires exactly once.
func (e *Engine) SweepExpired(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expireLocked(now)
}

func (e *Engine) expireLocked(now time.Time) int {
	n := 0
	for _, id := range e.orderSeq {
		o := e.orders[id]
		if o.Status == model.OrderPendingConfirmation && now.After(o.ExpiresAt) {
			o.Status = model.OrderCancelled
			e.notifyOrder(o)
			n++
		}
	}
	return n
}

// Stale reports whether the freshest tick is older than the configured
// threshold. A stale engine simply has nothing to match against; fresh
// data resumes it.
func (e *Engine) Stale() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.lastTick) == 0 {
		return false
	}
	now := e.clock.Now()
	for _, t := range e.lastTick {
		if now.Sub(t.at) <= e.cfg.StaleAfter {
			return false
		}
	}
	return true
}

// Orders returns copies of all known orders in submission order.
func (e *Engine) Orders() []model.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Order, 0, len(e.orderSeq))
	for _, id := range e.orderSeq {
		out = append(out, *e.orders[id])
	}
	return out
}

// Run consumes ticks until the context ends or the channel closes.
// This is the single scheduler loop per portfolio: tick ordering on
// the channel is the event ordering the ledger observes.
func (e *Engine) Run(ctx context.Context, ticks <-chan Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ticks:
			if !ok {
				return
			}
			e.OnTick(t)
		}
	}
}

func (e *Engine) notifyOrder(o *model.Order) {
	if e.onOrder != nil {
		e.onOrder(*o)
	}
}
