// Package portfolio owns cash, positions and P&L for one trading run.
package portfolio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// Ledger is the order-independent side of the book: cash, one position
// per pair, realized and unrealized P&L, and snapshot history. All
// mutations serialize through one mutex; concurrent tick delivery and
// order submission never interleave partial updates.
type Ledger struct {
	mu sync.Mutex

	cash        float64
	initialCash float64
	leverage    float64

	positions  map[string]*model.Position
	marks      map[string]float64
	realized   float64
	unrealized float64 // aggregate, maintained incrementally

	trades    []model.Trade
	snapshots []model.PortfolioSnapshot
}

// NewLedger creates a ledger with starting cash.
func NewLedger(initialCash, leverage float64) *Ledger {
	if leverage < 1 {
		leverage = 1
	}
	return &Ledger{
		cash:        initialCash,
		initialCash: initialCash,
		leverage:    leverage,
		positions:   make(map[string]*model.Position),
		marks:       make(map[string]float64),
	}
}

// ValidateSubmit checks that the order's margin requirement fits the
// currently available margin. Called before an order enters pending;
// failure is model.ErrInsufficientFunds and nothing mutates.
func (l *Ledger) ValidateSubmit(o *model.Order, refPrice float64) error {
	if o.Quantity <= 0 {
		return &model.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if refPrice <= 0 {
		return &model.ValidationError{Field: "price", Reason: "no reference price"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	required := o.Quantity * refPrice / l.leverage
	if avail := l.availableMarginLocked(); required > avail {
		return fmt.Errorf("%w: need %.2f margin, have %.2f", model.ErrInsufficientFunds, required, avail)
	}
	return nil
}

// ApplyFill applies one fill atomically: cash, position, realized and
// unrealized P&L all move together or not at all. Same-direction fills
// average the entry; opposite fills realize P&L on the closed portion
// and flip the side if they overshoot.
func (l *Ledger) ApplyFill(t model.Trade) error {
	if t.Quantity <= 0 || t.FillPrice <= 0 {
		return &model.ValidationError{Field: "trade", Reason: "quantity and fill price must be positive"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Cash legs: buys debit notional, sells credit it; commission is
	// always a debit.
	if t.Side == model.Long {
		l.cash -= t.Notional() + t.Commission
	} else {
		l.cash += t.Notional() - t.Commission
	}

	pos := l.positions[t.Pair]
	switch {
	case pos == nil:
		l.positions[t.Pair] = &model.Position{
			Pair:          t.Pair,
			Side:          t.Side,
			Quantity:      t.Quantity,
			AvgEntryPrice: t.FillPrice,
		}
	case pos.Side == t.Side:
		total := pos.Quantity + t.Quantity
		pos.AvgEntryPrice = (pos.AvgEntryPrice*pos.Quantity + t.FillPrice*t.Quantity) / total
		pos.Quantity = total
	default:
		closed := t.Quantity
		if closed > pos.Quantity {
			closed = pos.Quantity
		}
		l.realized += (t.FillPrice - pos.AvgEntryPrice) * closed * pos.Dir()
		pos.Quantity -= closed

		if remainder := t.Quantity - closed; remainder > 0 {
			// Overshoot flips the position side.
			pos.Side = t.Side
			pos.Quantity = remainder
			pos.AvgEntryPrice = t.FillPrice
		}
		if pos.Quantity < 0 {
			// Logic defect, not an environmental condition.
			panic(fmt.Sprintf("portfolio: negative quantity %f on %s after fill %s", pos.Quantity, t.Pair, t.ID))
		}
		if pos.Quantity == 0 {
			l.unrealized -= pos.UnrealizedPnL
			delete(l.positions, t.Pair)
		}
	}

	l.marks[t.Pair] = t.FillPrice
	l.remarkLocked(t.Pair, t.FillPrice)
	l.trades = append(l.trades, t)
	return nil
}

// MarkPrice updates the reference price for one pair and recomputes
// that pair's unrealized P&L incrementally. O(1) per update; this is
// the hot path.
func (l *Ledger) MarkPrice(pair string, price float64) {
	if price <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.marks[pair] = price
	l.remarkLocked(pair, price)
}

func (l *Ledger) remarkLocked(pair string, price float64) {
	pos, ok := l.positions[pair]
	if !ok {
		return
	}
	fresh := (price - pos.AvgEntryPrice) * pos.Quantity * pos.Dir()
	l.unrealized += fresh - pos.UnrealizedPnL
	pos.UnrealizedPnL = fresh
}

// Snapshot takes an immutable point-in-time copy and appends it to the
// snapshot history.
func (l *Ledger) Snapshot(at time.Time) model.PortfolioSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := model.PortfolioSnapshot{
		Time:          at,
		Cash:          l.cash,
		RealizedPnL:   l.realized,
		UnrealizedPnL: l.unrealized,
		TotalValue:    l.totalValueLocked(),
	}
	pairs := make([]string, 0, len(l.positions))
	for p := range l.positions {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	for _, p := range pairs {
		snap.Positions = append(snap.Positions, *l.positions[p])
	}
	l.snapshots = append(l.snapshots, snap)
	return snap
}

func (l *Ledger) totalValueLocked() float64 {
	total := l.cash
	for pair, pos := range l.positions {
		total += pos.MarketValue(l.marks[pair])
	}
	return total
}

func (l *Ledger) availableMarginLocked() float64 {
	used := 0.0
	for _, pos := range l.positions {
		used += pos.Quantity * pos.AvgEntryPrice / l.leverage
	}
	return l.totalValueLocked() - used
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// TotalValue returns cash plus the signed market value of all
// positions.
func (l *Ledger) TotalValue() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalValueLocked()
}

// AvailableMargin returns equity minus margin locked by open positions.
func (l *Ledger) AvailableMargin() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.availableMarginLocked()
}

// RealizedPnL returns cumulative realized P&L.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized
}

// Position returns a copy of the position for pair, if any.
func (l *Ledger) Position(pair string) (model.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[pair]
	if !ok {
		return model.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions, sorted by pair.
func (l *Ledger) Positions() []model.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	pairs := make([]string, 0, len(l.positions))
	for p := range l.positions {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	out := make([]model.Position, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, *l.positions[p])
	}
	return out
}

// OpenPositionCount returns the number of open positions for pair
// (0 or 1 in this model).
func (l *Ledger) OpenPositionCount(pair string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.positions[pair]; ok {
		return 1
	}
	return 0
}

// TradeFilter narrows Trades output. Zero values match everything.
type TradeFilter struct {
	Pair  string
	Since time.Time
}

// Trades returns copies of fills matching the filter, in append order.
func (l *Ledger) Trades(f TradeFilter) []model.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Trade
	for _, t := range l.trades {
		if f.Pair != "" && t.Pair != f.Pair {
			continue
		}
		if !f.Since.IsZero() && t.Time.Before(f.Since) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Snapshots returns the snapshot history.
func (l *Ledger) Snapshots() []model.PortfolioSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.PortfolioSnapshot(nil), l.snapshots...)
}
