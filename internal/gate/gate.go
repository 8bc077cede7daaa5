// Package gate routes order operations to the simulation engine or a
// live exchange adapter, failing closed until live trading is approved.
package gate

import (
	"fmt"
	"log"
	"sync"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// Mode selects the execution target.
type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeLive       Mode = "live"
)

// Executor is the contract both the simulation engine and live
// adapters implement, so the gate swaps them without changing callers.
type Executor interface {
	Submit(o *model.Order, idempotencyKey string) (*model.Order, error)
	Cancel(id string) error
	GetStatus(id string) (*model.Order, error)
}

// Gate is pure routing. Mode switches never touch ledger state; the
// simulation and live sides keep fully isolated portfolios.
type Gate struct {
	mu       sync.Mutex
	mode     Mode
	approved bool
	sim      Executor
	live     Executor

	onModeChange func(mode Mode, approved bool)
}

// New creates a gate starting in the given mode. live may be nil when
// only simulation is wired.
func New(mode Mode, sim, live Executor) *Gate {
	return &Gate{mode: mode, sim: sim, live: live}
}

// SetModeChangeHook wires the trading_mode_changed observer.
func (g *Gate) SetModeChangeHook(fn func(mode Mode, approved bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onModeChange = fn
}

// Submit routes an order to the active executor. Live routing without
// approval fails closed before anything reaches an exchange.
func (g *Gate) Submit(o *model.Order, idempotencyKey string) (*model.Order, error) {
	ex, err := g.target()
	if err != nil {
		return nil, err
	}
	return ex.Submit(o, idempotencyKey)
}

// Cancel routes a cancel to the active executor.
func (g *Gate) Cancel(id string) error {
	ex, err := g.target()
	if err != nil {
		return err
	}
	return ex.Cancel(id)
}

// GetStatus routes a status lookup to the active executor.
func (g *Gate) GetStatus(id string) (*model.Order, error) {
	ex, err := g.target()
	if err != nil {
		return nil, err
	}
	return ex.GetStatus(id)
}

func (g *Gate) target() (Executor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mode == ModeLive {
		if !g.approved {
			return nil, model.ErrLiveTradingNotApproved
		}
		if g.live == nil {
			return nil, fmt.Errorf("%w: no live adapter configured", model.ErrLiveTradingNotApproved)
		}
		return g.live, nil
	}
	return g.sim, nil
}

// Mode returns the current routing mode.
func (g *Gate) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// Approved reports whether live routing is unlocked.
func (g *Gate) Approved() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.approved
}

// SetMode switches routing. Existing orders and ledgers are untouched.
func (g *Gate) SetMode(mode Mode) error {
	if mode != ModeSimulation && mode != ModeLive {
		return &model.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	g.mu.Lock()
	g.mode = mode
	hook, approved := g.onModeChange, g.approved
	g.mu.Unlock()

	log.Printf("[INFO] trading mode switched to %s", mode)
	if hook != nil {
		hook(mode, approved)
	}
	return nil
}

// ApproveLive unlocks live routing.
func (g *Gate) ApproveLive() {
	g.mu.Lock()
	g.approved = true
	hook, mode := g.onModeChange, g.mode
	g.mu.Unlock()

	log.Println("[WARN] live trading approved")
	if hook != nil {
		hook(mode, true)
	}
}

// RevokeLive locks live routing again.
func (g *Gate) RevokeLive() {
	g.mu.Lock()
	g.approved = false
	hook, mode := g.onModeChange, g.mode
	g.mu.Unlock()

	log.Println("[INFO] live trading approval revoked")
	if hook != nil {
		hook(mode, false)
	}
}
