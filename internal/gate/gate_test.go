package gate

import (
	"errors"
	"testing"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

type stubExecutor struct {
	submits int
	cancels int
}

func (s *stubExecutor) Submit(o *model.Order, _ string) (*model.Order, error) {
	s.submits++
	dup := *o
	dup.ID = "stub-1"
	dup.Status = model.OrderPending
	return &dup, nil
}

func (s *stubExecutor) Cancel(string) error { s.cancels++; return nil }

func (s *stubExecutor) GetStatus(string) (*model.Order, error) {
	return &model.Order{ID: "stub-1"}, nil
}

func order() *model.Order {
	return &model.Order{Pair: "BTCUSDT", Side: model.Long, Type: model.OrderMarket, Quantity: 1}
}

func TestGate_SimulationRoutesToSim(t *testing.T) {
	sim, live := &stubExecutor{}, &stubExecutor{}
	g := New(ModeSimulation, sim, live)

	if _, err := g.Submit(order(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim.submits != 1 || live.submits != 0 {
		t.Errorf("simulation mode must route to the simulator, sim=%d live=%d", sim.submits, live.submits)
	}
}

func TestGate_LiveFailsClosedWithoutApproval(t *testing.T) {
	sim, live := &stubExecutor{}, &stubExecutor{}
	g := New(ModeLive, sim, live)

	if _, err := g.Submit(order(), ""); !errors.Is(err, model.ErrLiveTradingNotApproved) {
		t.Fatalf("expected ErrLiveTradingNotApproved, got %v", err)
	}
	if err := g.Cancel("x"); !errors.Is(err, model.ErrLiveTradingNotApproved) {
		t.Fatalf("expected ErrLiveTradingNotApproved on cancel, got %v", err)
	}
	if sim.submits != 0 || live.submits != 0 {
		t.Error("unapproved live routing must reach no executor at all")
	}
}

func TestGate_ApproveThenRevoke(t *testing.T) {
	sim, live := &stubExecutor{}, &stubExecutor{}
	g := New(ModeLive, sim, live)

	g.ApproveLive()
	if _, err := g.Submit(order(), ""); err != nil {
		t.Fatalf("unexpected error after approval: %v", err)
	}
	if live.submits != 1 {
		t.Errorf("approved live mode must route to live, got %d", live.submits)
	}

	g.RevokeLive()
	if _, err := g.Submit(order(), ""); !errors.Is(err, model.ErrLiveTradingNotApproved) {
		t.Fatalf("expected fail-closed after revoke, got %v", err)
	}
	if live.submits != 1 {
		t.Errorf("revoked gate must not reach live, got %d submits", live.submits)
	}
}

func TestGate_LiveWithoutAdapter(t *testing.T) {
	sim := &stubExecutor{}
	g := New(ModeLive, sim, nil)
	g.ApproveLive()

	if _, err := g.Submit(order(), ""); !errors.Is(err, model.ErrLiveTradingNotApproved) {
		t.Fatalf("approved live mode without an adapter must still fail closed, got %v", err)
	}
}

func TestGate_SetModeValidatesAndNotifies(t *testing.T) {
	sim, live := &stubExecutor{}, &stubExecutor{}
	g := New(ModeSimulation, sim, live)

	var gotMode Mode
	var calls int
	g.SetModeChangeHook(func(mode Mode, approved bool) {
		gotMode = mode
		calls++
	})

	if err := g.SetMode(ModeLive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMode != ModeLive || calls != 1 {
		t.Errorf("expected one hook call with live mode, got %s x%d", gotMode, calls)
	}
	if g.Mode() != ModeLive {
		t.Errorf("expected live mode, got %s", g.Mode())
	}

	var vErr *model.ValidationError
	if err := g.SetMode("warp-speed"); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for unknown mode, got %v", err)
	}
	if g.Mode() != ModeLive {
		t.Error("failed mode switch must not change the mode")
	}
}

// Mode switches must leave the simulated book alone: the ledger is
// owned by the executor, and the gate only routes.
func TestGate_ModeSwitchLeavesSimUntouched(t *testing.T) {
	sim, live := &stubExecutor{}, &stubExecutor{}
	g := New(ModeSimulation, sim, live)

	if _, err := g.Submit(order(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.SetMode(ModeLive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.ApproveLive()
	if _, err := g.Submit(order(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.SetMode(ModeSimulation); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.Submit(order(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sim.submits != 2 || live.submits != 1 {
		t.Errorf("expected sim=2 live=1 submits across switches, got sim=%d live=%d", sim.submits, live.submits)
	}
}
