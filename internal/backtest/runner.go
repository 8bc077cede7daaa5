// Package backtest replays historical bars through the full signal and
// execution pipeline with a simulated clock.
package backtest

import (
	"errors"
	"fmt"
	"log"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/candles"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/config"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/execution"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/portfolio"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/risk"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/signal"
)

// Result summarizes one deterministic run. Given the same bars and
// configuration, every field reproduces bit for bit.
type Result struct {
	InitialCash float64
	FinalEquity float64
	RealizedPnL float64
	MaxDrawdown float64
	SignalCount int
	Trades      []model.Trade
	Snapshots   []model.PortfolioSnapshot
	SkippedBars int
}

// Runner feeds one pair's HTF/LTF history through detector, generator,
// sizer and execution engine. The logical clock is the bar sequence;
// nothing reads wall-clock time.
type Runner struct {
	cfg    *config.Config
	symbol string
}

// NewRunner builds a runner for one pair. Each pair replays in its own
// runner with its own ledger so results never mix symbols.
func NewRunner(cfg *config.Config, symbol string) *Runner {
	return &Runner{cfg: cfg, symbol: symbol}
}

// Run replays the bar series. htfBars and ltfBars must each be in
// chronological order; integrity violations are skipped and counted.
func (r *Runner) Run(htfBars, ltfBars []model.Candle) (*Result, error) {
	if len(ltfBars) == 0 {
		return nil, fmt.Errorf("no LTF bars to replay")
	}

	htfBars, htfSkipped, _ := candles.Sanitize(htfBars)
	ltfBars, ltfSkipped, _ := candles.Sanitize(ltfBars)

	ledger := portfolio.NewLedger(r.cfg.Sim.InitialCash, r.cfg.Risk.Leverage)
	clock := execution.NewSimClock(ltfBars[0].Time)
	engine := execution.NewEngine(r.cfg.Execution, ledger, clock, execution.NewSeqGenerator(r.symbol))
	sizer := risk.NewSizer(r.cfg.Risk)

	gen, err := signal.New(r.cfg.Signal.Strategy, r.symbol, r.cfg.Signal, r.cfg.Detector, ledger.OpenPositionCount)
	if err != nil {
		return nil, err
	}

	engine.Start()
	defer engine.Stop()

	res := &Result{
		InitialCash: r.cfg.Sim.InitialCash,
		SkippedBars: htfSkipped + ltfSkipped,
	}
	peak := r.cfg.Sim.InitialCash

	htfIdx := 0
	for _, bar := range ltfBars {
		// Feed every HTF bar that has closed by this LTF bar.
		for htfIdx < len(htfBars) && !htfBars[htfIdx].Time.After(bar.Time) {
			if err := gen.OnHTFBar(htfBars[htfIdx]); err != nil && !errors.Is(err, model.ErrDataIntegrity) {
				return nil, err
			}
			htfIdx++
		}

		// The bar close is the tick: resting orders match before any
		// new signal from the same bar can submit.
		engine.OnTick(execution.Tick{Pair: r.symbol, Price: bar.Close, Time: bar.Time})

		sig, err := gen.OnLTFBar(bar)
		if err != nil {
			if errors.Is(err, model.ErrDataIntegrity) {
				res.SkippedBars++
				continue
			}
			return nil, err
		}
		if sig == nil {
			continue
		}
		res.SignalCount++

		qty, err := sizer.Size(sig, ledger.TotalValue(), ledger.AvailableMargin(), sizer.SpecFor(r.symbol))
		if err != nil {
			if errors.Is(err, model.ErrInsufficientSize) {
				continue
			}
			var vErr *model.ValidationError
			if errors.As(err, &vErr) {
				continue
			}
			return nil, err
		}

		order := &model.Order{
			Pair:     r.symbol,
			Side:     sig.Side,
			Type:     model.OrderMarket,
			Quantity: qty,
			SignalID: sig.ID,
		}
		if _, err := engine.Submit(order, sig.ID); err != nil {
			if errors.Is(err, model.ErrInsufficientFunds) {
				continue
			}
			return nil, err
		}

		// Market orders fill on the next tick; replay the close so the
		// fill lands inside this bar.
		engine.OnTick(execution.Tick{Pair: r.symbol, Price: bar.Close, Time: bar.Time})

		equity := ledger.TotalValue()
		if equity > peak {
			peak = equity
		} else if peak > 0 {
			if dd := (peak - equity) / peak; dd > res.MaxDrawdown {
				res.MaxDrawdown = dd
			}
		}
	}

	last := ltfBars[len(ltfBars)-1]
	ledger.Snapshot(last.Time)

	res.FinalEquity = ledger.TotalValue()
	res.RealizedPnL = ledger.RealizedPnL()
	res.Trades = ledger.Trades(portfolio.TradeFilter{})
	res.Snapshots = ledger.Snapshots()

	log.Printf("[INFO] backtest %s: %d signals, %d trades, equity %.2f -> %.2f",
		r.symbol, res.SignalCount, len(res.Trades), res.InitialCash, res.FinalEquity)
	return res, nil
}

// Report renders a short human-readable summary.
func (res *Result) Report() string {
	return fmt.Sprintf(
		"initial %.2f | final %.2f | realized %+.2f | max drawdown %.2f%% | signals %d | trades %d | skipped bars %d",
		res.InitialCash, res.FinalEquity, res.RealizedPnL, res.MaxDrawdown*100,
		res.SignalCount, len(res.Trades), res.SkippedBars)
}
