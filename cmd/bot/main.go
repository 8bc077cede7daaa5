package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/backtest"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/candles"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/config"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/execution"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/gate"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/notifier"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/portfolio"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/recorder"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/risk"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/scheduler"
	tradesignal "github.com/Apocalipcis/smart-trading-bot-sub000/internal/signal"
)

const warmupBars = 300

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	backtestMode := flag.Bool("backtest", false, "run a historical backtest and exit")
	backtestBars := flag.Int("bars", 1000, "LTF bars to backtest")
	flag.Parse()

	log.Println("[INFO] trading bot starting...")

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	var source candles.Source
	if cfg.Exchange.APIKey != "" || !*backtestMode {
		source = candles.NewBinanceSource(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.Testnet)
	} else {
		source = &candles.MockSource{Price: 50000}
	}
	log.Printf("[INFO] data source: %s", source.Name())

	if *backtestMode {
		runBacktest(cfg, source, *backtestBars)
		return
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Telegram notifier and event sink
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	events := notifier.NewEvents(ctx, tn)

	// One ledger and simulation engine for all pairs.
	ledger := portfolio.NewLedger(cfg.Sim.InitialCash, cfg.Risk.Leverage)
	engine := execution.NewEngine(cfg.Execution, ledger, execution.RealClock{}, execution.UUIDGenerator{})
	engine.SetHooks(
		func(t model.Trade, o model.Order) {
			events.OrderFilled(t, o)
			if err := rec.RecordTrade(&t); err != nil {
				log.Printf("[ERROR] record trade: %v", err)
			}
		},
		func(o model.Order) {
			if o.Status == model.OrderPendingConfirmation {
				events.OrderAwaitingConfirmation(o)
			}
			if err := rec.RecordOrder(&o); err != nil {
				log.Printf("[ERROR] record order: %v", err)
			}
		},
	)
	engine.Start()
	defer engine.Stop()

	// Order routing gate. Live dispatch stays locked until explicitly
	// approved, regardless of configured mode.
	var live gate.Executor
	if cfg.Exchange.APIKey != "" && cfg.Exchange.SecretKey != "" {
		live = gate.NewBinanceExecutor(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.Testnet)
	}
	router := gate.New(gate.Mode(cfg.Mode), engine, live)
	router.SetModeChangeHook(func(mode gate.Mode, approved bool) {
		events.TradingModeChanged(string(mode), approved)
	})
	if os.Getenv("APPROVE_LIVE") == "true" {
		router.ApproveLive()
	}

	sizer := risk.NewSizer(cfg.Risk)

	// Per-pair signal generators on live kline streams.
	for _, pair := range cfg.Pairs {
		if err := runPair(ctx, cfg, pair, source, engine, router, sizer, rec, events); err != nil {
			log.Fatalf("[FATAL] start pair %s: %v", pair.Symbol, err)
		}
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, []*execution.Engine{engine}, tn, rec)
	if err := sched.RegisterAll(cfg.Schedule.SnapshotCron, cfg.Schedule.SweepCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, snapshotting now")
		go sched.RunSnapshotNow()
	}

	log.Println("[INFO] trading bot is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] trading bot stopped")
}

// runPair warms one pair's generator from history, then subscribes to
// its HTF and LTF kline streams. Each closed LTF bar first ticks the
// execution engine, then evaluates the strategy; an emitted signal is
// sized and routed through the gate.
func runPair(ctx context.Context, cfg *config.Config, pair config.PairConfig, source candles.Source,
	engine *execution.Engine, router *gate.Gate, sizer *risk.Sizer, rec recorder.Recorder, events *notifier.Events) error {

	gen, err := tradesignal.New(cfg.Signal.Strategy, pair.Symbol, cfg.Signal, cfg.Detector,
		func(p string) int { return engine.Ledger().OpenPositionCount(p) })
	if err != nil {
		return err
	}

	htf := model.Timeframe(pair.HTF)
	ltf := model.Timeframe(pair.LTF)

	// Warm up from history so the detectors start with structure.
	htfBars, err := source.GetBars(ctx, pair.Symbol, htf, warmupBars)
	if err != nil {
		return err
	}
	ltfBars, err := source.GetBars(ctx, pair.Symbol, ltf, warmupBars)
	if err != nil {
		return err
	}
	htfBars, skippedH, err := candles.Sanitize(htfBars)
	if err != nil {
		return err
	}
	ltfBars, skippedL, err := candles.Sanitize(ltfBars)
	if err != nil {
		return err
	}
	if skippedH+skippedL > 0 {
		log.Printf("[WARN] %s: skipped %d out-of-order warmup bars", pair.Symbol, skippedH+skippedL)
	}
	for _, bar := range htfBars {
		if err := gen.OnHTFBar(bar); err != nil {
			return err
		}
	}
	for _, bar := range ltfBars {
		if _, err := gen.OnLTFBar(bar); err != nil {
			return err
		}
	}
	log.Printf("[INFO] %s: warmed with %d %s + %d %s bars", pair.Symbol, len(htfBars), pair.HTF, len(ltfBars), pair.LTF)

	if _, err := source.Subscribe(ctx, pair.Symbol, htf, func(bar model.Candle) {
		if err := gen.OnHTFBar(bar); err != nil {
			log.Printf("[ERROR] %s htf bar: %v", pair.Symbol, err)
		}
	}); err != nil {
		return err
	}

	_, err = source.Subscribe(ctx, pair.Symbol, ltf, func(bar model.Candle) {
		engine.OnTick(execution.Tick{Pair: pair.Symbol, Price: bar.Close, Time: bar.Time.Add(ltf.Duration())})

		sig, err := gen.OnLTFBar(bar)
		if err != nil {
			log.Printf("[ERROR] %s ltf bar: %v", pair.Symbol, err)
			return
		}
		if sig == nil {
			return
		}
		log.Printf("[INFO] %s: signal %s entry=%.2f sl=%.2f tp=%.2f conf=%.2f",
			pair.Symbol, sig.Side, sig.Entry, sig.StopLoss, sig.TakeProfit, sig.Confidence)
		events.SignalEmitted(sig)
		if err := rec.RecordSignal(sig); err != nil {
			log.Printf("[ERROR] record signal: %v", err)
		}

		ledger := engine.Ledger()
		qty, err := sizer.Size(sig, ledger.TotalValue(), ledger.AvailableMargin(), sizer.SpecFor(pair.Symbol))
		if err != nil {
			log.Printf("[WARN] %s: signal not tradable: %v", pair.Symbol, err)
			return
		}

		order := &model.Order{
			Pair:     pair.Symbol,
			Side:     sig.Side,
			Type:     model.OrderMarket,
			Quantity: qty,
			SignalID: sig.ID,
		}
		placed, err := router.Submit(order, sig.ID)
		if err != nil {
			log.Printf("[ERROR] %s: submit order: %v", pair.Symbol, err)
			return
		}
		log.Printf("[INFO] %s: order %s %s qty=%.4f status=%s", pair.Symbol, placed.ID, placed.Type, placed.Quantity, placed.Status)
	})
	return err
}

// runBacktest replays historical bars through the deterministic
// simulation and prints the report.
func runBacktest(cfg *config.Config, source candles.Source, bars int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, pair := range cfg.Pairs {
		htf := model.Timeframe(pair.HTF)
		ltf := model.Timeframe(pair.LTF)
		ratio := int(htf.Duration() / ltf.Duration())

		ltfBars, err := source.GetBars(ctx, pair.Symbol, ltf, bars)
		if err != nil {
			log.Fatalf("[FATAL] fetch %s %s bars: %v", pair.Symbol, pair.LTF, err)
		}
		htfBars, err := source.GetBars(ctx, pair.Symbol, htf, bars/ratio+warmupBars)
		if err != nil {
			log.Fatalf("[FATAL] fetch %s %s bars: %v", pair.Symbol, pair.HTF, err)
		}

		runner := backtest.NewRunner(cfg, pair.Symbol)
		res, err := runner.Run(htfBars, ltfBars)
		if err != nil {
			log.Fatalf("[FATAL] backtest %s: %v", pair.Symbol, err)
		}
		log.Printf("[INFO] backtest %s complete", pair.Symbol)
		os.Stdout.WriteString(res.Report() + "\n")
	}
}
