package signal

import (
	"fmt"
	"math"
	"sync"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/config"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/detector"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/indicator"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

func init() {
	Register("smc", func(symbol string, cfg config.SignalConfig, det config.DetectorConfig, openPositions func(string) int) Engine {
		return NewGenerator(symbol, cfg, det, openPositions)
	})
}

// Generator pairs an HTF bias detector with an LTF trigger detector
// and emits signals when structure, trigger and filters agree.
//
// Per-bar evaluation walks awaiting_htf_bias -> awaiting_ltf_trigger ->
// filter_evaluation -> emit|discard; any failed stage discards silently
// for that bar.
//
// Safe for concurrent use: the HTF and LTF feeds arrive on separate
// stream goroutines in live mode, so a mutex serializes both detectors.
type Generator struct {
	cfg    config.SignalConfig
	symbol string

	mu  sync.Mutex
	htf *detector.Detector
	ltf *detector.Detector

	filters       []Filter
	openPositions func(pair string) int

	state string
	seq   int
}

// NewGenerator builds the SMC generator for one pair.
func NewGenerator(symbol string, cfg config.SignalConfig, det config.DetectorConfig, openPositions func(string) int) *Generator {
	return &Generator{
		cfg:           cfg,
		symbol:        symbol,
		htf:           detector.New(symbol+"-htf", det),
		ltf:           detector.New(symbol+"-ltf", det),
		filters:       filterSet(cfg),
		openPositions: openPositions,
		state:         "awaiting_htf_bias",
	}
}

func (g *Generator) Symbol() string { return g.symbol }

// State returns the last evaluation stage reached, for reporting.
func (g *Generator) State() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Warm reports whether both feeds have enough history to evaluate.
func (g *Generator) Warm() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.warm()
}

func (g *Generator) warm() bool { return g.htf.Warm() && g.ltf.Warm() }

// OnHTFBar feeds the bias series.
func (g *Generator) OnHTFBar(c model.Candle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.htf.OnBar(c)
}

// OnLTFBar feeds the trigger series and evaluates. Returns a signal
// when one is emitted, nil otherwise. Data-integrity errors from the
// detector propagate; the caller records the gap and continues.
func (g *Generator) OnLTFBar(c model.Candle) (*model.Signal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ltf.OnBar(c); err != nil {
		return nil, err
	}
	return g.evaluate(), nil
}

func (g *Generator) evaluate() *model.Signal {
	g.state = "awaiting_htf_bias"
	if !g.warm() {
		return nil
	}

	bias := g.htf.Bias()
	if bias == model.Neutral {
		return nil
	}
	zones := g.htf.ActiveZones(bias)
	if len(zones) == 0 {
		return nil
	}

	g.state = "awaiting_ltf_trigger"
	bars := g.ltf.Bars()
	last := bars[len(bars)-1]

	zone, ok := g.nearestZone(zones, last.Close)
	if !ok {
		return nil
	}

	trigger, triggerKinds := g.trigger(bias)
	if !trigger {
		return nil
	}

	side := model.Long
	if bias == model.Bearish {
		side = model.Short
	}

	g.state = "filter_evaluation"
	var passed []string
	for _, f := range g.filters {
		if f.Pass(bars, side) {
			passed = append(passed, f.Name())
		}
	}
	if len(passed) < g.cfg.MinFiltersRequired {
		g.state = "discard"
		return nil
	}

	if g.openPositions != nil && g.openPositions(g.symbol) >= g.cfg.MaxPositions {
		g.state = "discard"
		return nil
	}

	sig := g.build(side, last, zone, passed, triggerKinds)
	if sig == nil {
		g.state = "discard"
		return nil
	}
	g.state = "emit"
	return sig
}

// nearestZone picks the aligned zone closest to price, requiring price
// to be inside the zone or within the configured proximity of it.
func (g *Generator) nearestZone(zones []model.Zone, price float64) (model.Zone, bool) {
	tol := price * g.cfg.ZoneProximityPct
	best := -1
	bestDist := math.Inf(1)
	for i, z := range zones {
		var dist float64
		switch {
		case z.Contains(price):
			dist = 0
		case price > z.PriceHigh:
			dist = price - z.PriceHigh
		default:
			dist = z.PriceLow - price
		}
		if dist <= tol && dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return model.Zone{}, false
	}
	return zones[best], true
}

// trigger requires a confirmed liquidity sweep or a break of structure
// in the bias direction within the most recent LTF bars.
func (g *Generator) trigger(bias model.Direction) (bool, []detector.EventKind) {
	var kinds []detector.EventKind
	for _, e := range g.ltf.RecentEvents(2) {
		if e.Direction != bias {
			continue
		}
		if e.Kind == EventSweepKind || e.Kind == EventBOSKind {
			kinds = append(kinds, e.Kind)
		}
	}
	return len(kinds) > 0, kinds
}

// Trigger event kinds accepted by the generator.
const (
	EventSweepKind = detector.EventSweep
	EventBOSKind   = detector.EventBOS
)

// build computes stop, target and confidence. A candidate that cannot
// satisfy the minimum risk-reward ratio is discarded, never emitted.
func (g *Generator) build(side model.Side, last model.Candle, zone model.Zone, passed []string, triggers []detector.EventKind) *model.Signal {
	atr, err := indicator.ATR(g.ltf.Bars(), g.cfg.ATRPeriod)
	if err != nil {
		return nil
	}
	buffer := g.cfg.SLBufferATR * atr
	entry := last.Close

	var stop, target float64
	if side == model.Long {
		stop = zone.PriceLow - buffer
		risk := entry - stop
		if risk <= 0 {
			return nil
		}
		target = entry + g.cfg.MinRiskReward*risk
	} else {
		stop = zone.PriceHigh + buffer
		risk := stop - entry
		if risk <= 0 {
			return nil
		}
		target = entry - g.cfg.MinRiskReward*risk
	}

	confidence := g.cfg.BaseConfidence
	for _, name := range passed {
		confidence += g.cfg.FilterWeights[name]
	}
	for _, k := range triggers {
		switch k {
		case detector.EventSweep:
			confidence += g.cfg.SweepWeight
		case detector.EventBOS:
			confidence += g.cfg.BOSWeight
		}
	}
	confidence = math.Min(1, math.Max(0, confidence))

	g.seq++
	sig := &model.Signal{
		ID:             fmt.Sprintf("%s-sig-%d", g.symbol, g.seq),
		Pair:           g.symbol,
		Side:           side,
		Entry:          entry,
		StopLoss:       stop,
		TakeProfit:     target,
		Confidence:     confidence,
		Time:           last.Time,
		MatchedZoneIDs: []string{zone.ID},
		FiltersPassed:  passed,
		Metadata: map[string]string{
			"zone_kind": string(zone.Kind),
			"htf_bias":  string(g.htf.Bias()),
		},
	}
	if sig.RiskReward() < g.cfg.MinRiskReward-1e-9 {
		return nil
	}
	return sig
}
