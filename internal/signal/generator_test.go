package signal

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/config"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

var sigCfg = config.SignalConfig{
	Strategy:           "smc",
	MinRiskReward:      2,
	MinFiltersRequired: 1,
	Filters:            []string{"rsi"},
	FilterWeights:      map[string]float64{"rsi": 0.1},
	BaseConfidence:     0.4,
	SweepWeight:        0.15,
	BOSWeight:          0.1,
	SLBufferATR:        0.5,
	ATRPeriod:          3,
	ZoneProximityPct:   0.05,
	MaxPositions:       1,
	RSIOverbought:      70,
	RSIOversold:        30,
	VolumeRatioMin:     1.2,
}

var detCfg = config.DetectorConfig{
	LookbackBars:     5,
	VolumeThreshold:  1.5,
	MinGapPct:        0.001,
	SwingThreshold:   0.005,
	SwingStrength:    1,
	ConfirmationBars: 2,
	BiasMAPeriod:     5,
}

var gt0 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func htfBar(i int, open, high, low, closePx float64) model.Candle {
	return model.Candle{
		Time: gt0.Add(time.Duration(i) * 4 * time.Hour),
		Open: open, High: high, Low: low, Close: closePx, Volume: 100,
	}
}

func ltfBar(i int, open, high, low, closePx, volume float64) model.Candle {
	return model.Candle{
		Time: gt0.Add(time.Duration(i) * 15 * time.Minute),
		Open: open, High: high, Low: low, Close: closePx, Volume: volume,
	}
}

// bullishSetup yields an HTF uptrend holding one bullish fair value gap
// at [99, 100], and an LTF series whose fifth bar sweeps a swing-low
// pool and reclaims it within the bar.
func bullishSetup() (htf, ltf []model.Candle) {
	htf = []model.Candle{
		htfBar(0, 95, 96.5, 94.5, 96),
		htfBar(1, 96, 98.1, 95.5, 97),
		htfBar(2, 97, 99, 96.5, 98.5),
		htfBar(3, 98.5, 100.3, 98, 100),
		htfBar(4, 100, 101.2, 100.0, 101),
		htfBar(5, 101, 101.5, 100.3, 101.1),
		htfBar(6, 101.1, 101.6, 100.5, 101.3),
	}
	ltf = []model.Candle{
		ltfBar(0, 100, 100.8, 99.8, 100.3, 100),
		ltfBar(1, 100.3, 100.5, 99.2, 99.6, 100),
		ltfBar(2, 99.6, 100.7, 99.75, 100.4, 100),
		ltfBar(3, 100.4, 100.9, 100.1, 100.6, 100),
		ltfBar(4, 100.6, 100.8, 99.0, 100.5, 150), // sweep of the 99.2 pool
		ltfBar(5, 100.5, 100.9, 100.2, 100.6, 100),
	}
	return htf, ltf
}

func TestGenerator_EmitsLongOnSweepIntoZone(t *testing.T) {
	gen := NewGenerator("BTCUSDT", sigCfg, detCfg, nil)
	htf, ltf := bullishSetup()
	for _, b := range htf {
		if err := gen.OnHTFBar(b); err != nil {
			t.Fatalf("htf bar: %v", err)
		}
	}

	var emitted []*model.Signal
	for _, b := range ltf {
		sig, err := gen.OnLTFBar(b)
		if err != nil {
			t.Fatalf("ltf bar: %v", err)
		}
		if sig != nil {
			emitted = append(emitted, sig)
		}
	}
	if len(emitted) != 1 {
		t.Fatalf("expected exactly 1 signal, got %d", len(emitted))
	}
	sig := emitted[0]

	if sig.Side != model.Long {
		t.Errorf("bullish bias should emit a long, got %s", sig.Side)
	}
	if sig.Entry != 100.6 {
		t.Errorf("entry should be the trigger bar close, got %.4f", sig.Entry)
	}
	if sig.StopLoss >= 99 {
		t.Errorf("stop should sit below the zone low with the ATR buffer, got %.4f", sig.StopLoss)
	}
	if rr := sig.RiskReward(); rr < sigCfg.MinRiskReward-1e-9 {
		t.Errorf("risk-reward %.4f below minimum %.1f", rr, sigCfg.MinRiskReward)
	}
	// base 0.4 + rsi 0.1 + sweep 0.15
	if math.Abs(sig.Confidence-0.65) > 1e-9 {
		t.Errorf("expected confidence 0.65, got %.4f", sig.Confidence)
	}
	if len(sig.MatchedZoneIDs) != 1 {
		t.Errorf("expected one matched zone, got %v", sig.MatchedZoneIDs)
	}
	if len(sig.FiltersPassed) != 1 || sig.FiltersPassed[0] != "rsi" {
		t.Errorf("expected rsi filter pass, got %v", sig.FiltersPassed)
	}
	if sig.ID != "BTCUSDT-sig-1" {
		t.Errorf("signal IDs must be deterministic per pair, got %q", sig.ID)
	}
	if gen.State() != "emit" {
		t.Errorf("expected emit state, got %q", gen.State())
	}
}

func TestGenerator_NoSignalBeforeWarm(t *testing.T) {
	gen := NewGenerator("BTCUSDT", sigCfg, detCfg, nil)
	_, ltf := bullishSetup()
	// No HTF history at all: the HTF detector never warms up.
	for _, b := range ltf {
		sig, err := gen.OnLTFBar(b)
		if err != nil {
			t.Fatalf("ltf bar: %v", err)
		}
		if sig != nil {
			t.Fatalf("cold generator must not emit, got %+v", sig)
		}
	}
}

func TestGenerator_PositionCapBlocksEmission(t *testing.T) {
	gen := NewGenerator("BTCUSDT", sigCfg, detCfg, func(string) int { return 1 })
	htf, ltf := bullishSetup()
	for _, b := range htf {
		if err := gen.OnHTFBar(b); err != nil {
			t.Fatalf("htf bar: %v", err)
		}
	}
	for _, b := range ltf {
		sig, err := gen.OnLTFBar(b)
		if err != nil {
			t.Fatalf("ltf bar: %v", err)
		}
		if sig != nil {
			t.Fatalf("open position at the cap must block emission, got %+v", sig)
		}
	}
	if gen.State() != "discard" {
		t.Errorf("expected discard state at the position cap, got %q", gen.State())
	}
}

func TestGenerator_FilterQuorumBlocksEmission(t *testing.T) {
	cfg := sigCfg
	cfg.MinFiltersRequired = 2 // only one filter configured, quorum unreachable
	gen := NewGenerator("BTCUSDT", cfg, detCfg, nil)
	htf, ltf := bullishSetup()
	for _, b := range htf {
		if err := gen.OnHTFBar(b); err != nil {
			t.Fatalf("htf bar: %v", err)
		}
	}
	for _, b := range ltf {
		sig, err := gen.OnLTFBar(b)
		if err != nil {
			t.Fatalf("ltf bar: %v", err)
		}
		if sig != nil {
			t.Fatalf("unreachable filter quorum must block emission, got %+v", sig)
		}
	}
}

// Property: whatever the series throws at it, an emitted signal always
// satisfies the minimum risk-reward and keeps confidence in [0,1].
func TestGenerator_EmittedSignalsAlwaysSatisfyInvariants(t *testing.T) {
	gen := NewGenerator("ETHUSDT", sigCfg, detCfg, nil)

	seed := uint64(7)
	rnd := func() float64 {
		seed = seed*6364136223846793005 + 1442695040888963407
		return float64(seed>>33)/float64(1<<31) - 0.5
	}
	price := 2000.0
	walk := func(i int, step time.Duration) model.Candle {
		move := rnd() * 12
		open := price
		price = math.Max(1, price+move)
		return model.Candle{
			Time:   gt0.Add(time.Duration(i) * step),
			Open:   open,
			High:   math.Max(open, price) + math.Abs(rnd())*6,
			Low:    math.Min(open, price) - math.Abs(rnd())*6,
			Close:  price,
			Volume: 100 + math.Abs(rnd())*300,
		}
	}

	for i := 0; i < 80; i++ {
		if err := gen.OnHTFBar(walk(i, 4*time.Hour)); err != nil {
			t.Fatalf("htf bar %d: %v", i, err)
		}
	}
	price = 2000.0
	checked := 0
	for i := 0; i < 400; i++ {
		sig, err := gen.OnLTFBar(walk(i, 15*time.Minute))
		if err != nil {
			t.Fatalf("ltf bar %d: %v", i, err)
		}
		if sig == nil {
			continue
		}
		checked++
		if rr := sig.RiskReward(); rr < sigCfg.MinRiskReward-1e-9 {
			t.Errorf("signal %s emitted with risk-reward %.4f below minimum", sig.ID, rr)
		}
		if sig.Confidence < 0 || sig.Confidence > 1 {
			t.Errorf("signal %s confidence %.4f outside [0,1]", sig.ID, sig.Confidence)
		}
		if sig.Side != model.Long && sig.Side != model.Short {
			t.Errorf("signal %s has invalid side %q", sig.ID, sig.Side)
		}
	}
	t.Logf("checked %d emitted signals", checked)
}

// Live mode delivers HTF and LTF bars on separate stream goroutines;
// both feeds must be usable concurrently without corrupting detector
// state. Run with -race.
func TestGenerator_ConcurrentFeeds(t *testing.T) {
	gen := NewGenerator("BTCUSDT", sigCfg, detCfg, nil)

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		px := 100.0
		for i := 0; i < n; i++ {
			px += 0.2
			if err := gen.OnHTFBar(htfBar(i, px-0.2, px+0.5, px-0.6, px)); err != nil {
				t.Errorf("htf bar %d: %v", i, err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		px := 100.0
		for i := 0; i < n; i++ {
			px -= 0.05
			if _, err := gen.OnLTFBar(ltfBar(i, px+0.05, px+0.3, px-0.3, px, 100)); err != nil {
				t.Errorf("ltf bar %d: %v", i, err)
				return
			}
		}
	}()
	wg.Wait()

	if !gen.Warm() {
		t.Error("generator should be warm after both feeds completed")
	}
}

func TestRegistry(t *testing.T) {
	names := Names()
	found := false
	for _, n := range names {
		if n == "smc" {
			found = true
		}
	}
	if !found {
		t.Fatalf("smc strategy should be registered, have %v", names)
	}

	eng, err := New("smc", "BTCUSDT", sigCfg, detCfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.Symbol() != "BTCUSDT" {
		t.Errorf("expected symbol BTCUSDT, got %s", eng.Symbol())
	}

	if _, err := New("does-not-exist", "BTCUSDT", sigCfg, detCfg, nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
