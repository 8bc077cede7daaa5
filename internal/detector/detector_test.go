package detector

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/config"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

var testCfg = config.DetectorConfig{
	LookbackBars:     5,
	VolumeThreshold:  1.5,
	MinGapPct:        0.001,
	SwingThreshold:   0.005,
	SwingStrength:    1,
	ConfirmationBars: 2,
	BiasMAPeriod:     5,
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, open, high, low, closePx, volume float64) model.Candle {
	return model.Candle{
		Time:   t0.Add(time.Duration(i) * 15 * time.Minute),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePx,
		Volume: volume,
	}
}

func feed(t *testing.T, d *Detector, bars []model.Candle) {
	t.Helper()
	for _, b := range bars {
		if err := d.OnBar(b); err != nil {
			t.Fatalf("OnBar(%s): %v", b.Time, err)
		}
	}
}

func countZones(zones []model.Zone, kind model.ZoneKind, dir model.Direction) int {
	n := 0
	for _, z := range zones {
		if z.Kind == kind && z.Direction == dir {
			n++
		}
	}
	return n
}

func TestOnBar_RejectsOutOfOrderBars(t *testing.T) {
	d := New("BTCUSDT", testCfg)
	if err := d.OnBar(bar(0, 100, 101, 99, 100, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.OnBar(bar(1, 100, 101, 99, 100, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := d.OnBar(bar(1, 100, 101, 99, 100, 10)) // duplicate timestamp
	if !errors.Is(err, model.ErrDataIntegrity) {
		t.Fatalf("expected ErrDataIntegrity, got %v", err)
	}
	if d.BarCount() != 2 {
		t.Errorf("rejected bar must not be ingested, have %d bars", d.BarCount())
	}
	if d.SkippedBars() != 1 {
		t.Errorf("expected 1 skipped bar, got %d", d.SkippedBars())
	}

	// The detector stays usable after a rejection.
	if err := d.OnBar(bar(2, 100, 101, 99, 100, 10)); err != nil {
		t.Fatalf("detector unusable after rejection: %v", err)
	}
}

func TestDetectOrderBlock_BullishImpulse(t *testing.T) {
	d := New("BTCUSDT", testCfg)

	// Quiet alternating bars, then one bearish bar followed by a
	// high-volume bullish impulse.
	var bars []model.Candle
	for i := 0; i < 6; i++ {
		bars = append(bars, bar(i, 100, 100.5, 99.5, 100.1, 100))
	}
	bars = append(bars, bar(6, 100.1, 100.3, 99.4, 99.5, 100)) // opposing bearish candle
	bars = append(bars, bar(7, 99.5, 103, 99.4, 102.8, 400))   // impulse, 4x volume
	feed(t, d, bars)

	if got := countZones(d.Zones(), model.ZoneOrderBlock, model.Bullish); got != 1 {
		t.Fatalf("expected exactly 1 bullish order block, got %d", got)
	}
	for _, z := range d.Zones() {
		if z.Kind != model.ZoneOrderBlock {
			continue
		}
		if z.PriceLow != 99.4 || z.PriceHigh != 100.3 {
			t.Errorf("order block should span the opposing candle, got [%.2f, %.2f]", z.PriceLow, z.PriceHigh)
		}
	}
}

func TestDetectOrderBlock_NormalVolumeIgnored(t *testing.T) {
	d := New("BTCUSDT", testCfg)
	var bars []model.Candle
	for i := 0; i < 7; i++ {
		bars = append(bars, bar(i, 100, 100.5, 99.5, 100.1, 100))
	}
	// Same impulse shape, but volume below the threshold multiple.
	bars = append(bars, bar(7, 99.5, 103, 99.4, 102.8, 120))
	feed(t, d, bars)

	if got := countZones(d.Zones(), model.ZoneOrderBlock, model.Bullish); got != 0 {
		t.Errorf("expected no order block without a volume spike, got %d", got)
	}
}

func TestDetectFairValueGap_BothDirections(t *testing.T) {
	d := New("BTCUSDT", testCfg)
	feed(t, d, []model.Candle{
		bar(0, 100, 101, 99, 100.5, 100),
		bar(1, 100.5, 104, 100.4, 103.8, 150),
		bar(2, 103.8, 106, 103, 105.5, 150), // low 103 > bar0 high 101: bullish gap
	})
	if got := countZones(d.Zones(), model.ZoneFairValueGap, model.Bullish); got != 1 {
		t.Fatalf("expected 1 bullish FVG, got %d", got)
	}
	z := d.Zones()[0]
	if z.PriceLow != 101 || z.PriceHigh != 103 {
		t.Errorf("FVG should span the imbalance, got [%.2f, %.2f]", z.PriceLow, z.PriceHigh)
	}

	d2 := New("BTCUSDT", testCfg)
	feed(t, d2, []model.Candle{
		bar(0, 105, 106, 104, 104.5, 100),
		bar(1, 104.5, 104.6, 101, 101.2, 150),
		bar(2, 101.2, 102, 99, 99.5, 150), // high 102 < bar0 low 104: bearish gap
	})
	if got := countZones(d2.Zones(), model.ZoneFairValueGap, model.Bearish); got != 1 {
		t.Errorf("expected 1 bearish FVG, got %d", got)
	}
}

func TestDetectFairValueGap_TinyGapIgnored(t *testing.T) {
	cfg := testCfg
	cfg.MinGapPct = 0.01 // 1% of price
	d := New("BTCUSDT", cfg)
	feed(t, d, []model.Candle{
		bar(0, 100, 100.2, 99.8, 100, 100),
		bar(1, 100, 100.5, 99.9, 100.4, 100),
		bar(2, 100.4, 100.7, 100.3, 100.6, 100), // gap 0.1, below 1%
	})
	if got := countZones(d.Zones(), model.ZoneFairValueGap, model.Bullish); got != 0 {
		t.Errorf("expected gap below threshold to be ignored, got %d zones", got)
	}
}

func TestDetectSweeps_SameBarReclaim(t *testing.T) {
	d := New("BTCUSDT", testCfg)
	feed(t, d, []model.Candle{
		bar(0, 100, 101, 100, 100.5, 100),
		bar(1, 100.5, 100.8, 95, 96, 100), // swing low pivot at 95
		bar(2, 96, 101, 100, 100.5, 100),  // confirms the pivot, pool at 95
		bar(3, 100.5, 101, 100, 100.6, 100),
		bar(4, 100.6, 101, 94, 97, 200), // wick below 95, close back above
	})

	var sweeps []Event
	for _, e := range d.Events() {
		if e.Kind == EventSweep {
			sweeps = append(sweeps, e)
		}
	}
	if len(sweeps) != 1 {
		t.Fatalf("expected exactly 1 sweep event, got %d", len(sweeps))
	}
	s := sweeps[0]
	if s.Direction != model.Bullish {
		t.Errorf("sweep of a swing-low pool should be bullish, got %s", s.Direction)
	}
	if s.Level != 95 {
		t.Errorf("sweep level should be the pool price 95, got %.2f", s.Level)
	}
	if s.BarIndex != 4 {
		t.Errorf("sweep should confirm on bar 4, got %d", s.BarIndex)
	}

	// The swept pool is consumed.
	for _, z := range d.Zones() {
		if z.ID == s.ZoneID && z.Status != model.ZoneMitigated {
			t.Errorf("swept pool should be mitigated, got %s", z.Status)
		}
	}
}

func TestDetectSweeps_NextBarReclaim(t *testing.T) {
	d := New("BTCUSDT", testCfg)
	feed(t, d, []model.Candle{
		bar(0, 100, 101, 100, 100.5, 100),
		bar(1, 100.5, 100.8, 95, 96, 100),
		bar(2, 96, 101, 100, 100.5, 100),
		bar(3, 100.5, 101, 94, 94.5, 200), // pierce, close still below
		bar(4, 94.5, 101, 94.4, 100, 200), // next bar reclaims
	})
	found := false
	for _, e := range d.Events() {
		if e.Kind == EventSweep && e.Direction == model.Bullish && e.BarIndex == 4 {
			found = true
		}
	}
	if !found {
		t.Error("expected a bullish sweep confirmed on the reclaim bar")
	}
}

func TestDetectSweeps_NoReclaimConsumesWithoutEvent(t *testing.T) {
	d := New("BTCUSDT", testCfg)
	feed(t, d, []model.Candle{
		bar(0, 100, 101, 100, 100.5, 100),
		bar(1, 100.5, 100.8, 95, 96, 100),
		bar(2, 96, 101, 100, 100.5, 100),
		bar(3, 100.5, 101, 94, 94.2, 200), // pierce, no reclaim
		bar(4, 94.2, 94.8, 93, 93.5, 200), // keeps falling
	})
	for _, e := range d.Events() {
		if e.Kind == EventSweep {
			t.Fatalf("no sweep should confirm without a reclaim, got %+v", e)
		}
	}
	for _, z := range d.Zones() {
		if z.Kind == model.ZoneLiquidityPool && z.Status == model.ZoneActive {
			t.Error("pierced pool without reclaim should no longer be active")
		}
	}
}

// risingSeries builds a stair-step uptrend with distinct swing pivots.
func risingSeries(n int) []model.Candle {
	bars := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)*0.8
		dip := 0.0
		if i%4 == 3 {
			dip = 2.0 // periodic pullback bar creates swing structure
		}
		bars[i] = bar(i, base-dip, base+1.2-dip, base-1.2-dip, base+0.6-dip, 100+float64(i%7)*30)
	}
	return bars
}

func TestDetectBreak_BOSInTrend(t *testing.T) {
	d := New("BTCUSDT", testCfg)
	feed(t, d, risingSeries(60))

	var bos int
	for _, e := range d.Events() {
		if e.Kind == EventBOS && e.Direction == model.Bullish {
			bos++
		}
	}
	if bos == 0 {
		t.Error("expected at least one bullish break of structure in a stepping uptrend")
	}
	if d.Bias() != model.Bullish {
		t.Errorf("expected bullish bias in an uptrend, got %s", d.Bias())
	}
}

func TestDetectBreak_ChoCHFlipsBiasAndInvalidatesOpposing(t *testing.T) {
	cfg := testCfg
	cfg.BiasMAPeriod = 30 // long enough that the reversal stays under it
	d := New("BTCUSDT", cfg)

	// Downtrend long enough to set a bearish bias and bearish zones.
	var bars []model.Candle
	for i := 0; i < 40; i++ {
		base := 130 - float64(i)*0.8
		lift := 0.0
		if i%4 == 3 {
			lift = 2.0
		}
		bars = append(bars, bar(i, base+lift, base+1.2+lift, base-1.2+lift, base-0.6+lift, 100))
	}
	feed(t, d, bars)
	if d.Bias() != model.Bearish {
		t.Fatalf("setup should produce a bearish bias, got %s", d.Bias())
	}

	// Recovery: closes hold above the latest lower high (105.2) while
	// still under the long moving average, so the bias is bearish when
	// the break confirms.
	for i := 40; i < 46; i++ {
		feed(t, d, []model.Candle{bar(i, 106, 107.5, 105.4, 106.5, 150)})
	}

	var choch bool
	for _, e := range d.Events() {
		if e.Kind == EventChoCH && e.Direction == model.Bullish {
			choch = true
		}
	}
	if !choch {
		t.Fatal("expected a bullish change of character on reversal")
	}
	if d.Bias() != model.Bullish {
		t.Errorf("ChoCH should flip the bias to bullish, got %s", d.Bias())
	}
	for _, z := range d.Zones() {
		if z.Direction == model.Bearish && z.Status != model.ZoneInvalidated {
			t.Errorf("bearish zone %s should be invalidated after bullish ChoCH, got %s", z.ID, z.Status)
		}
	}
}

func TestZoneLifecycle_MitigationAndInvalidation(t *testing.T) {
	d := New("BTCUSDT", testCfg)
	// Bullish FVG spanning [101, 103].
	feed(t, d, []model.Candle{
		bar(0, 100, 101, 99, 100.5, 100),
		bar(1, 100.5, 104, 100.4, 103.8, 150),
		bar(2, 103.8, 106, 103, 105.5, 150),
	})
	zoneID := d.Zones()[0].ID

	// Touching the upper half keeps the zone active.
	feed(t, d, []model.Candle{bar(3, 105.5, 105.6, 102.5, 102.8, 100)})
	if z := findZone(d, zoneID); z.Status != model.ZoneActive {
		t.Fatalf("touch above midpoint should keep the zone active, got %s", z.Status)
	}

	// Closing below the midpoint (102) mitigates.
	feed(t, d, []model.Candle{bar(4, 102.8, 103, 101.4, 101.5, 100)})
	if z := findZone(d, zoneID); z.Status != model.ZoneMitigated {
		t.Fatalf("close past midpoint should mitigate, got %s", z.Status)
	}

	// Closing below the far bound invalidates; it never comes back.
	feed(t, d, []model.Candle{bar(5, 101.5, 101.6, 100, 100.2, 100)})
	if z := findZone(d, zoneID); z.Status != model.ZoneInvalidated {
		t.Fatalf("close beyond the far bound should invalidate, got %s", z.Status)
	}
	feed(t, d, []model.Candle{bar(6, 100.2, 106, 100, 105.8, 100)})
	if z := findZone(d, zoneID); z.Status != model.ZoneInvalidated {
		t.Errorf("invalidated zone must stay invalidated, got %s", z.Status)
	}
}

func findZone(d *Detector, id string) model.Zone {
	for _, z := range d.Zones() {
		if z.ID == id {
			return z
		}
	}
	return model.Zone{}
}

// noisySeries is a deterministic pseudo-random walk.
func noisySeries(n int) []model.Candle {
	bars := make([]model.Candle, n)
	price := 100.0
	seed := uint64(42)
	rnd := func() float64 {
		seed = seed*6364136223846793005 + 1442695040888963407
		return float64(seed>>33)/float64(1<<31) - 0.5
	}
	for i := 0; i < n; i++ {
		move := rnd() * 2
		open := price
		price = math.Max(1, price+move)
		high := math.Max(open, price) + math.Abs(rnd())
		low := math.Min(open, price) - math.Abs(rnd())
		bars[i] = bar(i, open, high, low, price, 100+math.Abs(rnd())*200)
	}
	return bars
}

func TestNoLookAhead_PrefixReplayMatches(t *testing.T) {
	series := noisySeries(200)
	const prefix = 120

	full := New("BTCUSDT", testCfg)
	feed(t, full, series)

	part := New("BTCUSDT", testCfg)
	feed(t, part, series[:prefix])

	partEvents := part.Events()
	var fullPrefix []Event
	for _, e := range full.Events() {
		if e.BarIndex < prefix {
			fullPrefix = append(fullPrefix, e)
		}
	}
	if len(fullPrefix) != len(partEvents) {
		t.Fatalf("full run has %d events before bar %d, prefix run has %d",
			len(fullPrefix), prefix, len(partEvents))
	}
	for i := range partEvents {
		a, b := partEvents[i], fullPrefix[i]
		if a.Kind != b.Kind || a.Direction != b.Direction || a.BarIndex != b.BarIndex || a.Level != b.Level {
			t.Errorf("event %d diverges: prefix %+v vs full %+v", i, a, b)
		}
	}
}

func TestWarm(t *testing.T) {
	d := New("BTCUSDT", testCfg)
	if d.Warm() {
		t.Error("fresh detector must not be warm")
	}
	feed(t, d, risingSeries(10))
	if !d.Warm() {
		t.Error("detector should be warm past the longest configured lookback")
	}
}
