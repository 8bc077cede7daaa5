// Package detector reconstructs directional market structure from a
// streaming candle series: order blocks, fair value gaps, liquidity
// pools, sweeps and break-of-structure events.
//
// Detection is strictly incremental: a bar at index i only ever sees
// bars at index <= i, so replaying any prefix of the series yields the
// exact state the live run had at that point.
package detector

import (
	"fmt"
	"time"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/config"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/indicator"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// EventKind classifies a structural event.
type EventKind string

const (
	EventSweep EventKind = "liquidity_sweep"
	EventBOS   EventKind = "break_of_structure"
	EventChoCH EventKind = "change_of_character"
)

// Event is a confirmed structural occurrence tied to one bar.
type Event struct {
	Kind      EventKind
	Direction model.Direction
	BarIndex  int
	Level     float64
	Time      time.Time
	ZoneID    string // swept pool, for sweep events
}

type swingPoint struct {
	Index int
	Price float64
	Time  time.Time
}

// Detector owns the zone set and swing levels for one (symbol,
// timeframe) series. Not safe for concurrent use; callers feed bars
// from a single goroutine.
type Detector struct {
	cfg    config.DetectorConfig
	symbol string

	bars   []model.Candle
	zones  []*model.Zone
	events []Event

	swingHighs []swingPoint
	swingLows  []swingPoint

	bias model.Direction

	// pending break confirmation
	breakDir   model.Direction
	breakLevel float64
	breakCount int

	lastBrokenHigh int // swing index already consumed by a break
	lastBrokenLow  int

	obSources map[int]bool // bar indexes already used as order blocks
	pierced   map[string]int // pool zone id -> bar index of wick pierce

	seq     int
	skipped int
}

// New creates a detector for one candle series.
func New(symbol string, cfg config.DetectorConfig) *Detector {
	return &Detector{
		cfg:            cfg,
		symbol:         symbol,
		bias:           model.Neutral,
		lastBrokenHigh: -1,
		lastBrokenLow:  -1,
		obSources:      make(map[int]bool),
		pierced:        make(map[string]int),
	}
}

// OnBar ingests the next closed bar. Out-of-order or duplicate bars
// are skipped and reported as a wrapped model.ErrDataIntegrity; the
// detector stays usable.
func (d *Detector) OnBar(c model.Candle) error {
	if n := len(d.bars); n > 0 && !c.Time.After(d.bars[n-1].Time) {
		d.skipped++
		return fmt.Errorf("%w: bar %s not after %s", model.ErrDataIntegrity, c.Time, d.bars[n-1].Time)
	}
	d.bars = append(d.bars, c)
	i := len(d.bars) - 1

	d.confirmSwings(i)
	d.updateBias()
	d.detectOrderBlock(i)
	d.detectFairValueGap(i)
	d.detectSweeps(i)
	d.detectBreak(i)
	d.updateZoneLifecycle(i)
	return nil
}

// confirmSwings confirms the pivot at i-strength once `strength` bars
// have printed on both sides of it. Swings whose prominence exceeds
// SwingThreshold become liquidity pools.
func (d *Detector) confirmSwings(i int) {
	k := d.cfg.SwingStrength
	pivot := i - k
	if pivot < k {
		return
	}
	p := d.bars[pivot]

	isHigh, isLow := true, true
	var wingHigh, wingLow float64
	for j := pivot - k; j <= pivot+k; j++ {
		if j == pivot {
			continue
		}
		b := d.bars[j]
		if b.High >= p.High {
			isHigh = false
		} else if b.High > wingHigh {
			wingHigh = b.High
		}
		if b.Low <= p.Low {
			isLow = false
		} else if wingLow == 0 || b.Low < wingLow {
			wingLow = b.Low
		}
	}

	if isHigh {
		d.swingHighs = append(d.swingHighs, swingPoint{Index: pivot, Price: p.High, Time: p.Time})
		if p.High > 0 && (p.High-wingHigh)/p.High >= d.cfg.SwingThreshold {
			d.addZone(model.ZoneLiquidityPool, model.Bearish, p.High, p.High, p.Time)
		}
	}
	if isLow {
		d.swingLows = append(d.swingLows, swingPoint{Index: pivot, Price: p.Low, Time: p.Time})
		if p.Low > 0 && (wingLow-p.Low)/p.Low >= d.cfg.SwingThreshold {
			d.addZone(model.ZoneLiquidityPool, model.Bullish, p.Low, p.Low, p.Time)
		}
	}
}

// structureDir derives trend continuity from the last two confirmed
// swing highs and lows.
func (d *Detector) structureDir() model.Direction {
	nh, nl := len(d.swingHighs), len(d.swingLows)
	if nh < 2 || nl < 2 {
		return model.Neutral
	}
	hh := d.swingHighs[nh-1].Price > d.swingHighs[nh-2].Price
	hl := d.swingLows[nl-1].Price > d.swingLows[nl-2].Price
	switch {
	case hh && hl:
		return model.Bullish
	case !hh && !hl:
		return model.Bearish
	}
	return model.Neutral
}

// updateBias combines the trailing moving average with swing-structure
// continuity into a tri-state directional bias.
func (d *Detector) updateBias() {
	ma, err := indicator.SMA(indicator.Closes(d.bars), d.cfg.BiasMAPeriod)
	if err != nil {
		d.bias = model.Neutral
		return
	}
	structure := d.structureDir()
	last := d.bars[len(d.bars)-1].Close
	switch {
	case last > ma && structure != model.Bearish:
		d.bias = model.Bullish
	case last < ma && structure != model.Bullish:
		d.bias = model.Bearish
	default:
		d.bias = model.Neutral
	}
}

// detectOrderBlock marks the last opposite-direction bar preceding an
// impulsive, high-volume move as an order block.
func (d *Detector) detectOrderBlock(i int) {
	if i < d.cfg.LookbackBars+1 {
		return
	}
	cur := d.bars[i]
	if cur.Body() == 0 {
		return
	}

	var volSum float64
	for j := i - d.cfg.LookbackBars; j < i; j++ {
		volSum += d.bars[j].Volume
	}
	avgVol := volSum / float64(d.cfg.LookbackBars)
	if avgVol == 0 || cur.Volume < d.cfg.VolumeThreshold*avgVol {
		return
	}

	dir := model.Bearish
	if cur.Bullish() {
		dir = model.Bullish
	}

	// Scan back for the most recent opposing candle.
	for j := i - 1; j >= i-d.cfg.LookbackBars; j-- {
		b := d.bars[j]
		opposing := (dir == model.Bullish && b.Bearish()) || (dir == model.Bearish && b.Bullish())
		if !opposing {
			continue
		}
		if d.obSources[j] {
			return
		}
		d.obSources[j] = true
		d.addZone(model.ZoneOrderBlock, dir, b.Low, b.High, cur.Time)
		return
	}
}

// detectFairValueGap finds a three-bar imbalance whose unfilled gap is
// at least MinGapPct of price.
func (d *Detector) detectFairValueGap(i int) {
	if i < 2 {
		return
	}
	first, last := d.bars[i-2], d.bars[i]
	minGap := d.cfg.MinGapPct * last.Close

	if gap := last.Low - first.High; gap >= minGap {
		d.addZone(model.ZoneFairValueGap, model.Bullish, first.High, last.Low, last.Time)
	}
	if gap := first.Low - last.High; gap >= minGap {
		d.addZone(model.ZoneFairValueGap, model.Bearish, last.High, first.Low, last.Time)
	}
}

// detectSweeps looks for a wick that pierces an active liquidity pool
// but closes back inside the prior range within the same or next bar.
// A confirmed sweep consumes the pool (mitigated); a close beyond the
// level without reclaim consumes it without a sweep.
func (d *Detector) detectSweeps(i int) {
	bar := d.bars[i]
	for _, z := range d.zones {
		if z.Kind != model.ZoneLiquidityPool || z.Status != model.ZoneActive {
			continue
		}
		level := z.PriceHigh // pools are a single level

		switch z.Direction {
		case model.Bullish: // swing-low pool: sweep below, reclaim above
			if prev, ok := d.pierced[z.ID]; ok {
				if i == prev+1 && bar.Close > level {
					d.confirmSweep(z, model.Bullish, i, level)
				} else {
					z.Status = model.ZoneMitigated
				}
				delete(d.pierced, z.ID)
				continue
			}
			if bar.Low < level {
				if bar.Close > level {
					d.confirmSweep(z, model.Bullish, i, level)
				} else {
					d.pierced[z.ID] = i
				}
			}
		case model.Bearish: // swing-high pool: sweep above, reclaim below
			if prev, ok := d.pierced[z.ID]; ok {
				if i == prev+1 && bar.Close < level {
					d.confirmSweep(z, model.Bearish, i, level)
				} else {
					z.Status = model.ZoneMitigated
				}
				delete(d.pierced, z.ID)
				continue
			}
			if bar.High > level {
				if bar.Close < level {
					d.confirmSweep(z, model.Bearish, i, level)
				} else {
					d.pierced[z.ID] = i
				}
			}
		}
	}
}

func (d *Detector) confirmSweep(z *model.Zone, dir model.Direction, barIndex int, level float64) {
	z.Status = model.ZoneMitigated
	d.events = append(d.events, Event{
		Kind:      EventSweep,
		Direction: dir,
		BarIndex:  barIndex,
		Level:     level,
		Time:      d.bars[barIndex].Time,
		ZoneID:    z.ID,
	})
}

// detectBreak confirms a close beyond the most recent unbroken swing,
// held for ConfirmationBars consecutive closes. A break with the
// prevailing bias is a BOS; against it, a ChoCH that flips the bias
// and invalidates opposing zones.
func (d *Detector) detectBreak(i int) {
	bar := d.bars[i]

	var breakDir model.Direction
	var level float64
	if sh, ok := d.latestSwingHigh(); ok && bar.Close > sh.Price {
		breakDir, level = model.Bullish, sh.Price
	} else if sl, ok := d.latestSwingLow(); ok && bar.Close < sl.Price {
		breakDir, level = model.Bearish, sl.Price
	}

	if breakDir == "" {
		d.breakDir, d.breakCount = "", 0
		return
	}
	if breakDir != d.breakDir {
		d.breakDir, d.breakLevel, d.breakCount = breakDir, level, 1
	} else {
		d.breakCount++
	}
	if d.breakCount < d.cfg.ConfirmationBars {
		return
	}

	kind := EventBOS
	if (breakDir == model.Bullish && d.bias == model.Bearish) ||
		(breakDir == model.Bearish && d.bias == model.Bullish) {
		kind = EventChoCH
	}
	d.events = append(d.events, Event{
		Kind:      kind,
		Direction: breakDir,
		BarIndex:  i,
		Level:     d.breakLevel,
		Time:      bar.Time,
	})

	if breakDir == model.Bullish {
		if sh, ok := d.latestSwingHigh(); ok {
			d.lastBrokenHigh = sh.Index
		}
	} else {
		if sl, ok := d.latestSwingLow(); ok {
			d.lastBrokenLow = sl.Index
		}
	}

	if kind == EventChoCH {
		d.bias = breakDir
		d.invalidateOpposing(breakDir)
	}
	d.breakDir, d.breakCount = "", 0
}

func (d *Detector) latestSwingHigh() (swingPoint, bool) {
	for j := len(d.swingHighs) - 1; j >= 0; j-- {
		if d.swingHighs[j].Index > d.lastBrokenHigh {
			return d.swingHighs[j], true
		}
	}
	return swingPoint{}, false
}

func (d *Detector) latestSwingLow() (swingPoint, bool) {
	for j := len(d.swingLows) - 1; j >= 0; j-- {
		if d.swingLows[j].Index > d.lastBrokenLow {
			return d.swingLows[j], true
		}
	}
	return swingPoint{}, false
}

// invalidateOpposing marks zones against the new direction as
// structurally superseded. Invalidated zones never come back.
func (d *Detector) invalidateOpposing(dir model.Direction) {
	for _, z := range d.zones {
		if z.Status == model.ZoneInvalidated {
			continue
		}
		if z.Direction == dir.Opposite() {
			z.Status = model.ZoneInvalidated
		}
	}
}

// updateZoneLifecycle advances order block and FVG states: a close past
// the zone midpoint against its direction mitigates it, a close beyond
// the far bound invalidates it.
func (d *Detector) updateZoneLifecycle(i int) {
	bar := d.bars[i]
	for _, z := range d.zones {
		if z.Kind == model.ZoneLiquidityPool || z.Status == model.ZoneInvalidated {
			continue
		}
		if bar.Time.Equal(z.FormedAt) {
			continue // formation bar does not consume its own zone
		}
		switch z.Direction {
		case model.Bullish:
			if bar.Close < z.PriceLow {
				z.Status = model.ZoneInvalidated
			} else if z.Status == model.ZoneActive && bar.Close < z.Mid() {
				z.Status = model.ZoneMitigated
			}
		case model.Bearish:
			if bar.Close > z.PriceHigh {
				z.Status = model.ZoneInvalidated
			} else if z.Status == model.ZoneActive && bar.Close > z.Mid() {
				z.Status = model.ZoneMitigated
			}
		}
	}
}

func (d *Detector) addZone(kind model.ZoneKind, dir model.Direction, low, high float64, formedAt time.Time) {
	d.seq++
	d.zones = append(d.zones, &model.Zone{
		ID:        fmt.Sprintf("%s-%s-%d", d.symbol, kind, d.seq),
		Kind:      kind,
		Direction: dir,
		PriceLow:  low,
		PriceHigh: high,
		FormedAt:  formedAt,
		Status:    model.ZoneActive,
	})
}

// Bias returns the current directional bias.
func (d *Detector) Bias() model.Direction { return d.bias }

// Zones returns copies of all zones, in creation order.
func (d *Detector) Zones() []model.Zone {
	out := make([]model.Zone, len(d.zones))
	for i, z := range d.zones {
		out[i] = *z
	}
	return out
}

// ActiveZones returns copies of active zones aligned with dir.
func (d *Detector) ActiveZones(dir model.Direction) []model.Zone {
	var out []model.Zone
	for _, z := range d.zones {
		if z.Status == model.ZoneActive && z.Direction == dir {
			out = append(out, *z)
		}
	}
	return out
}

// RecentEvents returns events that occurred within the last n bars.
func (d *Detector) RecentEvents(n int) []Event {
	cutoff := len(d.bars) - n
	var out []Event
	for _, e := range d.events {
		if e.BarIndex >= cutoff {
			out = append(out, e)
		}
	}
	return out
}

// Events returns all recorded structural events.
func (d *Detector) Events() []Event { return append([]Event(nil), d.events...) }

// Bars returns the ingested bar series. Callers must treat it as
// read-only.
func (d *Detector) Bars() []model.Candle { return d.bars }

// BarCount returns the number of accepted bars.
func (d *Detector) BarCount() int { return len(d.bars) }

// SkippedBars returns how many bars were dropped for integrity
// violations.
func (d *Detector) SkippedBars() int { return d.skipped }

// Warm reports whether enough history has accumulated for every
// detection rule to be meaningful.
func (d *Detector) Warm() bool {
	need := d.cfg.BiasMAPeriod
	if v := d.cfg.LookbackBars + 1; v > need {
		need = v
	}
	if v := 2*d.cfg.SwingStrength + 1; v > need {
		need = v
	}
	return len(d.bars) >= need
}
