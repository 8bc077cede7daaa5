package model

import "time"

// Candle represents a single closed OHLCV bar. Timestamps are UTC and
// strictly increasing within one (symbol, timeframe) series.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Bullish reports whether the bar closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports whether the bar closed below its open.
func (c Candle) Bearish() bool { return c.Close < c.Open }

// Body returns the absolute open-to-close distance.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-to-low distance.
func (c Candle) Range() float64 { return c.High - c.Low }

// Timeframe identifies a bar interval, e.g. "1m", "15m", "4h", "1d".
type Timeframe string

// Duration converts the timeframe to its bar duration. Unknown values
// return zero.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "6h":
		return 6 * time.Hour
	case "12h":
		return 12 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "1w":
		return 7 * 24 * time.Hour
	}
	return 0
}

// TimeframeRole binds a timeframe to its job within one strategy run:
// the HTF series sets the directional bias, LTF series trigger entries.
type TimeframeRole int

const (
	RoleHTF TimeframeRole = iota
	RoleLTF
)

func (r TimeframeRole) String() string {
	if r == RoleHTF {
		return "HTF"
	}
	return "LTF"
}
