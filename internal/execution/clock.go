package execution

import (
	"sync"
	"time"
)

// Clock abstracts the engine's logical clock so backtests can drive
// time from bar data instead of the wall clock.
type Clock interface {
	Now() time.Time
}

// RealClock follows wall-clock time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// SimClock advances only when a tick sets it. One backtest run seeing
// the same tick sequence always observes the same times.
type SimClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewSimClock(start time.Time) *SimClock { return &SimClock{t: start} }

func (c *SimClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward; earlier times are ignored.
func (c *SimClock) Advance(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.t) {
		c.t = t
	}
}

// IDGenerator issues order and trade IDs. Backtests use the
// deterministic sequence generator; live runs use UUIDs.
type IDGenerator interface {
	NextOrderID() string
	NextTradeID() string
}
