// Package candles supplies ordered OHLCV bars per (symbol, timeframe)
// and validates them before they reach the detector.
package candles

import (
	"context"
	"fmt"
	"log"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// Source defines the interface for fetching and streaming candle data.
// Implementations must return bars with monotonically increasing UTC
// timestamps; violations surface through Sanitize, not silently.
type Source interface {
	GetBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) ([]model.Candle, error)
	Subscribe(ctx context.Context, symbol string, tf model.Timeframe, handler func(model.Candle)) (stop func(), err error)
	Name() string
}

// Sanitize drops out-of-order and duplicate bars, keeping the rest.
// It returns the cleaned series, the number of skipped bars, and a
// wrapped model.ErrDataIntegrity when anything was dropped. Callers
// are expected to keep going with the cleaned series.
func Sanitize(bars []model.Candle) ([]model.Candle, int, error) {
	if len(bars) < 2 {
		return bars, 0, nil
	}
	clean := make([]model.Candle, 0, len(bars))
	clean = append(clean, bars[0])
	skipped := 0
	for _, b := range bars[1:] {
		last := clean[len(clean)-1]
		if !b.Time.After(last.Time) {
			skipped++
			log.Printf("[WARN] skipping out-of-order bar at %s (last %s)", b.Time, last.Time)
			continue
		}
		clean = append(clean, b)
	}
	if skipped > 0 {
		return clean, skipped, fmt.Errorf("%w: %d bar(s) skipped", model.ErrDataIntegrity, skipped)
	}
	return clean, 0, nil
}
