package indicator

import (
	"errors"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// RSI computes the Wilder-smoothed relative strength index.
// Returns the neutral 50 when fewer than period+1 bars are available,
// so a short warmup never vetoes a filter stack on its own.
func RSI(bars []model.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period+1 {
		return 50.0, nil
	}

	closes := Closes(bars)

	// Seed averages over the first period changes, then Wilder-smooth
	// the rest in the same pass.
	var up, down float64
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		switch {
		case i < period:
			up += gain
			down += loss
		case i == period:
			up = (up + gain) / float64(period)
			down = (down + loss) / float64(period)
		default:
			up = (up*float64(period-1) + gain) / float64(period)
			down = (down*float64(period-1) + loss) / float64(period)
		}
	}

	if down == 0 {
		return 100.0, nil
	}
	return 100.0 - 100.0/(1.0+up/down), nil
}
