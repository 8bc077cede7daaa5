package signal

import (
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/config"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/indicator"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// Filter votes pass/fail on the LTF series for a proposed side. Each
// filter is independent; the generator counts votes against
// MinFiltersRequired.
type Filter interface {
	Name() string
	Pass(bars []model.Candle, side model.Side) bool
}

// filterSet builds the configured filters in configuration order.
func filterSet(cfg config.SignalConfig) []Filter {
	var out []Filter
	for _, name := range cfg.Filters {
		switch name {
		case "rsi":
			out = append(out, rsiFilter{overbought: cfg.RSIOverbought, oversold: cfg.RSIOversold})
		case "macd":
			out = append(out, macdFilter{})
		case "bollinger":
			out = append(out, bollingerFilter{})
		case "stochastic":
			out = append(out, stochasticFilter{})
		case "volume":
			out = append(out, volumeFilter{min: cfg.VolumeRatioMin})
		}
	}
	return out
}

// rsiFilter rejects longs into overbought and shorts into oversold.
type rsiFilter struct {
	overbought, oversold float64
}

func (f rsiFilter) Name() string { return "rsi" }

func (f rsiFilter) Pass(bars []model.Candle, side model.Side) bool {
	rsi, err := indicator.RSI(bars, 14)
	if err != nil {
		return false
	}
	if side == model.Long {
		return rsi < f.overbought
	}
	return rsi > f.oversold
}

// macdFilter requires histogram momentum in the trade direction.
type macdFilter struct{}

func (macdFilter) Name() string { return "macd" }

func (macdFilter) Pass(bars []model.Candle, side model.Side) bool {
	_, _, hist, err := indicator.MACD(bars, 12, 26, 9)
	if err != nil {
		return false
	}
	if side == model.Long {
		return hist > 0
	}
	return hist < 0
}

// bollingerFilter requires price in the favorable half of the bands:
// below the middle band for longs, above it for shorts.
type bollingerFilter struct{}

func (bollingerFilter) Name() string { return "bollinger" }

func (bollingerFilter) Pass(bars []model.Candle, side model.Side) bool {
	_, middle, _, err := indicator.Bollinger(bars, 20, 2)
	if err != nil {
		return false
	}
	last := bars[len(bars)-1].Close
	if side == model.Long {
		return last <= middle
	}
	return last >= middle
}

// stochasticFilter requires %K to not be stretched against the entry.
type stochasticFilter struct{}

func (stochasticFilter) Name() string { return "stochastic" }

func (stochasticFilter) Pass(bars []model.Candle, side model.Side) bool {
	k, _, err := indicator.Stochastic(bars, 14, 3)
	if err != nil {
		return false
	}
	if side == model.Long {
		return k < 80
	}
	return k > 20
}

// volumeFilter requires the trigger bar's volume to exceed the
// trailing average by the configured ratio.
type volumeFilter struct {
	min float64
}

func (volumeFilter) Name() string { return "volume" }

func (f volumeFilter) Pass(bars []model.Candle, _ model.Side) bool {
	ratio, err := indicator.VolumeRatio(bars, 20)
	if err != nil {
		return false
	}
	return ratio >= f.min
}
