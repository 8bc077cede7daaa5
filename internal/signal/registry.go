package signal

import (
	"fmt"
	"sort"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/config"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// Engine is the capability every strategy implementation provides:
// consume HTF bars for bias, consume LTF bars to trigger, emit signals.
type Engine interface {
	Symbol() string
	OnHTFBar(model.Candle) error
	OnLTFBar(model.Candle) (*model.Signal, error)
	Warm() bool
}

// Constructor builds a strategy engine for one pair. openPositions
// reports currently open exposure for a pair so the engine can honor
// max_positions.
type Constructor func(symbol string, cfg config.SignalConfig, det config.DetectorConfig, openPositions func(pair string) int) Engine

var registry = map[string]Constructor{}

// Register adds a strategy constructor under a name. Registration
// happens at startup, not through runtime discovery.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// New builds the named strategy engine.
func New(name, symbol string, cfg config.SignalConfig, det config.DetectorConfig, openPositions func(pair string) int) (Engine, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (registered: %v)", name, Names())
	}
	return ctor(symbol, cfg, det, openPositions), nil
}

// Names lists registered strategies, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
