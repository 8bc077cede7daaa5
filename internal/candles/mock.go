package candles

import (
	"context"
	"time"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// MockSource returns controllable fixed data for development and testing.
type MockSource struct {
	Price float64
	Bars  map[model.Timeframe][]model.Candle
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) GetBars(_ context.Context, _ string, tf model.Timeframe, limit int) ([]model.Candle, error) {
	if bars, ok := m.Bars[tf]; ok {
		if len(bars) > limit {
			return bars[len(bars)-limit:], nil
		}
		return bars, nil
	}
	return GenerateBars(m.Price, limit, tf.Duration()), nil
}

func (m *MockSource) Subscribe(_ context.Context, _ string, _ model.Timeframe, _ func(model.Candle)) (func(), error) {
	return func() {}, nil
}

// GenerateBars builds a gently drifting synthetic series ending near now.
func GenerateBars(basePrice float64, count int, step time.Duration) []model.Candle {
	if step == 0 {
		step = time.Hour
	}
	start := time.Now().UTC().Truncate(step).Add(-time.Duration(count) * step)
	bars := make([]model.Candle, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Candle{
			Time:   start.Add(time.Duration(i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000,
		}
	}
	return bars
}
