package indicator

import (
	"errors"
	"math"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// MACD computes the MACD line, signal line and histogram at the last bar
// using the standard fast/slow/signal EMA periods.
func MACD(bars []model.Candle, fast, slow, signalPeriod int) (macd, signalLine, histogram float64, err error) {
	if fast >= slow {
		return 0, 0, 0, errors.New("fast period must be less than slow period")
	}
	if len(bars) < slow+signalPeriod {
		return 0, 0, 0, errors.New("not enough data for MACD calculation")
	}
	closes := Closes(bars)

	fastEMA, err := EMASeries(closes, fast)
	if err != nil {
		return 0, 0, 0, err
	}
	slowEMA, err := EMASeries(closes, slow)
	if err != nil {
		return 0, 0, 0, err
	}

	// MACD line series starts where the slow EMA is defined.
	macdSeries := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		macdSeries = append(macdSeries, fastEMA[i]-slowEMA[i])
	}
	sigSeries, err := EMASeries(macdSeries, signalPeriod)
	if err != nil {
		return 0, 0, 0, err
	}

	macd = macdSeries[len(macdSeries)-1]
	signalLine = sigSeries[len(sigSeries)-1]
	return macd, signalLine, macd - signalLine, nil
}

// Bollinger computes the upper/middle/lower bands at the last bar.
func Bollinger(bars []model.Candle, period int, k float64) (upper, middle, lower float64, err error) {
	if len(bars) < period {
		return 0, 0, 0, errors.New("not enough data for Bollinger calculation")
	}
	closes := Closes(bars)
	middle, err = SMA(closes, period)
	if err != nil {
		return 0, 0, 0, err
	}
	variance := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - middle
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))
	return middle + k*std, middle, middle - k*std, nil
}

// Stochastic computes %K and %D at the last bar. %D is the SMA of the
// last dPeriod %K values.
func Stochastic(bars []model.Candle, kPeriod, dPeriod int) (k, d float64, err error) {
	if len(bars) < kPeriod+dPeriod-1 {
		return 0, 0, errors.New("not enough data for Stochastic calculation")
	}
	kValues := make([]float64, dPeriod)
	for j := 0; j < dPeriod; j++ {
		end := len(bars) - (dPeriod - 1 - j)
		window := bars[end-kPeriod : end]
		high, low := math.Inf(-1), math.Inf(1)
		for _, b := range window {
			if b.High > high {
				high = b.High
			}
			if b.Low < low {
				low = b.Low
			}
		}
		if high == low {
			kValues[j] = 50
			continue
		}
		kValues[j] = (window[len(window)-1].Close - low) / (high - low) * 100
	}
	sum := 0.0
	for _, v := range kValues {
		sum += v
	}
	return kValues[dPeriod-1], sum / float64(dPeriod), nil
}

// ATR computes the Wilder-smoothed average true range over period.
func ATR(bars []model.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period+1 {
		return 0, errors.New("not enough data for ATR calculation")
	}
	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += trueRange(bars[i], bars[i-1])
	}
	atr /= float64(period)
	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRange(bars[i], bars[i-1])) / float64(period)
	}
	return atr, nil
}

func trueRange(cur, prev model.Candle) float64 {
	tr := cur.High - cur.Low
	if v := math.Abs(cur.High - prev.Close); v > tr {
		tr = v
	}
	if v := math.Abs(cur.Low - prev.Close); v > tr {
		tr = v
	}
	return tr
}

// VolumeRatio returns the last bar's volume relative to the trailing
// average volume of the preceding `period` bars.
func VolumeRatio(bars []model.Candle, period int) (float64, error) {
	if len(bars) < period+1 {
		return 0, errors.New("not enough data for volume ratio calculation")
	}
	sum := 0.0
	for i := len(bars) - period - 1; i < len(bars)-1; i++ {
		sum += bars[i].Volume
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 0, errors.New("zero trailing volume")
	}
	return bars[len(bars)-1].Volume / avg, nil
}
