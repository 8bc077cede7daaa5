package candles

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// BinanceSource fetches futures klines over REST and streams closed
// bars over the kline websocket.
type BinanceSource struct {
	client *futures.Client
}

// NewBinanceSource creates a Binance USD-M futures candle source.
// API keys may be empty for public market data.
func NewBinanceSource(apiKey, secretKey string, testnet bool) *BinanceSource {
	if testnet {
		futures.UseTestnet = true
		log.Println("[WARN] using Binance futures testnet")
	}
	return &BinanceSource{client: futures.NewClient(apiKey, secretKey)}
}

func (s *BinanceSource) Name() string { return "binance-futures" }

// GetBars returns up to `limit` most recent closed bars, oldest first.
func (s *BinanceSource) GetBars(ctx context.Context, symbol string, tf model.Timeframe, limit int) ([]model.Candle, error) {
	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(string(tf)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, tf, err)
	}

	bars := make([]model.Candle, 0, len(klines))
	now := time.Now().UTC()
	for _, k := range klines {
		closeTime := time.UnixMilli(k.CloseTime).UTC()
		if closeTime.After(now) {
			continue // still-forming bar
		}
		c, err := parseKline(k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, fmt.Errorf("parse kline %s: %w", symbol, err)
		}
		bars = append(bars, c)
	}
	return bars, nil
}

// Subscribe streams closed bars to the handler until stop is called or
// the context is cancelled. Reconnects are left to the caller; the
// returned stop func is idempotent.
func (s *BinanceSource) Subscribe(ctx context.Context, symbol string, tf model.Timeframe, handler func(model.Candle)) (func(), error) {
	wsHandler := func(event *futures.WsKlineEvent) {
		k := event.Kline
		if !k.IsFinal {
			return
		}
		c, err := parseKline(k.StartTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			log.Printf("[WARN] drop unparseable kline %s %s: %v", symbol, tf, err)
			return
		}
		handler(c)
	}
	errHandler := func(err error) {
		log.Printf("[ERROR] kline stream %s %s: %v", symbol, tf, err)
	}

	doneC, stopC, err := futures.WsKlineServe(symbol, string(tf), wsHandler, errHandler)
	if err != nil {
		return nil, fmt.Errorf("subscribe klines %s %s: %w", symbol, tf, err)
	}

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
		case <-doneC:
			return
		}
		close(stopC)
	}()

	var once bool
	return func() {
		if !once {
			once = true
			close(stopped)
		}
	}, nil
}

func parseKline(openTimeMs int64, open, high, low, closePx, volume string) (model.Candle, error) {
	var c model.Candle
	var err error
	if c.Open, err = strconv.ParseFloat(open, 64); err != nil {
		return c, err
	}
	if c.High, err = strconv.ParseFloat(high, 64); err != nil {
		return c, err
	}
	if c.Low, err = strconv.ParseFloat(low, 64); err != nil {
		return c, err
	}
	if c.Close, err = strconv.ParseFloat(closePx, 64); err != nil {
		return c, err
	}
	if c.Volume, err = strconv.ParseFloat(volume, 64); err != nil {
		return c, err
	}
	c.Time = time.UnixMilli(openTimeMs).UTC()
	return c, nil
}
