// Package risk converts signals into order quantities under account
// and exchange constraints.
package risk

import (
	"fmt"
	"math"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/config"
	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// PairSpec carries the exchange constraints for one pair.
type PairSpec struct {
	LotStep     float64
	MinNotional float64
}

// Sizer computes order quantities from signal risk distance and
// account equity.
type Sizer struct {
	cfg config.RiskConfig
}

func NewSizer(cfg config.RiskConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// SpecFor returns the configured default pair constraints.
func (s *Sizer) SpecFor(_ string) PairSpec {
	return PairSpec{LotStep: s.cfg.LotStep, MinNotional: s.cfg.MinNotional}
}

// Size returns the order quantity for a signal:
//
//	quantity = equity x risk_per_trade / |entry - stop|
//
// quantized down to the lot step and capped so the required margin
// fits availableMargin. Quantities below the pair's minimum notional
// fail with model.ErrInsufficientSize.
func (s *Sizer) Size(sig *model.Signal, equity, availableMargin float64, spec PairSpec) (float64, error) {
	if sig.Entry <= 0 {
		return 0, &model.ValidationError{Field: "entry", Reason: "must be positive"}
	}
	riskDist := math.Abs(sig.Entry - sig.StopLoss)
	if riskDist <= 0 {
		return 0, &model.ValidationError{Field: "stop_loss", Reason: "must differ from entry"}
	}

	qty := equity * s.cfg.RiskPerTrade / riskDist

	// Margin cap: quantity x entry / leverage must fit available margin.
	if maxQty := availableMargin * s.cfg.Leverage / sig.Entry; qty > maxQty {
		qty = maxQty
	}

	if spec.LotStep > 0 {
		qty = math.Floor(qty/spec.LotStep) * spec.LotStep
	}

	if qty <= 0 || qty*sig.Entry < spec.MinNotional {
		return 0, fmt.Errorf("%w: %.8f %s at %.2f is below min notional %.2f",
			model.ErrInsufficientSize, qty, sig.Pair, sig.Entry, spec.MinNotional)
	}
	return qty, nil
}
