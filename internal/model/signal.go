package model

import "time"

// Side is the canonical order/signal direction vocabulary.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Opposite returns the inverse side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// Signal is an emitted trade recommendation. Immutable after creation:
// the generator discards candidates that violate the minimum
// risk-reward ratio instead of emitting them.
type Signal struct {
	ID             string
	Pair           string
	Side           Side
	Entry          float64
	StopLoss       float64
	TakeProfit     float64
	Confidence     float64 // 0.0 ~ 1.0
	Time           time.Time
	MatchedZoneIDs []string
	FiltersPassed  []string
	Metadata       map[string]string
}

// RiskReward returns the reward:risk ratio implied by the signal's
// entry, stop and target. Returns 0 when risk is non-positive.
func (s *Signal) RiskReward() float64 {
	var risk, reward float64
	if s.Side == Long {
		risk = s.Entry - s.StopLoss
		reward = s.TakeProfit - s.Entry
	} else {
		risk = s.StopLoss - s.Entry
		reward = s.Entry - s.TakeProfit
	}
	if risk <= 0 {
		return 0
	}
	return reward / risk
}
