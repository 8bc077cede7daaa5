package recorder

import "github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"

// NoopRecorder is used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSignal(_ *model.Signal) error              { return nil }
func (n *NoopRecorder) RecordOrder(_ *model.Order) error                { return nil }
func (n *NoopRecorder) RecordTrade(_ *model.Trade) error                { return nil }
func (n *NoopRecorder) RecordSnapshot(_ *model.PortfolioSnapshot) error { return nil }
func (n *NoopRecorder) Close() error                                    { return nil }
