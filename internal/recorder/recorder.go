package recorder

import "github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"

// Recorder persists signals, order transitions, fills and portfolio
// snapshots for later analysis. Implementations must tolerate being
// called from the execution hot path: failures are logged by callers,
// never fatal.
type Recorder interface {
	RecordSignal(sig *model.Signal) error
	RecordOrder(o *model.Order) error
	RecordTrade(t *model.Trade) error
	RecordSnapshot(snap *model.PortfolioSnapshot) error
	Close() error
}
