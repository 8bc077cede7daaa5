package notifier

import (
	"context"
	"log"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// Events delivers fire-and-forget trading notifications. Every method
// returns immediately; delivery happens on a background goroutine and
// failures only log. The trading core never blocks on this sink.
type Events struct {
	tg  *TelegramNotifier
	ctx context.Context
}

// NewEvents wraps a Telegram notifier. ctx bounds retry time for all
// deliveries.
func NewEvents(ctx context.Context, tg *TelegramNotifier) *Events {
	return &Events{tg: tg, ctx: ctx}
}

// SignalEmitted announces a new signal.
func (e *Events) SignalEmitted(sig *model.Signal) {
	if sig == nil {
		return
	}
	e.dispatch(FormatSignal(sig))
}

// OrderFilled announces a fill.
func (e *Events) OrderFilled(t model.Trade, o model.Order) {
	e.dispatch(FormatFill(&t, &o))
}

// OrderAwaitingConfirmation asks the operator to confirm or reject.
func (e *Events) OrderAwaitingConfirmation(o model.Order) {
	e.dispatch(FormatConfirmationRequest(&o))
}

// TradingModeChanged announces a routing change.
func (e *Events) TradingModeChanged(mode string, approved bool) {
	e.dispatch(FormatModeChange(mode, approved))
}

func (e *Events) dispatch(text string) {
	if e.tg == nil || !e.tg.Enabled() {
		return
	}
	go func() {
		if err := e.tg.SendWithRetry(e.ctx, text, 3); err != nil {
			log.Printf("[ERROR] send notification: %v", err)
		}
	}()
}
