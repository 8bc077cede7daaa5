package notifier

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Apocalipcis/smart-trading-bot-sub000/internal/model"
)

// FormatSignal renders a signal announcement.
func FormatSignal(sig *model.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📡 Signal %s %s\n", strings.ToUpper(string(sig.Side)), sig.Pair)
	fmt.Fprintf(&b, "Entry: %s\n", humanize.Commaf(sig.Entry))
	fmt.Fprintf(&b, "Stop: %s\n", humanize.Commaf(sig.StopLoss))
	fmt.Fprintf(&b, "Target: %s\n", humanize.Commaf(sig.TakeProfit))
	fmt.Fprintf(&b, "R:R %.2f | Confidence %.0f%%", sig.RiskReward(), sig.Confidence*100)
	return b.String()
}

// FormatFill renders a fill announcement.
func FormatFill(t *model.Trade, o *model.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Filled %s %s\n", strings.ToUpper(string(t.Side)), t.Pair)
	fmt.Fprintf(&b, "Qty: %s @ %s\n", humanize.Commaf(t.Quantity), humanize.Commaf(t.FillPrice))
	fmt.Fprintf(&b, "Notional: %s\n", humanize.Commaf(t.Notional()))
	fmt.Fprintf(&b, "Commission: %.4f | Slippage: %.4f", t.Commission, t.Slippage)
	if o != nil && o.Type != model.OrderMarket {
		fmt.Fprintf(&b, "\nOrder type: %s", o.Type)
	}
	return b.String()
}

// FormatConfirmationRequest renders a pending-confirmation prompt.
func FormatConfirmationRequest(o *model.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏳ Order awaiting confirmation\n")
	fmt.Fprintf(&b, "%s %s %s qty %s\n", strings.ToUpper(string(o.Side)), o.Type, o.Pair, humanize.Commaf(o.Quantity))
	if !o.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "Expires: %s", o.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

// FormatModeChange renders a trading-mode switch announcement.
func FormatModeChange(mode string, approved bool) string {
	state := "not approved"
	if approved {
		state = "approved"
	}
	return fmt.Sprintf("⚙️ Trading mode: %s (live %s)", mode, state)
}

// FormatSnapshot renders a portfolio summary.
func FormatSnapshot(s model.PortfolioSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Portfolio %s\n", s.Time.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Equity: %s\n", humanize.Commaf(s.TotalValue))
	fmt.Fprintf(&b, "Cash: %s\n", humanize.Commaf(s.Cash))
	fmt.Fprintf(&b, "Realized PnL: %+.2f | Unrealized: %+.2f\n", s.RealizedPnL, s.UnrealizedPnL)
	fmt.Fprintf(&b, "Open positions: %d", len(s.Positions))
	return b.String()
}
