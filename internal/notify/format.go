// internal/notify/format.go
package notify

import (
	"fmt"

	"github.com/solwatch/dlmm-sentinel/internal/monitor"
)

// FormatAlert renders an alert as a Telegram HTML message.
func FormatAlert(alert monitor.Alert) string {
	header := fmt.Sprintf("Pool: <code>%s</code>\nPosition: <code>%s</code>",
		shortAddress(alert.Market), shortAddress(alert.Mint))

	switch alert.Kind {
	case monitor.AlertRangeExit:
		return fmt.Sprintf(
			"⚠️ <b>Position out of range</b>\n%s\nActive bin %d is outside your range [%d, %d]. The position is no longer earning fees.",
			header, alert.ActiveBin, alert.LowerBinID, alert.UpperBinID)

	case monitor.AlertValueChange:
		direction := "📈"
		if alert.ChangePct < 0 {
			direction = "📉"
		}
		return fmt.Sprintf(
			"%s <b>Position value changed %+.2f%%</b>\n%s\n$%.2f → $%.2f",
			direction, alert.ChangePct, header, alert.PreviousUSD, alert.ValueUSD)

	case monitor.AlertILWarning:
		return fmt.Sprintf(
			"🔻 <b>Impermanent loss warning</b>\n%s\nIL: %.2f%% against holding ($%.2f HODL value)",
			header, alert.ILPct, alert.HodlUSD)

	case monitor.AlertILRecovered:
		return fmt.Sprintf(
			"✅ <b>Impermanent loss recovered</b>\n%s\nThe position is now %.2f%% above its HODL value ($%.2f)",
			header, alert.ILPct, alert.HodlUSD)
	}

	return fmt.Sprintf("ℹ️ <b>Position update</b>\n%s", header)
}

// shortAddress renders a base58 address as head…tail for chat messages.
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}
