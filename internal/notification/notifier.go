// Package notification delivers signal alerts to external channels
// (Telegram, webhooks, Kafka) and to users who opted into notifications.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"signalengine/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
	AlertSignal   AlertLevel = "SIGNAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel    `json:"level"`
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Signal  *model.Signal `json:"signal,omitempty"`

	// ChatID addresses a single recipient; empty means the sink's default.
	ChatID string `json:"chat_id,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts. Used when no external sink is configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With("component", "notify")}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	n.log.Info("alert", "level", string(alert.Level), "title", alert.Title, "chat_id", alert.ChatID, "message", alert.Message)
	return nil
}

// SignalAlert builds the alert announcing a radar signal.
func SignalAlert(sig model.Signal) Alert {
	return Alert{
		Level:   AlertSignal,
		Title:   fmt.Sprintf("SIGNAL DETECTED: %s %s", sig.Asset, sig.Direction),
		Message: FormatSignal(sig),
		Signal:  &sig,
	}
}

// FormatSignal renders a signal as a plain multi-line message.
func FormatSignal(sig model.Signal) string {
	prec := 2
	if strings.HasSuffix(sig.Asset, "=X") {
		prec = 5
	}
	price := func(v float64) string { return fmt.Sprintf("%.*f", prec, v) }

	var b strings.Builder
	fmt.Fprintf(&b, "Asset: %s\n", sig.Asset)
	fmt.Fprintf(&b, "Action: %s\n", sig.Direction)
	fmt.Fprintf(&b, "Confidence: %.2f%%\n", sig.Confidence)
	fmt.Fprintf(&b, "Entry (UTC): %s\n", sig.EntryTime.UTC().Format("15:04:05"))
	fmt.Fprintf(&b, "Expiry: %s\n", sig.Expiry)
	fmt.Fprintf(&b, "Market: %s\n", sig.MarketType)
	fmt.Fprintf(&b, "Type: %s\n", sig.TradeType)
	fmt.Fprintf(&b, "Strategy: %s\n\n", sig.Strategy)
	fmt.Fprintf(&b, "Entry: %s\nTP: %s\nSL: %s\n\n", price(sig.Entry), price(sig.TakeProfit), price(sig.StopLoss))
	fmt.Fprintf(&b, "Trend: %s\n", sig.Trend)
	fmt.Fprintf(&b, "Resistance: %s\nSupport: %s\n", price(sig.Resistance), price(sig.Support))
	fmt.Fprintf(&b, "Rationale: %s", sig.Rationale)
	return b.String()
}
