// Package notification delivers scanner alerts to external channels
// (Telegram, webhooks) and to the log.
package notification

import (
	"context"
	"log"

	"bondscan/internal/model"
)

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert model.Alert) error
}

// LogNotifier logs alerts (useful for development and as a fallback).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert model.Alert) error {
	log.Printf("[notify] [%s] %s @ %.3f: %s", alert.Kind, alert.Symbol, alert.Price, alert.Message)
	return nil
}

// Multi fans an alert out to several backends. A failing backend is logged
// and skipped; alert delivery is best-effort and never blocks the scan
// loop on one dead channel.
type Multi struct {
	backends []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert model.Alert) error {
	for _, n := range m.backends {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend error: %v", err)
		}
	}
	return nil
}
