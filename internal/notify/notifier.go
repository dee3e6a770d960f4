// Package notify delivers operator alerts over Telegram and Discord.
// Delivery is fire-and-forget: failures are logged, never propagated, and
// never delay or abort the trading cycle.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types the engine emits.
const (
	EventTradeExecuted = "trade_executed"
	EventHalt          = "halt"
	EventPartialFill   = "partial_fill"
	EventCycleError    = "cycle_error"
)

// Sender is one notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier dispatches events to its senders, filtered by event type. An
// empty event list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	timeout time.Duration
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		timeout: 10 * time.Second,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify dispatches one event to every sender in the background and returns
// immediately. The dispatch goroutines carry their own timeout so a slow
// channel cannot outlive the cycle by much.
func (n *Notifier) Notify(event, title, message string) {
	if n == nil {
		return
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.Debug("event filtered out", slog.String("event", event))
		return
	}
	for _, s := range n.senders {
		go func(s Sender) {
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			defer cancel()
			if err := s.Send(ctx, title, message); err != nil {
				n.logger.Warn("notification failed",
					slog.String("sender", s.Name()),
					slog.String("event", event),
					slog.String("error", err.Error()),
				)
			}
		}(s)
	}
}
