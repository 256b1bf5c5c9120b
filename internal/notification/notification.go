package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	KindTransactionCompleted = "transaction.completed"
	KindTransactionFailed    = "transaction.failed"
)

// Message describes a ledger event delivered to downstream systems.
type Message struct {
	Kind        string    `json:"event_type"`
	Destination string    `json:"user_id"`
	ActorID     string    `json:"actor_id"`
	Reference   string    `json:"reference"`
	Direction   string    `json:"direction"`
	Status      string    `json:"status"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency,omitempty"`
	Body        string    `json:"body"`
	OccurredAt  time.Time `json:"timestamp"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"reference", message.Reference,
		"status", message.Status,
		"amount", message.Amount,
		"body", message.Body,
	)
	return nil
}
