// Package notify carries fire-and-forget events out of the drop core. A
// failed notification never fails the state transition that produced it.
package notify

import (
	"context"
	"log"
	"time"
)

// TurnActiveEvent is published when a queued user's purchase window opens.
type TurnActiveEvent struct {
	DropID    string    `json:"drop_id"`
	UserID    string    `json:"user_id"`
	Position  int       `json:"position"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PurchaseCompletedEvent is published after a purchase commits.
type PurchaseCompletedEvent struct {
	OrderID        string    `json:"order_id"`
	DropID         string    `json:"drop_id"`
	DropLineID     string    `json:"drop_line_id"`
	UserID         string    `json:"user_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Notifier delivers events best-effort. Implementations must not block the
// caller beyond ctx and must swallow delivery failures.
type Notifier interface {
	TurnActive(ctx context.Context, ev TurnActiveEvent)
	PurchaseCompleted(ctx context.Context, ev PurchaseCompletedEvent)
}

// LogNotifier writes events to a logger. Used when no broker is configured.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) TurnActive(_ context.Context, ev TurnActiveEvent) {
	n.logger.Printf("turn active drop=%s user=%s position=%d expires=%s", ev.DropID, ev.UserID, ev.Position, ev.ExpiresAt.Format(time.RFC3339))
}

func (n *LogNotifier) PurchaseCompleted(_ context.Context, ev PurchaseCompletedEvent) {
	n.logger.Printf("purchase completed order=%s drop=%s user=%s total_cents=%d", ev.OrderID, ev.DropID, ev.UserID, ev.TotalCents)
}

// Nop discards all events.
type Nop struct{}

func (Nop) TurnActive(context.Context, TurnActiveEvent)               {}
func (Nop) PurchaseCompleted(context.Context, PurchaseCompletedEvent) {}
