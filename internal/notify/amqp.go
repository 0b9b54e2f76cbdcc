package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	turnActiveQueue        = "drop.turn_active"
	purchaseCompletedQueue = "drop.purchase_completed"
)

// AMQPNotifier publishes events to durable RabbitMQ queues. Publish errors
// are logged and dropped; consumers that care about gaps reconcile from the
// database.
type AMQPNotifier struct {
	conn   *amqp.Connection
	logger *log.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewAMQPNotifier dials the broker and declares both queues up front so a
// misconfigured broker surfaces at startup rather than at first event.
func NewAMQPNotifier(url string, logger *log.Logger) (*AMQPNotifier, error) {
	if logger == nil {
		logger = log.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	n := &AMQPNotifier{conn: conn, logger: logger}
	if _, err := n.channel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return n, nil
}

func (n *AMQPNotifier) channel() (*amqp.Channel, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch != nil && !n.ch.IsClosed() {
		return n.ch, nil
	}

	ch, err := n.conn.Channel()
	if err != nil {
		return nil, err
	}
	for _, q := range []string{turnActiveQueue, purchaseCompletedQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, err
		}
	}
	n.ch = ch
	return ch, nil
}

func (n *AMQPNotifier) publish(ctx context.Context, queue string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Printf("WARN: marshal %s event: %v", queue, err)
		return
	}

	ch, err := n.channel()
	if err != nil {
		n.logger.Printf("WARN: %s publish skipped, channel unavailable: %v", queue, err)
		return
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		n.logger.Printf("WARN: publish %s: %v", queue, err)
	}
}

func (n *AMQPNotifier) TurnActive(ctx context.Context, ev TurnActiveEvent) {
	n.publish(ctx, turnActiveQueue, ev)
}

func (n *AMQPNotifier) PurchaseCompleted(ctx context.Context, ev PurchaseCompletedEvent) {
	n.publish(ctx, purchaseCompletedQueue, ev)
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	if n.ch != nil {
		_ = n.ch.Close()
	}
	n.mu.Unlock()
	return n.conn.Close()
}
