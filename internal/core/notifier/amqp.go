package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dailybanking/transaction-service/internal/core/logger"
	"github.com/dailybanking/transaction-service/internal/core/models"
	"github.com/dailybanking/transaction-service/pkg/config"
)

const (
	publishTimeout = 5 * time.Second
	queueCapacity  = 256
)

type outbound struct {
	event models.TransactionEvent
	// routingKey is the transaction id, preserving per-transaction
	// ordering for consumers that partition by key.
	routingKey string
}

// AMQPNotifier hands events to a RabbitMQ topic exchange through an
// in-process queue, decoupling publication from the request flow.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      logger.Logger
	queue    chan outbound
	done     chan struct{}
}

func NewAMQPNotifier(cfg config.AMQPConfig, log logger.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	n := &AMQPNotifier{
		conn:     conn,
		ch:       ch,
		exchange: cfg.Exchange,
		log:      log,
		queue:    make(chan outbound, queueCapacity),
		done:     make(chan struct{}),
	}
	go n.run()

	return n, nil
}

func (n *AMQPNotifier) Publish(_ context.Context, txn *models.Transaction, eventType string) {
	out := outbound{
		event:      NewTransactionEvent(txn, eventType),
		routingKey: txn.ID,
	}

	select {
	case n.queue <- out:
	default:
		n.log.Warn("Event queue full, dropping event",
			logger.StringField("transaction_id", txn.ID),
			logger.StringField("event_type", eventType))
	}
}

func (n *AMQPNotifier) run() {
	defer close(n.done)

	for out := range n.queue {
		body, err := json.Marshal(out.event)
		if err != nil {
			n.log.Error("Failed to encode event",
				logger.StringField("event_id", out.event.EventID),
				logger.ErrorField("error", err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = n.ch.PublishWithContext(ctx, n.exchange, out.routingKey, false, false, amqp.Publishing{
			ContentType: "application/json",
			MessageId:   out.event.EventID,
			Type:        out.event.EventType,
			Timestamp:   out.event.OccurredAt,
			Body:        body,
		})
		cancel()

		if err != nil {
			n.log.Error("Failed to publish event",
				logger.StringField("event_id", out.event.EventID),
				logger.StringField("transaction_id", out.event.TransactionID),
				logger.ErrorField("error", err))
		}
	}
}

// Close drains the in-process queue and shuts the AMQP channel and
// connection down.
func (n *AMQPNotifier) Close() error {
	close(n.queue)
	<-n.done

	if err := n.ch.Close(); err != nil {
		return fmt.Errorf("close amqp channel: %w", err)
	}
	return n.conn.Close()
}
