package notifier

import (
	"context"

	"github.com/dailybanking/transaction-service/internal/core/logger"
	"github.com/dailybanking/transaction-service/internal/core/models"
)

// LogNotifier writes events to the log instead of a broker. Used when
// no AMQP URL is configured.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Publish(_ context.Context, txn *models.Transaction, eventType string) {
	event := NewTransactionEvent(txn, eventType)
	n.log.Info("Transaction event",
		logger.StringField("event_id", event.EventID),
		logger.StringField("event_type", event.EventType),
		logger.StringField("transaction_id", event.TransactionID),
		logger.StringField("amount", event.Amount.String()),
		logger.StringField("currency", event.Currency))
}
