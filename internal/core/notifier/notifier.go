// Package notifier publishes transaction-completed events after a
// transaction is durably recorded. Publishing is fire-and-forget: a
// failed publish is logged and never rolls back or retries the
// committed transaction.
package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dailybanking/transaction-service/internal/core/models"
)

const EventTransactionCompleted = "transaction.completed"

type Notifier interface {
	Publish(ctx context.Context, txn *models.Transaction, eventType string)
}

// NewTransactionEvent builds the outbound projection of a committed
// transaction.
func NewTransactionEvent(txn *models.Transaction, eventType string) models.TransactionEvent {
	return models.TransactionEvent{
		EventID:         uuid.NewString(),
		EventType:       eventType,
		TransactionID:   txn.ID,
		SourceAccountID: txn.SourceAccountID,
		TargetAccountID: txn.TargetAccountID,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		OccurredAt:      time.Now().UTC(),
	}
}
