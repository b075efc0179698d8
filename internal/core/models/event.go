package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionEvent is the outbound projection published after a
// transaction commits. It is never persisted by this service.
type TransactionEvent struct {
	EventID         string          `json:"eventId"`
	EventType       string          `json:"eventType"`
	TransactionID   string          `json:"transactionId"`
	SourceAccountID string          `json:"sourceAccountId"`
	TargetAccountID *string         `json:"targetAccountId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	OccurredAt      time.Time       `json:"occurredAt"`
}
