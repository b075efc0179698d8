package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType определяет тип денежной операции
type TransactionType string

const (
	// TransactionDeposit - пополнение счёта
	TransactionDeposit TransactionType = "DEPOSIT"
	// TransactionWithdrawal - снятие средств со счёта
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	// TransactionTransfer - перевод между двумя счетами
	TransactionTransfer TransactionType = "TRANSFER"
)

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "COMPLETED"
)

// Transaction is the ledger record of a committed operation. Rows are
// immutable once written; there is no update or delete path.
type Transaction struct {
	ID              string            `json:"transactionId" db:"id"`
	IdempotencyKey  string            `json:"-" db:"idempotency_key"`
	Type            TransactionType   `json:"type" db:"type"`
	Status          TransactionStatus `json:"status" db:"status"`
	SourceAccountID string            `json:"sourceAccountId" db:"source_account_id"`
	TargetAccountID *string           `json:"targetAccountId,omitempty" db:"target_account_id"`
	Amount          decimal.Decimal   `json:"amount" db:"amount"`
	Currency        string            `json:"currency" db:"currency"`
	Description     *string           `json:"description,omitempty" db:"description"`
	CreatedAt       time.Time         `json:"createdAt" db:"created_at"`
	CompletedAt     time.Time         `json:"completedAt" db:"completed_at"`
}

// Touches reports whether the transaction involves the given account
// on either side.
func (t *Transaction) Touches(accountID string) bool {
	if t.SourceAccountID == accountID {
		return true
	}
	return t.TargetAccountID != nil && *t.TargetAccountID == accountID
}
