package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dailybanking/transaction-service/internal/core/models"
)

// BalanceStore holds the current balance per account. Accounts are
// created implicitly on first reference with a zero balance and are
// never deleted. Mutations on the same account are serialized with
// respect to each other; different accounts do not block each other.
//
// The q argument carries the enclosing atomic unit: callers pass the
// querier handed to them by TxRunner.WithTransaction so that balance
// mutations commit or roll back together with the ledger write.
type BalanceStore interface {
	// EnsureAccount fails with models.ErrInvalidAccount on a blank id,
	// otherwise idempotently initializes the balance to zero.
	EnsureAccount(ctx context.Context, q sqlx.ExtContext, accountID string) error
	GetBalance(ctx context.Context, q sqlx.ExtContext, accountID string) (decimal.Decimal, error)
	// Credit adds amount to the balance and returns the new balance.
	Credit(ctx context.Context, q sqlx.ExtContext, accountID string, amount decimal.Decimal) (decimal.Decimal, error)
	// Debit subtracts amount if the balance covers it, otherwise fails
	// with models.ErrInsufficientBalance leaving the balance unchanged.
	Debit(ctx context.Context, q sqlx.ExtContext, accountID string, amount decimal.Decimal) (decimal.Decimal, error)
}

// Ledger is the append-only record of completed transactions.
type Ledger interface {
	// Save persists the transaction, assigning id and created timestamp
	// when unset, and returns the stored record. A second save with the
	// same idempotency key fails with models.ErrDuplicateTransaction.
	Save(ctx context.Context, q sqlx.ExtContext, txn *models.Transaction) (*models.Transaction, error)
	// FindByID returns (nil, nil) when no record matches.
	FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Transaction, error)
	// FindByIdempotencyKey returns (nil, nil) when no record matches.
	FindByIdempotencyKey(ctx context.Context, q sqlx.ExtContext, key string) (*models.Transaction, error)
	// FindByAccount returns transactions where the account appears as
	// source or target, newest first.
	FindByAccount(ctx context.Context, q sqlx.ExtContext, accountID string) ([]models.Transaction, error)
	// FindBetween returns transactions created in [from, to], newest first.
	FindBetween(ctx context.Context, q sqlx.ExtContext, from, to time.Time) ([]models.Transaction, error)
}

// TxRunner provides the atomic unit every mutating engine operation
// runs inside: either all effects of fn commit or none do.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(q sqlx.ExtContext) error) error
	// Querier returns a handle for reads outside of a transaction.
	Querier() sqlx.ExtContext
}
