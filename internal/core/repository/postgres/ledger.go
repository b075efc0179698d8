package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dailybanking/transaction-service/internal/core/logger"
	"github.com/dailybanking/transaction-service/internal/core/models"
	"github.com/dailybanking/transaction-service/internal/core/repository"
)

const (
	// pq error codes
	uniqueViolation = "23505"

	idempotencyKeyConstraint = "transactions_idempotency_key_key"
)

type postgresLedger struct {
	log logger.Logger
}

func NewLedger(log logger.Logger) repository.Ledger {
	return &postgresLedger{log: log}
}

func (r *postgresLedger) Save(ctx context.Context, q sqlx.ExtContext, txn *models.Transaction) (*models.Transaction, error) {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	if txn.CompletedAt.IsZero() {
		txn.CompletedAt = now
	}

	const query = `
        INSERT INTO transactions
            (id, idempotency_key, type, status, source_account_id, target_account_id,
             amount, currency, description, created_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `
	_, err := q.ExecContext(ctx, query,
		txn.ID,
		txn.IdempotencyKey,
		txn.Type,
		txn.Status,
		txn.SourceAccountID,
		txn.TargetAccountID,
		txn.Amount,
		txn.Currency,
		txn.Description,
		txn.CreatedAt,
		txn.CompletedAt,
	)
	if err != nil {
		// The unique index is the authority on idempotency: a race that
		// slipped past the pre-check surfaces here at commit time.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == idempotencyKeyConstraint {
			return nil, fmt.Errorf("%w for idempotency key: %s", models.ErrDuplicateTransaction, txn.IdempotencyKey)
		}
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	return txn, nil
}

func (r *postgresLedger) FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Transaction, error) {
	const query = selectTransaction + ` WHERE id = $1`
	return r.findOne(ctx, q, query, id)
}

func (r *postgresLedger) FindByIdempotencyKey(ctx context.Context, q sqlx.ExtContext, key string) (*models.Transaction, error) {
	const query = selectTransaction + ` WHERE idempotency_key = $1`
	return r.findOne(ctx, q, query, key)
}

func (r *postgresLedger) FindByAccount(ctx context.Context, q sqlx.ExtContext, accountID string) ([]models.Transaction, error) {
	const query = selectTransaction + `
        WHERE source_account_id = $1 OR target_account_id = $1
        ORDER BY created_at DESC, id DESC
    `
	var txns []models.Transaction
	if err := sqlx.SelectContext(ctx, q, &txns, query, accountID); err != nil {
		return nil, fmt.Errorf("find transactions of account %s: %w", accountID, err)
	}

	return txns, nil
}

func (r *postgresLedger) FindBetween(ctx context.Context, q sqlx.ExtContext, from, to time.Time) ([]models.Transaction, error) {
	const query = selectTransaction + `
        WHERE created_at BETWEEN $1 AND $2
        ORDER BY created_at DESC, id DESC
    `
	var txns []models.Transaction
	if err := sqlx.SelectContext(ctx, q, &txns, query, from, to); err != nil {
		return nil, fmt.Errorf("find transactions between %s and %s: %w", from, to, err)
	}

	return txns, nil
}

const selectTransaction = `
    SELECT id, idempotency_key, type, status, source_account_id, target_account_id,
           amount, currency, description, created_at, completed_at
    FROM transactions`

func (r *postgresLedger) findOne(ctx context.Context, q sqlx.ExtContext, query string, arg any) (*models.Transaction, error) {
	var txn models.Transaction
	err := sqlx.GetContext(ctx, q, &txn, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}

	return &txn, nil
}
