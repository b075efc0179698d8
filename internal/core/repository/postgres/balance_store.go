package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dailybanking/transaction-service/internal/core/logger"
	"github.com/dailybanking/transaction-service/internal/core/models"
	"github.com/dailybanking/transaction-service/internal/core/repository"
)

type postgresBalanceStore struct {
	log logger.Logger
}

func NewBalanceStore(log logger.Logger) repository.BalanceStore {
	return &postgresBalanceStore{log: log}
}

func (s *postgresBalanceStore) EnsureAccount(ctx context.Context, q sqlx.ExtContext, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return models.ErrInvalidAccount
	}

	const query = `
        INSERT INTO accounts (account_id, balance)
        VALUES ($1, 0)
        ON CONFLICT (account_id) DO NOTHING
    `
	if _, err := q.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("ensure account %s: %w", accountID, err)
	}

	return nil
}

func (s *postgresBalanceStore) GetBalance(ctx context.Context, q sqlx.ExtContext, accountID string) (decimal.Decimal, error) {
	if err := s.EnsureAccount(ctx, q, accountID); err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	const query = `SELECT balance FROM accounts WHERE account_id = $1`
	if err := sqlx.GetContext(ctx, q, &balance, query, accountID); err != nil {
		return decimal.Zero, fmt.Errorf("get balance of %s: %w", accountID, err)
	}

	return balance, nil
}

func (s *postgresBalanceStore) Credit(ctx context.Context, q sqlx.ExtContext, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	const query = `
        UPDATE accounts
        SET balance = balance + $1, updated_at = NOW()
        WHERE account_id = $2
        RETURNING balance
    `
	err := sqlx.GetContext(ctx, q, &newBalance, query, amount, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("credit: account not found: %s", accountID)
		}
		return decimal.Zero, fmt.Errorf("credit account %s: %w", accountID, err)
	}

	return newBalance, nil
}

func (s *postgresBalanceStore) Debit(ctx context.Context, q sqlx.ExtContext, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	// The balance >= amount predicate makes check and subtraction one
	// statement, so concurrent debits against a borderline balance
	// cannot both pass the check.
	var newBalance decimal.Decimal
	const query = `
        UPDATE accounts
        SET balance = balance - $1, updated_at = NOW()
        WHERE account_id = $2 AND balance >= $1
        RETURNING balance
    `
	err := sqlx.GetContext(ctx, q, &newBalance, query, amount, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("Insufficient balance",
				logger.StringField("account_id", accountID),
				logger.StringField("requested", amount.String()))
			return decimal.Zero, fmt.Errorf("%w: account %s", models.ErrInsufficientBalance, accountID)
		}
		return decimal.Zero, fmt.Errorf("debit account %s: %w", accountID, err)
	}

	return newBalance, nil
}
