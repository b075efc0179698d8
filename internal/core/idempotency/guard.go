// Package idempotency guards engine operations against double
// application of retried requests.
package idempotency

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dailybanking/transaction-service/internal/core/models"
	"github.com/dailybanking/transaction-service/internal/core/repository"
)

type Guard struct {
	ledger repository.Ledger
}

func NewGuard(ledger repository.Ledger) *Guard {
	return &Guard{ledger: ledger}
}

// Normalize returns the key unchanged, or a fresh token when the key
// is blank. A generated token makes the request effectively
// non-idempotent: it is always processed as new.
func (g *Guard) Normalize(key string) string {
	if strings.TrimSpace(key) == "" {
		return uuid.NewString()
	}
	return key
}

// CheckAndClaim fails with models.ErrDuplicateTransaction when a
// transaction with this key already exists. It must run inside the
// same atomic unit as the eventual ledger write; the check alone does
// not close the race between two concurrent claims, the unique
// constraint enforced by Ledger.Save does.
func (g *Guard) CheckAndClaim(ctx context.Context, q sqlx.ExtContext, key string) error {
	existing, err := g.ledger.FindByIdempotencyKey(ctx, q, key)
	if err != nil {
		return fmt.Errorf("check idempotency key: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w for idempotency key: %s", models.ErrDuplicateTransaction, key)
	}

	return nil
}
