package idempotency_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailybanking/transaction-service/internal/core/idempotency"
	"github.com/dailybanking/transaction-service/internal/core/models"
	"github.com/dailybanking/transaction-service/internal/core/repository/memory"
)

func TestNormalizeKeepsNonBlankKey(t *testing.T) {
	guard := idempotency.NewGuard(memory.NewLedger())

	assert.Equal(t, "client-key", guard.Normalize("client-key"))
}

func TestNormalizeGeneratesTokenForBlankKey(t *testing.T) {
	guard := idempotency.NewGuard(memory.NewLedger())

	first := guard.Normalize("")
	second := guard.Normalize("   ")

	_, err := uuid.Parse(first)
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestCheckAndClaim(t *testing.T) {
	ledger := memory.NewLedger()
	guard := idempotency.NewGuard(ledger)
	ctx := context.Background()

	require.NoError(t, guard.CheckAndClaim(ctx, nil, "fresh"))

	_, err := ledger.Save(ctx, nil, &models.Transaction{
		IdempotencyKey:  "claimed",
		Type:            models.TransactionDeposit,
		Status:          models.StatusCompleted,
		SourceAccountID: "A",
		Amount:          decimal.NewFromInt(1),
		Currency:        "USD",
	})
	require.NoError(t, err)

	err = guard.CheckAndClaim(ctx, nil, "claimed")
	assert.ErrorIs(t, err, models.ErrDuplicateTransaction)
	assert.Contains(t, err.Error(), "claimed")
}
