package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailybanking/transaction-service/internal/core/models"
	"github.com/dailybanking/transaction-service/internal/core/repository/memory"
)

func TestBalanceStoreEnsureAccount(t *testing.T) {
	store := memory.NewBalanceStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.EnsureAccount(ctx, nil, ""), models.ErrInvalidAccount)
	assert.ErrorIs(t, store.EnsureAccount(ctx, nil, "   "), models.ErrInvalidAccount)

	require.NoError(t, store.EnsureAccount(ctx, nil, "A"))

	balance, err := store.GetBalance(ctx, nil, "A")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	// re-ensuring must not reset anything
	_, err = store.Credit(ctx, nil, "A", decimal.NewFromInt(7))
	require.NoError(t, err)
	require.NoError(t, store.EnsureAccount(ctx, nil, "A"))

	balance, err = store.GetBalance(ctx, nil, "A")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(7)))
}

func TestBalanceStoreDebitInsufficient(t *testing.T) {
	store := memory.NewBalanceStore()
	ctx := context.Background()

	require.NoError(t, store.EnsureAccount(ctx, nil, "A"))
	_, err := store.Credit(ctx, nil, "A", decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = store.Debit(ctx, nil, "A", decimal.NewFromInt(11))
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	balance, err := store.GetBalance(ctx, nil, "A")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)))
}

func TestBalanceStoreConcurrentMutations(t *testing.T) {
	store := memory.NewBalanceStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureAccount(ctx, nil, "A"))

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers * 2)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Credit(ctx, nil, "A", decimal.NewFromInt(2))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			// may race ahead of credits; insufficiency is acceptable
			_, _ = store.Debit(ctx, nil, "A", decimal.NewFromInt(1))
		}()
	}
	wg.Wait()

	balance, err := store.GetBalance(ctx, nil, "A")
	require.NoError(t, err)
	assert.False(t, balance.IsNegative())
	assert.True(t, balance.LessThanOrEqual(decimal.NewFromInt(2*workers)))
}

func TestLedgerSaveAssignsIDAndTimestamps(t *testing.T) {
	ledger := memory.NewLedger()
	ctx := context.Background()

	saved, err := ledger.Save(ctx, nil, &models.Transaction{
		IdempotencyKey:  "k1",
		Type:            models.TransactionDeposit,
		Status:          models.StatusCompleted,
		SourceAccountID: "A",
		Amount:          decimal.NewFromInt(1),
		Currency:        "USD",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.False(t, saved.CompletedAt.IsZero())

	found, err := ledger.FindByID(ctx, nil, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, saved.ID, found.ID)

	byKey, err := ledger.FindByIdempotencyKey(ctx, nil, "k1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, saved.ID, byKey.ID)
}

func TestLedgerRejectsDuplicateKey(t *testing.T) {
	ledger := memory.NewLedger()
	ctx := context.Background()

	txn := func() *models.Transaction {
		return &models.Transaction{
			IdempotencyKey:  "same",
			Type:            models.TransactionDeposit,
			Status:          models.StatusCompleted,
			SourceAccountID: "A",
			Amount:          decimal.NewFromInt(1),
			Currency:        "USD",
		}
	}

	_, err := ledger.Save(ctx, nil, txn())
	require.NoError(t, err)

	_, err = ledger.Save(ctx, nil, txn())
	assert.ErrorIs(t, err, models.ErrDuplicateTransaction)
}

func TestLedgerFindMissingReturnsNil(t *testing.T) {
	ledger := memory.NewLedger()
	ctx := context.Background()

	found, err := ledger.FindByID(ctx, nil, "missing")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = ledger.FindByIdempotencyKey(ctx, nil, "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestLedgerFindByAccountNewestFirst(t *testing.T) {
	ledger := memory.NewLedger()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	target := "A"

	for i, txn := range []*models.Transaction{
		{IdempotencyKey: "k1", Type: models.TransactionDeposit, SourceAccountID: "A", Amount: decimal.NewFromInt(1), Currency: "USD"},
		{IdempotencyKey: "k2", Type: models.TransactionTransfer, SourceAccountID: "B", TargetAccountID: &target, Amount: decimal.NewFromInt(2), Currency: "USD"},
		{IdempotencyKey: "k3", Type: models.TransactionDeposit, SourceAccountID: "B", Amount: decimal.NewFromInt(3), Currency: "USD"},
	} {
		txn.Status = models.StatusCompleted
		txn.CreatedAt = base.Add(time.Duration(i) * time.Second)
		txn.CompletedAt = txn.CreatedAt
		_, err := ledger.Save(ctx, nil, txn)
		require.NoError(t, err)
	}

	rows, err := ledger.FindByAccount(ctx, nil, "A")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// the transfer into A is newer than the deposit from A
	assert.Equal(t, "k2", rows[0].IdempotencyKey)
	assert.Equal(t, "k1", rows[1].IdempotencyKey)
}
