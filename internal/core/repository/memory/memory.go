// Package memory holds map-backed implementations of the repository
// interfaces. They back the engine in tests and in broker-less local
// runs; the PostgreSQL implementations are the production path.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dailybanking/transaction-service/internal/core/models"
	"github.com/dailybanking/transaction-service/internal/core/repository"
)

type BalanceStore struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

func NewBalanceStore() *BalanceStore {
	return &BalanceStore{balances: make(map[string]decimal.Decimal)}
}

func (s *BalanceStore) EnsureAccount(_ context.Context, _ sqlx.ExtContext, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return models.ErrInvalidAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[accountID]; !ok {
		s.balances[accountID] = decimal.Zero
	}

	return nil
}

func (s *BalanceStore) GetBalance(ctx context.Context, q sqlx.ExtContext, accountID string) (decimal.Decimal, error) {
	if err := s.EnsureAccount(ctx, q, accountID); err != nil {
		return decimal.Zero, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[accountID], nil
}

func (s *BalanceStore) Credit(_ context.Context, _ sqlx.ExtContext, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newBalance := s.balances[accountID].Add(amount)
	s.balances[accountID] = newBalance

	return newBalance, nil
}

func (s *BalanceStore) Debit(_ context.Context, _ sqlx.ExtContext, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balances[accountID]
	if balance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("%w: account %s", models.ErrInsufficientBalance, accountID)
	}

	newBalance := balance.Sub(amount)
	s.balances[accountID] = newBalance

	return newBalance, nil
}

type ledgerEntry struct {
	txn models.Transaction
	seq int64
}

type Ledger struct {
	mu      sync.RWMutex
	byID    map[string]ledgerEntry
	byKey   map[string]string
	nextSeq int64
}

func NewLedger() *Ledger {
	return &Ledger{
		byID:  make(map[string]ledgerEntry),
		byKey: make(map[string]string),
	}
}

func (l *Ledger) Save(_ context.Context, _ sqlx.ExtContext, txn *models.Transaction) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byKey[txn.IdempotencyKey]; ok {
		return nil, fmt.Errorf("%w for idempotency key: %s", models.ErrDuplicateTransaction, txn.IdempotencyKey)
	}

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

	l.nextSeq++
	l.byID[txn.ID] = ledgerEntry{txn: *txn, seq: l.nextSeq}
	l.byKey[txn.IdempotencyKey] = txn.ID

	stored := *txn
	return &stored, nil
}

func (l *Ledger) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.byID[id]
	if !ok {
		return nil, nil
	}

	txn := entry.txn
	return &txn, nil
}

func (l *Ledger) FindByIdempotencyKey(_ context.Context, _ sqlx.ExtContext, key string) (*models.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.byKey[key]
	if !ok {
		return nil, nil
	}

	txn := l.byID[id].txn
	return &txn, nil
}

func (l *Ledger) FindByAccount(_ context.Context, _ sqlx.ExtContext, accountID string) ([]models.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.collect(func(txn *models.Transaction) bool {
		return txn.Touches(accountID)
	}), nil
}

func (l *Ledger) FindBetween(_ context.Context, _ sqlx.ExtContext, from, to time.Time) ([]models.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.collect(func(txn *models.Transaction) bool {
		return !txn.CreatedAt.Before(from) && !txn.CreatedAt.After(to)
	}), nil
}

// collect returns matching transactions newest first. Callers must
// hold at least a read lock.
func (l *Ledger) collect(match func(*models.Transaction) bool) []models.Transaction {
	var entries []ledgerEntry
	for _, entry := range l.byID {
		if match(&entry.txn) {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].txn.CreatedAt.Equal(entries[j].txn.CreatedAt) {
			return entries[i].txn.CreatedAt.After(entries[j].txn.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	txns := make([]models.Transaction, 0, len(entries))
	for _, entry := range entries {
		txns = append(txns, entry.txn)
	}

	return txns
}

// TxRunner serializes atomic units under one mutex. Rollback is not
// modeled: the engine performs its duplicate check inside the unit and
// orders the failable debit before any credit, so a failing unit has
// made no observable change by the time it returns.
type TxRunner struct {
	mu sync.Mutex
}

func NewTxRunner() *TxRunner {
	return &TxRunner{}
}

func (r *TxRunner) WithTransaction(_ context.Context, fn func(q sqlx.ExtContext) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(nil)
}

func (r *TxRunner) Querier() sqlx.ExtContext {
	return nil
}

var (
	_ repository.BalanceStore = (*BalanceStore)(nil)
	_ repository.Ledger       = (*Ledger)(nil)
	_ repository.TxRunner     = (*TxRunner)(nil)
)
