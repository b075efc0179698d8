package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dailybanking/transaction-service/internal/core/idempotency"
	"github.com/dailybanking/transaction-service/internal/core/logger"
	"github.com/dailybanking/transaction-service/internal/core/models"
	"github.com/dailybanking/transaction-service/internal/core/notifier"
	"github.com/dailybanking/transaction-service/internal/core/repository"
)

// DepositCommand describes a credit of a single account. Amount is
// assumed positive and currency non-blank; the transport boundary
// validates both before the engine is reached.
type DepositCommand struct {
	AccountID      string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
}

type WithdrawCommand struct {
	AccountID      string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
}

type TransferCommand struct {
	SourceAccountID string
	TargetAccountID string
	Amount          decimal.Decimal
	Currency        string
	Description     string
	IdempotencyKey  string
}

type TransactionUsecase interface {
	Deposit(ctx context.Context, cmd DepositCommand) (*models.Transaction, error)
	Withdraw(ctx context.Context, cmd WithdrawCommand) (*models.Transaction, error)
	Transfer(ctx context.Context, cmd TransferCommand) (*models.Transaction, error)
	GetByID(ctx context.Context, transactionID string) (*models.Transaction, error)
	FindByAccount(ctx context.Context, accountID string) ([]models.Transaction, error)
	FindBetween(ctx context.Context, from, to time.Time) ([]models.Transaction, error)
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
}

type transactionUsecase struct {
	runner   repository.TxRunner
	balances repository.BalanceStore
	ledger   repository.Ledger
	guard    *idempotency.Guard
	notify   notifier.Notifier
	log      logger.Logger
}

func NewTransactionUsecase(
	runner repository.TxRunner,
	balances repository.BalanceStore,
	ledger repository.Ledger,
	guard *idempotency.Guard,
	notify notifier.Notifier,
	log logger.Logger,
) TransactionUsecase {
	return &transactionUsecase{
		runner:   runner,
		balances: balances,
		ledger:   ledger,
		guard:    guard,
		notify:   notify,
		log:      log,
	}
}

func (uc *transactionUsecase) Deposit(ctx context.Context, cmd DepositCommand) (*models.Transaction, error) {
	txn := newTransaction(models.TransactionDeposit, cmd.AccountID, "", cmd.Amount, cmd.Currency, cmd.Description,
		uc.guard.Normalize(cmd.IdempotencyKey))

	return uc.commit(ctx, txn, func(q sqlx.ExtContext) error {
		if err := uc.balances.EnsureAccount(ctx, q, cmd.AccountID); err != nil {
			return err
		}
		_, err := uc.balances.Credit(ctx, q, cmd.AccountID, cmd.Amount)
		return err
	})
}

func (uc *transactionUsecase) Withdraw(ctx context.Context, cmd WithdrawCommand) (*models.Transaction, error) {
	txn := newTransaction(models.TransactionWithdrawal, cmd.AccountID, "", cmd.Amount, cmd.Currency, cmd.Description,
		uc.guard.Normalize(cmd.IdempotencyKey))

	return uc.commit(ctx, txn, func(q sqlx.ExtContext) error {
		if err := uc.balances.EnsureAccount(ctx, q, cmd.AccountID); err != nil {
			return err
		}
		_, err := uc.balances.Debit(ctx, q, cmd.AccountID, cmd.Amount)
		return err
	})
}

func (uc *transactionUsecase) Transfer(ctx context.Context, cmd TransferCommand) (*models.Transaction, error) {
	if cmd.SourceAccountID == cmd.TargetAccountID {
		return nil, fmt.Errorf("%w: transfer source and target must differ", models.ErrInvalidAccount)
	}

	txn := newTransaction(models.TransactionTransfer, cmd.SourceAccountID, cmd.TargetAccountID,
		cmd.Amount, cmd.Currency, cmd.Description, uc.guard.Normalize(cmd.IdempotencyKey))

	return uc.commit(ctx, txn, func(q sqlx.ExtContext) error {
		if err := uc.balances.EnsureAccount(ctx, q, cmd.SourceAccountID); err != nil {
			return err
		}
		if err := uc.balances.EnsureAccount(ctx, q, cmd.TargetAccountID); err != nil {
			return err
		}
		// Debit first: an underfunded source aborts the unit before the
		// target sees any credit.
		if _, err := uc.balances.Debit(ctx, q, cmd.SourceAccountID, cmd.Amount); err != nil {
			return err
		}
		_, err := uc.balances.Credit(ctx, q, cmd.TargetAccountID, cmd.Amount)
		return err
	})
}

func (uc *transactionUsecase) GetByID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	// ids are uuids; anything else cannot exist in the ledger
	if _, err := uuid.Parse(transactionID); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, transactionID)
	}

	txn, err := uc.ledger.FindByID(ctx, uc.runner.Querier(), transactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrTransactionNotFound, transactionID)
	}

	return txn, nil
}

func (uc *transactionUsecase) FindByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, models.ErrInvalidAccount
	}

	return uc.ledger.FindByAccount(ctx, uc.runner.Querier(), accountID)
}

func (uc *transactionUsecase) FindBetween(ctx context.Context, from, to time.Time) ([]models.Transaction, error) {
	return uc.ledger.FindBetween(ctx, uc.runner.Querier(), from, to)
}

func (uc *transactionUsecase) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return uc.balances.GetBalance(ctx, uc.runner.Querier(), accountID)
}

// commit runs the idempotency claim, balance mutation and ledger write
// as one atomic unit, then publishes the completion event. The event
// is emitted only after the unit commits and its outcome never affects
// the committed transaction.
func (uc *transactionUsecase) commit(ctx context.Context, txn *models.Transaction, mutate func(q sqlx.ExtContext) error) (*models.Transaction, error) {
	var saved *models.Transaction

	err := uc.runner.WithTransaction(ctx, func(q sqlx.ExtContext) error {
		if err := uc.guard.CheckAndClaim(ctx, q, txn.IdempotencyKey); err != nil {
			return err
		}
		if err := mutate(q); err != nil {
			return err
		}

		s, err := uc.ledger.Save(ctx, q, txn)
		if err != nil {
			return err
		}
		saved = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info("Transaction completed",
		logger.StringField("transaction_id", saved.ID),
		logger.StringField("type", string(saved.Type)),
		logger.StringField("amount", saved.Amount.String()),
		logger.StringField("currency", saved.Currency))

	uc.notify.Publish(ctx, saved, notifier.EventTransactionCompleted)

	return saved, nil
}

func newTransaction(txnType models.TransactionType, source, target string, amount decimal.Decimal, currency, description, key string) *models.Transaction {
	txn := &models.Transaction{
		IdempotencyKey:  key,
		Type:            txnType,
		Status:          models.StatusCompleted,
		SourceAccountID: source,
		Amount:          amount,
		Currency:        strings.ToUpper(strings.TrimSpace(currency)),
	}
	if target != "" {
		txn.TargetAccountID = &target
	}
	if description != "" {
		txn.Description = &description
	}

	return txn
}
