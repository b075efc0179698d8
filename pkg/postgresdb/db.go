package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dailybanking/transaction-service/internal/core/logger"
	"github.com/dailybanking/transaction-service/pkg/config"
)

const maxTxRetries = 5

type Database struct {
	log logger.Logger
	*sqlx.DB
}

func NewPostgresDB(cfg config.DBConfig, log logger.Logger) (*Database, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
	)

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(2 * time.Hour)

	return &Database{log: log, DB: db}, nil
}

// NewDatabaseFromConn wraps an already established connection. Used by
// tests that provision their own database.
func NewDatabaseFromConn(db *sqlx.DB, log logger.Logger) *Database {
	return &Database{log: log, DB: db}
}

// WithTransaction runs fn inside a serializable transaction, retrying
// when PostgreSQL aborts it with a serialization failure or deadlock.
func (db *Database) WithTransaction(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	var lastErr error

	for attempt := 1; attempt <= maxTxRetries; attempt++ {
		err := db.runInTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}

		lastErr = err
		db.log.Warn("Retrying serialization conflict",
			logger.IntField("attempt", attempt),
			logger.ErrorField("error", err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * 10 * time.Millisecond):
		}
	}

	return fmt.Errorf("transaction failed after %d attempts: %w", maxTxRetries, lastErr)
}

func (db *Database) Querier() sqlx.ExtContext {
	return db.DB
}

func (db *Database) runInTx(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.log.Error("Transaction rollback failed",
				logger.ErrorField("error", rbErr))
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

func isRetryableError(err error) bool {
	// 40001 - serialization failure (PostgreSQL)
	// 40P01 - deadlock detected
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func (db *Database) Close() error {
	db.log.Info("Closing database connection")
	return db.DB.Close()
}
