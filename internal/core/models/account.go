package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance представляет текущий баланс счёта
type AccountBalance struct {
	AccountID string          `json:"accountId" db:"account_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
