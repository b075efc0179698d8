package models

import "errors"

// Ошибки уровня домена
var (
	ErrInvalidAccount       = errors.New("account id must not be blank")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrTransactionNotFound  = errors.New("transaction not found")
)
