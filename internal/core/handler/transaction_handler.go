package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/dailybanking/transaction-service/internal/core/logger"
	"github.com/dailybanking/transaction-service/internal/core/models"
	"github.com/dailybanking/transaction-service/internal/core/usecase"
)

var (
	amountRegexp   = regexp.MustCompile(`^\s*\d{1,12}([.,]\d{1,4})?\s*$`)
	currencyRegexp = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

type TransactionHandler struct {
	usecase usecase.TransactionUsecase
	log     logger.Logger
}

func NewTransactionHandler(usecase usecase.TransactionUsecase, log logger.Logger) *TransactionHandler {
	return &TransactionHandler{usecase: usecase, log: log}
}

func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/transactions/deposit", h.Deposit).Methods("POST")
	router.HandleFunc("/api/v1/transactions/withdraw", h.Withdraw).Methods("POST")
	router.HandleFunc("/api/v1/transactions/transfer", h.Transfer).Methods("POST")
	router.HandleFunc("/api/v1/transactions/{transactionId}", h.GetByID).Methods("GET")
	router.HandleFunc("/api/v1/transactions", h.List).Methods("GET")
	router.HandleFunc("/api/v1/accounts/{accountId}/balance", h.GetBalance).Methods("GET")
}

type operationRequest struct {
	AccountID       string `json:"accountId"`
	SourceAccountID string `json:"sourceAccountId"`
	TargetAccountID string `json:"targetAccountId"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Description     string `json:"description"`
	IdempotencyKey  string `json:"idempotencyKey"`
}

type errorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type balanceResponse struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
}

func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.decodeOperation(w, r)
	if !ok {
		return
	}
	if !h.requireAccounts(w, map[string]string{"accountId": req.AccountID}) {
		return
	}

	txn, err := h.usecase.Deposit(r.Context(), usecase.DepositCommand{
		AccountID:      req.AccountID,
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.handleOperationError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, txn)
}

func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.decodeOperation(w, r)
	if !ok {
		return
	}
	if !h.requireAccounts(w, map[string]string{"accountId": req.AccountID}) {
		return
	}

	txn, err := h.usecase.Withdraw(r.Context(), usecase.WithdrawCommand{
		AccountID:      req.AccountID,
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.handleOperationError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, txn)
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.decodeOperation(w, r)
	if !ok {
		return
	}
	if !h.requireAccounts(w, map[string]string{
		"sourceAccountId": req.SourceAccountID,
		"targetAccountId": req.TargetAccountID,
	}) {
		return
	}

	txn, err := h.usecase.Transfer(r.Context(), usecase.TransferCommand{
		SourceAccountID: req.SourceAccountID,
		TargetAccountID: req.TargetAccountID,
		Amount:          amount,
		Currency:        req.Currency,
		Description:     req.Description,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		h.handleOperationError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, txn)
}

func (h *TransactionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	transactionID := mux.Vars(r)["transactionId"]

	txn, err := h.usecase.GetByID(r.Context(), transactionID)
	if err != nil {
		h.handleOperationError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, txn)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if accountID := query.Get("accountId"); accountID != "" {
		txns, err := h.usecase.FindByAccount(r.Context(), accountID)
		if err != nil {
			h.handleOperationError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, txns)
		return
	}

	fromStr, toStr := query.Get("from"), query.Get("to")
	if fromStr != "" && toStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			respondValidationError(w, fmt.Sprintf("from: invalid RFC 3339 timestamp: %s", fromStr))
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			respondValidationError(w, fmt.Sprintf("to: invalid RFC 3339 timestamp: %s", toStr))
			return
		}

		txns, err := h.usecase.FindBetween(r.Context(), from, to)
		if err != nil {
			h.handleOperationError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, txns)
		return
	}

	respondValidationError(w, "accountId or from/to query parameters are required")
}

func (h *TransactionHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountId"]

	balance, err := h.usecase.GetBalance(r.Context(), accountID)
	if err != nil {
		h.handleOperationError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, balanceResponse{AccountID: accountID, Balance: balance})
}

// decodeOperation parses the request body and validates amount and
// currency. The blank idempotency key falls back to the
// Idempotency-Key header.
func (h *TransactionHandler) decodeOperation(w http.ResponseWriter, r *http.Request) (*operationRequest, decimal.Decimal, bool) {
	var req operationRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		respondValidationError(w, "invalid request payload")
		return nil, decimal.Zero, false
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	amount, err := h.parseAmount(req.Amount)
	if err != nil {
		h.log.Warn("Invalid amount", logger.StringField("amount", req.Amount), logger.ErrorField("error", err))
		respondValidationError(w, err.Error())
		return nil, decimal.Zero, false
	}

	if !currencyRegexp.MatchString(req.Currency) {
		respondValidationError(w, fmt.Sprintf("currency must be a 3-letter code, got %q", req.Currency))
		return nil, decimal.Zero, false
	}

	return &req, amount, true
}

func (h *TransactionHandler) requireAccounts(w http.ResponseWriter, accounts map[string]string) bool {
	for field, id := range accounts {
		if strings.TrimSpace(id) == "" {
			respondValidationError(w, field+" must not be blank")
			return false
		}
	}
	return true
}

func (h *TransactionHandler) parseAmount(amountStr string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(amountStr, " ", ""), ",", ".")

	if !amountRegexp.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("invalid amount format: %s", cleaned)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount: %v", err)
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}

	return amount, nil
}

func (h *TransactionHandler) handleOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrTransactionNotFound):
		respondError(w, http.StatusNotFound, "TRANSACTION_NOT_FOUND", err.Error())
	case errors.Is(err, models.ErrDuplicateTransaction):
		respondError(w, http.StatusConflict, "DUPLICATE_TRANSACTION", err.Error())
	case errors.Is(err, models.ErrInsufficientBalance):
		respondError(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE", err.Error())
	case errors.Is(err, models.ErrInvalidAccount):
		respondError(w, http.StatusBadRequest, "INVALID_ACCOUNT", err.Error())
	default:
		h.log.Error("Failed to process operation", logger.ErrorField("error", err))
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to process operation")
	}
}

func respondValidationError(w http.ResponseWriter, message string) {
	respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", message)
}

func respondError(w http.ResponseWriter, code int, errCode, message string) {
	respondWithJSON(w, code, errorResponse{Status: code, Error: errCode, Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
