package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailybanking/transaction-service/internal/core/handler"
	"github.com/dailybanking/transaction-service/internal/core/idempotency"
	"github.com/dailybanking/transaction-service/internal/core/logger"
	"github.com/dailybanking/transaction-service/internal/core/notifier"
	"github.com/dailybanking/transaction-service/internal/core/repository/memory"
	"github.com/dailybanking/transaction-service/internal/core/usecase"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	log := logger.NewTestLogger()
	ledger := memory.NewLedger()
	engine := usecase.NewTransactionUsecase(
		memory.NewTxRunner(),
		memory.NewBalanceStore(),
		ledger,
		idempotency.NewGuard(ledger),
		notifier.NewLogNotifier(log),
		log,
	)

	router := mux.NewRouter()
	handler.NewTransactionHandler(engine, log).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestDepositEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions/deposit",
		`{"accountId":"A","amount":"120.00","currency":"eur","idempotencyKey":"dep-1"}`, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "DEPOSIT", body["type"])
	assert.Equal(t, "COMPLETED", body["status"])
	assert.Equal(t, "EUR", body["currency"])
	assert.Equal(t, "A", body["sourceAccountId"])
	assert.NotEmpty(t, body["transactionId"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/v1/accounts/A/balance", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A", body["accountId"])
	assertDecimalEqual(t, "120.00", body["balance"])
}

func assertDecimalEqual(t *testing.T, want string, got any) {
	t.Helper()
	raw, ok := got.(string)
	require.True(t, ok, "expected decimal string, got %T", got)
	assert.True(t, decimal.RequireFromString(want).Equal(decimal.RequireFromString(raw)),
		"want %s, got %s", want, raw)
}

func TestDuplicateDepositReturnsConflict(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/transactions/deposit",
		`{"accountId":"A","amount":"10","currency":"USD","idempotencyKey":"dup"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions/deposit",
		`{"accountId":"A","amount":"999","currency":"USD","idempotencyKey":"dup"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_TRANSACTION", body["error"])
}

func TestIdempotencyKeyHeaderFallback(t *testing.T) {
	router := newTestRouter(t)
	headers := map[string]string{"Idempotency-Key": "hdr-key"}

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/transactions/deposit",
		`{"accountId":"A","amount":"10","currency":"USD"}`, headers)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions/deposit",
		`{"accountId":"A","amount":"10","currency":"USD"}`, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_TRANSACTION", body["error"])
}

func TestWithdrawInsufficientReturnsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions/withdraw",
		`{"accountId":"A","amount":"5","currency":"USD"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INSUFFICIENT_BALANCE", body["error"])
}

func TestTransferEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/transactions/deposit",
		`{"accountId":"source","amount":"100","currency":"USD"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/transactions/transfer",
		`{"sourceAccountId":"source","targetAccountId":"target","amount":"40","currency":"USD"}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "TRANSFER", body["type"])
	assert.Equal(t, "target", body["targetAccountId"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/v1/accounts/source/balance", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assertDecimalEqual(t, "60", body["balance"])
}

func TestValidationErrors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/api/v1/transactions/deposit", `{`},
		{"negative amount", "/api/v1/transactions/deposit", `{"accountId":"A","amount":"-5","currency":"USD"}`},
		{"zero amount", "/api/v1/transactions/deposit", `{"accountId":"A","amount":"0","currency":"USD"}`},
		{"non-numeric amount", "/api/v1/transactions/deposit", `{"accountId":"A","amount":"ten","currency":"USD"}`},
		{"bad currency", "/api/v1/transactions/deposit", `{"accountId":"A","amount":"5","currency":"EURO"}`},
		{"blank account", "/api/v1/transactions/deposit", `{"accountId":" ","amount":"5","currency":"USD"}`},
		{"blank transfer target", "/api/v1/transactions/transfer", `{"sourceAccountId":"A","targetAccountId":"","amount":"5","currency":"USD"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := doJSON(t, router, http.MethodPost, tc.path, tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_FAILED", body["error"])
		})
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodGet, "/api/v1/transactions/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TRANSACTION_NOT_FOUND", body["error"])
}

func TestListByAccount(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/transactions/deposit",
		`{"accountId":"A","amount":"10","currency":"USD"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/transactions/withdraw",
		`{"accountId":"A","amount":"4","currency":"USD"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions?accountId=A", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "WITHDRAWAL", rows[0]["type"])
	assert.Equal(t, "DEPOSIT", rows[1]["type"])
}

func TestListWithoutFiltersRejected(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodGet, "/api/v1/transactions", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", body["error"])
}
