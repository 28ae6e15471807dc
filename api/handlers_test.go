/*
handlers_test.go - HTTP tests for API handlers

Tests run the full chi router against an in-memory store with a fixed
clock (2025-01-25), so accruals are deterministic.
*/
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payoff-engine/factory"
	"github.com/warp/payoff-engine/fx"
	"github.com/warp/payoff-engine/portfolio"
	"github.com/warp/payoff-engine/store/memory"
)

var testNow = time.Date(2025, time.January, 25, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setupTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	log := quietLogger()
	store := memory.NewMemory()
	conv := fx.NewConverter("CAD", 1, fx.NewMemoryCache(), nil, log)
	svc := portfolio.NewService(store, conv, log, portfolio.WithClock(func() time.Time { return testNow }))
	h := NewHandler(svc, store, log)
	return h, NewRouter(h, nil)
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// overdueLoanJSON owes 24 interest and 20 penalty on 2025-01-25.
const overdueLoanJSON = `{
	"kind": "loan", "name": "Furniture loan", "balance": "3650", "annual_rate": "0.10",
	"loan": {"penalty_rate": "0.20", "due_day": 15, "start_date": "2025-01-01"}
}`

const cardJSON = `{
	"kind": "credit_card", "name": "Everyday Visa", "balance": "400", "annual_rate": "0.2199",
	"card": {"credit_limit": "2000", "late_fee": "29", "statement_date": "2025-01-10", "due_date": "2025-02-03"}
}`

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAccounts_CreateGetList(t *testing.T) {
	_, router := setupTestHandler(t)

	// GIVEN: a loan and a card created over HTTP
	rec := do(t, router, http.MethodPost, "/api/accounts", overdueLoanJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decode[factory.AccountJSON](t, rec)
	assert.Equal(t, int64(1), loan.ID)
	assert.Equal(t, "active", loan.Status)
	assert.Equal(t, "CAD", loan.Currency)

	rec = do(t, router, http.MethodPost, "/api/accounts", cardJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	card := decode[factory.AccountJSON](t, rec)
	assert.Equal(t, int64(1), card.ID, "cards are numbered apart from loans")

	// WHEN: fetched one by one and listed
	rec = do(t, router, http.MethodGet, "/api/accounts/credit_card/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[factory.AccountJSON](t, rec)
	assert.Equal(t, "Everyday Visa", got.Name)
	require.NotNil(t, got.Card)
	assert.Equal(t, "2025-02-03", got.Card.DueDate)

	rec = do(t, router, http.MethodGet, "/api/accounts?kind=loan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]factory.AccountJSON](t, rec), 1)

	rec = do(t, router, http.MethodGet, "/api/accounts", "")
	assert.Len(t, decode[[]factory.AccountJSON](t, rec), 2)
}

func TestAccounts_Errors(t *testing.T) {
	_, router := setupTestHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing account", http.MethodGet, "/api/accounts/loan/9", "", http.StatusNotFound},
		{"bad kind in path", http.MethodGet, "/api/accounts/mortgage/1", "", http.StatusBadRequest},
		{"bad id in path", http.MethodGet, "/api/accounts/loan/abc", "", http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/accounts", "{", http.StatusBadRequest},
		{"invalid due day", http.MethodPost, "/api/accounts",
			`{"kind":"loan","balance":"1","annual_rate":"0.1","loan":{"due_day":30,"start_date":"2025-01-01"}}`,
			http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/accounts?status=frozen", "", http.StatusBadRequest},
		{"update missing", http.MethodPut, "/api/accounts/credit_card/4", cardJSON, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			errResp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, errResp.Error)
		})
	}
}

func TestAccounts_UpdateClosesAccount(t *testing.T) {
	_, router := setupTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/accounts", cardJSON).Code)

	closed := strings.Replace(cardJSON, `"kind": "credit_card",`, `"kind": "credit_card", "status": "closed",`, 1)
	rec := do(t, router, http.MethodPut, "/api/accounts/credit_card/1", closed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/accounts?status=active", "")
	assert.Empty(t, decode[[]factory.AccountJSON](t, rec))

	// Closed accounts refuse payments
	rec = do(t, router, http.MethodPost, "/api/payments", `{"kind":"credit_card","account_id":1,"amount":"50"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccounts_UpdateRejectsForeignBalance(t *testing.T) {
	_, router := setupTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/accounts", cardJSON).Code)

	usd := strings.Replace(cardJSON, `"balance": "400",`, `"balance": "400", "currency": "USD",`, 1)
	rec := do(t, router, http.MethodPut, "/api/accounts/credit_card/1", usd)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// POSITIONS AND PAYMENTS
// =============================================================================

func TestPositions_OverdueLoan(t *testing.T) {
	_, router := setupTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/accounts", overdueLoanJSON).Code)

	rec := do(t, router, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ov := decode[OverviewDTO](t, rec)

	assert.Equal(t, "2025-01-25", ov.AsOf)
	require.Len(t, ov.Positions, 1)
	p := ov.Positions[0]
	assert.True(t, p.Interest.Equal(dec("24")), "interest %s", p.Interest)
	assert.True(t, p.Penalty.Equal(dec("20")), "penalty %s", p.Penalty)
	assert.True(t, p.TotalOwed.Equal(dec("3694")))
	assert.Equal(t, 10, p.OverdueDays)
	assert.True(t, ov.TotalDebt.Equal(dec("3694")))
	assert.True(t, ov.NetPosition.Equal(dec("-3694")))
	require.NotNil(t, ov.HighestRisk)

	// Before the due day nothing is overdue
	rec = do(t, router, http.MethodGet, "/api/positions?as_of=2025-01-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	early := decode[OverviewDTO](t, rec)
	assert.Equal(t, 0, early.Positions[0].OverdueDays)
	assert.True(t, early.Positions[0].Penalty.IsZero())

	rec = do(t, router, http.MethodGet, "/api/positions?as_of=25-01-2025", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayments_Waterfall(t *testing.T) {
	_, router := setupTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/accounts", overdueLoanJSON).Code)

	// WHEN: 100 is paid with an idempotency key
	body := `{"kind":"loan","account_id":1,"amount":"100","idempotency_key":"pay-1"}`
	rec := do(t, router, http.MethodPost, "/api/payments", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[PaymentDTO](t, rec)

	// THEN: penalty, then interest, then principal
	assert.True(t, p.AppliedPenalty.Equal(dec("20")))
	assert.True(t, p.AppliedInterest.Equal(dec("24")))
	assert.True(t, p.AppliedPrincipal.Equal(dec("56")))
	assert.True(t, p.Leftover.IsZero())
	assert.True(t, p.BalanceAfter.Equal(dec("3594")))
	assert.Equal(t, "2025-01-25", p.Date)

	// AND: replaying the key is a conflict
	rec = do(t, router, http.MethodPost, "/api/payments", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: history lists the one payment
	rec = do(t, router, http.MethodGet, "/api/payments?kind=loan&account_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]PaymentDTO](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "pay-1", history[0].IdempotencyKey)
}

func TestPayments_Errors(t *testing.T) {
	_, router := setupTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/accounts", overdueLoanJSON).Code)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"underpayment", `{"kind":"loan","account_id":1,"amount":"43.99"}`, http.StatusBadRequest},
		{"zero amount", `{"kind":"loan","account_id":1,"amount":"0"}`, http.StatusBadRequest},
		{"unknown account", `{"kind":"loan","account_id":7,"amount":"100"}`, http.StatusNotFound},
		{"bad kind", `{"kind":"bond","account_id":1,"amount":"100"}`, http.StatusBadRequest},
		{"bad date", `{"kind":"loan","account_id":1,"amount":"100","date":"Jan 25"}`, http.StatusBadRequest},
		{"missing fx rate", `{"kind":"loan","account_id":1,"amount":"100","currency":"EUR"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/payments", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, router, http.MethodGet, "/api/payments?account_id=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "account_id needs a kind")
}

func TestPayments_IdempotencyHeader(t *testing.T) {
	_, router := setupTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/accounts", overdueLoanJSON).Code)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/payments",
			strings.NewReader(`{"kind":"loan","account_id":1,"amount":"100"}`))
		req.Header.Set("Idempotency-Key", "hdr-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send())
	assert.Equal(t, http.StatusConflict, send())
}

// =============================================================================
// PLANNING
// =============================================================================

func TestRecommendations(t *testing.T) {
	_, router := setupTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/accounts", overdueLoanJSON).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/accounts", cardJSON).Code)

	// GIVEN: 1000 available with 500 held back, smallest balance first
	rec := do(t, router, http.MethodPost, "/api/recommendations",
		`{"available":"1000","reserve":"500","strategy":"snowball"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[RecommendationResponse](t, rec)

	// THEN: the card is cleared, the loan gets the rest
	assert.Equal(t, "snowball", resp.Strategy)
	assert.True(t, resp.Allocated.Equal(dec("500")))
	require.Len(t, resp.Allocations, 2)
	assert.Equal(t, "credit_card", resp.Allocations[0].Kind)
	assert.True(t, resp.Allocations[0].Amount.Equal(dec("400")))
	assert.Equal(t, "loan", resp.Allocations[1].Kind)
	assert.True(t, resp.Allocations[1].Amount.Equal(dec("100")))

	rec = do(t, router, http.MethodPost, "/api/recommendations", `{"available":"1000","strategy":"yolo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulations(t *testing.T) {
	_, router := setupTestHandler(t)
	zeroRate := `{"kind":"loan","name":"Family loan","balance":"1200","annual_rate":"0",
		"loan":{"start_date":"2025-01-15"}}`
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/accounts", zeroRate).Code)

	rec := do(t, router, http.MethodPost, "/api/simulations",
		`{"start":"2025-01-15","monthly_payment":"200","strategy":"avalanche"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sim := decode[SimulationDTO](t, rec)

	assert.True(t, sim.Resolved)
	assert.Equal(t, 6, sim.Months)
	require.NotNil(t, sim.PayoffDate)
	assert.Equal(t, "2025-07-01", *sim.PayoffDate)
	assert.Len(t, sim.Timeline, 6)

	rec = do(t, router, http.MethodPost, "/api/simulations/compare", `{"start":"2025-01-15","monthly_payment":"200"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]SimulationDTO](t, rec)
	assert.Len(t, all, 3)

	// No payment never resolves
	rec = do(t, router, http.MethodPost, "/api/simulations", `{"start":"2025-01-15","monthly_payment":"0"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	stuck := decode[SimulationDTO](t, rec)
	assert.False(t, stuck.Resolved)
	assert.Nil(t, stuck.PayoffDate)
}

// =============================================================================
// SAVINGS, SNAPSHOTS, FX
// =============================================================================

func TestSnapshots_OncePerDate(t *testing.T) {
	_, router := setupTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/accounts", overdueLoanJSON).Code)
	rec := do(t, router, http.MethodPost, "/api/savings", `{"name":"Emergency fund","balance":"5000"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/snapshots", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	snap := decode[SnapshotDTO](t, rec)
	assert.Equal(t, "2025-01-25", snap.Date)
	assert.True(t, snap.TotalDebt.Equal(dec("3694")))
	assert.True(t, snap.NetPosition.Equal(dec("1306")))

	rec = do(t, router, http.MethodPost, "/api/snapshots", `{"date":"2025-01-25"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/snapshots", "")
	assert.Len(t, decode[[]SnapshotDTO](t, rec), 1)
}

func TestFXRates(t *testing.T) {
	_, router := setupTestHandler(t)

	rec := do(t, router, http.MethodPut, "/api/fx/rates", `{"currency":"usd","to_reporting":"1.35"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rate := decode[RateDTO](t, rec)
	assert.Equal(t, "USD", rate.Currency)
	assert.Equal(t, "CAD", rate.Reporting)
	assert.Equal(t, "manual", rate.Source)

	// The rate now converts savings
	rec = do(t, router, http.MethodPost, "/api/savings", `{"name":"US cash","currency":"USD","balance":"100"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sv := decode[SavingsDTO](t, rec)
	assert.True(t, sv.BalanceReporting.Equal(dec("135")))

	rec = do(t, router, http.MethodGet, "/api/fx/rates", "")
	assert.Len(t, decode[[]RateDTO](t, rec), 1)

	rec = do(t, router, http.MethodPut, "/api/fx/rates", `{"currency":"CAD","to_reporting":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	_, router := setupTestHandler(t)
	rec := do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
