/*
handlers.go - HTTP API handlers for the payoff engine

PURPOSE:
  Exposes the portfolio service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to portfolio.Service.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                  List accounts (?kind=&status=)
    POST   /api/accounts                  Create account from AccountJSON
    GET    /api/accounts/{kind}/{id}      Get one account
    PUT    /api/accounts/{kind}/{id}      Replace one account

  Dashboard:
    GET    /api/positions?as_of=          Accrual, risk and totals per account

  Payments:
    POST   /api/payments                  Record a payment (waterfall)
    GET    /api/payments                  History (?kind=&account_id=)

  Planning:
    POST   /api/recommendations           Split a budget by strategy
    POST   /api/simulations               Payoff projection, one strategy
    POST   /api/simulations/compare       Payoff projection, every strategy

  Savings / snapshots / fx:
    GET    /api/savings, POST /api/savings
    GET    /api/snapshots, POST /api/snapshots
    GET    /api/fx/rates, PUT /api/fx/rates

  Scenarios:
    GET    /api/scenarios                 List demo portfolios
    POST   /api/scenarios/load            Reset and load one

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, underpayment, closed account, missing fx rate
  - 404: Account not found
  - 409: Duplicate idempotency key or snapshot date
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The server is meant for a single household on a
  trusted network.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/warp/payoff-engine/engine"
	"github.com/warp/payoff-engine/factory"
	"github.com/warp/payoff-engine/fx"
	"github.com/warp/payoff-engine/portfolio"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears persisted data before a scenario is loaded.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *portfolio.Service
	Factory *factory.AccountFactory
	Store   Resetter
	Log     *logrus.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(svc *portfolio.Service, store Resetter, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Service: svc,
		Factory: factory.NewAccountFactory(),
		Store:   store,
		Log:     log,
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns accounts, optionally filtered by kind and status.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	var filter portfolio.AccountFilter
	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := engine.ParseAccountKind(k)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid kind", err)
			return
		}
		filter.Kind = &kind
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := portfolio.AccountStatus(s)
		if status != portfolio.StatusActive && status != portfolio.StatusClosed {
			writeError(w, http.StatusBadRequest, "Invalid status (use active or closed)", nil)
			return
		}
		filter.Status = &status
	}

	accounts, err := h.Service.ListAccounts(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "Failed to list accounts", err)
		return
	}

	dtos := make([]factory.AccountJSON, len(accounts))
	for i, a := range accounts {
		dtos[i] = h.Factory.ToJSON(a, h.Service.ReportingCurrency())
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates an account from AccountJSON.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req factory.AccountJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ID = 0

	acct, err := h.Factory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account", err)
		return
	}

	created, err := h.Service.CreateAccount(r.Context(), acct)
	if err != nil {
		h.fail(w, r, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Factory.ToJSON(created, h.Service.ReportingCurrency()))
}

// GetAccount returns one account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account reference", err)
		return
	}

	rec, err := h.Service.GetAccount(r.Context(), ref)
	if err != nil {
		h.fail(w, r, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.ToJSON(rec, h.Service.ReportingCurrency()))
}

// UpdateAccount replaces an account. The balance is taken in the reporting
// currency.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account reference", err)
		return
	}

	var req factory.AccountJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if c := fx.NormalizeCurrency(req.Currency); c != "" && c != h.Service.ReportingCurrency() {
		writeError(w, http.StatusBadRequest, "Balance must be in the reporting currency", nil)
		return
	}
	req.Kind = string(ref.Kind)
	req.ID = ref.ID

	acct, err := h.Factory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account", err)
		return
	}

	existing, err := h.Service.GetAccount(r.Context(), ref)
	if err != nil {
		h.fail(w, r, "Failed to get account", err)
		return
	}
	acct.Record.CreatedAt = existing.CreatedAt

	if err := h.Service.UpdateAccount(r.Context(), acct.Record); err != nil {
		h.fail(w, r, "Failed to update account", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.ToJSON(acct.Record, h.Service.ReportingCurrency()))
}

// =============================================================================
// POSITION HANDLERS
// =============================================================================

// GetPositions scores every active account as of ?as_of (default today).
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.parseDateOrToday(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	ov, err := h.Service.Overview(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, "Failed to compute positions", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOverviewDTO(ov))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment applies a payment through the waterfall.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kind, err := engine.ParseAccountKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid kind", err)
		return
	}
	var date engine.Date
	if req.Date != "" {
		if date, err = engine.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	// An Idempotency-Key header stands in for a missing body key
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	payment, err := h.Service.RecordPayment(r.Context(), portfolio.PaymentRequest{
		Target:         engine.AccountRef{Kind: kind, ID: req.AccountID},
		Date:           date,
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: key,
	})
	if err != nil {
		h.fail(w, r, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// ListPayments returns payment history, newest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	var filter portfolio.PaymentFilter
	q := r.URL.Query()

	if k := q.Get("kind"); k != "" {
		kind, err := engine.ParseAccountKind(k)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid kind", err)
			return
		}
		if idStr := q.Get("account_id"); idStr != "" {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid account_id", err)
				return
			}
			filter.Target = &engine.AccountRef{Kind: kind, ID: id}
		} else {
			filter.Kind = &kind
		}
	} else if q.Get("account_id") != "" {
		writeError(w, http.StatusBadRequest, "account_id requires kind", nil)
		return
	}

	payments, err := h.Service.ListPayments(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PLANNING HANDLERS
// =============================================================================

// Recommend splits a budget across active accounts.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	strategy, err := parseStrategyOrDefault(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid strategy", err)
		return
	}
	asOf, err := h.parseDateOrToday(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}

	plan, err := h.Service.Recommend(r.Context(), portfolio.RecommendRequest{
		Available: req.Available,
		Currency:  req.Currency,
		Reserve:   req.Reserve,
		Strategy:  strategy,
		AsOf:      asOf,
	})
	if err != nil {
		h.fail(w, r, "Failed to build recommendation", err)
		return
	}

	resp := RecommendationResponse{
		Strategy:    string(strategy),
		Allocated:   engine.PlanTotal(plan),
		Allocations: make([]AllocationDTO, len(plan)),
	}
	for i, a := range plan {
		resp.Allocations[i] = toAllocationDTO(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Simulate projects the payoff under one strategy.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSimulation(w, r)
	if !ok {
		return
	}
	result, err := h.Service.Simulate(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Failed to simulate", err)
		return
	}
	writeJSON(w, http.StatusOK, toSimulationDTO(result))
}

// CompareSimulations projects the payoff under every strategy.
func (h *Handler) CompareSimulations(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSimulation(w, r)
	if !ok {
		return
	}
	results, err := h.Service.CompareStrategies(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Failed to simulate", err)
		return
	}
	dtos := make([]SimulationDTO, len(results))
	for i, res := range results {
		dtos[i] = toSimulationDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) decodeSimulation(w http.ResponseWriter, r *http.Request) (portfolio.SimulateRequest, bool) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return portfolio.SimulateRequest{}, false
	}
	strategy, err := parseStrategyOrDefault(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid strategy", err)
		return portfolio.SimulateRequest{}, false
	}
	start, err := h.parseDateOrToday(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start format (use YYYY-MM-DD)", err)
		return portfolio.SimulateRequest{}, false
	}
	return portfolio.SimulateRequest{Start: start, MonthlyPayment: req.MonthlyPayment, Strategy: strategy}, true
}

// =============================================================================
// SAVINGS, SNAPSHOTS, FX
// =============================================================================

func (h *Handler) ListSavings(w http.ResponseWriter, r *http.Request) {
	savings, err := h.Service.ListSavings(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list savings", err)
		return
	}
	dtos := make([]SavingsDTO, len(savings))
	for i, s := range savings {
		dtos[i] = toSavingsDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSavings(w http.ResponseWriter, r *http.Request) {
	var req CreateSavingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	saved, err := h.Service.AddSavings(r.Context(), req.Name, req.Currency, req.Balance)
	if err != nil {
		h.fail(w, r, "Failed to add savings", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSavingsDTO(saved))
}

func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Service.ListSnapshots(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list snapshots", err)
		return
	}
	dtos := make([]SnapshotDTO, len(snaps))
	for i, s := range snaps {
		dtos[i] = toSnapshotDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSnapshot records the totals for a date (default today).
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req CreateSnapshotRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	date, err := h.parseDateOrToday(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	snap, err := h.Service.TakeSnapshot(r.Context(), date)
	if err != nil {
		h.fail(w, r, "Failed to take snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSnapshotDTO(snap))
}

func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Service.ListRates(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list rates", err)
		return
	}
	reporting := h.Service.ReportingCurrency()
	dtos := make([]RateDTO, len(rates))
	for i, rate := range rates {
		dtos[i] = toRateDTO(rate, reporting)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PutRate stores a manual rate, overriding any fetched one.
func (h *Handler) PutRate(w http.ResponseWriter, r *http.Request) {
	var req PutRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rate, err := h.Service.SetRate(r.Context(), req.Currency, req.ToReporting)
	if err != nil {
		h.fail(w, r, "Failed to set rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(rate, h.Service.ReportingCurrency()))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case portfolio.IsNotFound(err):
		return http.StatusNotFound
	case portfolio.IsConflict(err):
		return http.StatusConflict
	case portfolio.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status; server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error(message)
	}
	writeError(w, status, message, err)
}

func parseRef(r *http.Request) (engine.AccountRef, error) {
	kind, err := engine.ParseAccountKind(chi.URLParam(r, "kind"))
	if err != nil {
		return engine.AccountRef{}, err
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return engine.AccountRef{}, &engine.InvalidArgumentError{Field: "id", Value: chi.URLParam(r, "id"), Reason: "must be a positive integer"}
	}
	return engine.AccountRef{Kind: kind, ID: id}, nil
}

func (h *Handler) parseDateOrToday(s string) (engine.Date, error) {
	if s == "" {
		return h.Service.Today(), nil
	}
	return engine.ParseDate(s)
}

func parseStrategyOrDefault(s string) (engine.Strategy, error) {
	if s == "" {
		return engine.StrategyRisk, nil
	}
	return engine.ParseStrategy(s)
}
