/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built debt portfolios that populate the database with
	realistic data for demos. Each scenario exercises a different part of
	the engine: overdue penalties, card utilization, foreign-currency loans,
	strategy comparison.

AVAILABLE SCENARIOS:

	starter:          One card, one personal loan, an emergency fund
	overdue:          Missed due dates: card late fees, loan penalty interest
	cross-border:     USD and INR loans converted with manual fx rates
	strategy-compare: Four debts where avalanche and snowball diverge

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Store fx rates the scenario needs
 3. Create accounts from AccountJSON via the factory
 4. Add savings

	Dates are relative to the service clock so accruals look the same
	whenever the scenario is loaded.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overdue"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler wiring
  - factory/account.go: Account JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/payoff-engine/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioSavings struct {
	name     string
	currency string
	balance  string
}

type scenarioRate struct {
	currency    string
	toReporting string
}

type scenario struct {
	ScenarioDTO
	rates    []scenarioRate
	accounts func(today engine.Date) string // JSON array of AccountJSON
	savings  []scenarioSavings
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "starter",
			Name:        "Starter Portfolio",
			Description: "One credit card, one personal loan and an emergency fund, all current",
			Category:    "basic",
		},
		accounts: func(today engine.Date) string {
			return fmt.Sprintf(`[
				{"kind": "credit_card", "name": "Everyday Visa", "institution": "Northern Bank",
				 "balance": "1850.00", "annual_rate": "0.1999",
				 "card": {"credit_limit": "5000", "late_fee": "29",
				          "statement_date": %q, "due_date": %q}},
				{"kind": "loan", "name": "Personal loan", "institution": "Maple Credit Union",
				 "balance": "7200.00", "annual_rate": "0.0899",
				 "loan": {"penalty_rate": "0.02", "due_day": %d, "start_date": %q,
				          "debt_type": "personal", "principal_original": "10000", "installment_amount": "310"}}
			]`,
				today.AddDays(-5), today.AddDays(16),
				clampDay(today.AddDays(10).Day()), engine.AddCalendarMonth(today.AddDays(-400)),
			)
		},
		savings: []scenarioSavings{{name: "Emergency fund", balance: "3000"}},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "overdue",
			Name:        "Missed Payments",
			Description: "An overdue card with a late fee, a maxed-out card and a loan past its due day",
			Category:    "risk",
		},
		accounts: func(today engine.Date) string {
			return fmt.Sprintf(`[
				{"kind": "credit_card", "name": "Store card", "institution": "Retail Finance",
				 "balance": "950.00", "annual_rate": "0.2999",
				 "card": {"credit_limit": "1000", "late_fee": "45",
				          "statement_date": %q, "due_date": %q}},
				{"kind": "credit_card", "name": "Travel card", "institution": "Northern Bank",
				 "balance": "2400.00", "annual_rate": "0.2199",
				 "card": {"credit_limit": "10000", "late_fee": "35",
				          "statement_date": %q, "due_date": %q}},
				{"kind": "loan", "name": "Furniture loan", "institution": "Quick Credit",
				 "balance": "3650.00", "annual_rate": "0.10",
				 "loan": {"penalty_rate": "0.20", "due_day": %d, "start_date": %q,
				          "debt_type": "other"}}
			]`,
				today.AddDays(-35), today.AddDays(-12),
				today.AddDays(-8), today.AddDays(13),
				clampDay(today.AddDays(-10).Day()), today.AddDays(-45),
			)
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "cross-border",
			Name:        "Cross-Border Debts",
			Description: "A USD car loan and an INR education loan converted at manual rates",
			Category:    "fx",
		},
		rates: []scenarioRate{{currency: "USD", toReporting: "1.35"}, {currency: "INR", toReporting: "0.016"}},
		accounts: func(today engine.Date) string {
			return fmt.Sprintf(`[
				{"kind": "loan", "name": "Car loan", "institution": "Lone Star Auto",
				 "balance": "9000.00", "currency": "USD", "annual_rate": "0.0649",
				 "loan": {"penalty_rate": "0.02", "due_day": 15, "start_date": %q,
				          "currency": "USD", "debt_type": "auto", "principal_original": "18000"}},
				{"kind": "loan", "name": "Education loan", "institution": "Bharat Bank",
				 "balance": "500000", "currency": "INR", "annual_rate": "0.095",
				 "loan": {"penalty_rate": "0.02", "due_day": 5, "start_date": %q,
				          "currency": "INR", "debt_type": "personal"}},
				{"kind": "credit_card", "name": "Everyday Visa",
				 "balance": "600", "annual_rate": "0.1999",
				 "card": {"credit_limit": "4000", "late_fee": "29",
				          "statement_date": %q, "due_date": %q}}
			]`,
				engine.StartOfMonth(today), engine.StartOfMonth(today),
				today.AddDays(-3), today.AddDays(18),
			)
		},
		savings: []scenarioSavings{{name: "US brokerage cash", currency: "USD", balance: "1200"}},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "strategy-compare",
			Name:        "Avalanche vs Snowball",
			Description: "Small cheap debts next to large expensive ones, so strategies pick different orders",
			Category:    "planning",
		},
		accounts: func(today engine.Date) string {
			start := engine.StartOfMonth(today)
			return fmt.Sprintf(`[
				{"kind": "loan", "name": "Student loan", "balance": "15000", "annual_rate": "0.045",
				 "loan": {"due_day": 1, "start_date": %q, "debt_type": "personal"}},
				{"kind": "loan", "name": "Payday consolidation", "balance": "2500", "annual_rate": "0.29",
				 "loan": {"due_day": 1, "start_date": %q, "debt_type": "personal"}},
				{"kind": "credit_card", "name": "Gas card", "balance": "300", "annual_rate": "0.17",
				 "card": {"credit_limit": "1500", "late_fee": "25", "statement_date": %q, "due_date": %q}},
				{"kind": "credit_card", "name": "Premium card", "balance": "6400", "annual_rate": "0.2499",
				 "card": {"credit_limit": "8000", "late_fee": "39", "statement_date": %q, "due_date": %q}}
			]`,
				start, start,
				start, start.AddDays(21),
				start, start.AddDays(21),
			)
		},
		savings: []scenarioSavings{{name: "Chequing buffer", balance: "1000"}},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// clampDay keeps generated due days inside 1..28.
func clampDay(day int) int {
	if day > engine.MaxDueDay {
		return engine.MaxDueDay
	}
	return day
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if s, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, s.ScenarioDTO)
		return
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err := h.loadScenario(r.Context(), s); err != nil {
		h.fail(w, r, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"scenario": s.ID,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	accounts, err := h.Factory.ParseAccounts(s.accounts(h.Service.Today()))
	if err != nil {
		return fmt.Errorf("scenario %s: %w", s.ID, err)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	for _, rate := range s.rates {
		if _, err := h.Service.SetRate(ctx, rate.currency, decimal.RequireFromString(rate.toReporting)); err != nil {
			return err
		}
	}
	for _, acct := range accounts {
		if _, err := h.Service.CreateAccount(ctx, acct); err != nil {
			return fmt.Errorf("create %s: %w", acct.Record.Name, err)
		}
	}
	for _, sv := range s.savings {
		if _, err := h.Service.AddSavings(ctx, sv.name, sv.currency, decimal.RequireFromString(sv.balance)); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Log.WithFields(logrus.Fields{
		"scenario": s.ID,
		"accounts": len(accounts),
	}).Info("scenario loaded")
	return nil
}
