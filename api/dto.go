/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine and portfolio types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY AND DATES:
  Amounts are decimal.Decimal, rendered as JSON strings ("1234.56") and
  accepted as strings or numbers. Dates are YYYY-MM-DD strings.

TYPES:
  Accounts:    factory.AccountJSON (shared with scenarios)
  Positions:   PositionDTO, OverviewDTO
  Payments:    PaymentRequestDTO, PaymentDTO
  Plans:       RecommendRequest, AllocationDTO, RecommendationResponse
  Simulations: SimulateRequest, SimulationDTO, TimelineSampleDTO
  Savings:     CreateSavingsRequest, SavingsDTO
  Snapshots:   CreateSnapshotRequest, SnapshotDTO
  FX:          PutRateRequest, RateDTO
  Scenarios:   ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and the service, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/account.go: AccountJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payoff-engine/engine"
	"github.com/warp/payoff-engine/factory"
	"github.com/warp/payoff-engine/fx"
	"github.com/warp/payoff-engine/portfolio"
)

// =============================================================================
// POSITIONS
// =============================================================================

// PositionDTO is one scored account.
type PositionDTO struct {
	Account     factory.AccountJSON `json:"account"`
	Interest    decimal.Decimal     `json:"interest"`
	Penalty     decimal.Decimal     `json:"penalty"`
	TotalOwed   decimal.Decimal     `json:"total_owed"`
	DaysAccrued int                 `json:"days_accrued"`
	OverdueDays int                 `json:"overdue_days"`
	RiskScore   float64             `json:"risk_score"`
	RiskReason  string              `json:"risk_reason"`
}

// OverviewDTO is the dashboard payload.
type OverviewDTO struct {
	AsOf          string          `json:"as_of"`
	Currency      string          `json:"currency"`
	Positions     []PositionDTO   `json:"positions"`
	TotalDebt     decimal.Decimal `json:"total_debt"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	TotalSavings  decimal.Decimal `json:"total_savings"`
	NetPosition   decimal.Decimal `json:"net_position"`
	HighestRisk   *PositionDTO    `json:"highest_risk,omitempty"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentRequestDTO is the request to record a payment.
type PaymentRequestDTO struct {
	Kind           string          `json:"kind"`
	AccountID      int64           `json:"account_id"`
	Date           string          `json:"date,omitempty"` // default today
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// PaymentDTO represents a recorded payment.
type PaymentDTO struct {
	ID               int64           `json:"id"`
	IdempotencyKey   string          `json:"idempotency_key"`
	Kind             string          `json:"kind"`
	AccountID        int64           `json:"account_id"`
	Date             string          `json:"date"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	AmountReporting  decimal.Decimal `json:"amount_reporting"`
	AppliedPenalty   decimal.Decimal `json:"applied_penalty"`
	AppliedInterest  decimal.Decimal `json:"applied_interest"`
	AppliedPrincipal decimal.Decimal `json:"applied_principal"`
	Leftover         decimal.Decimal `json:"leftover"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	CreatedAt        string          `json:"created_at,omitempty"`
}

// =============================================================================
// RECOMMENDATIONS
// =============================================================================

// RecommendRequest asks how to split a budget.
type RecommendRequest struct {
	Available decimal.Decimal `json:"available"`
	Currency  string          `json:"currency,omitempty"`
	Reserve   decimal.Decimal `json:"reserve"`
	Strategy  string          `json:"strategy"`
	AsOf      string          `json:"as_of,omitempty"`
}

// AllocationDTO is one line of a payment plan.
type AllocationDTO struct {
	Kind      string          `json:"kind"`
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Strategy  string          `json:"strategy"`
}

// RecommendationResponse wraps a plan with its totals.
type RecommendationResponse struct {
	Strategy    string          `json:"strategy"`
	Allocated   decimal.Decimal `json:"allocated"`
	Allocations []AllocationDTO `json:"allocations"`
}

// =============================================================================
// SIMULATIONS
// =============================================================================

// SimulateRequest is a what-if projection request.
type SimulateRequest struct {
	Start          string          `json:"start,omitempty"` // default today
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	Strategy       string          `json:"strategy,omitempty"`
}

// TimelineSampleDTO is the state after one simulated month.
type TimelineSampleDTO struct {
	AsOf              string          `json:"as_of"`
	TotalRemaining    decimal.Decimal `json:"total_remaining"`
	TotalInterestPaid decimal.Decimal `json:"total_interest_paid"`
}

// SimulationDTO is one simulation result.
type SimulationDTO struct {
	Strategy          string              `json:"strategy"`
	Resolved          bool                `json:"resolved"`
	PayoffDate        *string             `json:"payoff_date"`
	Months            int                 `json:"months"`
	TotalInterestPaid decimal.Decimal     `json:"total_interest_paid"`
	Timeline          []TimelineSampleDTO `json:"timeline"`
}

// =============================================================================
// SAVINGS AND SNAPSHOTS
// =============================================================================

type CreateSavingsRequest struct {
	Name     string          `json:"name"`
	Currency string          `json:"currency,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
}

type SavingsDTO struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Currency         string          `json:"currency"`
	BalanceReporting decimal.Decimal `json:"balance_reporting"`
}

type CreateSnapshotRequest struct {
	Date string `json:"date,omitempty"` // default today
}

type SnapshotDTO struct {
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	TotalDebt     decimal.Decimal `json:"total_debt"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	TotalSavings  decimal.Decimal `json:"total_savings"`
	NetPosition   decimal.Decimal `json:"net_position"`
	CreatedAt     string          `json:"created_at,omitempty"`
}

// =============================================================================
// FX
// =============================================================================

type PutRateRequest struct {
	Currency    string          `json:"currency"`
	ToReporting decimal.Decimal `json:"to_reporting"`
}

type RateDTO struct {
	Currency    string          `json:"currency"`
	ToReporting decimal.Decimal `json:"to_reporting"`
	UpdatedOn   string          `json:"updated_on"`
	Source      string          `json:"source"`
	Reporting   string          `json:"reporting"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (h *Handler) toPositionDTO(p portfolio.Position) PositionDTO {
	return PositionDTO{
		Account:     h.Factory.ToJSON(p.Account, h.Service.ReportingCurrency()),
		Interest:    p.Accrual.Interest,
		Penalty:     p.Accrual.Penalty,
		TotalOwed:   p.TotalOwed(),
		DaysAccrued: p.Accrual.DaysAccrued,
		OverdueDays: p.Accrual.OverdueDays,
		RiskScore:   p.Risk.Score,
		RiskReason:  p.Risk.Reason,
	}
}

func (h *Handler) toOverviewDTO(ov portfolio.Overview) OverviewDTO {
	dto := OverviewDTO{
		AsOf:          ov.AsOf.String(),
		Currency:      h.Service.ReportingCurrency(),
		Positions:     make([]PositionDTO, 0, len(ov.Positions)),
		TotalDebt:     ov.TotalDebt,
		TotalInterest: ov.TotalInterest,
		TotalSavings:  ov.TotalSavings,
		NetPosition:   ov.NetPosition,
	}
	for _, p := range ov.Positions {
		dto.Positions = append(dto.Positions, h.toPositionDTO(p))
	}
	if ov.HighestRisk != nil {
		hr := h.toPositionDTO(*ov.HighestRisk)
		dto.HighestRisk = &hr
	}
	return dto
}

func toPaymentDTO(p portfolio.PaymentRecord) PaymentDTO {
	return PaymentDTO{
		ID:               p.ID,
		IdempotencyKey:   p.IdempotencyKey,
		Kind:             string(p.Target.Kind),
		AccountID:        p.Target.ID,
		Date:             p.Date.String(),
		Amount:           p.Amount,
		Currency:         p.Currency,
		AmountReporting:  p.AmountReporting,
		AppliedPenalty:   p.AppliedPenalty,
		AppliedInterest:  p.AppliedInterest,
		AppliedPrincipal: p.AppliedPrincipal,
		Leftover:         p.Leftover,
		BalanceAfter:     p.BalanceAfter,
		CreatedAt:        formatTime(p.CreatedAt),
	}
}

func toAllocationDTO(a engine.Allocation) AllocationDTO {
	return AllocationDTO{
		Kind:      string(a.Ref.Kind),
		AccountID: a.Ref.ID,
		Amount:    a.Amount,
		Strategy:  string(a.Strategy),
	}
}

func toSimulationDTO(r engine.SimulationResult) SimulationDTO {
	dto := SimulationDTO{
		Strategy:          string(r.Strategy),
		Resolved:          r.Resolved(),
		Months:            r.Months,
		TotalInterestPaid: r.TotalInterestPaid,
		Timeline:          make([]TimelineSampleDTO, 0, len(r.Timeline)),
	}
	if r.PayoffDate != nil {
		s := r.PayoffDate.String()
		dto.PayoffDate = &s
	}
	for _, s := range r.Timeline {
		dto.Timeline = append(dto.Timeline, TimelineSampleDTO{
			AsOf:              s.AsOf.String(),
			TotalRemaining:    s.TotalRemaining,
			TotalInterestPaid: s.TotalInterestPaid,
		})
	}
	return dto
}

func toSavingsDTO(s portfolio.SavingsAccount) SavingsDTO {
	return SavingsDTO{ID: s.ID, Name: s.Name, Currency: s.Currency, BalanceReporting: s.BalanceReporting}
}

func toSnapshotDTO(s portfolio.Snapshot) SnapshotDTO {
	return SnapshotDTO{
		ID:            s.ID,
		Date:          s.Date.String(),
		TotalDebt:     s.TotalDebt,
		TotalInterest: s.TotalInterest,
		TotalSavings:  s.TotalSavings,
		NetPosition:   s.NetPosition,
		CreatedAt:     formatTime(s.CreatedAt),
	}
}

func toRateDTO(r fx.Rate, reporting string) RateDTO {
	return RateDTO{
		Currency:    r.Currency,
		ToReporting: r.ToReporting,
		UpdatedOn:   r.UpdatedOn.String(),
		Source:      r.Source,
		Reporting:   reporting,
	}
}
