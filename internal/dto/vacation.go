package dto

import (
	"time"

	"github.com/noah-isme/ems-leave-api/internal/models"
)

// DateLayout is the wire format for calendar dates. Leave spans are calendar
// dates, never instants, so no clock or zone component is accepted.
const DateLayout = "2006-01-02"

// SubmitVacationRequest payload for creating a leave request.
type SubmitVacationRequest struct {
	Type             models.VacationType `json:"type" validate:"required"`
	StartDate        string              `json:"start_date" validate:"required"`
	EndDate          string              `json:"end_date" validate:"required"`
	Reason           string              `json:"reason" validate:"required"`
	IsRewardVacation bool                `json:"is_reward_vacation"`
	IsExtension      bool                `json:"is_extension"`
}

// ReviewDecision enumerates reviewer outcomes.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "APPROVE"
	DecisionReject  ReviewDecision = "REJECT"
)

// ReviewVacationRequest captures reviewer decision and remarks.
type ReviewVacationRequest struct {
	Decision ReviewDecision `json:"decision" validate:"required"`
	Remarks  string         `json:"remarks"`
}

// EditDatesRequest corrects the span of a pending request.
type EditDatesRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

// VacationQuery mirrors supported listing filters.
type VacationQuery struct {
	Status     []models.VacationStatus
	Type       models.VacationType
	EmployeeID string
	Page       int
	PageSize   int
}

// VacationDetail is the per-request projection exposed to the API layer.
// RemainingBalance is a read-only display value; the ledger row remains the
// source of truth.
type VacationDetail struct {
	models.VacationRequest
	RemainingBalance int `json:"remaining_balance"`
}

// BalanceSummary is the per-employee balance projection.
type BalanceSummary struct {
	EmployeeID      string    `json:"employee_id"`
	AnnualBalance   int       `json:"annual_balance"`
	RewardBalance   int       `json:"reward_balance"`
	PendingDays     int       `json:"pending_days"`
	LastAnnualReset time.Time `json:"last_annual_reset"`
	LastRewardCheck time.Time `json:"last_reward_check"`
}

// AccrualRunResult reports the outcome of a synchronous sweep.
type AccrualRunResult struct {
	RewardCredited int `json:"reward_credited"`
	AnnualReset    int `json:"annual_reset"`
}
