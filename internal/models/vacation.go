package models

import "time"

// VacationType enumerates supported leave categories.
type VacationType string

const (
	VacationTypeAnnual    VacationType = "ANNUAL"
	VacationTypeCasual    VacationType = "CASUAL"
	VacationTypeSick      VacationType = "SICK"
	VacationTypeMaternity VacationType = "MATERNITY"
	VacationTypePaternity VacationType = "PATERNITY"
	VacationTypeOther     VacationType = "OTHER"
)

// Valid reports whether the type is one of the known categories.
func (t VacationType) Valid() bool {
	switch t {
	case VacationTypeAnnual, VacationTypeCasual, VacationTypeSick,
		VacationTypeMaternity, VacationTypePaternity, VacationTypeOther:
		return true
	}
	return false
}

// VacationStatus captures workflow states for leave requests.
type VacationStatus string

const (
	VacationStatusPending         VacationStatus = "PENDING"
	VacationStatusApprovedByChief VacationStatus = "APPROVED_BY_CHIEF"
	VacationStatusApproved        VacationStatus = "APPROVED"
	VacationStatusRejected        VacationStatus = "REJECTED"
	VacationStatusCancelled       VacationStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s VacationStatus) Terminal() bool {
	switch s {
	case VacationStatusApproved, VacationStatusRejected, VacationStatusCancelled:
		return true
	}
	return false
}

// ReviewStage identifies which review tier is acting on a request.
type ReviewStage string

const (
	StageChief     ReviewStage = "CHIEF"
	StagePrincipal ReviewStage = "PRINCIPAL"
	StageOwner     ReviewStage = "OWNER"
)

// BalancePool selects which leave balance a request is charged against.
type BalancePool string

const (
	PoolAnnual BalancePool = "ANNUAL"
	PoolReward BalancePool = "REWARD"
)

// VacationRequest stores a leave request and its review trail.
//
// WorkingDays is always recomputed server-side from the date range; it is
// never taken from caller input. BalanceRestored guards the one-shot restore
// of the reserved days when the request terminates without approval.
type VacationRequest struct {
	ID                  string         `db:"id" json:"id"`
	EmployeeID          string         `db:"employee_id" json:"employee_id"`
	DepartmentID        string         `db:"department_id" json:"department_id"`
	Type                VacationType   `db:"type" json:"type"`
	StartDate           time.Time      `db:"start_date" json:"start_date"`
	EndDate             time.Time      `db:"end_date" json:"end_date"`
	TotalDays           int            `db:"total_days" json:"total_days"`
	WorkingDays         int            `db:"working_days" json:"working_days"`
	IsRewardVacation    bool           `db:"is_reward_vacation" json:"is_reward_vacation"`
	IsExtension         bool           `db:"is_extension" json:"is_extension"`
	Reason              string         `db:"reason" json:"reason"`
	Status              VacationStatus `db:"status" json:"status"`
	RequiresChiefReview bool           `db:"requires_chief_review" json:"requires_chief_review"`
	ReviewedByChief     *string        `db:"reviewed_by_chief" json:"reviewed_by_chief,omitempty"`
	ChiefRemarks        *string        `db:"chief_remarks" json:"chief_remarks,omitempty"`
	ChiefReviewDate     *time.Time     `db:"chief_review_date" json:"chief_review_date,omitempty"`
	ReviewedByPrincipal *string        `db:"reviewed_by_principal" json:"reviewed_by_principal,omitempty"`
	PrincipalRemarks    *string        `db:"principal_remarks" json:"principal_remarks,omitempty"`
	PrincipalReviewDate *time.Time     `db:"principal_review_date" json:"principal_review_date,omitempty"`
	BalanceRestored     bool           `db:"balance_restored" json:"-"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// Pool returns the balance pool this request is charged against.
func (r *VacationRequest) Pool() BalancePool {
	if r.IsRewardVacation {
		return PoolReward
	}
	return PoolAnnual
}

// VacationFilter constrains listing queries.
type VacationFilter struct {
	EmployeeID   string
	DepartmentID string
	Status       []VacationStatus
	Type         VacationType
	Limit        int
	Offset       int
}
