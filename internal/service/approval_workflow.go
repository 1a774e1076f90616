package service

import (
	"github.com/noah-isme/ems-leave-api/internal/dto"
	"github.com/noah-isme/ems-leave-api/internal/models"
	appErrors "github.com/noah-isme/ems-leave-api/pkg/errors"
)

// reviewPlan captures the state change a permitted review produces, in the
// terms the repository update statements expect.
type reviewPlan struct {
	stage           models.ReviewStage
	expectedStatus  models.VacationStatus
	newStatus       models.VacationStatus
	restoresBalance bool
}

// requiresChiefReview reports whether a requester's submissions route through
// the department chief. Chiefs and above review their own tier's requests at
// the principal stage directly.
func requiresChiefReview(role models.UserRole) bool {
	return !role.AtLeastChief()
}

func validDecision(decision dto.ReviewDecision) bool {
	return decision == dto.DecisionApprove || decision == dto.DecisionReject
}

// planChiefReview validates a chief-stage decision against the request's
// current state and routing, and returns the transition to apply.
func planChiefReview(request *models.VacationRequest, actor *models.User, decision dto.ReviewDecision) (reviewPlan, error) {
	if !validDecision(decision) {
		return reviewPlan{}, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVE or REJECT")
	}
	if actor.Role != models.RoleAdmin {
		if actor.Role != models.RoleDepartmentChief {
			return reviewPlan{}, appErrors.Clone(appErrors.ErrForbidden, "chief review requires department chief authority")
		}
		if actor.DepartmentID == nil || *actor.DepartmentID != request.DepartmentID {
			return reviewPlan{}, appErrors.Clone(appErrors.ErrForbidden, "chief review is limited to the reviewer's own department")
		}
	}
	if !request.RequiresChiefReview {
		return reviewPlan{}, appErrors.Clone(appErrors.ErrInvalidTransition, "request does not route through chief review")
	}
	if request.Status != models.VacationStatusPending {
		return reviewPlan{}, appErrors.Clone(appErrors.ErrInvalidTransition, "chief review is only possible while the request is pending")
	}

	plan := reviewPlan{stage: models.StageChief, expectedStatus: models.VacationStatusPending}
	if decision == dto.DecisionApprove {
		plan.newStatus = models.VacationStatusApprovedByChief
	} else {
		plan.newStatus = models.VacationStatusRejected
		plan.restoresBalance = true
	}
	return plan, nil
}

// planPrincipalReview validates a principal-stage decision. Approval requires
// the chief stage to be complete unless the request never routed through it;
// rejection is allowed from any live state.
func planPrincipalReview(request *models.VacationRequest, actor *models.User, decision dto.ReviewDecision) (reviewPlan, error) {
	if !validDecision(decision) {
		return reviewPlan{}, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVE or REJECT")
	}
	if actor.Role != models.RolePrincipal && actor.Role != models.RoleAdmin {
		return reviewPlan{}, appErrors.Clone(appErrors.ErrForbidden, "principal review requires principal authority")
	}
	if request.Status.Terminal() {
		return reviewPlan{}, appErrors.Clone(appErrors.ErrInvalidTransition, "request is already finalised")
	}

	plan := reviewPlan{stage: models.StagePrincipal, expectedStatus: request.Status}
	if decision == dto.DecisionApprove {
		if request.Status == models.VacationStatusPending && request.RequiresChiefReview {
			return reviewPlan{}, appErrors.Clone(appErrors.ErrInvalidTransition, "request is awaiting chief review")
		}
		plan.newStatus = models.VacationStatusApproved
	} else {
		plan.newStatus = models.VacationStatusRejected
		plan.restoresBalance = true
	}
	return plan, nil
}

// planCancel validates a requester-initiated cancellation. Only the owner can
// cancel, and only while no reviewer has acted yet.
func planCancel(request *models.VacationRequest, actorID string) (reviewPlan, error) {
	if request.EmployeeID != actorID {
		return reviewPlan{}, appErrors.Clone(appErrors.ErrForbidden, "only the requester may cancel a request")
	}
	if request.Status != models.VacationStatusPending {
		return reviewPlan{}, appErrors.Clone(appErrors.ErrInvalidTransition, "only pending requests can be cancelled")
	}
	return reviewPlan{
		stage:           models.StageOwner,
		expectedStatus:  models.VacationStatusPending,
		newStatus:       models.VacationStatusCancelled,
		restoresBalance: true,
	}, nil
}

// canEditDates validates a chief-initiated date correction. The chief may
// only correct requests of their own department, and only before any
// reviewer has acted.
func canEditDates(request *models.VacationRequest, actor *models.User) error {
	if actor.Role != models.RoleAdmin {
		if actor.Role != models.RoleDepartmentChief {
			return appErrors.Clone(appErrors.ErrForbidden, "editing dates requires department chief authority")
		}
		if actor.DepartmentID == nil || *actor.DepartmentID != request.DepartmentID {
			return appErrors.Clone(appErrors.ErrForbidden, "date edits are limited to the chief's own department")
		}
	}
	if request.Status != models.VacationStatusPending {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "dates can only be edited while the request is pending")
	}
	return nil
}

// canViewRequest reports whether the actor may read the given request.
func canViewRequest(actor *models.User, request *models.VacationRequest) bool {
	switch {
	case actor.ID == request.EmployeeID:
		return true
	case actor.Role == models.RolePrincipal || actor.Role == models.RoleAdmin:
		return true
	case actor.Role == models.RoleDepartmentChief:
		return actor.DepartmentID != nil && *actor.DepartmentID == request.DepartmentID
	}
	return false
}
