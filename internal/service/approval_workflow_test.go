package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ems-leave-api/internal/dto"
	"github.com/noah-isme/ems-leave-api/internal/models"
	appErrors "github.com/noah-isme/ems-leave-api/pkg/errors"
)

func strPtr(s string) *string { return &s }

func workflowRequest() *models.VacationRequest {
	return &models.VacationRequest{
		ID:                  "req-1",
		EmployeeID:          "emp-1",
		DepartmentID:        "dept-1",
		Status:              models.VacationStatusPending,
		RequiresChiefReview: true,
		WorkingDays:         4,
	}
}

func chiefActor() *models.User {
	return &models.User{ID: "chief-1", Role: models.RoleDepartmentChief, DepartmentID: strPtr("dept-1")}
}

func principalActor() *models.User {
	return &models.User{ID: "principal-1", Role: models.RolePrincipal}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, code, appErr.Code)
}

func TestRequiresChiefReview(t *testing.T) {
	require.True(t, requiresChiefReview(models.RoleEmployee))
	require.False(t, requiresChiefReview(models.RoleDepartmentChief))
	require.False(t, requiresChiefReview(models.RolePrincipal))
	require.False(t, requiresChiefReview(models.RoleAdmin))
}

func TestPlanChiefReviewApprove(t *testing.T) {
	plan, err := planChiefReview(workflowRequest(), chiefActor(), dto.DecisionApprove)
	require.NoError(t, err)
	require.Equal(t, models.VacationStatusApprovedByChief, plan.newStatus)
	require.Equal(t, models.VacationStatusPending, plan.expectedStatus)
	require.False(t, plan.restoresBalance)
}

func TestPlanChiefReviewRejectRestores(t *testing.T) {
	plan, err := planChiefReview(workflowRequest(), chiefActor(), dto.DecisionReject)
	require.NoError(t, err)
	require.Equal(t, models.VacationStatusRejected, plan.newStatus)
	require.True(t, plan.restoresBalance)
}

func TestPlanChiefReviewWrongDepartment(t *testing.T) {
	actor := chiefActor()
	actor.DepartmentID = strPtr("dept-2")
	_, err := planChiefReview(workflowRequest(), actor, dto.DecisionApprove)
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestPlanChiefReviewExemptRequest(t *testing.T) {
	request := workflowRequest()
	request.RequiresChiefReview = false
	_, err := planChiefReview(request, chiefActor(), dto.DecisionApprove)
	requireCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestPlanChiefReviewAlreadyReviewed(t *testing.T) {
	request := workflowRequest()
	request.Status = models.VacationStatusApprovedByChief
	_, err := planChiefReview(request, chiefActor(), dto.DecisionApprove)
	requireCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestPlanChiefReviewBadDecision(t *testing.T) {
	_, err := planChiefReview(workflowRequest(), chiefActor(), dto.ReviewDecision("MAYBE"))
	requireCode(t, err, appErrors.ErrValidation.Code)
}

func TestPlanPrincipalReviewApproveAfterChief(t *testing.T) {
	request := workflowRequest()
	request.Status = models.VacationStatusApprovedByChief
	plan, err := planPrincipalReview(request, principalActor(), dto.DecisionApprove)
	require.NoError(t, err)
	require.Equal(t, models.VacationStatusApproved, plan.newStatus)
	require.Equal(t, models.VacationStatusApprovedByChief, plan.expectedStatus)
	require.False(t, plan.restoresBalance)
}

func TestPlanPrincipalReviewApproveSkipsChiefForExempt(t *testing.T) {
	request := workflowRequest()
	request.RequiresChiefReview = false
	plan, err := planPrincipalReview(request, principalActor(), dto.DecisionApprove)
	require.NoError(t, err)
	require.Equal(t, models.VacationStatusApproved, plan.newStatus)
	require.Equal(t, models.VacationStatusPending, plan.expectedStatus)
}

func TestPlanPrincipalReviewApproveBeforeChief(t *testing.T) {
	_, err := planPrincipalReview(workflowRequest(), principalActor(), dto.DecisionApprove)
	requireCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestPlanPrincipalReviewRejectFromPending(t *testing.T) {
	plan, err := planPrincipalReview(workflowRequest(), principalActor(), dto.DecisionReject)
	require.NoError(t, err)
	require.Equal(t, models.VacationStatusRejected, plan.newStatus)
	require.True(t, plan.restoresBalance)
}

func TestPlanPrincipalReviewTerminalRequest(t *testing.T) {
	request := workflowRequest()
	request.Status = models.VacationStatusRejected
	_, err := planPrincipalReview(request, principalActor(), dto.DecisionReject)
	requireCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestPlanPrincipalReviewRequiresAuthority(t *testing.T) {
	_, err := planPrincipalReview(workflowRequest(), chiefActor(), dto.DecisionApprove)
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestPlanCancelOwnerOnly(t *testing.T) {
	_, err := planCancel(workflowRequest(), "someone-else")
	requireCode(t, err, appErrors.ErrForbidden.Code)

	plan, err := planCancel(workflowRequest(), "emp-1")
	require.NoError(t, err)
	require.Equal(t, models.StageOwner, plan.stage)
	require.Equal(t, models.VacationStatusCancelled, plan.newStatus)
	require.True(t, plan.restoresBalance)
}

func TestPlanCancelOnlyWhilePending(t *testing.T) {
	request := workflowRequest()
	request.Status = models.VacationStatusApprovedByChief
	_, err := planCancel(request, "emp-1")
	requireCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestCanEditDates(t *testing.T) {
	require.NoError(t, canEditDates(workflowRequest(), chiefActor()))

	owner := &models.User{ID: "emp-1", Role: models.RoleEmployee, DepartmentID: strPtr("dept-1")}
	requireCode(t, canEditDates(workflowRequest(), owner), appErrors.ErrForbidden.Code)

	foreignChief := &models.User{ID: "chief-2", Role: models.RoleDepartmentChief, DepartmentID: strPtr("dept-2")}
	requireCode(t, canEditDates(workflowRequest(), foreignChief), appErrors.ErrForbidden.Code)

	approved := workflowRequest()
	approved.Status = models.VacationStatusApproved
	requireCode(t, canEditDates(approved, chiefActor()), appErrors.ErrInvalidTransition.Code)
}

func TestCanViewRequest(t *testing.T) {
	request := workflowRequest()

	owner := &models.User{ID: "emp-1", Role: models.RoleEmployee}
	require.True(t, canViewRequest(owner, request))

	other := &models.User{ID: "emp-2", Role: models.RoleEmployee}
	require.False(t, canViewRequest(other, request))

	require.True(t, canViewRequest(chiefActor(), request))

	foreignChief := chiefActor()
	foreignChief.DepartmentID = strPtr("dept-2")
	require.False(t, canViewRequest(foreignChief, request))

	require.True(t, canViewRequest(principalActor(), request))
	require.True(t, canViewRequest(&models.User{ID: "admin-1", Role: models.RoleAdmin}, request))
}
