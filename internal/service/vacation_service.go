package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ems-leave-api/internal/dto"
	"github.com/noah-isme/ems-leave-api/internal/models"
	"github.com/noah-isme/ems-leave-api/internal/repository"
	appErrors "github.com/noah-isme/ems-leave-api/pkg/errors"
	"github.com/noah-isme/ems-leave-api/pkg/export"
	"github.com/noah-isme/ems-leave-api/pkg/workdays"
)

type vacationStore interface {
	CreateWithReservation(ctx context.Context, request *models.VacationRequest) (int, error)
	GetByID(ctx context.Context, id string) (*models.VacationRequest, error)
	List(ctx context.Context, filter models.VacationFilter) ([]models.VacationRequest, int, error)
	ApplyReview(ctx context.Context, params repository.ApplyReviewParams) error
	Terminate(ctx context.Context, params repository.TerminateParams) error
	EditDates(ctx context.Context, params repository.EditDatesParams) error
	SumOutstandingDays(ctx context.Context, employeeID string) (int, error)
}

type vacationUserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type departmentDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type vacationAuditSink interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type balanceCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// VacationConfig carries the leave policy knobs the service applies.
type VacationConfig struct {
	Weekend         workdays.Weekend
	BalanceCacheTTL time.Duration
}

// VacationOption customises service construction.
type VacationOption func(*VacationService)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) VacationOption {
	return func(s *VacationService) { s.now = now }
}

// WithVacationMetrics attaches workflow metrics collection.
func WithVacationMetrics(metrics *MetricsService) VacationOption {
	return func(s *VacationService) { s.metrics = metrics }
}

// WithDepartmentDirectory enables department existence checks on submission.
func WithDepartmentDirectory(departments departmentDirectory) VacationOption {
	return func(s *VacationService) { s.departments = departments }
}

// VacationService owns the leave request lifecycle: submission with balance
// reservation, the two-stage review, cancellation, date edits and balance
// projections.
type VacationService struct {
	store       vacationStore
	users       vacationUserDirectory
	departments departmentDirectory
	audit       vacationAuditSink
	cache       balanceCache
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	config      VacationConfig
	now         func() time.Time
}

// NewVacationService constructs a VacationService instance.
func NewVacationService(store vacationStore, users vacationUserDirectory, audit vacationAuditSink, cache balanceCache, config VacationConfig, logger *zap.Logger, opts ...VacationOption) *VacationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BalanceCacheTTL <= 0 {
		config.BalanceCacheTTL = 5 * time.Minute
	}
	s := &VacationService{
		store:     store,
		users:     users,
		audit:     audit,
		cache:     cache,
		validator: validator.New(),
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a leave request, reserving the working days up front. The
// working-day count is always computed server-side from the requested span.
func (s *VacationService) Submit(ctx context.Context, actor *models.User, req dto.SubmitVacationRequest) (*dto.VacationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submit payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown vacation type")
	}
	if actor.DepartmentID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee is not assigned to a department")
	}
	if s.departments != nil {
		exists, err := s.departments.Exists(ctx, *actor.DepartmentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department")
		}
		if !exists {
			return nil, appErrors.Clone(appErrors.ErrValidation, "department is unknown or inactive")
		}
	}

	start, end, span, err := s.resolveSpan(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if today := s.now().Truncate(24 * time.Hour); start.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must not be in the past")
	}

	request := &models.VacationRequest{
		EmployeeID:          actor.ID,
		DepartmentID:        *actor.DepartmentID,
		Type:                req.Type,
		StartDate:           start,
		EndDate:             end,
		TotalDays:           span.TotalDays,
		WorkingDays:         span.WorkingDays,
		IsRewardVacation:    req.IsRewardVacation,
		IsExtension:         req.IsExtension,
		Reason:              req.Reason,
		Status:              models.VacationStatusPending,
		RequiresChiefReview: requiresChiefReview(actor.Role),
	}

	remaining, err := s.store.CreateWithReservation(ctx, request)
	if err != nil {
		return nil, mapLedgerError(err)
	}

	s.invalidateBalance(ctx, actor.ID)
	s.metrics.RecordLeaveSubmitted(string(request.Type))
	s.recordAudit(ctx, actor.ID, models.AuditActionLeaveSubmit, request.ID, map[string]interface{}{
		"status":       request.Status,
		"working_days": request.WorkingDays,
	})

	return &dto.VacationDetail{VacationRequest: *request, RemainingBalance: remaining}, nil
}

// Get returns a single request with the owner's current pool balance,
// enforcing visibility rules.
func (s *VacationService) Get(ctx context.Context, actor *models.User, id string) (*dto.VacationDetail, error) {
	request, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewRequest(actor, request) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this request")
	}

	owner, err := s.users.FindByID(ctx, request.EmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	remaining := owner.AnnualBalance
	if request.Pool() == models.PoolReward {
		remaining = owner.RewardBalance
	}
	return &dto.VacationDetail{VacationRequest: *request, RemainingBalance: remaining}, nil
}

// List returns requests visible to the actor. Employees see their own,
// chiefs their department, principals and admins everything.
func (s *VacationService) List(ctx context.Context, actor *models.User, query dto.VacationQuery) ([]models.VacationRequest, models.Pagination, error) {
	filter := models.VacationFilter{
		Status: query.Status,
		Type:   query.Type,
	}

	switch actor.Role {
	case models.RolePrincipal, models.RoleAdmin:
		filter.EmployeeID = query.EmployeeID
	case models.RoleDepartmentChief:
		if actor.DepartmentID == nil {
			return nil, models.Pagination{}, appErrors.Clone(appErrors.ErrForbidden, "reviewer has no department")
		}
		filter.DepartmentID = *actor.DepartmentID
		filter.EmployeeID = query.EmployeeID
	default:
		filter.EmployeeID = actor.ID
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	requests, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ChiefReview records a department chief decision on a pending request.
func (s *VacationService) ChiefReview(ctx context.Context, actor *models.User, id string, req dto.ReviewVacationRequest) (*models.VacationRequest, error) {
	return s.review(ctx, actor, id, req, planChiefReview)
}

// PrincipalReview records a principal decision.
func (s *VacationService) PrincipalReview(ctx context.Context, actor *models.User, id string, req dto.ReviewVacationRequest) (*models.VacationRequest, error) {
	return s.review(ctx, actor, id, req, planPrincipalReview)
}

type planFunc func(*models.VacationRequest, *models.User, dto.ReviewDecision) (reviewPlan, error)

func (s *VacationService) review(ctx context.Context, actor *models.User, id string, req dto.ReviewVacationRequest, plan planFunc) (*models.VacationRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	if req.Decision == dto.DecisionReject && strings.TrimSpace(req.Remarks) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection requires remarks")
	}

	request, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	step, err := plan(request, actor, req.Decision)
	if err != nil {
		return nil, err
	}

	var remarks *string
	if req.Remarks != "" {
		remarks = &req.Remarks
	}
	reviewedAt := s.now()

	if step.restoresBalance {
		err = s.store.Terminate(ctx, repository.TerminateParams{
			ID:             request.ID,
			EmployeeID:     request.EmployeeID,
			Pool:           request.Pool(),
			WorkingDays:    request.WorkingDays,
			ExpectedStatus: step.expectedStatus,
			NewStatus:      step.newStatus,
			Stage:          step.stage,
			ReviewerID:     actor.ID,
			Remarks:        remarks,
			ReviewedAt:     reviewedAt,
		})
	} else {
		err = s.store.ApplyReview(ctx, repository.ApplyReviewParams{
			ID:             request.ID,
			ExpectedStatus: step.expectedStatus,
			NewStatus:      step.newStatus,
			Stage:          step.stage,
			ReviewerID:     actor.ID,
			Remarks:        remarks,
			ReviewedAt:     reviewedAt,
		})
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStaleState, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}

	s.invalidateBalance(ctx, request.EmployeeID)
	s.metrics.RecordLeaveReview(string(step.stage), string(req.Decision))
	s.recordAudit(ctx, actor.ID, models.AuditActionLeaveReview, request.ID, map[string]interface{}{
		"stage":    step.stage,
		"decision": req.Decision,
		"status":   step.newStatus,
	})

	return s.fetch(ctx, id)
}

// Cancel withdraws the actor's own pending request and restores the reserved
// days.
func (s *VacationService) Cancel(ctx context.Context, actor *models.User, id string) (*models.VacationRequest, error) {
	request, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	step, err := planCancel(request, actor.ID)
	if err != nil {
		return nil, err
	}

	err = s.store.Terminate(ctx, repository.TerminateParams{
		ID:             request.ID,
		EmployeeID:     request.EmployeeID,
		Pool:           request.Pool(),
		WorkingDays:    request.WorkingDays,
		ExpectedStatus: step.expectedStatus,
		NewStatus:      step.newStatus,
		Stage:          step.stage,
		ReviewedAt:     s.now(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStaleState, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}

	s.invalidateBalance(ctx, request.EmployeeID)
	s.recordAudit(ctx, actor.ID, models.AuditActionLeaveCancel, request.ID, map[string]interface{}{
		"status": step.newStatus,
	})

	return s.fetch(ctx, id)
}

// EditDates corrects the span of a pending request before any review,
// settling the ledger difference atomically. Reserved for department chiefs
// and admins.
func (s *VacationService) EditDates(ctx context.Context, actor *models.User, id string, req dto.EditDatesRequest) (*models.VacationRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edit payload")
	}

	request, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canEditDates(request, actor); err != nil {
		return nil, err
	}

	start, end, span, err := s.resolveSpan(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	err = s.store.EditDates(ctx, repository.EditDatesParams{
		ID:             request.ID,
		EmployeeID:     request.EmployeeID,
		Pool:           request.Pool(),
		StartDate:      start,
		EndDate:        end,
		TotalDays:      span.TotalDays,
		WorkingDays:    span.WorkingDays,
		OldWorkingDays: request.WorkingDays,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStaleState, "")
		}
		return nil, mapLedgerError(err)
	}

	s.invalidateBalance(ctx, request.EmployeeID)
	s.recordAudit(ctx, actor.ID, models.AuditActionLeaveEditDates, request.ID, map[string]interface{}{
		"start_date":   req.StartDate,
		"end_date":     req.EndDate,
		"working_days": span.WorkingDays,
	})

	return s.fetch(ctx, id)
}

// BalanceSummary returns the employee's balances plus outstanding reserved
// days, served from cache when fresh.
func (s *VacationService) BalanceSummary(ctx context.Context, actor *models.User, employeeID string) (*dto.BalanceSummary, error) {
	if employeeID == "" {
		employeeID = actor.ID
	}
	if err := s.checkBalanceAccess(ctx, actor, employeeID); err != nil {
		return nil, err
	}

	key := repository.BalanceSummaryKey(employeeID)
	if s.cache != nil {
		started := time.Now()
		var cached dto.BalanceSummary
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true, time.Since(started))
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false, time.Since(started))
	}

	user, err := s.users.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	pending, err := s.store.SumOutstandingDays(ctx, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total outstanding days")
	}

	summary := &dto.BalanceSummary{
		EmployeeID:      user.ID,
		AnnualBalance:   user.AnnualBalance,
		RewardBalance:   user.RewardBalance,
		PendingDays:     pending,
		LastAnnualReset: user.LastAnnualReset,
		LastRewardCheck: user.LastRewardCheck,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.config.BalanceCacheTTL); err != nil {
			s.logger.Warn("failed to cache balance summary", zap.Error(err))
		}
	}
	return summary, nil
}

// ExportCSV renders the actor-visible requests as a CSV document. Reviewers
// use it for offline reporting; employees get their own history.
func (s *VacationService) ExportCSV(ctx context.Context, actor *models.User, query dto.VacationQuery) ([]byte, error) {
	const pageSize = 200
	const maxPages = 50

	query.PageSize = pageSize
	all := make([]models.VacationRequest, 0, pageSize)
	for page := 1; page <= maxPages; page++ {
		query.Page = page
		requests, _, err := s.List(ctx, actor, query)
		if err != nil {
			return nil, err
		}
		all = append(all, requests...)
		if len(requests) < pageSize {
			break
		}
	}

	headers := []string{"id", "employee_id", "department_id", "type", "status",
		"start_date", "end_date", "total_days", "working_days", "requires_chief_review", "reason", "created_at"}
	rows := make([]map[string]string, 0, len(all))
	for _, request := range all {
		rows = append(rows, map[string]string{
			"id":                    request.ID,
			"employee_id":           request.EmployeeID,
			"department_id":         request.DepartmentID,
			"type":                  string(request.Type),
			"status":                string(request.Status),
			"start_date":            request.StartDate.Format(dto.DateLayout),
			"end_date":              request.EndDate.Format(dto.DateLayout),
			"total_days":            strconv.Itoa(request.TotalDays),
			"working_days":          strconv.Itoa(request.WorkingDays),
			"requires_chief_review": strconv.FormatBool(request.RequiresChiefReview),
			"reason":                request.Reason,
			"created_at":            request.CreatedAt.Format(time.RFC3339),
		})
	}

	data, err := export.NewCSVExporter().Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return data, nil
}

func (s *VacationService) checkBalanceAccess(ctx context.Context, actor *models.User, employeeID string) error {
	if actor.ID == employeeID || actor.Role == models.RolePrincipal || actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.Role != models.RoleDepartmentChief || actor.DepartmentID == nil {
		return appErrors.Clone(appErrors.ErrForbidden, "no access to this balance")
	}
	target, err := s.users.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if target.DepartmentID == nil || *target.DepartmentID != *actor.DepartmentID {
		return appErrors.Clone(appErrors.ErrForbidden, "no access to this balance")
	}
	return nil
}

func (s *VacationService) fetch(ctx context.Context, id string) (*models.VacationRequest, error) {
	request, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

// resolveSpan parses the wire dates and computes the working-day span.
func (s *VacationService) resolveSpan(startRaw, endRaw string) (time.Time, time.Time, workdays.Span, error) {
	start, err := time.ParseInLocation(dto.DateLayout, startRaw, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, workdays.Span{}, appErrors.Clone(appErrors.ErrValidation, "start_date must be formatted YYYY-MM-DD")
	}
	end, err := time.ParseInLocation(dto.DateLayout, endRaw, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, workdays.Span{}, appErrors.Clone(appErrors.ErrValidation, "end_date must be formatted YYYY-MM-DD")
	}

	span, err := workdays.Count(start, end, s.config.Weekend)
	if err != nil {
		return time.Time{}, time.Time{}, workdays.Span{}, appErrors.Clone(appErrors.ErrValidation, "start_date must not be after end_date")
	}
	if span.WorkingDays == 0 {
		return time.Time{}, time.Time{}, workdays.Span{}, appErrors.Clone(appErrors.ErrZeroWorkingDays, "")
	}
	return start, end, span, nil
}

func (s *VacationService) invalidateBalance(ctx context.Context, employeeID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, repository.BalanceSummaryKey(employeeID)); err != nil {
		s.logger.Warn("failed to invalidate balance cache", zap.String("employee_id", employeeID), zap.Error(err))
	}
}

func (s *VacationService) recordAudit(ctx context.Context, actorID, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(values)
	if err != nil {
		payload = nil
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "vacation_request",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// mapLedgerError converts repository ledger failures into API errors.
func mapLedgerError(err error) error {
	var insufficient *repository.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return appErrors.Clone(appErrors.ErrInsufficientBalance, insufficient.Error())
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update leave ledger")
}
