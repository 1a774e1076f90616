package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ems-leave-api/internal/models"
)

const vacationColumns = `id, employee_id, department_id, type, start_date, end_date, total_days, working_days,
       is_reward_vacation, is_extension, reason, status, requires_chief_review,
       reviewed_by_chief, chief_remarks, chief_review_date,
       reviewed_by_principal, principal_remarks, principal_review_date,
       balance_restored, created_at, updated_at`

// VacationRepository persists leave requests and owns the composite
// transactions that keep request status and the balance ledger in step.
type VacationRepository struct {
	db *sqlx.DB
}

// NewVacationRepository constructs the repository.
func NewVacationRepository(db *sqlx.DB) *VacationRepository {
	return &VacationRepository{db: db}
}

// CreateWithReservation reserves the working days and inserts the request in
// one transaction. Either both happen or neither: a failed insert rolls the
// reservation back, and a failed reservation aborts before the insert.
// Returns the remaining pool balance after the reservation.
func (r *VacationRepository) CreateWithReservation(ctx context.Context, request *models.VacationRequest) (int, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.VacationStatusPending
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	remaining, err := reserveBalance(ctx, tx, request.EmployeeID, request.Pool(), request.WorkingDays, now)
	if err != nil {
		return 0, err
	}

	const query = `INSERT INTO vacation_requests
	(id, employee_id, department_id, type, start_date, end_date, total_days, working_days,
	 is_reward_vacation, is_extension, reason, status, requires_chief_review, balance_restored, created_at, updated_at)
	VALUES (:id, :employee_id, :department_id, :type, :start_date, :end_date, :total_days, :working_days,
	 :is_reward_vacation, :is_extension, :reason, :status, :requires_chief_review, :balance_restored, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, request); err != nil {
		return 0, fmt.Errorf("create vacation request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit submit tx: %w", err)
	}
	return remaining, nil
}

// GetByID fetches a request by identifier.
func (r *VacationRepository) GetByID(ctx context.Context, id string) (*models.VacationRequest, error) {
	query := `SELECT ` + vacationColumns + ` FROM vacation_requests WHERE id = $1`
	var request models.VacationRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter (latest first) with a total count.
func (r *VacationRepository) List(ctx context.Context, filter models.VacationFilter) ([]models.VacationRequest, int, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)

	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM vacation_requests`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count vacation requests: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + vacationColumns + ` FROM vacation_requests` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	var requests []models.VacationRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list vacation requests: %w", err)
	}
	return requests, total, nil
}

// ApplyReviewParams groups the columns written by a non-terminal review step.
type ApplyReviewParams struct {
	ID             string
	ExpectedStatus models.VacationStatus
	NewStatus      models.VacationStatus
	Stage          models.ReviewStage
	ReviewerID     string
	Remarks        *string
	ReviewedAt     time.Time
}

// ApplyReview advances a request's status, recording the reviewer trail for
// the acting stage. The expected-status guard makes concurrent reviews
// serialize: the loser sees sql.ErrNoRows and must re-fetch.
func (r *VacationRepository) ApplyReview(ctx context.Context, params ApplyReviewParams) error {
	result, err := r.db.ExecContext(ctx, reviewUpdateQuery(params.Stage),
		params.ID, params.NewStatus, params.ReviewerID, params.Remarks, params.ReviewedAt, params.ExpectedStatus)
	if err != nil {
		return fmt.Errorf("apply review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func reviewUpdateQuery(stage models.ReviewStage) string {
	switch stage {
	case models.StagePrincipal:
		return `UPDATE vacation_requests
	SET status = $2, reviewed_by_principal = $3, principal_remarks = $4, principal_review_date = $5, updated_at = $5
	WHERE id = $1 AND status = $6`
	default:
		return `UPDATE vacation_requests
	SET status = $2, reviewed_by_chief = $3, chief_remarks = $4, chief_review_date = $5, updated_at = $5
	WHERE id = $1 AND status = $6`
	}
}

// TerminateParams groups the columns written when a request reaches a
// ledger-restoring terminal state (rejection or cancellation).
type TerminateParams struct {
	ID             string
	EmployeeID     string
	Pool           models.BalancePool
	WorkingDays    int
	ExpectedStatus models.VacationStatus
	NewStatus      models.VacationStatus
	Stage          models.ReviewStage
	ReviewerID     string
	Remarks        *string
	ReviewedAt     time.Time
}

// Terminate moves a request to a terminal non-approved state and restores the
// reserved days in the same transaction, so status and ledger can never
// diverge. The balance_restored flag makes the restore idempotent per
// request: a second termination attempt flips nothing and credits nothing.
func (r *VacationRepository) Terminate(ctx context.Context, params TerminateParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin terminate tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var result sql.Result
	if params.Stage == models.StageOwner {
		const query = `UPDATE vacation_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
		result, err = tx.ExecContext(ctx, query, params.ID, params.NewStatus, params.ReviewedAt, params.ExpectedStatus)
	} else {
		result, err = tx.ExecContext(ctx, reviewUpdateQuery(params.Stage),
			params.ID, params.NewStatus, params.ReviewerID, params.Remarks, params.ReviewedAt, params.ExpectedStatus)
	}
	if err != nil {
		return fmt.Errorf("terminate request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check terminate rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if _, err := restoreReservation(ctx, tx, params.ID, params.EmployeeID, params.Pool, params.WorkingDays, params.ReviewedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit terminate tx: %w", err)
	}
	return nil
}

// restoreReservation credits back a request's reserved days at most once.
// The flag flip and the credit share the caller's transaction.
func restoreReservation(ctx context.Context, q sqlx.ExtContext, requestID, employeeID string, pool models.BalancePool, days int, now time.Time) (bool, error) {
	const flip = `UPDATE vacation_requests SET balance_restored = TRUE, updated_at = $2 WHERE id = $1 AND balance_restored = FALSE`
	result, err := q.ExecContext(ctx, flip, requestID, now)
	if err != nil {
		return false, fmt.Errorf("mark balance restored: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check restore flag rows: %w", err)
	}
	if rows == 0 {
		// Already restored for this request.
		return false, nil
	}
	if err := creditBalance(ctx, q, employeeID, pool, days, now); err != nil {
		return false, err
	}
	return true, nil
}

// EditDatesParams groups the values for a pre-review date correction.
type EditDatesParams struct {
	ID             string
	EmployeeID     string
	Pool           models.BalancePool
	StartDate      time.Time
	EndDate        time.Time
	TotalDays      int
	WorkingDays    int
	OldWorkingDays int
}

// EditDates rewrites a pending request's span and settles the ledger delta in
// one transaction. When the new span needs more days than are available the
// whole edit rolls back and the original reservation stays untouched.
func (r *VacationRepository) EditDates(ctx context.Context, params EditDatesParams) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin edit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE vacation_requests
	SET start_date = $2, end_date = $3, total_days = $4, working_days = $5, updated_at = $6
	WHERE id = $1 AND status = $7`
	result, err := tx.ExecContext(ctx, query,
		params.ID, params.StartDate, params.EndDate, params.TotalDays, params.WorkingDays, now, models.VacationStatusPending)
	if err != nil {
		return fmt.Errorf("edit vacation dates: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check edit rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	delta := params.WorkingDays - params.OldWorkingDays
	switch {
	case delta > 0:
		if _, err := reserveBalance(ctx, tx, params.EmployeeID, params.Pool, delta, now); err != nil {
			return err
		}
	case delta < 0:
		if err := creditBalance(ctx, tx, params.EmployeeID, params.Pool, -delta, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edit tx: %w", err)
	}
	return nil
}

// SumOutstandingDays totals the working days currently reserved but not yet
// finally approved for an employee.
func (r *VacationRepository) SumOutstandingDays(ctx context.Context, employeeID string) (int, error) {
	const query = `SELECT COALESCE(SUM(working_days), 0) FROM vacation_requests
	WHERE employee_id = $1 AND status IN ($2, $3)`
	var total int
	err := r.db.GetContext(ctx, &total, query, employeeID,
		models.VacationStatusPending, models.VacationStatusApprovedByChief)
	if err != nil {
		return 0, fmt.Errorf("sum outstanding days: %w", err)
	}
	return total, nil
}

// HasAnnualUsage reports whether any live annual-pool request overlaps the
// inclusive date range. Used by the reward accrual sweep.
func (r *VacationRepository) HasAnnualUsage(ctx context.Context, employeeID string, from, to time.Time) (bool, error) {
	const query = `SELECT EXISTS (
	SELECT 1 FROM vacation_requests
	WHERE employee_id = $1 AND is_reward_vacation = FALSE
	  AND status IN ($2, $3, $4)
	  AND start_date <= $6 AND end_date >= $5)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, employeeID,
		models.VacationStatusPending, models.VacationStatusApprovedByChief, models.VacationStatusApproved,
		from, to)
	if err != nil {
		return false, fmt.Errorf("check annual usage: %w", err)
	}
	return exists, nil
}
