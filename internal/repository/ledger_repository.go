package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ems-leave-api/internal/models"
)

// InsufficientBalanceError reports a failed reservation with the amounts the
// caller needs to surface.
type InsufficientBalanceError struct {
	Pool      models.BalancePool
	Required  int
	Available int
}

// Error implements the error interface.
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: required %d, available %d", e.Pool, e.Required, e.Available)
}

// LedgerRepository is the single authority over the two per-employee leave
// balance columns. No other code path writes them.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func poolColumn(pool models.BalancePool) string {
	if pool == models.PoolReward {
		return "reward_balance"
	}
	return "annual_balance"
}

// reserveBalance atomically checks and decrements a balance pool. The
// conditional WHERE clause is what prevents two concurrent submissions from
// both passing a check against a stale read. Returns the remaining balance.
func reserveBalance(ctx context.Context, q sqlx.ExtContext, employeeID string, pool models.BalancePool, days int, now time.Time) (int, error) {
	column := poolColumn(pool)
	query := fmt.Sprintf(
		`UPDATE users SET %s = %s - $2, updated_at = $3 WHERE id = $1 AND %s >= $2 RETURNING %s`,
		column, column, column, column,
	)
	var remaining int
	err := sqlx.GetContext(ctx, q, &remaining, query, employeeID, days, now)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("reserve %s: %w", pool, err)
	}

	// Zero rows: either the employee is unknown or the balance is short.
	var available int
	selectQuery := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, column)
	if err := sqlx.GetContext(ctx, q, &available, selectQuery, employeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("read %s after failed reserve: %w", pool, err)
	}
	return 0, &InsufficientBalanceError{Pool: pool, Required: days, Available: available}
}

// creditBalance increments a balance pool unconditionally.
func creditBalance(ctx context.Context, q sqlx.ExtContext, employeeID string, pool models.BalancePool, days int, now time.Time) error {
	column := poolColumn(pool)
	query := fmt.Sprintf(`UPDATE users SET %s = %s + $2, updated_at = $3 WHERE id = $1`, column, column)
	result, err := q.ExecContext(ctx, query, employeeID, days, now)
	if err != nil {
		return fmt.Errorf("credit %s: %w", pool, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check credit rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Reserve charges a pool for a new reservation outside any wider transaction.
func (r *LedgerRepository) Reserve(ctx context.Context, employeeID string, pool models.BalancePool, days int) (int, error) {
	return reserveBalance(ctx, r.db, employeeID, pool, days, time.Now().UTC())
}

// AccrueReward credits the reward pool for one month and advances the
// employee's reward checkpoint. The last_reward_check guard makes a repeat
// sweep within the same month a no-op.
func (r *LedgerRepository) AccrueReward(ctx context.Context, employeeID string, days int, monthStart time.Time) (bool, error) {
	const query = `UPDATE users
	SET reward_balance = reward_balance + $2, last_reward_check = $3, updated_at = $3
	WHERE id = $1 AND last_reward_check < $4`
	result, err := r.db.ExecContext(ctx, query, employeeID, days, time.Now().UTC(), monthStart)
	if err != nil {
		return false, fmt.Errorf("accrue reward: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check accrual rows: %w", err)
	}
	return rows > 0, nil
}

// TouchRewardCheck advances the reward checkpoint without crediting, used
// when the month under review saw annual leave consumption.
func (r *LedgerRepository) TouchRewardCheck(ctx context.Context, employeeID string, monthStart time.Time) error {
	const query = `UPDATE users SET last_reward_check = $2, updated_at = $2 WHERE id = $1 AND last_reward_check < $3`
	if _, err := r.db.ExecContext(ctx, query, employeeID, time.Now().UTC(), monthStart); err != nil {
		return fmt.Errorf("touch reward check: %w", err)
	}
	return nil
}

// ResetAnnual sets the annual pool back to the policy default on the
// employee's anniversary. The last_annual_reset guard keeps the reset from
// firing twice for the same anniversary.
func (r *LedgerRepository) ResetAnnual(ctx context.Context, employeeID string, newValue int, cutoff time.Time) (bool, error) {
	const query = `UPDATE users
	SET annual_balance = $2, last_annual_reset = $3, updated_at = $3
	WHERE id = $1 AND last_annual_reset <= $4`
	result, err := r.db.ExecContext(ctx, query, employeeID, newValue, time.Now().UTC(), cutoff)
	if err != nil {
		return false, fmt.Errorf("reset annual: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check reset rows: %w", err)
	}
	return rows > 0, nil
}

// DueEmployee is a sweep candidate row.
type DueEmployee struct {
	ID              string    `db:"id"`
	LastRewardCheck time.Time `db:"last_reward_check"`
	LastAnnualReset time.Time `db:"last_annual_reset"`
}

// ListDueRewardCheck returns active employees whose reward checkpoint
// predates the given month start.
func (r *LedgerRepository) ListDueRewardCheck(ctx context.Context, monthStart time.Time, limit int) ([]DueEmployee, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	const query = `SELECT id, last_reward_check, last_annual_reset FROM users
	WHERE active = TRUE AND last_reward_check < $1
	ORDER BY last_reward_check ASC LIMIT $2`
	var due []DueEmployee
	if err := r.db.SelectContext(ctx, &due, query, monthStart, limit); err != nil {
		return nil, fmt.Errorf("list due reward check: %w", err)
	}
	return due, nil
}

// ListDueAnnualReset returns active employees whose last annual reset is at
// least one year old.
func (r *LedgerRepository) ListDueAnnualReset(ctx context.Context, cutoff time.Time, limit int) ([]DueEmployee, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	const query = `SELECT id, last_reward_check, last_annual_reset FROM users
	WHERE active = TRUE AND last_annual_reset <= $1
	ORDER BY last_annual_reset ASC LIMIT $2`
	var due []DueEmployee
	if err := r.db.SelectContext(ctx, &due, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list due annual reset: %w", err)
	}
	return due, nil
}
