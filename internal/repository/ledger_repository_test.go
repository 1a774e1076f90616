package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ems-leave-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLedgerRepositoryReserveDebitsPool(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET annual_balance = annual_balance - $2")).
		WithArgs("emp-1", 5, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"annual_balance"}).AddRow(16))

	remaining, err := repo.Reserve(context.Background(), "emp-1", models.PoolAnnual, 5)
	require.NoError(t, err)
	require.Equal(t, 16, remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryReserveFailsClosed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET annual_balance = annual_balance - $2")).
		WithArgs("emp-1", 6, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"annual_balance"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT annual_balance FROM users WHERE id = $1")).
		WithArgs("emp-1").
		WillReturnRows(sqlmock.NewRows([]string{"annual_balance"}).AddRow(5))

	_, err := repo.Reserve(context.Background(), "emp-1", models.PoolAnnual, 6)
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 6, insufficient.Required)
	require.Equal(t, 5, insufficient.Available)
	require.Equal(t, models.PoolAnnual, insufficient.Pool)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryReserveUnknownEmployee(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET reward_balance = reward_balance - $2")).
		WillReturnRows(sqlmock.NewRows([]string{"reward_balance"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT reward_balance FROM users WHERE id = $1")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Reserve(context.Background(), "missing", models.PoolReward, 1)
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryAccrueRewardOncePerMonth(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	monthStart := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("emp-1", 1, sqlmock.AnyArg(), monthStart).
		WillReturnResult(sqlmock.NewResult(0, 1))
	credited, err := repo.AccrueReward(context.Background(), "emp-1", 1, monthStart)
	require.NoError(t, err)
	require.True(t, credited)

	// Second run in the same month hits the checkpoint guard.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("emp-1", 1, sqlmock.AnyArg(), monthStart).
		WillReturnResult(sqlmock.NewResult(0, 0))
	credited, err = repo.AccrueReward(context.Background(), "emp-1", 1, monthStart)
	require.NoError(t, err)
	require.False(t, credited)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryResetAnnualGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	cutoff := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("emp-1", 21, sqlmock.AnyArg(), cutoff).
		WillReturnResult(sqlmock.NewResult(0, 1))
	reset, err := repo.ResetAnnual(context.Background(), "emp-1", 21, cutoff)
	require.NoError(t, err)
	require.True(t, reset)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	reset, err = repo.ResetAnnual(context.Background(), "emp-1", 21, cutoff)
	require.NoError(t, err)
	require.False(t, reset)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryListDueRewardCheck(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewLedgerRepository(db)
	monthStart := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "last_reward_check", "last_annual_reset"}).
		AddRow("emp-1", monthStart.AddDate(0, -1, 0), monthStart.AddDate(-1, 0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, last_reward_check, last_annual_reset FROM users")).
		WithArgs(monthStart, 500).
		WillReturnRows(rows)

	due, err := repo.ListDueRewardCheck(context.Background(), monthStart, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "emp-1", due[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
