package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ems-leave-api/internal/repository"
)

type accrualLedgerStub struct {
	dueReward []repository.DueEmployee
	dueReset  []repository.DueEmployee
	credits   map[string]int
	touches   map[string]bool
	resets    map[string]int
	lastReset time.Time
}

func (s *accrualLedgerStub) ListDueRewardCheck(ctx context.Context, monthStart time.Time, limit int) ([]repository.DueEmployee, error) {
	return append([]repository.DueEmployee(nil), s.dueReward...), nil
}

func (s *accrualLedgerStub) ListDueAnnualReset(ctx context.Context, cutoff time.Time, limit int) ([]repository.DueEmployee, error) {
	return append([]repository.DueEmployee(nil), s.dueReset...), nil
}

func (s *accrualLedgerStub) AccrueReward(ctx context.Context, employeeID string, days int, monthStart time.Time) (bool, error) {
	if s.credits == nil {
		s.credits = make(map[string]int)
	}
	s.credits[employeeID] += days
	s.removeDueReward(employeeID)
	return true, nil
}

func (s *accrualLedgerStub) TouchRewardCheck(ctx context.Context, employeeID string, monthStart time.Time) error {
	if s.touches == nil {
		s.touches = make(map[string]bool)
	}
	s.touches[employeeID] = true
	s.removeDueReward(employeeID)
	return nil
}

func (s *accrualLedgerStub) ResetAnnual(ctx context.Context, employeeID string, newValue int, cutoff time.Time) (bool, error) {
	if s.resets == nil {
		s.resets = make(map[string]int)
	}
	s.resets[employeeID] = newValue
	s.lastReset = cutoff
	for i, employee := range s.dueReset {
		if employee.ID == employeeID {
			s.dueReset = append(s.dueReset[:i], s.dueReset[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *accrualLedgerStub) removeDueReward(employeeID string) {
	for i, employee := range s.dueReward {
		if employee.ID == employeeID {
			s.dueReward = append(s.dueReward[:i], s.dueReward[i+1:]...)
			return
		}
	}
}

type usageStub struct {
	used map[string]bool
	errs map[string]error
	from time.Time
	to   time.Time
}

func (s *usageStub) HasAnnualUsage(ctx context.Context, employeeID string, from, to time.Time) (bool, error) {
	s.from, s.to = from, to
	if err := s.errs[employeeID]; err != nil {
		return false, err
	}
	return s.used[employeeID], nil
}

func newTestAccrualService(ledger *accrualLedgerStub, usage *usageStub, audit *auditSinkStub) *AccrualService {
	fixed := time.Date(2025, time.March, 15, 8, 0, 0, 0, time.UTC)
	return NewAccrualService(ledger, usage, audit,
		AccrualPolicy{RewardDays: 1, AnnualDefault: 21},
		nil,
		WithAccrualClock(func() time.Time { return fixed }))
}

func TestAccrualServiceRewardsQuietMonths(t *testing.T) {
	ledger := &accrualLedgerStub{dueReward: []repository.DueEmployee{{ID: "emp-1"}, {ID: "emp-2"}}}
	usage := &usageStub{used: map[string]bool{"emp-2": true}}
	audit := &auditSinkStub{}
	service := newTestAccrualService(ledger, usage, audit)

	result, err := service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RewardCredited)
	assert.Equal(t, 1, ledger.credits["emp-1"])
	assert.True(t, ledger.touches["emp-2"])
	assert.NotContains(t, ledger.credits, "emp-2")
	require.Len(t, audit.logs, 1)

	// The usage window is the full previous calendar month.
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), usage.from)
	assert.Equal(t, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), usage.to)
}

func TestAccrualServiceSkipsFailingUsageCheck(t *testing.T) {
	ledger := &accrualLedgerStub{dueReward: []repository.DueEmployee{{ID: "emp-1"}, {ID: "emp-2"}}}
	usage := &usageStub{errs: map[string]error{"emp-1": errors.New("db down")}}
	service := newTestAccrualService(ledger, usage, &auditSinkStub{})

	result, err := service.RunOnce(context.Background())
	require.NoError(t, err)
	// emp-1 stays due for the next sweep, emp-2 is credited.
	assert.Equal(t, 1, result.RewardCredited)
	assert.Equal(t, 1, ledger.credits["emp-2"])
	assert.NotContains(t, ledger.credits, "emp-1")
}

func TestAccrualServiceResetsAnnualBalance(t *testing.T) {
	ledger := &accrualLedgerStub{dueReset: []repository.DueEmployee{{ID: "emp-1"}}}
	service := newTestAccrualService(ledger, &usageStub{}, &auditSinkStub{})

	result, err := service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.AnnualReset)
	assert.Equal(t, 21, ledger.resets["emp-1"])
	assert.Equal(t, time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC), ledger.lastReset)
}

func TestAccrualServiceRepeatRunIsNoOp(t *testing.T) {
	ledger := &accrualLedgerStub{
		dueReward: []repository.DueEmployee{{ID: "emp-1"}},
		dueReset:  []repository.DueEmployee{{ID: "emp-1"}},
	}
	service := newTestAccrualService(ledger, &usageStub{}, &auditSinkStub{})

	first, err := service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.RewardCredited)
	assert.Equal(t, 1, first.AnnualReset)

	second, err := service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.RewardCredited)
	assert.Zero(t, second.AnnualReset)
}
