package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ems-leave-api/internal/dto"
	"github.com/noah-isme/ems-leave-api/internal/models"
	"github.com/noah-isme/ems-leave-api/internal/repository"
	"github.com/noah-isme/ems-leave-api/pkg/jobs"
)

// Employees whose checkpoints fail to advance stay due, so the sweep caps the
// number of batches per run instead of looping until the list drains.
const maxSweepBatches = 100

const sweepBatchSize = 500

type accrualLedger interface {
	ListDueRewardCheck(ctx context.Context, monthStart time.Time, limit int) ([]repository.DueEmployee, error)
	ListDueAnnualReset(ctx context.Context, cutoff time.Time, limit int) ([]repository.DueEmployee, error)
	AccrueReward(ctx context.Context, employeeID string, days int, monthStart time.Time) (bool, error)
	TouchRewardCheck(ctx context.Context, employeeID string, monthStart time.Time) error
	ResetAnnual(ctx context.Context, employeeID string, newValue int, cutoff time.Time) (bool, error)
}

type accrualUsageSource interface {
	HasAnnualUsage(ctx context.Context, employeeID string, from, to time.Time) (bool, error)
}

type accrualAuditSink interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AccrualPolicy carries the sweep's policy values.
type AccrualPolicy struct {
	RewardDays    int
	AnnualDefault int
	CheckInterval time.Duration
	Workers       int
	MaxRetries    int
}

// AccrualOption customises service construction.
type AccrualOption func(*AccrualService)

// WithAccrualClock overrides the time source, used by tests.
func WithAccrualClock(now func() time.Time) AccrualOption {
	return func(s *AccrualService) { s.now = now }
}

// WithAccrualMetrics attaches sweep metrics collection.
func WithAccrualMetrics(metrics *MetricsService) AccrualOption {
	return func(s *AccrualService) { s.metrics = metrics }
}

// AccrualService runs the monthly reward accrual and the yearly annual
// balance reset. An employee earns reward days for a month only when none of
// their annual-pool requests touched it.
type AccrualService struct {
	ledger  accrualLedger
	usage   accrualUsageSource
	audit   accrualAuditSink
	metrics *MetricsService
	logger  *zap.Logger
	policy  AccrualPolicy
	now     func() time.Time

	mu     sync.Mutex
	queue  *jobs.Queue
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAccrualService constructs an AccrualService instance.
func NewAccrualService(ledger accrualLedger, usage accrualUsageSource, audit accrualAuditSink, policy AccrualPolicy, logger *zap.Logger, opts ...AccrualOption) *AccrualService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.RewardDays <= 0 {
		policy.RewardDays = 1
	}
	if policy.AnnualDefault <= 0 {
		policy.AnnualDefault = 21
	}
	if policy.CheckInterval <= 0 {
		policy.CheckInterval = 6 * time.Hour
	}
	s := &AccrualService{
		ledger: ledger,
		usage:  usage,
		audit:  audit,
		logger: logger,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce executes one full sweep and reports what changed. Safe to run
// concurrently with itself and with live traffic: every mutation is guarded
// by the checkpoint columns, so repeats and races settle as no-ops.
func (s *AccrualService) RunOnce(ctx context.Context) (dto.AccrualRunResult, error) {
	now := s.now()
	result := dto.AccrualRunResult{}

	credited, err := s.sweepRewards(ctx, now)
	result.RewardCredited = credited
	if err != nil {
		return result, err
	}

	reset, err := s.sweepAnnualResets(ctx, now)
	result.AnnualReset = reset
	return result, err
}

func (s *AccrualService) sweepRewards(ctx context.Context, now time.Time) (int, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevMonthStart := monthStart.AddDate(0, -1, 0)
	prevMonthEnd := monthStart.AddDate(0, 0, -1)

	credited := 0
	for batch := 0; batch < maxSweepBatches; batch++ {
		due, err := s.ledger.ListDueRewardCheck(ctx, monthStart, sweepBatchSize)
		if err != nil {
			return credited, err
		}
		if len(due) == 0 {
			break
		}

		for _, employee := range due {
			if ctx.Err() != nil {
				return credited, ctx.Err()
			}
			used, err := s.usage.HasAnnualUsage(ctx, employee.ID, prevMonthStart, prevMonthEnd)
			if err != nil {
				s.logger.Warn("reward sweep: usage check failed", zap.String("employee_id", employee.ID), zap.Error(err))
				continue
			}
			if used {
				if err := s.ledger.TouchRewardCheck(ctx, employee.ID, monthStart); err != nil {
					s.logger.Warn("reward sweep: checkpoint advance failed", zap.String("employee_id", employee.ID), zap.Error(err))
				}
				continue
			}
			granted, err := s.ledger.AccrueReward(ctx, employee.ID, s.policy.RewardDays, monthStart)
			if err != nil {
				s.logger.Warn("reward sweep: credit failed", zap.String("employee_id", employee.ID), zap.Error(err))
				continue
			}
			if granted {
				credited++
				s.metrics.RecordRewardCredit(s.policy.RewardDays)
				s.recordAudit(ctx, employee.ID, models.AuditActionLeaveAccrual, map[string]interface{}{
					"reward_days": s.policy.RewardDays,
					"month":       prevMonthStart.Format("2006-01"),
				})
			}
		}
	}
	return credited, nil
}

func (s *AccrualService) sweepAnnualResets(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.AddDate(-1, 0, 0)

	reset := 0
	for batch := 0; batch < maxSweepBatches; batch++ {
		due, err := s.ledger.ListDueAnnualReset(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return reset, err
		}
		if len(due) == 0 {
			break
		}

		for _, employee := range due {
			if ctx.Err() != nil {
				return reset, ctx.Err()
			}
			applied, err := s.ledger.ResetAnnual(ctx, employee.ID, s.policy.AnnualDefault, cutoff)
			if err != nil {
				s.logger.Warn("annual reset failed", zap.String("employee_id", employee.ID), zap.Error(err))
				continue
			}
			if applied {
				reset++
				s.metrics.RecordAnnualReset()
				s.recordAudit(ctx, employee.ID, models.AuditActionLeaveReset, map[string]interface{}{
					"annual_balance": s.policy.AnnualDefault,
				})
			}
		}
	}
	return reset, nil
}

// Start launches the periodic sweep in the background.
func (s *AccrualService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.queue = jobs.NewQueue("accrual-sweep", s.handleSweepJob, jobs.QueueConfig{
		Workers:    s.policy.Workers,
		MaxRetries: s.policy.MaxRetries,
		Logger:     s.logger,
	})
	s.queue.Start(runCtx)

	s.wg.Add(1)
	go s.schedule(runCtx)
	s.logger.Info("accrual scheduler started", zap.Duration("interval", s.policy.CheckInterval))
}

// Stop halts the scheduler and waits for in-flight sweeps.
func (s *AccrualService) Stop() {
	s.mu.Lock()
	queue := s.queue
	cancel := s.cancel
	s.queue = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	if queue != nil {
		queue.Stop()
	}
}

func (s *AccrualService) schedule(ctx context.Context) {
	defer s.wg.Done()

	s.enqueueSweep()
	ticker := time.NewTicker(s.policy.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueSweep()
		}
	}
}

func (s *AccrualService) enqueueSweep() {
	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue == nil {
		return
	}
	if err := queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "sweep"}); err != nil {
		s.logger.Warn("failed to enqueue accrual sweep", zap.Error(err))
	}
}

func (s *AccrualService) handleSweepJob(ctx context.Context, job jobs.Job) error {
	result, err := s.RunOnce(ctx)
	if err != nil {
		return err
	}
	if result.RewardCredited > 0 || result.AnnualReset > 0 {
		s.logger.Info("accrual sweep applied changes",
			zap.Int("reward_credited", result.RewardCredited),
			zap.Int("annual_reset", result.AnnualReset))
	}
	return nil
}

func (s *AccrualService) recordAudit(ctx context.Context, employeeID, action string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(values)
	if err != nil {
		payload = nil
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &employeeID,
		Action:     action,
		Resource:   "leave_ledger",
		ResourceID: &employeeID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record accrual audit log", zap.Error(err))
	}
}
