package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BudgetExpiryJobName is the name of the budget expiry job
const BudgetExpiryJobName = "budget_expiry"

// BudgetExpirer expires sent budgets that were not answered in time
type BudgetExpirer interface {
	ExpireStaleBudgets(ctx context.Context, validity time.Duration) (int, error)
}

// BudgetExpiryJob moves sent budgets past their validity to expired.
type BudgetExpiryJob struct {
	expirer  BudgetExpirer
	validity time.Duration
	logger   *zap.Logger
	timeout  time.Duration
}

func NewBudgetExpiryJob(expirer BudgetExpirer, validity time.Duration, logger *zap.Logger, timeout time.Duration) *BudgetExpiryJob {
	return &BudgetExpiryJob{expirer: expirer, validity: validity, logger: logger, timeout: timeout}
}

// Run executes one expiry pass. Budgets that failed to store are retried on
// the next run, so a partial failure is only logged.
func (j *BudgetExpiryJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	expired, err := j.expirer.ExpireStaleBudgets(ctx, j.validity)
	if err != nil {
		j.logger.Error("budget expiry failed",
			zap.Error(err),
			zap.Int("expired", expired),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("budget expiry completed",
		zap.Int("expired", expired),
		zap.Duration("validity", j.validity),
		zap.Duration("duration", time.Since(start)))
}

// RegisterBudgetExpiryJob registers the budget expiry job with the scheduler.
func RegisterBudgetExpiryJob(scheduler *Scheduler, expirer BudgetExpirer, validity time.Duration, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewBudgetExpiryJob(expirer, validity, logger, timeout)
	return scheduler.AddJob(BudgetExpiryJobName, cronExpr, job.Run)
}
