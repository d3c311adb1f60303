package jobs

import (
	"context"
	"time"

	"github.com/tramitia/process-tracker/internal/service"
	"go.uber.org/zap"
)

// ReconcileJobName is the name of the price reconciliation job
const ReconcileJobName = "price_reconcile"

// Reconciler compares the template catalog with the price list
type Reconciler interface {
	Reconcile(ctx context.Context) (service.ReconcileReport, error)
}

// ReconcileJob periodically re-runs price reconciliation so stale prices are
// flagged even when nobody edits the catalogs.
type ReconcileJob struct {
	reconciler Reconciler
	logger     *zap.Logger
	timeout    time.Duration
}

func NewReconcileJob(reconciler Reconciler, logger *zap.Logger, timeout time.Duration) *ReconcileJob {
	return &ReconcileJob{reconciler: reconciler, logger: logger, timeout: timeout}
}

// Run executes one reconciliation pass.
func (j *ReconcileJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	report, err := j.reconciler.Reconcile(ctx)
	if err != nil {
		j.logger.Error("price reconciliation failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("price reconciliation completed",
		zap.Int("templatesChecked", report.TemplatesChecked),
		zap.Int("missingPrices", report.MissingPrices),
		zap.Int("stalePrices", report.StalePrices),
		zap.Int("newProcedures", report.NewProcedures),
		zap.Int("notifications", len(report.Notifications)),
		zap.Duration("duration", time.Since(start)))
}

// RegisterReconcileJob registers the reconciliation job with the scheduler.
func RegisterReconcileJob(scheduler *Scheduler, reconciler Reconciler, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewReconcileJob(reconciler, logger, timeout)
	return scheduler.AddJob(ReconcileJobName, cronExpr, job.Run)
}
