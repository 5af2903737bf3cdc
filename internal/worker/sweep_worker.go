package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/studentlink/concern-service/internal/observability"
	"github.com/studentlink/concern-service/internal/service"
)

// SweepWorker drives the periodic escalation, rebalancing and auto-close
// passes. Each tick runs the sweeps sequentially; a failing sweep is logged
// and never stops the ticker.
type SweepWorker struct {
	escalation *service.EscalationService
	workload   *service.WorkloadService
	workflow   *service.WorkflowService
	metrics    *observability.Metrics
	logger     *zap.Logger
	interval   time.Duration
}

// NewSweepWorker constructs the worker.
func NewSweepWorker(escalation *service.EscalationService, workload *service.WorkloadService, workflow *service.WorkflowService, metrics *observability.Metrics, logger *zap.Logger, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		escalation: escalation,
		workload:   workload,
		workflow:   workflow,
		metrics:    metrics,
		logger:     logger,
		interval:   interval,
	}
}

// Start launches the ticker goroutine; it stops when ctx is cancelled.
func (w *SweepWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("sweep worker stopped")
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce executes one full sweep cycle. Exposed for the ops trigger
// endpoint.
func (w *SweepWorker) RunOnce(ctx context.Context) {
	report := w.escalation.Sweep(ctx)
	w.metrics.RecordEngine("sweeps")
	w.logger.Info("escalation sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("escalated", report.Escalated),
		zap.Int("overdue", report.MarkedOverdue),
		zap.Int("failed", report.Failed))

	rebalance, err := w.workload.Rebalance(ctx)
	if err != nil {
		w.logger.Error("rebalance sweep failed", zap.Error(err))
	} else {
		w.metrics.RecordEngine("rebalances")
		w.logger.Info("rebalance sweep finished", zap.Int("moves", rebalance.Moves))
	}

	closed, err := w.workflow.AutoCloseExpired(ctx)
	if err != nil {
		w.logger.Error("auto close sweep failed", zap.Error(err))
	} else if closed > 0 {
		w.metrics.RecordEngine("auto_closes")
		w.logger.Info("auto close sweep finished", zap.Int("closed", closed))
	}
}
