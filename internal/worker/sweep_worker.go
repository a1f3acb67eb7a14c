package worker

import (
	"context"
	"time"

	"campus-ticketing/pkg/logger"

	"go.uber.org/zap"
)

// Sweeper is the part of the lifecycle service that runs on a timer.
type Sweeper interface {
	ExpireTickets(ctx context.Context, now time.Time) (int64, error)
	SweepUnpaidRegistrations(ctx context.Context, now time.Time) (int, error)
	ReconcileTickets(ctx context.Context, now time.Time) (int, error)
}

type SweepWorker interface {
	Start(ctx context.Context) error
	RunOnce(ctx context.Context)
}

type SweepWorkerImpl struct {
	sweeper  Sweeper
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewSweepWorker(sweeper Sweeper, interval time.Duration) SweepWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepWorkerImpl{
		sweeper:  sweeper,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.WithComponent("sweep_worker"),
	}
}

func (w *SweepWorkerImpl) Start(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()
	return nil
}

// RunOnce runs every sweep once. A failing sweep does not stop the others.
func (w *SweepWorkerImpl) RunOnce(ctx context.Context) {
	now := w.now()

	if n, err := w.sweeper.ExpireTickets(ctx, now); err != nil {
		w.log.Error("Ticket expiry sweep failed", zap.Error(err))
	} else if n > 0 {
		w.log.Info("Expired tickets", zap.Int64("count", n))
	}

	if n, err := w.sweeper.SweepUnpaidRegistrations(ctx, now); err != nil {
		w.log.Error("Unpaid registration sweep failed", zap.Error(err))
	} else if n > 0 {
		w.log.Info("Cancelled unpaid registrations", zap.Int("count", n))
	}

	if n, err := w.sweeper.ReconcileTickets(ctx, now); err != nil {
		w.log.Error("Ticket reconciliation failed", zap.Error(err))
	} else if n > 0 {
		w.log.Info("Reconciled tickets", zap.Int("count", n))
	}
}
