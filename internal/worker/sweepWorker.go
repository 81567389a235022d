package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"

	"github.com/sirupsen/logrus"
)

// Sweeper is the part of service.ReminderScheduler the sweep worker drives.
type Sweeper interface {
	Sweep() error
}

// OverdueSweepWorker periodically queues an overdue sweep as a safety net for missed change events.
type OverdueSweepWorker struct {
	scheduler Sweeper
	interval  time.Duration
}

func NewOverdueSweepWorker(scheduler Sweeper, interval time.Duration) *OverdueSweepWorker {
	return &OverdueSweepWorker{
		scheduler: scheduler,
		interval:  interval,
	}
}

func (w *OverdueSweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithField("interval", w.interval.String()).Info("Overdue sweep worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Overdue sweep worker stopped")
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *OverdueSweepWorker) tick() {
	err := w.scheduler.Sweep()
	switch {
	case err == nil:
		logrus.Debug("Overdue sweep queued")
	case errors.Is(err, entity.ErrSchedulerNotRunning):
		// планировщик остановлен вручную, пропускаем тик
		logrus.Debug("Reminder scheduler stopped, sweep tick skipped")
	default:
		logrus.Warnf("Failed to queue overdue sweep: %v", err)
	}
}
