package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type LedgerPruner interface {
	PruneLedger(ctx context.Context) (int, error)
}

// LedgerPruneWorker удаляет из журнала записи старше срока хранения
type LedgerPruneWorker struct {
	pruner   LedgerPruner
	interval time.Duration
}

func NewLedgerPruneWorker(pruner LedgerPruner, interval time.Duration) *LedgerPruneWorker {
	return &LedgerPruneWorker{
		pruner:   pruner,
		interval: interval,
	}
}

func (w *LedgerPruneWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithField("interval", w.interval.String()).Info("Ledger prune worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Ledger prune worker stopped")
			return
		case <-ticker.C:
			w.prune(ctx)
		}
	}
}

func (w *LedgerPruneWorker) prune(ctx context.Context) {
	removed, err := w.pruner.PruneLedger(ctx)
	if err != nil {
		logrus.Errorf("Failed to prune reminder ledger: %v", err)
		return
	}

	if removed > 0 {
		logrus.Infof("Pruned %d stale reminder ledger entries", removed)
	}
}
