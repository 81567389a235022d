package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"
	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep() error {
	s.calls.Add(1)
	return s.err
}

type countingPruner struct {
	calls atomic.Int32
	err   error
}

func (p *countingPruner) PruneLedger(context.Context) (int, error) {
	p.calls.Add(1)
	return 2, p.err
}

func TestOverdueSweepWorker(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "queues sweeps", err: nil},
		{name: "keeps ticking while scheduler is stopped", err: entity.ErrSchedulerNotRunning},
		{name: "keeps ticking when queue is full", err: entity.ErrQueueFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sweeper := &countingSweeper{err: tt.err}
			w := NewOverdueSweepWorker(sweeper, 5*time.Millisecond)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				w.Start(ctx)
				close(done)
			}()

			assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

			cancel()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("worker did not stop after cancellation")
			}
		})
	}
}

func TestLedgerPruneWorker(t *testing.T) {
	for _, pruneErr := range []error{nil, errors.New("redis unavailable")} {
		pruner := &countingPruner{err: pruneErr}
		w := NewLedgerPruneWorker(pruner, 5*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		go w.Start(ctx)

		assert.Eventually(t, func() bool { return pruner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		cancel()
	}
}
