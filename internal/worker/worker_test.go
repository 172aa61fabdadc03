package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingProcessor struct {
	calls atomic.Int64
	err   error
}

func (c *countingProcessor) ProcessDueBatch(ctx context.Context, now time.Time) (int, error) {
	c.calls.Add(1)
	return 0, c.err
}

func TestWorkerTicksUntilCancelled(t *testing.T) {
	proc := &countingProcessor{}
	w := New(proc, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	if got := proc.calls.Load(); got < 2 {
		t.Errorf("expected multiple sweeps, got %d", got)
	}
}

func TestWorkerKeepsTickingAfterSweepError(t *testing.T) {
	proc := &countingProcessor{err: errors.New("store down")}
	w := New(proc, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	w.Start(ctx)

	if got := proc.calls.Load(); got < 2 {
		t.Errorf("worker should retry after a failed sweep, got %d sweeps", got)
	}
}
