// Package worker is the periodic driver of the reminder pipeline: a
// ticker that invokes one due-reminder sweep per tick. The pipeline
// itself has no scheduler; decoupling generation from delivery is done
// entirely through scheduled_for timestamps in the store.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BatchProcessor is the sweep entrypoint the worker drives.
type BatchProcessor interface {
	ProcessDueBatch(ctx context.Context, now time.Time) (int, error)
}

type Worker struct {
	processor BatchProcessor
	interval  time.Duration
	logger    *zap.Logger
}

func New(processor BatchProcessor, interval time.Duration, logger *zap.Logger) *Worker {
	if interval == 0 {
		interval = 30 * time.Second
	}
	return &Worker{
		processor: processor,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs sweeps until ctx is cancelled. A failed sweep (store
// outage) is logged and retried on the next tick; the records stay
// pending so nothing is lost.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reminder worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker stopping")
			return
		case <-ticker.C:
			processed, err := w.processor.ProcessDueBatch(ctx, time.Now().UTC())
			if err != nil {
				w.logger.Error("sweep failed", zap.Error(err))
				continue
			}
			if processed > 0 {
				w.logger.Info("sweep complete", zap.Int("processed", processed))
			}
		}
	}
}
