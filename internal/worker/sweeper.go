package worker

import (
	"context"
	"time"

	"feedesk/internal/log"
)

// PendingProcessor mirrors one batch of unsynced payments.
type PendingProcessor interface {
	ProcessPending(ctx context.Context) (int, error)
}

// Sweeper periodically runs a PendingProcessor until its context ends.
type Sweeper struct {
	processor PendingProcessor
	interval  time.Duration
}

func NewSweeper(processor PendingProcessor, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{processor: processor, interval: interval}
}

// Run blocks until ctx is cancelled. A failed sweep is logged and retried
// on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger := workerLog(ctx)
	logger.InfoContext(ctx, "Ledger sweeper started", log.FieldOperation, log.OpStartup, "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "Ledger sweeper stopped", log.FieldOperation, log.OpShutdown)
			return nil
		case <-ticker.C:
			n, err := s.processor.ProcessPending(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.ErrorContext(ctx, "Ledger sweep failed", log.FieldOperation, log.OpSync, log.FieldError, err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "Ledger sweep synced payments", log.FieldOperation, log.OpSync, "count", n)
			}
		}
	}
}
