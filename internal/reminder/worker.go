package reminder

import (
	"context"
	"log/slog"
	"time"
)

// Worker polls for due reminders on a ticker, for installations that run
// the service standalone instead of wiring an external cron to the
// process-reminders endpoint.
type Worker struct {
	processor *Processor
	interval  time.Duration
	log       *slog.Logger
}

func NewWorker(processor *Processor, interval time.Duration, log *slog.Logger) *Worker {
	return &Worker{processor: processor, interval: interval, log: log}
}

// Run blocks until ctx is canceled, processing one batch per tick.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("reminder worker started", slog.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("reminder worker stopped")
			return
		case <-ticker.C:
			result, err := w.processor.ProcessDue(ctx)
			if err != nil {
				w.log.Error("worker batch failed", slog.String("error", err.Error()))
				continue
			}
			if result.Processed > 0 || len(result.Errors) > 0 {
				w.log.Info("worker batch finished",
					slog.Int("processed", result.Processed),
					slog.Int("errors", len(result.Errors)))
			}
		}
	}
}
