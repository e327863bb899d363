package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finassist/internal/amqp"
	"finassist/internal/core"
	"finassist/internal/metrics"
	"finassist/internal/sheets"
)

// BucketSyncer recomputes a bucket's spend. *services.Reconciler satisfies it.
type BucketSyncer interface {
	Sync(ctx context.Context, b core.Bucket) (bool, error)
}

// Consumer is the broker side of the worker. *amqp.Client satisfies it.
type Consumer interface {
	ConsumeExpenseEvents(ctx context.Context, handler func(context.Context, *amqp.ExpenseEvent) error) error
	Reconnect(ctx context.Context) error
}

// SyncWorker re-reconciles the buckets named in expense events and mirrors
// newly created expenses to a spreadsheet. Reconciliation recomputes from
// scratch, so redelivered events are harmless.
type SyncWorker struct {
	reconciler BucketSyncer
	mirror     sheets.ExpenseMirror
}

// NewSyncWorker creates a worker. mirror may be nil.
func NewSyncWorker(reconciler BucketSyncer, mirror sheets.ExpenseMirror) *SyncWorker {
	return &SyncWorker{reconciler: reconciler, mirror: mirror}
}

// HandleExpenseEvent processes one event. A returned error requeues it.
func (w *SyncWorker) HandleExpenseEvent(ctx context.Context, evt *amqp.ExpenseEvent) error {
	err := w.handle(ctx, evt)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.EventsConsumedTotal.WithLabelValues(string(evt.Type), status).Inc()
	return err
}

func (w *SyncWorker) handle(ctx context.Context, evt *amqp.ExpenseEvent) error {
	slog.InfoContext(ctx, "Processing expense event",
		"type", evt.Type,
		"expense_id", evt.ExpenseID,
		"buckets", len(evt.Buckets))

	for _, b := range evt.Buckets {
		updated, err := w.reconciler.Sync(ctx, b)
		if err != nil {
			if core.IsValidation(err) {
				// Retrying cannot fix a malformed bucket.
				slog.WarnContext(ctx, "Skipping invalid bucket", "bucket", b.String(), "error", err)
				continue
			}
			return fmt.Errorf("reconcile %s: %w", b, err)
		}
		slog.DebugContext(ctx, "Bucket reconciled", "bucket", b.String(), "budget_found", updated)
	}

	if evt.Type != amqp.ExpenseCreated || w.mirror == nil {
		return nil
	}
	ref, err := w.mirror.Append(ctx, evt.Expense())
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}
	slog.InfoContext(ctx, "Mirrored expense",
		"expense_id", evt.ExpenseID,
		"sheets_ref", ref,
		"amount_cents", evt.AmountCents)
	return nil
}

// Run consumes events until ctx is done, reconnecting whenever the
// delivery loop ends early.
func (w *SyncWorker) Run(ctx context.Context, c Consumer) error {
	for {
		err := c.ConsumeExpenseEvents(ctx, w.HandleExpenseEvent)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "Message consumption stopped, reconnecting", "error", err)
		}
		if err := c.Reconnect(ctx); err != nil {
			return err
		}
	}
}
