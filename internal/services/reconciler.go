package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/metrics"
	"finassist/internal/storage"
)

// Reconciler keeps Budget.Spent equal to the sum of the owner's expenses in
// the budget's category and month. Spend is always recomputed from scratch,
// so running it twice, or out of order, converges on the same value.
type Reconciler struct {
	expenses storage.ExpenseStore
	budgets  storage.BudgetStore
	log      *applog.StructuredLogger
}

func NewReconciler(expenses storage.ExpenseStore, budgets storage.BudgetStore) *Reconciler {
	logger := applog.New(applog.Config{Component: applog.ComponentReconcile, Handler: slog.Default().Handler()})
	return &Reconciler{
		expenses: expenses,
		budgets:  budgets,
		log:      applog.NewStructuredLogger(logger),
	}
}

// Compute sums the bucket's expenses without writing anything.
func (r *Reconciler) Compute(ctx context.Context, b core.Bucket) (core.Money, error) {
	if err := b.Validate(); err != nil {
		return core.Money{}, err
	}
	from, until := b.Window()
	total, err := r.expenses.SumExpenses(ctx, storage.ExpenseFilter{
		Owner:    b.Owner,
		Category: b.Category,
		From:     from,
		Until:    until,
	})
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses for %s: %w", b, err)
	}
	return total, nil
}

// Sync recomputes the bucket and stores the result on its budget. It
// reports whether a budget existed; a missing budget is not an error.
func (r *Reconciler) Sync(ctx context.Context, b core.Bucket) (bool, error) {
	start := time.Now()
	defer func() { metrics.ReconcileDuration.Observe(time.Since(start).Seconds()) }()

	spent, err := r.Compute(ctx, b)
	if err != nil {
		if core.IsValidation(err) {
			metrics.ReconcileTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		} else {
			metrics.ReconcileTotal.WithLabelValues(metrics.ResultError).Inc()
		}
		return false, err
	}

	updated, err := r.budgets.SetSpent(ctx, b, spent)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues(metrics.ResultError).Inc()
		return false, fmt.Errorf("store spent for %s: %w", b, err)
	}
	if updated {
		metrics.ReconcileTotal.WithLabelValues(metrics.ResultUpdated).Inc()
	} else {
		metrics.ReconcileTotal.WithLabelValues(metrics.ResultNoBudget).Inc()
	}
	r.log.LogReconcile(ctx, b.Owner, string(b.Category), b.Month, b.Year, spent.Cents, updated)
	return updated, nil
}

// Reconcile is Sync for mutation paths: failures are logged and dropped so
// the primary write still succeeds.
func (r *Reconciler) Reconcile(ctx context.Context, b core.Bucket) {
	if _, err := r.Sync(ctx, b); err != nil {
		fields := applog.NewFields().WithBucket(b.Owner, string(b.Category), b.Month, b.Year)
		r.log.LogError(ctx, "Budget reconciliation failed", err, applog.ComponentReconcile, applog.OpReconcile, fields)
	}
}

// ReconcileMonth syncs every budget the owner has in the given month and
// returns how many were refreshed.
func (r *Reconciler) ReconcileMonth(ctx context.Context, owner string, year, month int) (int, error) {
	budgets, err := r.budgets.ListBudgets(ctx, storage.BudgetFilter{Owner: owner, Month: month, Year: year})
	if err != nil {
		return 0, fmt.Errorf("list budgets: %w", err)
	}
	n := 0
	for _, b := range budgets {
		updated, err := r.Sync(ctx, b.Key())
		if err != nil {
			return n, err
		}
		if updated {
			n++
		}
	}
	return n, nil
}
