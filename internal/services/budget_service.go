package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finassist/internal/core"
	"finassist/internal/storage"
)

type (
	// BudgetInput creates or updates the budget at (category, month, year).
	// A nil AlertThreshold keeps the current value, or the default on create.
	BudgetInput struct {
		Category       string
		Month          int
		Year           int
		Limit          core.Money
		AlertThreshold *int
	}

	// BudgetPatch changes the non-nil fields. The natural key is immutable.
	BudgetPatch struct {
		Limit          *core.Money
		AlertThreshold *int
		IsActive       *bool
	}

	Tracking struct {
		Month   int               `json:"month"`
		Year    int               `json:"year"`
		Budgets []core.BudgetView `json:"budgets"`
		Alerts  []core.BudgetView `json:"alerts"`
	}
)

type BudgetService struct {
	store      storage.BudgetStore
	reconciler *Reconciler
	now        func() time.Time
	newID      func() string
}

func NewBudgetService(store storage.BudgetStore, reconciler *Reconciler) *BudgetService {
	return &BudgetService{
		store:      store,
		reconciler: reconciler,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// SetBudget creates the budget for the input's bucket, or updates the one
// already there. The bool reports whether a budget was created. Spend is
// reconciled on both paths so prior expenses are reflected immediately.
func (s *BudgetService) SetBudget(ctx context.Context, owner string, in BudgetInput) (core.Budget, bool, error) {
	category, err := core.ParseCategory(in.Category)
	if err != nil {
		return core.Budget{}, false, &core.ValidationError{Field: "category", Err: err}
	}
	key := core.Bucket{Owner: owner, Category: category, Month: in.Month, Year: in.Year}
	if err := key.Validate(); err != nil {
		return core.Budget{}, false, err
	}
	if err := in.Limit.Validate(); err != nil {
		return core.Budget{}, false, &core.ValidationError{Field: "limit", Err: err}
	}
	if in.AlertThreshold != nil {
		if err := core.ValidateThreshold(*in.AlertThreshold); err != nil {
			return core.Budget{}, false, err
		}
	}

	existing, err := s.store.FindBudget(ctx, key)
	switch {
	case err == nil:
		b, err := s.updateExisting(ctx, existing, in)
		return b, false, err
	case !errors.Is(err, storage.ErrNotFound):
		return core.Budget{}, false, fmt.Errorf("find budget: %w", err)
	}

	now := s.now().UTC()
	b := core.Budget{
		ID:             s.newID(),
		Owner:          owner,
		Category:       category,
		Month:          in.Month,
		Year:           in.Year,
		Limit:          in.Limit,
		AlertThreshold: core.DefaultAlertThreshold,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.AlertThreshold != nil {
		b.AlertThreshold = *in.AlertThreshold
	}

	if err := s.store.CreateBudget(ctx, b); err != nil {
		if !errors.Is(err, storage.ErrConflict) {
			return core.Budget{}, false, fmt.Errorf("create budget: %w", err)
		}
		// Lost a race with another create for the same bucket.
		existing, ferr := s.store.FindBudget(ctx, key)
		if ferr != nil {
			return core.Budget{}, false, fmt.Errorf("find budget after conflict: %w", ferr)
		}
		b, err := s.updateExisting(ctx, existing, in)
		return b, false, err
	}

	slog.InfoContext(ctx, "Budget created", "budget_id", b.ID, "bucket", key.String())
	return s.reconciled(ctx, b), true, nil
}

func (s *BudgetService) updateExisting(ctx context.Context, b core.Budget, in BudgetInput) (core.Budget, error) {
	b.Limit = in.Limit
	if in.AlertThreshold != nil {
		b.AlertThreshold = *in.AlertThreshold
	}
	b.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	return s.reconciled(ctx, b), nil
}

// reconciled refreshes b's spend and returns the stored record, falling back
// to b when the re-read fails.
func (s *BudgetService) reconciled(ctx context.Context, b core.Budget) core.Budget {
	s.reconciler.Reconcile(ctx, b.Key())
	fresh, err := s.store.GetBudget(ctx, b.Owner, b.ID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to re-read budget after reconcile", "budget_id", b.ID, "error", err)
		return b
	}
	return fresh
}

func (s *BudgetService) GetBudget(ctx context.Context, owner, id string) (core.BudgetView, error) {
	b, err := s.store.GetBudget(ctx, owner, id)
	if err != nil {
		return core.BudgetView{}, err
	}
	return core.View(b), nil
}

func (s *BudgetService) ListBudgets(ctx context.Context, f storage.BudgetFilter) ([]core.BudgetView, error) {
	budgets, err := s.store.ListBudgets(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	views := make([]core.BudgetView, 0, len(budgets))
	for _, b := range budgets {
		views = append(views, core.View(b))
	}
	return views, nil
}

func (s *BudgetService) UpdateBudget(ctx context.Context, owner, id string, patch BudgetPatch) (core.BudgetView, error) {
	b, err := s.store.GetBudget(ctx, owner, id)
	if err != nil {
		return core.BudgetView{}, err
	}
	if patch.Limit != nil {
		if err := patch.Limit.Validate(); err != nil {
			return core.BudgetView{}, &core.ValidationError{Field: "limit", Err: err}
		}
		b.Limit = *patch.Limit
	}
	if patch.AlertThreshold != nil {
		if err := core.ValidateThreshold(*patch.AlertThreshold); err != nil {
			return core.BudgetView{}, err
		}
		b.AlertThreshold = *patch.AlertThreshold
	}
	if patch.IsActive != nil {
		b.IsActive = *patch.IsActive
	}
	b.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return core.BudgetView{}, fmt.Errorf("update budget: %w", err)
	}
	return core.View(s.reconciled(ctx, b)), nil
}

func (s *BudgetService) DeleteBudget(ctx context.Context, owner, id string) error {
	return s.store.DeleteBudget(ctx, owner, id)
}

// Tracking reports the month's active budgets with their derived status.
func (s *BudgetService) Tracking(ctx context.Context, owner string, year, month int) (Tracking, error) {
	if err := validateMonth(year, month); err != nil {
		return Tracking{}, err
	}
	views, err := s.ListBudgets(ctx, storage.BudgetFilter{Owner: owner, Month: month, Year: year, ActiveOnly: true})
	if err != nil {
		return Tracking{}, err
	}
	t := Tracking{Month: month, Year: year, Budgets: views, Alerts: []core.BudgetView{}}
	for _, v := range views {
		if v.NeedsAttention() {
			t.Alerts = append(t.Alerts, v)
		}
	}
	return t, nil
}

// Alerts lists over- and near-limit alerts for the current UTC month.
func (s *BudgetService) Alerts(ctx context.Context, owner string) ([]core.Alert, error) {
	now := s.now().UTC()
	views, err := s.ListBudgets(ctx, storage.BudgetFilter{
		Owner:      owner,
		Month:      int(now.Month()),
		Year:       now.Year(),
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	alerts := []core.Alert{}
	for _, v := range views {
		if a, ok := core.AlertFor(v); ok {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

// ResetBudgets copies the active budgets of one month into another, skipping
// categories that already have a budget there. New budgets start with their
// spend reconciled against the target month.
func (s *BudgetService) ResetBudgets(ctx context.Context, owner string, fromYear, fromMonth, toYear, toMonth int) ([]core.Budget, error) {
	if err := validateMonth(fromYear, fromMonth); err != nil {
		return nil, err
	}
	if err := validateMonth(toYear, toMonth); err != nil {
		return nil, err
	}

	source, err := s.store.ListBudgets(ctx, storage.BudgetFilter{Owner: owner, Month: fromMonth, Year: fromYear, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list source budgets: %w", err)
	}

	created := []core.Budget{}
	for _, src := range source {
		key := core.Bucket{Owner: owner, Category: src.Category, Month: toMonth, Year: toYear}
		if _, err := s.store.FindBudget(ctx, key); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return created, fmt.Errorf("find budget %s: %w", key, err)
		}

		now := s.now().UTC()
		b := core.Budget{
			ID:             s.newID(),
			Owner:          owner,
			Category:       src.Category,
			Month:          toMonth,
			Year:           toYear,
			Limit:          src.Limit,
			AlertThreshold: src.AlertThreshold,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.store.CreateBudget(ctx, b); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("create budget %s: %w", key, err)
		}
		created = append(created, s.reconciled(ctx, b))
	}

	slog.InfoContext(ctx, "Budgets reset",
		"owner", owner,
		"from", fmt.Sprintf("%d/%d", fromMonth, fromYear),
		"to", fmt.Sprintf("%d/%d", toMonth, toYear),
		"created", len(created))
	return created, nil
}

func validateMonth(year, month int) error {
	if month < 1 || month > 12 {
		return &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	if year < core.MinBudgetYear {
		return &core.ValidationError{Field: "year", Err: core.ErrInvalidYear}
	}
	return nil
}
