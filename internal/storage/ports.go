package storage

import (
	"context"
	"errors"
	"time"

	"finassist/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type (
	// ExpenseFilter selects an owner's expenses. Zero values mean "any":
	// an empty Category matches every category, a zero From or Until
	// leaves that side of the interval open. From is inclusive, Until is
	// exclusive.
	ExpenseFilter struct {
		Owner    string
		Category core.Category
		From     time.Time
		Until    time.Time
	}

	// Page limits a listing. A zero Limit returns everything after Offset.
	Page struct {
		Offset int
		Limit  int
	}

	BudgetFilter struct {
		Owner      string
		Category   core.Category
		Month      int
		Year       int
		ActiveOnly bool
	}

	GoalFilter struct {
		Owner    string
		Status   core.GoalStatus
		GoalType core.GoalType
	}
)

// Ports for the document store.
type (
	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) error
		GetExpense(ctx context.Context, owner, id string) (core.Expense, error)
		// UpdateExpense replaces the stored expense with the same owner and id.
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, owner, id string) error
		// ListExpenses returns matches ordered by occurrence, newest first.
		ListExpenses(ctx context.Context, f ExpenseFilter, p Page) ([]core.Expense, error)
		CountExpenses(ctx context.Context, f ExpenseFilter) (int, error)
		// SumExpenses totals the amounts of all matches; no match is zero.
		SumExpenses(ctx context.Context, f ExpenseFilter) (core.Money, error)
	}

	BudgetStore interface {
		// CreateBudget fails with ErrConflict when the natural key is taken.
		CreateBudget(ctx context.Context, b core.Budget) error
		GetBudget(ctx context.Context, owner, id string) (core.Budget, error)
		FindBudget(ctx context.Context, key core.Bucket) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) error
		// SetSpent overwrites the cached spend of the budget at key. It
		// reports false, without error, when no such budget exists; it
		// never creates one.
		SetSpent(ctx context.Context, key core.Bucket, spent core.Money) (bool, error)
		DeleteBudget(ctx context.Context, owner, id string) error
		// ListBudgets returns matches ordered by category.
		ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error)
	}

	GoalStore interface {
		CreateGoal(ctx context.Context, g core.Goal) error
		GetGoal(ctx context.Context, owner, id string) (core.Goal, error)
		// UpdateGoal replaces the goal, contributions included.
		UpdateGoal(ctx context.Context, g core.Goal) error
		DeleteGoal(ctx context.Context, owner, id string) error
		// ListGoals returns matches ordered by creation time, newest first.
		ListGoals(ctx context.Context, f GoalFilter) ([]core.Goal, error)
	}

	// Store is a complete backend.
	Store interface {
		ExpenseStore
		BudgetStore
		GoalStore
		Ping(ctx context.Context) error
		Close() error
	}
)
