package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finassist/internal/amqp"
	"finassist/internal/cache"
	"finassist/internal/core"
	"finassist/internal/storage"
	"finassist/internal/storage/memory"
)

func TestCreateExpenseReconcilesBucket(t *testing.T) {
	eachStore(t, func(t *testing.T, f *fixture) {
		f.setBudget(t, "Food", 2025, 3, 30000)

		f.addExpense(t, 1500, "Food", "pizza", at(2025, 3, 4))
		f.addExpense(t, 2500, "food", "sushi", at(2025, 3, 31))
		f.addExpense(t, 9900, "Food", "april dinner", at(2025, 4, 1))

		assert.Equal(t, int64(4000), f.spent(t, core.Food, 2025, 3))
	})
}

func TestCreateExpenseAutoCategorizes(t *testing.T) {
	f := newFixture(t)

	e := f.addExpense(t, 4200, "", "Uber to airport", nil)
	assert.Equal(t, core.Transport, e.Category)
	assert.True(t, e.AutoCategorized)
	assert.Equal(t, f.now, e.OccurredOn, "missing date defaults to now")

	explicit := f.addExpense(t, 100, "Bills", "uber eats voucher", nil)
	assert.Equal(t, core.Bills, explicit.Category)
	assert.False(t, explicit.AutoCategorized)
}

func TestCreateExpenseValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   ExpenseInput
		want error
	}{
		{"unknown category", ExpenseInput{Amount: core.Cents(1), Category: "Pets", Description: "dog food"}, core.ErrInvalidCategory},
		{"negative amount", ExpenseInput{Amount: core.Cents(-1), Category: "Food", Description: "refund"}, core.ErrInvalidAmount},
		{"empty description", ExpenseInput{Amount: core.Cents(1), Category: "Food", Description: "   "}, core.ErrEmptyDescription},
		{"amount above cap", ExpenseInput{Amount: core.Cents(core.MaxAmount + 1), Category: "Food", Description: "yacht"}, core.ErrInvalidAmount},
		{"date before 1970", ExpenseInput{Amount: core.Cents(1), Category: "Bills", Description: "old", Date: at(1500, 1, 1)}, core.ErrInvalidDate},
		{"date after 2200", ExpenseInput{Amount: core.Cents(1), Category: "Bills", Description: "far", Date: at(2300, 1, 15)}, core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.expenses.CreateExpense(context.Background(), owner, tt.in)
			require.Error(t, err)
			assert.True(t, core.IsValidation(err))
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.pub.events)
}

func TestSpentDoesNotWrapOnLargeAmounts(t *testing.T) {
	eachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		f.setBudget(t, "Bills", 2025, 3, 1000)

		f.addExpense(t, core.MaxAmount, "Bills", "tower", at(2025, 3, 1))
		f.addExpense(t, core.MaxAmount, "Bills", "tower two", at(2025, 3, 2))
		_, err := f.expenses.CreateExpense(ctx, owner, ExpenseInput{
			Amount: core.Cents(math.MaxInt64), Category: "Bills", Description: "overflow", Date: at(2025, 3, 3),
		})
		assert.ErrorIs(t, err, core.ErrInvalidAmount)

		b, err := f.store.FindBudget(ctx, core.Bucket{Owner: owner, Category: core.Bills, Month: 3, Year: 2025})
		require.NoError(t, err)
		assert.Equal(t, 2*core.MaxAmount, b.Spent.Cents)
		assert.True(t, core.View(b).IsOverLimit)
	})
}

// A sequence of mutations in one bucket leaves spent equal to the sum of
// the expenses that remain.
func TestSpentTracksMutationSequence(t *testing.T) {
	eachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		f.setBudget(t, "Food", 2025, 3, 100000)

		a := f.addExpense(t, 1000, "Food", "a", at(2025, 3, 1))
		b := f.addExpense(t, 2000, "Food", "b", at(2025, 3, 2))
		f.addExpense(t, 3000, "Food", "c", at(2025, 3, 3))
		assert.Equal(t, int64(6000), f.spent(t, core.Food, 2025, 3))

		amount := core.Cents(500)
		_, err := f.expenses.UpdateExpense(ctx, owner, a.ID, ExpensePatch{Amount: &amount})
		require.NoError(t, err)
		assert.Equal(t, int64(5500), f.spent(t, core.Food, 2025, 3))

		require.NoError(t, f.expenses.DeleteExpense(ctx, owner, b.ID))
		assert.Equal(t, int64(3500), f.spent(t, core.Food, 2025, 3))

		want, err := f.store.SumExpenses(ctx, storage.ExpenseFilter{
			Owner: owner, Category: core.Food,
			From: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Until: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, want.Cents, f.spent(t, core.Food, 2025, 3))
	})
}

func TestUpdateExpenseMovesBetweenMonths(t *testing.T) {
	eachStore(t, func(t *testing.T, f *fixture) {
		f.setBudget(t, "Food", 2025, 3, 50000)
		f.setBudget(t, "Food", 2025, 4, 50000)

		f.addExpense(t, 1000, "Food", "stays", at(2025, 3, 10))
		moving := f.addExpense(t, 2500, "Food", "moves", at(2025, 3, 20))
		require.Equal(t, int64(3500), f.spent(t, core.Food, 2025, 3))
		require.Equal(t, int64(0), f.spent(t, core.Food, 2025, 4))

		_, err := f.expenses.UpdateExpense(context.Background(), owner, moving.ID, ExpensePatch{Date: at(2025, 4, 2)})
		require.NoError(t, err)

		assert.Equal(t, int64(1000), f.spent(t, core.Food, 2025, 3))
		assert.Equal(t, int64(2500), f.spent(t, core.Food, 2025, 4))

		evt := f.pub.last()
		require.NotNil(t, evt)
		assert.Equal(t, amqp.ExpenseUpdated, evt.Type)
		assert.Len(t, evt.Buckets, 2)
	})
}

func TestUpdateExpenseMovesBetweenCategories(t *testing.T) {
	eachStore(t, func(t *testing.T, f *fixture) {
		f.setBudget(t, "Food", 2025, 3, 50000)
		f.setBudget(t, "Shopping", 2025, 3, 50000)
		e := f.addExpense(t, 1800, "Food", "market", at(2025, 3, 10))

		category := "Shopping"
		_, err := f.expenses.UpdateExpense(context.Background(), owner, e.ID, ExpensePatch{Category: &category})
		require.NoError(t, err)

		assert.Equal(t, int64(0), f.spent(t, core.Food, 2025, 3))
		assert.Equal(t, int64(1800), f.spent(t, core.Shopping, 2025, 3))
	})
}

func TestUpdateExpenseEmptyCategoryRecategorizes(t *testing.T) {
	f := newFixture(t)
	e := f.addExpense(t, 1800, "Other", "netflix", at(2025, 3, 10))

	empty := ""
	got, err := f.expenses.UpdateExpense(context.Background(), owner, e.ID, ExpensePatch{Category: &empty})
	require.NoError(t, err)
	assert.Equal(t, core.Entertainment, got.Category)
	assert.True(t, got.AutoCategorized)
}

func TestDeleteLastExpenseZeroesSpent(t *testing.T) {
	eachStore(t, func(t *testing.T, f *fixture) {
		f.setBudget(t, "Transport", 2025, 3, 20000)
		e := f.addExpense(t, 4200, "Transport", "train", at(2025, 3, 5))
		require.Equal(t, int64(4200), f.spent(t, core.Transport, 2025, 3))

		require.NoError(t, f.expenses.DeleteExpense(context.Background(), owner, e.ID))
		assert.Equal(t, int64(0), f.spent(t, core.Transport, 2025, 3))

		evt := f.pub.last()
		require.NotNil(t, evt)
		assert.Equal(t, amqp.ExpenseDeleted, evt.Type)
		assert.Equal(t, e.ID, evt.ExpenseID)
	})
}

func TestExpenseNotFoundIsScopedByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.addExpense(t, 100, "Food", "mine", nil)

	_, err := f.expenses.GetExpense(ctx, "mallory", e.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	amount := core.Cents(1)
	_, err = f.expenses.UpdateExpense(ctx, "mallory", e.ID, ExpensePatch{Amount: &amount})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, f.expenses.DeleteExpense(ctx, "mallory", e.ID), storage.ErrNotFound)

	still, err := f.expenses.GetExpense(ctx, owner, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), still.Amount.Cents)
}

func TestPublishFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker unavailable")

	_, err := f.expenses.CreateExpense(context.Background(), owner, ExpenseInput{
		Amount: core.Cents(100), Category: "Food", Description: "coffee",
	})
	assert.NoError(t, err)
}

func TestCreateExpensePublishesEvent(t *testing.T) {
	f := newFixture(t)
	e := f.addExpense(t, 999, "Food", "bagel", at(2025, 3, 7))

	evt := f.pub.last()
	require.NotNil(t, evt)
	assert.Equal(t, amqp.ExpenseCreated, evt.Type)
	assert.Equal(t, owner, evt.Owner)
	assert.Equal(t, int64(999), evt.AmountCents)
	assert.Equal(t, []core.Bucket{e.Bucket()}, evt.Buckets)
}

func TestListExpensesPagination(t *testing.T) {
	f := newFixture(t)
	for d := 1; d <= 25; d++ {
		f.addExpense(t, int64(d*100), "Food", "meal", at(2025, 3, d))
	}
	f.addExpense(t, 100, "Bills", "phone", at(2025, 3, 26))

	tests := []struct {
		name      string
		q         ExpenseQuery
		wantLen   int
		wantPage  int
		wantLimit int
		wantPages int
		wantTotal int
	}{
		{"defaults", ExpenseQuery{}, 10, 1, DefaultPageSize, 3, 26},
		{"last page", ExpenseQuery{Page: 3}, 6, 3, 10, 3, 26},
		{"past the end", ExpenseQuery{Page: 9}, 0, 9, 10, 3, 26},
		{"limit capped", ExpenseQuery{Limit: 1000}, 26, 1, MaxPageSize, 1, 26},
		{"category filter", ExpenseQuery{Category: core.Bills}, 1, 1, 10, 1, 1},
		{"date range", ExpenseQuery{From: *at(2025, 3, 1), Until: *at(2025, 3, 6)}, 5, 1, 10, 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.expenses.ListExpenses(context.Background(), owner, tt.q)
			require.NoError(t, err)
			assert.Len(t, page.Expenses, tt.wantLen)
			assert.NotNil(t, page.Expenses)
			assert.Equal(t, Pagination{Page: tt.wantPage, Limit: tt.wantLimit, Total: tt.wantTotal, Pages: tt.wantPages}, page.Pagination)
		})
	}

	page, err := f.expenses.ListExpenses(context.Background(), owner, ExpenseQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "phone", page.Expenses[0].Description, "newest first")
}

func TestMonthlySummaryCacheInvalidation(t *testing.T) {
	summaries := cache.NewLRUCache[core.MonthlySummary](16, time.Hour)
	f := newFixture(t, WithSummaryCache(summaries))
	ctx := context.Background()

	f.addExpense(t, 3000, "Food", "groceries", at(2025, 3, 3))
	f.addExpense(t, 1000, "Transport", "bus pass", at(2025, 3, 4))

	sum, err := f.expenses.MonthlySummary(ctx, owner, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), sum.Total.Cents)
	assert.Equal(t, 2, sum.Count)
	require.Len(t, sum.ByCategory, 2)
	assert.Equal(t, core.Food, sum.ByCategory[0].Category)
	assert.InDelta(t, 75.0, sum.ByCategory[0].Percentage, 0.001)
	assert.Equal(t, 1, summaries.Size())

	f.addExpense(t, 1000, "Food", "snacks", at(2025, 3, 5))
	assert.Equal(t, 0, summaries.Size(), "mutation drops the cached month")

	sum, err = f.expenses.MonthlySummary(ctx, owner, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), sum.Total.Cents)
}

// midReadStore runs onList once, after ListExpenses has read its rows.
type midReadStore struct {
	storage.Store
	onList func()
}

func (s *midReadStore) ListExpenses(ctx context.Context, f storage.ExpenseFilter, p storage.Page) ([]core.Expense, error) {
	items, err := s.Store.ListExpenses(ctx, f, p)
	if s.onList != nil {
		hook := s.onList
		s.onList = nil
		hook()
	}
	return items, err
}

func TestMonthlySummaryNotCachedAcrossConcurrentWrite(t *testing.T) {
	summaries := cache.NewLRUCache[core.MonthlySummary](16, time.Hour)
	store := &midReadStore{Store: memory.New()}
	f := newFixtureOn(t, store, WithSummaryCache(summaries))
	ctx := context.Background()

	f.addExpense(t, 3000, "Food", "groceries", at(2025, 3, 3))
	store.onList = func() {
		f.addExpense(t, 1000, "Food", "snacks", at(2025, 3, 5))
	}

	stale, err := f.expenses.MonthlySummary(ctx, owner, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), stale.Total.Cents)
	assert.Equal(t, 0, summaries.Size(), "a summary read across a write is not cached")

	sum, err := f.expenses.MonthlySummary(ctx, owner, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), sum.Total.Cents)
	assert.Equal(t, 1, summaries.Size())
}

func TestMonthlySummaryValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.expenses.MonthlySummary(context.Background(), owner, 2025, 13)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
	_, err = f.expenses.MonthlySummary(context.Background(), owner, 0, 1)
	assert.ErrorIs(t, err, core.ErrInvalidYear)
}
