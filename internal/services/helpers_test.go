package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finassist/internal/amqp"
	"finassist/internal/core"
	"finassist/internal/storage"
	"finassist/internal/storage/memory"
)

const owner = "alice"

var errStoreDown = errors.New("store down")

type fixture struct {
	store    storage.Store
	rec      *Reconciler
	expenses *ExpenseService
	budgets  *BudgetService
	pub      *fakePublisher
	now      time.Time
}

func newFixture(t *testing.T, opts ...ExpenseOption) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.New(), opts...)
}

func newSQLiteStore(t *testing.T) storage.Store {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finassist.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

var testStores = []struct {
	name string
	open func(t *testing.T) storage.Store
}{
	{"memory", func(*testing.T) storage.Store { return memory.New() }},
	{"sqlite", newSQLiteStore},
}

// eachStore runs fn once per store implementation, each on a fresh fixture.
func eachStore(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for _, s := range testStores {
		t.Run(s.name, func(t *testing.T) {
			fn(t, newFixtureOn(t, s.open(t)))
		})
	}
}

func newFixtureOn(t *testing.T, store storage.Store, opts ...ExpenseOption) *fixture {
	t.Helper()
	f := &fixture{
		store: store,
		pub:   &fakePublisher{},
		now:   time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.rec = NewReconciler(f.store, f.store)

	opts = append([]ExpenseOption{WithPublisher(f.pub), WithExpenseClock(clock)}, opts...)
	f.expenses = NewExpenseService(f.store, f.rec, core.NewCategorizer(core.DefaultCategoryRules()), opts...)
	f.expenses.newID = sequence("exp")

	f.budgets = NewBudgetService(f.store, f.rec)
	f.budgets.now = clock
	f.budgets.newID = sequence("bud")
	return f
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func at(year int, month time.Month, d int) *time.Time {
	t := time.Date(year, month, d, 10, 0, 0, 0, time.UTC)
	return &t
}

func (f *fixture) addExpense(t *testing.T, cents int64, category, description string, when *time.Time) core.Expense {
	t.Helper()
	e, err := f.expenses.CreateExpense(context.Background(), owner, ExpenseInput{
		Amount:      core.Cents(cents),
		Category:    category,
		Description: description,
		Date:        when,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return e
}

func (f *fixture) setBudget(t *testing.T, category string, year, month int, limit int64) core.Budget {
	t.Helper()
	b, _, err := f.budgets.SetBudget(context.Background(), owner, BudgetInput{
		Category: category,
		Month:    month,
		Year:     year,
		Limit:    core.Cents(limit),
	})
	if err != nil {
		t.Fatalf("set budget: %v", err)
	}
	return b
}

func (f *fixture) spent(t *testing.T, category core.Category, year, month int) int64 {
	t.Helper()
	b, err := f.store.FindBudget(context.Background(), core.Bucket{Owner: owner, Category: category, Month: month, Year: year})
	if err != nil {
		t.Fatalf("find budget: %v", err)
	}
	return b.Spent.Cents
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.ExpenseEvent
	err    error
}

func (p *fakePublisher) PublishExpenseEvent(_ context.Context, evt *amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) last() *amqp.ExpenseEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

// brokenSums fails every aggregate query while the rest of the store works.
type brokenSums struct {
	*memory.Store
}

func (brokenSums) SumExpenses(context.Context, storage.ExpenseFilter) (core.Money, error) {
	return core.Money{}, errStoreDown
}
