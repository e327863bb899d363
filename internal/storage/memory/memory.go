// Package memory is an in-process storage.Store used for development and
// tests. Data is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"finassist/internal/core"
	"finassist/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	expenses map[string]core.Expense
	budgets  map[string]core.Budget
	goals    map[string]core.Goal
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		expenses: make(map[string]core.Expense),
		budgets:  make(map[string]core.Budget),
		goals:    make(map[string]core.Goal),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func matchExpense(e core.Expense, f storage.ExpenseFilter) bool {
	if e.Owner != f.Owner {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && e.OccurredOn.Before(f.From) {
		return false
	}
	if !f.Until.IsZero() && !e.OccurredOn.Before(f.Until) {
		return false
	}
	return true
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[e.ID]; ok {
		return storage.ErrConflict
	}
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) GetExpense(_ context.Context, owner, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok || e.Owner != owner {
		return core.Expense{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[e.ID]
	if !ok || cur.Owner != e.Owner {
		return storage.ErrNotFound
	}
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.Owner != owner {
		return storage.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) filterExpenses(f storage.ExpenseFilter) []core.Expense {
	var out []core.Expense
	for _, e := range s.expenses {
		if matchExpense(e, f) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) ListExpenses(_ context.Context, f storage.ExpenseFilter, p storage.Page) ([]core.Expense, error) {
	s.mu.RLock()
	out := s.filterExpenses(f)
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredOn.Equal(out[j].OccurredOn) {
			return out[i].OccurredOn.After(out[j].OccurredOn)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if p.Offset >= len(out) {
		return nil, nil
	}
	out = out[p.Offset:]
	if p.Limit > 0 && p.Limit < len(out) {
		out = out[:p.Limit]
	}
	return out, nil
}

func (s *Store) CountExpenses(_ context.Context, f storage.ExpenseFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filterExpenses(f)), nil
}

func (s *Store) SumExpenses(_ context.Context, f storage.ExpenseFilter) (core.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total core.Money
	for _, e := range s.filterExpenses(f) {
		total = total.Add(e.Amount)
	}
	return total, nil
}

func (s *Store) findByKey(key core.Bucket) (core.Budget, bool) {
	for _, b := range s.budgets {
		if b.Key() == key {
			return b, true
		}
	}
	return core.Budget{}, false
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[b.ID]; ok {
		return storage.ErrConflict
	}
	if _, ok := s.findByKey(b.Key()); ok {
		return storage.ErrConflict
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) GetBudget(_ context.Context, owner, id string) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok || b.Owner != owner {
		return core.Budget{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) FindBudget(_ context.Context, key core.Bucket) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.findByKey(key)
	if !ok {
		return core.Budget{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.budgets[b.ID]
	if !ok || cur.Owner != b.Owner {
		return storage.ErrNotFound
	}
	if other, ok := s.findByKey(b.Key()); ok && other.ID != b.ID {
		return storage.ErrConflict
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) SetSpent(_ context.Context, key core.Bucket, spent core.Money) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.findByKey(key)
	if !ok {
		return false, nil
	}
	b.Spent = spent
	b.UpdatedAt = time.Now().UTC()
	s.budgets[b.ID] = b
	return true, nil
}

func (s *Store) DeleteBudget(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.Owner != owner {
		return storage.ErrNotFound
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) ListBudgets(_ context.Context, f storage.BudgetFilter) ([]core.Budget, error) {
	s.mu.RLock()
	var out []core.Budget
	for _, b := range s.budgets {
		switch {
		case b.Owner != f.Owner,
			f.Category != "" && b.Category != f.Category,
			f.Month != 0 && b.Month != f.Month,
			f.Year != 0 && b.Year != f.Year,
			f.ActiveOnly && !b.IsActive:
			continue
		}
		out = append(out, b)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// cloneGoal detaches the contributions slice from the stored copy.
func cloneGoal(g core.Goal) core.Goal {
	g.Contributions = append([]core.Contribution{}, g.Contributions...)
	return g
}

func (s *Store) CreateGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[g.ID]; ok {
		return storage.ErrConflict
	}
	s.goals[g.ID] = cloneGoal(g)
	return nil
}

func (s *Store) GetGoal(_ context.Context, owner, id string) (core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok || g.Owner != owner {
		return core.Goal{}, storage.ErrNotFound
	}
	return cloneGoal(g), nil
}

func (s *Store) UpdateGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.goals[g.ID]
	if !ok || cur.Owner != g.Owner {
		return storage.ErrNotFound
	}
	s.goals[g.ID] = cloneGoal(g)
	return nil
}

func (s *Store) DeleteGoal(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.Owner != owner {
		return storage.ErrNotFound
	}
	delete(s.goals, id)
	return nil
}

func (s *Store) ListGoals(_ context.Context, f storage.GoalFilter) ([]core.Goal, error) {
	s.mu.RLock()
	var out []core.Goal
	for _, g := range s.goals {
		switch {
		case g.Owner != f.Owner,
			f.Status != "" && g.Status != f.Status,
			f.GoalType != "" && g.GoalType != f.GoalType:
			continue
		}
		out = append(out, cloneGoal(g))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
