package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finassist/internal/amqp"
	"finassist/internal/cache"
	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/metrics"
	"finassist/internal/storage"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// EventPublisher hands expense events to a broker. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, evt *amqp.ExpenseEvent) error
}

type (
	// ExpenseInput creates an expense. An empty Category asks for
	// auto-categorization from the description; a nil Date means now.
	ExpenseInput struct {
		Amount      core.Money
		Category    string
		Description string
		Date        *time.Time
	}

	// ExpensePatch updates the non-nil fields. A Category set to "" re-runs
	// auto-categorization.
	ExpensePatch struct {
		Amount      *core.Money
		Category    *string
		Description *string
		Date        *time.Time
	}

	ExpenseQuery struct {
		Category core.Category
		From     time.Time
		Until    time.Time
		Page     int
		Limit    int
	}

	Pagination struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
		Pages int `json:"pages"`
	}

	ExpensePage struct {
		Expenses   []core.Expense `json:"expenses"`
		Pagination Pagination     `json:"pagination"`
	}
)

// ExpenseService owns expense mutations and the budget reconciliation and
// event publishing that follow them.
type ExpenseService struct {
	store       storage.ExpenseStore
	reconciler  *Reconciler
	categorizer *core.Categorizer
	publisher   EventPublisher
	summaries   *cache.LRUCache[core.MonthlySummary]
	now         func() time.Time
	newID       func() string
	log         *applog.StructuredLogger

	// summaryGen counts invalidations; a summary computed across one is
	// not cached.
	summaryMu  sync.Mutex
	summaryGen uint64
}

type ExpenseOption func(*ExpenseService)

// WithPublisher enables ExpenseEvent publishing after each mutation.
func WithPublisher(p EventPublisher) ExpenseOption {
	return func(s *ExpenseService) { s.publisher = p }
}

// WithSummaryCache caches monthly summaries in c.
func WithSummaryCache(c *cache.LRUCache[core.MonthlySummary]) ExpenseOption {
	return func(s *ExpenseService) { s.summaries = c }
}

func WithExpenseClock(now func() time.Time) ExpenseOption {
	return func(s *ExpenseService) { s.now = now }
}

func NewExpenseService(store storage.ExpenseStore, reconciler *Reconciler, categorizer *core.Categorizer, opts ...ExpenseOption) *ExpenseService {
	s := &ExpenseService{
		store:       store,
		reconciler:  reconciler,
		categorizer: categorizer,
		now:         time.Now,
		newID:       uuid.NewString,
		log:         applog.NewStructuredLogger(applog.New(applog.Config{Component: applog.ComponentExpense, Handler: slog.Default().Handler()})),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExpenseService) resolveCategory(raw, description string) (core.Category, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return s.categorizer.Categorize(description), true, nil
	}
	c, err := core.ParseCategory(raw)
	if err != nil {
		return "", false, &core.ValidationError{Field: "category", Err: err}
	}
	return c, false, nil
}

func (s *ExpenseService) CreateExpense(ctx context.Context, owner string, in ExpenseInput) (core.Expense, error) {
	category, auto, err := s.resolveCategory(in.Category, in.Description)
	if err != nil {
		return core.Expense{}, err
	}
	now := s.now().UTC()
	occurred := now
	if in.Date != nil {
		occurred = in.Date.UTC()
	}

	e := core.Expense{
		ID:              s.newID(),
		Owner:           owner,
		Amount:          in.Amount,
		Category:        category,
		Description:     strings.TrimSpace(in.Description),
		OccurredOn:      occurred,
		AutoCategorized: auto,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.store.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	b := e.Bucket()
	s.reconciler.Reconcile(ctx, b)
	s.invalidate(b)
	s.publish(ctx, amqp.NewExpenseEvent(amqp.ExpenseCreated, e, b))
	s.log.LogExpenseMutation(ctx, applog.OpCreate, e.ID, owner, string(e.Category), e.Amount.Cents)
	return e, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, owner, id string) (core.Expense, error) {
	return s.store.GetExpense(ctx, owner, id)
}

func (s *ExpenseService) UpdateExpense(ctx context.Context, owner, id string, patch ExpensePatch) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, owner, id)
	if err != nil {
		return core.Expense{}, err
	}
	old := e.Bucket()

	if patch.Amount != nil {
		e.Amount = *patch.Amount
	}
	if patch.Description != nil {
		e.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Date != nil {
		e.OccurredOn = patch.Date.UTC()
	}
	if patch.Category != nil {
		c, auto, err := s.resolveCategory(*patch.Category, e.Description)
		if err != nil {
			return core.Expense{}, err
		}
		e.Category, e.AutoCategorized = c, auto
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	// Both buckets, even when equal: the amount may have changed in place.
	cur := e.Bucket()
	s.reconciler.Reconcile(ctx, old)
	s.reconciler.Reconcile(ctx, cur)
	s.invalidate(old)
	s.invalidate(cur)

	buckets := []core.Bucket{old}
	if cur != old {
		buckets = append(buckets, cur)
	}
	s.publish(ctx, amqp.NewExpenseEvent(amqp.ExpenseUpdated, e, buckets...))
	s.log.LogExpenseMutation(ctx, applog.OpUpdate, e.ID, owner, string(e.Category), e.Amount.Cents)
	return e, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, owner, id string) error {
	e, err := s.store.GetExpense(ctx, owner, id)
	if err != nil {
		return err
	}
	b := e.Bucket()

	if err := s.store.DeleteExpense(ctx, owner, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.reconciler.Reconcile(ctx, b)
	s.invalidate(b)
	s.publish(ctx, amqp.NewExpenseEvent(amqp.ExpenseDeleted, e, b))
	s.log.LogExpenseMutation(ctx, applog.OpDelete, e.ID, owner, string(e.Category), e.Amount.Cents)
	return nil
}

// ListExpenses returns one page of matches, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, owner string, q ExpenseQuery) (ExpensePage, error) {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	f := storage.ExpenseFilter{Owner: owner, Category: q.Category, From: q.From, Until: q.Until}
	total, err := s.store.CountExpenses(ctx, f)
	if err != nil {
		return ExpensePage{}, fmt.Errorf("count expenses: %w", err)
	}
	items, err := s.store.ListExpenses(ctx, f, storage.Page{Offset: (page - 1) * limit, Limit: limit})
	if err != nil {
		return ExpensePage{}, fmt.Errorf("list expenses: %w", err)
	}
	if items == nil {
		items = []core.Expense{}
	}

	return ExpensePage{
		Expenses: items,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

func summaryKey(owner string, year, month int) string {
	return fmt.Sprintf("%s|%d|%d", owner, year, month)
}

// MonthlySummary aggregates the owner's spend for one month by category.
func (s *ExpenseService) MonthlySummary(ctx context.Context, owner string, year, month int) (core.MonthlySummary, error) {
	if month < 1 || month > 12 {
		return core.MonthlySummary{}, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	if year < 1 {
		return core.MonthlySummary{}, &core.ValidationError{Field: "year", Err: core.ErrInvalidYear}
	}

	key := summaryKey(owner, year, month)
	var gen uint64
	if s.summaries != nil {
		gen = s.generation()
		if sum, ok := s.summaries.Get(key); ok {
			metrics.SummaryCacheTotal.WithLabelValues("hit").Inc()
			return sum, nil
		}
		metrics.SummaryCacheTotal.WithLabelValues("miss").Inc()
	}

	from, until := core.MonthWindow(year, month)
	items, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{Owner: owner, From: from, Until: until}, storage.Page{})
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("list month expenses: %w", err)
	}
	sum := core.Summarize(year, month, items)
	if s.summaries != nil {
		s.summaryMu.Lock()
		if s.summaryGen == gen {
			s.summaries.Set(key, sum)
		}
		s.summaryMu.Unlock()
	}
	return sum, nil
}

func (s *ExpenseService) generation() uint64 {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	return s.summaryGen
}

// invalidate must run after the store write it follows.
func (s *ExpenseService) invalidate(b core.Bucket) {
	if s.summaries == nil {
		return
	}
	s.summaryMu.Lock()
	s.summaryGen++
	s.summaries.Delete(summaryKey(b.Owner, b.Year, b.Month))
	s.summaryMu.Unlock()
}

func (s *ExpenseService) publish(ctx context.Context, evt *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, evt); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(evt.Type), "error").Inc()
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"type", evt.Type,
			"expense_id", evt.ExpenseID,
			"error", err)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(evt.Type), "ok").Inc()
}
