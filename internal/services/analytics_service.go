package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finassist/internal/core"
	"finassist/internal/storage"
)

const (
	// lookbackMonths bounds the trend-style analytics.
	lookbackMonths = 3

	minRecurringCount = 2
)

var (
	highSpendingFactor = decimal.NewFromFloat(1.5)

	// defaultTipRules apply to all-time category totals.
	defaultTipRules = []TipRule{
		{Category: core.Food, Above: core.Cents(3_000_000), Message: "Try cooking at home to save money"},
		{Category: core.Entertainment, Above: core.Cents(2_000_000), Message: "Reduce streaming subscriptions or outings"},
	}
)

type (
	MonthTotals struct {
		Year       int                   `json:"year"`
		Month      int                   `json:"month"`
		Total      core.Money            `json:"total"`
		Categories []core.CategoryAmount `json:"categories"`
	}

	MonthlyComparison struct {
		Current  MonthTotals `json:"currentExpenses"`
		Previous MonthTotals `json:"previousExpenses"`
	}

	RecurringExpense struct {
		Description string     `json:"description"`
		Count       int        `json:"count"`
		Total       core.Money `json:"total"`
	}

	HighSpending struct {
		Since      time.Time             `json:"since"`
		Average    core.Money            `json:"average"`
		Categories []core.CategoryAmount `json:"categories"`
	}

	ExpenseIncomeRatio struct {
		TotalExpense core.Money `json:"totalExpense"`
		TotalIncome  core.Money `json:"totalIncome"`
		// Ratio is expense/income as a percentage with two decimals.
		Ratio float64 `json:"expenseIncomeRatio"`
	}

	CategoryAverage struct {
		Category core.Category `json:"category"`
		Average  core.Money    `json:"avgSpent"`
		Count    int           `json:"count"`
	}

	TipRule struct {
		Category core.Category
		Above    core.Money
		Message  string
	}

	Tip struct {
		Category core.Category `json:"category"`
		Message  string        `json:"message"`
	}

	HealthScore struct {
		Score         int        `json:"financialHealthScore"`
		TotalExpenses core.Money `json:"totalExpenses"`
		TotalLimits   core.Money `json:"totalLimits"`
	}
)

// AnalyticsService answers read-only questions over an owner's history.
type AnalyticsService struct {
	expenses storage.ExpenseStore
	budgets  storage.BudgetStore
	tips     []TipRule
	now      func() time.Time
}

func NewAnalyticsService(expenses storage.ExpenseStore, budgets storage.BudgetStore) *AnalyticsService {
	return &AnalyticsService{
		expenses: expenses,
		budgets:  budgets,
		tips:     defaultTipRules,
		now:      time.Now,
	}
}

func (s *AnalyticsService) list(ctx context.Context, f storage.ExpenseFilter) ([]core.Expense, error) {
	items, err := s.expenses.ListExpenses(ctx, f, storage.Page{})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return items, nil
}

func (s *AnalyticsService) monthTotals(ctx context.Context, owner string, year, month int) (MonthTotals, error) {
	from, until := core.MonthWindow(year, month)
	items, err := s.list(ctx, storage.ExpenseFilter{Owner: owner, From: from, Until: until})
	if err != nil {
		return MonthTotals{}, err
	}
	groups := core.GroupByCategory(items)
	if groups == nil {
		groups = []core.CategoryAmount{}
	}
	t := MonthTotals{Year: year, Month: month, Categories: groups}
	for _, g := range groups {
		t.Total = t.Total.Add(g.Amount)
	}
	return t, nil
}

// MonthlyComparison totals the month and the one before it per category.
func (s *AnalyticsService) MonthlyComparison(ctx context.Context, owner string, year, month int) (MonthlyComparison, error) {
	if err := validateMonth(year, month); err != nil {
		return MonthlyComparison{}, err
	}
	py, pm := core.PreviousMonth(year, month)

	var out MonthlyComparison
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.monthTotals(gctx, owner, year, month)
		out.Current = t
		return err
	})
	g.Go(func() error {
		t, err := s.monthTotals(gctx, owner, py, pm)
		out.Previous = t
		return err
	})
	if err := g.Wait(); err != nil {
		return MonthlyComparison{}, err
	}
	return out, nil
}

// RecurringExpenses groups expenses by exact description and keeps those
// seen at least twice, most frequent first.
func (s *AnalyticsService) RecurringExpenses(ctx context.Context, owner string) ([]RecurringExpense, error) {
	items, err := s.list(ctx, storage.ExpenseFilter{Owner: owner})
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int)
	var groups []RecurringExpense
	for _, e := range items {
		i, ok := idx[e.Description]
		if !ok {
			i = len(groups)
			idx[e.Description] = i
			groups = append(groups, RecurringExpense{Description: e.Description})
		}
		groups[i].Count++
		groups[i].Total = groups[i].Total.Add(e.Amount)
	}

	out := []RecurringExpense{}
	for _, g := range groups {
		if g.Count >= minRecurringCount {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Description < out[j].Description
	})
	return out, nil
}

func (s *AnalyticsService) since() time.Time {
	return s.now().UTC().AddDate(0, -lookbackMonths, 0)
}

// HighSpending flags categories whose recent total exceeds 1.5x the average
// category total.
func (s *AnalyticsService) HighSpending(ctx context.Context, owner string) (HighSpending, error) {
	since := s.since()
	items, err := s.list(ctx, storage.ExpenseFilter{Owner: owner, From: since})
	if err != nil {
		return HighSpending{}, err
	}
	out := HighSpending{Since: since, Categories: []core.CategoryAmount{}}
	groups := core.GroupByCategory(items)
	if len(groups) == 0 {
		return out, nil
	}

	var total core.Money
	for _, g := range groups {
		total = total.Add(g.Amount)
	}
	out.Average = core.Average(total, len(groups))

	// Compare against the exact mean, not the rounded one.
	cutoff := total.Decimal().Div(decimal.NewFromInt(int64(len(groups)))).Mul(highSpendingFactor)
	for _, g := range groups {
		if g.Amount.Decimal().GreaterThan(cutoff) {
			out.Categories = append(out.Categories, g)
		}
	}
	return out, nil
}

// ExpenseIncomeRatio compares this month's spend with the sum of its budget
// limits, which stands in for income.
func (s *AnalyticsService) ExpenseIncomeRatio(ctx context.Context, owner string) (ExpenseIncomeRatio, error) {
	now := s.now().UTC()
	year, month := now.Year(), int(now.Month())
	from, until := core.MonthWindow(year, month)

	spent, err := s.expenses.SumExpenses(ctx, storage.ExpenseFilter{Owner: owner, From: from, Until: until})
	if err != nil {
		return ExpenseIncomeRatio{}, fmt.Errorf("sum expenses: %w", err)
	}
	income, err := s.totalLimits(ctx, storage.BudgetFilter{Owner: owner, Month: month, Year: year})
	if err != nil {
		return ExpenseIncomeRatio{}, err
	}
	return ExpenseIncomeRatio{
		TotalExpense: spent,
		TotalIncome:  income,
		Ratio:        core.Percent(spent, income, 2).InexactFloat64(),
	}, nil
}

func (s *AnalyticsService) totalLimits(ctx context.Context, f storage.BudgetFilter) (core.Money, error) {
	budgets, err := s.budgets.ListBudgets(ctx, f)
	if err != nil {
		return core.Money{}, fmt.Errorf("list budgets: %w", err)
	}
	var total core.Money
	for _, b := range budgets {
		total = total.Add(b.Limit)
	}
	return total, nil
}

// BudgetOptimization reports the average expense amount per category over
// the last three months.
func (s *AnalyticsService) BudgetOptimization(ctx context.Context, owner string) ([]CategoryAverage, error) {
	items, err := s.list(ctx, storage.ExpenseFilter{Owner: owner, From: s.since()})
	if err != nil {
		return nil, err
	}
	out := []CategoryAverage{}
	for _, g := range core.GroupByCategory(items) {
		out = append(out, CategoryAverage{Category: g.Category, Average: core.Average(g.Amount, g.Count), Count: g.Count})
	}
	return out, nil
}

func (s *AnalyticsService) SmartTips(ctx context.Context, owner string) ([]Tip, error) {
	items, err := s.list(ctx, storage.ExpenseFilter{Owner: owner})
	if err != nil {
		return nil, err
	}
	totals := make(map[core.Category]core.Money)
	for _, g := range core.GroupByCategory(items) {
		totals[g.Category] = g.Amount
	}
	tips := []Tip{}
	for _, r := range s.tips {
		if totals[r.Category].Cents > r.Above.Cents {
			tips = append(tips, Tip{Category: r.Category, Message: r.Message})
		}
	}
	return tips, nil
}

// FinancialHealthScore grades all-time spend against all-time budget limits.
func (s *AnalyticsService) FinancialHealthScore(ctx context.Context, owner string) (HealthScore, error) {
	spent, err := s.expenses.SumExpenses(ctx, storage.ExpenseFilter{Owner: owner})
	if err != nil {
		return HealthScore{}, fmt.Errorf("sum expenses: %w", err)
	}
	limits, err := s.totalLimits(ctx, storage.BudgetFilter{Owner: owner})
	if err != nil {
		return HealthScore{}, err
	}
	return HealthScore{
		Score:         healthScore(spent, limits),
		TotalExpenses: spent,
		TotalLimits:   limits,
	}, nil
}

func healthScore(spent, limits core.Money) int {
	if limits.Cents <= 0 {
		return 100
	}
	ratio := decimal.NewFromInt(spent.Cents).Div(decimal.NewFromInt(limits.Cents))
	switch {
	case ratio.GreaterThan(decimal.NewFromInt(1)):
		return 20
	case ratio.GreaterThan(decimal.RequireFromString("0.8")):
		return 50
	case ratio.GreaterThan(decimal.RequireFromString("0.6")):
		return 70
	case ratio.GreaterThan(decimal.RequireFromString("0.4")):
		return 85
	default:
		return 100
	}
}
