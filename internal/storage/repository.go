package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finassist/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the SQLite implementation of Store.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

var (
	minNanoTime = time.Unix(0, math.MinInt64).UTC()
	maxNanoTime = time.Unix(0, math.MaxInt64).UTC()
)

// toNanos stores the zero time as 0 and clamps instants UnixNano cannot
// represent, so range filters stay ordered. Writes reject such dates with
// checkDate first.
func toNanos(t time.Time) int64 {
	switch {
	case t.IsZero():
		return 0
	case t.Before(minNanoTime):
		return math.MinInt64
	case t.After(maxNanoTime):
		return math.MaxInt64
	}
	return t.UTC().UnixNano()
}

func checkDate(field string, t time.Time) error {
	if err := core.ValidateDate(t); err != nil {
		return &core.ValidationError{Field: field, Err: err}
	}
	return nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// notFound maps sql.ErrNoRows and zero affected rows to ErrNotFound.
func notFound(err error, rows int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func expenseToRow(e core.Expense) Expense {
	return Expense{
		ID:              e.ID,
		Owner:           e.Owner,
		AmountCents:     e.Amount.Cents,
		Category:        string(e.Category),
		Description:     e.Description,
		OccurredOn:      toNanos(e.OccurredOn),
		AutoCategorized: e.AutoCategorized,
		CreatedAt:       toNanos(e.CreatedAt),
		UpdatedAt:       toNanos(e.UpdatedAt),
	}
}

func expenseFromRow(r Expense) core.Expense {
	return core.Expense{
		ID:              r.ID,
		Owner:           r.Owner,
		Amount:          core.Cents(r.AmountCents),
		Category:        core.Category(r.Category),
		Description:     r.Description,
		OccurredOn:      fromNanos(r.OccurredOn),
		AutoCategorized: r.AutoCategorized,
		CreatedAt:       fromNanos(r.CreatedAt),
		UpdatedAt:       fromNanos(r.UpdatedAt),
	}
}

func budgetToRow(b core.Budget) Budget {
	return Budget{
		ID:             b.ID,
		Owner:          b.Owner,
		Category:       string(b.Category),
		Month:          int64(b.Month),
		Year:           int64(b.Year),
		LimitCents:     b.Limit.Cents,
		SpentCents:     b.Spent.Cents,
		AlertThreshold: int64(b.AlertThreshold),
		IsActive:       b.IsActive,
		CreatedAt:      toNanos(b.CreatedAt),
		UpdatedAt:      toNanos(b.UpdatedAt),
	}
}

func budgetFromRow(r Budget) core.Budget {
	return core.Budget{
		ID:             r.ID,
		Owner:          r.Owner,
		Category:       core.Category(r.Category),
		Month:          int(r.Month),
		Year:           int(r.Year),
		Limit:          core.Cents(r.LimitCents),
		Spent:          core.Cents(r.SpentCents),
		AlertThreshold: int(r.AlertThreshold),
		IsActive:       r.IsActive,
		CreatedAt:      fromNanos(r.CreatedAt),
		UpdatedAt:      fromNanos(r.UpdatedAt),
	}
}

func keyParams(k core.Bucket) BudgetKeyParams {
	return BudgetKeyParams{Owner: k.Owner, Category: string(k.Category), Month: int64(k.Month), Year: int64(k.Year)}
}

// expenseWhere renders f as a WHERE clause over the expenses table.
func expenseWhere(f ExpenseFilter) (string, []interface{}) {
	clauses := []string{"owner = ?"}
	args := []interface{}{f.Owner}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(f.Category))
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "occurred_on >= ?")
		args = append(args, toNanos(f.From))
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "occurred_on < ?")
		args = append(args, toNanos(f.Until))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	if err := checkDate("date", e.OccurredOn); err != nil {
		return err
	}
	if err := r.queries.CreateExpense(ctx, expenseToRow(e)); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create expense: %w", err)
	}
	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"owner", e.Owner,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, owner, id string) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, owner, id)
	if err := notFound(err, 1); err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return expenseFromRow(row), nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := checkDate("date", e.OccurredOn); err != nil {
		return err
	}
	n, err := r.queries.UpdateExpense(ctx, expenseToRow(e))
	if err := notFound(err, n); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("update expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, owner, id string) error {
	n, err := r.queries.DeleteExpense(ctx, owner, id)
	if err := notFound(err, n); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ExpenseFilter, p Page) ([]core.Expense, error) {
	where, args := expenseWhere(f)
	query := "SELECT " + expenseColumns + " FROM expenses" + where + " ORDER BY occurred_on DESC, created_at DESC"
	if p.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, p.Offset)
	} else if p.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, p.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		row, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, expenseFromRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CountExpenses(ctx context.Context, f ExpenseFilter) (int, error) {
	where, args := expenseWhere(f)
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM expenses"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) SumExpenses(ctx context.Context, f ExpenseFilter) (core.Money, error) {
	where, args := expenseWhere(f)
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(amount_cents), 0) FROM expenses"+where, args...).Scan(&total); err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Cents(total), nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	if err := r.queries.CreateBudget(ctx, budgetToRow(b)); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, owner, id string) (core.Budget, error) {
	row, err := r.queries.GetBudget(ctx, owner, id)
	if err := notFound(err, 1); err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.Budget{}, err
		}
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return budgetFromRow(row), nil
}

func (r *SQLiteRepository) FindBudget(ctx context.Context, key core.Bucket) (core.Budget, error) {
	row, err := r.queries.GetBudgetByKey(ctx, keyParams(key))
	if err := notFound(err, 1); err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.Budget{}, err
		}
		return core.Budget{}, fmt.Errorf("find budget %s: %w", key, err)
	}
	return budgetFromRow(row), nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	n, err := r.queries.UpdateBudget(ctx, budgetToRow(b))
	if err := notFound(err, n); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("update budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetSpent(ctx context.Context, key core.Bucket, spent core.Money) (bool, error) {
	n, err := r.queries.SetBudgetSpent(ctx, SetBudgetSpentParams{
		BudgetKeyParams: keyParams(key),
		SpentCents:      spent.Cents,
		UpdatedAt:       toNanos(time.Now()),
	})
	if err != nil {
		return false, fmt.Errorf("set spent %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, owner, id string) error {
	n, err := r.queries.DeleteBudget(ctx, owner, id)
	if err := notFound(err, n); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error) {
	clauses := []string{"owner = ?"}
	args := []interface{}{f.Owner}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.Month != 0 {
		clauses = append(clauses, "month = ?")
		args = append(args, f.Month)
	}
	if f.Year != 0 {
		clauses = append(clauses, "year = ?")
		args = append(args, f.Year)
	}
	if f.ActiveOnly {
		clauses = append(clauses, "is_active = 1")
	}
	query := "SELECT " + budgetColumns + " FROM budgets WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY category, year, month"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		row, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, budgetFromRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return out, nil
}

func goalToRow(g core.Goal) Goal {
	return Goal{
		ID:                 g.ID,
		Owner:              g.Owner,
		Title:              g.Title,
		Description:        g.Description,
		TargetAmountCents:  g.TargetAmount.Cents,
		CurrentAmountCents: g.CurrentAmount.Cents,
		TargetDate:         toNanos(g.TargetDate),
		GoalType:           string(g.GoalType),
		Status:             string(g.Status),
		CreatedAt:          toNanos(g.CreatedAt),
		UpdatedAt:          toNanos(g.UpdatedAt),
	}
}

func goalFromRow(r Goal, contribs []GoalContribution) core.Goal {
	g := core.Goal{
		ID:            r.ID,
		Owner:         r.Owner,
		Title:         r.Title,
		Description:   r.Description,
		TargetAmount:  core.Cents(r.TargetAmountCents),
		CurrentAmount: core.Cents(r.CurrentAmountCents),
		TargetDate:    fromNanos(r.TargetDate),
		GoalType:      core.GoalType(r.GoalType),
		Status:        core.GoalStatus(r.Status),
		Contributions: make([]core.Contribution, 0, len(contribs)),
		CreatedAt:     fromNanos(r.CreatedAt),
		UpdatedAt:     fromNanos(r.UpdatedAt),
	}
	for _, c := range contribs {
		g.Contributions = append(g.Contributions, core.Contribution{
			Amount: core.Cents(c.AmountCents),
			Date:   fromNanos(c.ContributedAt),
			Note:   c.Note,
		})
	}
	return g
}

// inTx runs fn inside a transaction, rolling back on error.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func writeContributions(ctx context.Context, q *Queries, g core.Goal) error {
	for i, c := range g.Contributions {
		err := q.CreateGoalContribution(ctx, GoalContribution{
			GoalID:        g.ID,
			Position:      int64(i),
			AmountCents:   c.Amount.Cents,
			ContributedAt: toNanos(c.Date),
			Note:          c.Note,
		})
		if err != nil {
			return fmt.Errorf("insert contribution %d: %w", i, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) error {
	if err := checkDate("targetDate", g.TargetDate); err != nil {
		return err
	}
	return r.inTx(ctx, func(q *Queries) error {
		if err := q.CreateGoal(ctx, goalToRow(g)); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("create goal: %w", err)
		}
		return writeContributions(ctx, q, g)
	})
}

func (r *SQLiteRepository) loadGoal(ctx context.Context, row Goal) (core.Goal, error) {
	contribs, err := r.queries.ListGoalContributions(ctx, row.ID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("list contributions: %w", err)
	}
	return goalFromRow(row, contribs), nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, owner, id string) (core.Goal, error) {
	row, err := r.queries.GetGoal(ctx, owner, id)
	if err := notFound(err, 1); err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.Goal{}, err
		}
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return r.loadGoal(ctx, row)
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, g core.Goal) error {
	if err := checkDate("targetDate", g.TargetDate); err != nil {
		return err
	}
	return r.inTx(ctx, func(q *Queries) error {
		n, err := q.UpdateGoal(ctx, goalToRow(g))
		if err := notFound(err, n); err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("update goal: %w", err)
		}
		if err := q.DeleteGoalContributions(ctx, g.ID); err != nil {
			return fmt.Errorf("clear contributions: %w", err)
		}
		return writeContributions(ctx, q, g)
	})
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, owner, id string) error {
	return r.inTx(ctx, func(q *Queries) error {
		n, err := q.DeleteGoal(ctx, owner, id)
		if err := notFound(err, n); err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("delete goal: %w", err)
		}
		return q.DeleteGoalContributions(ctx, id)
	})
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, f GoalFilter) ([]core.Goal, error) {
	clauses := []string{"owner = ?"}
	args := []interface{}{f.Owner}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.GoalType != "" {
		clauses = append(clauses, "goal_type = ?")
		args = append(args, string(f.GoalType))
	}
	query := "SELECT " + goalColumns + " FROM goals WHERE " + strings.Join(clauses, " AND ") + " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	var goalRows []Goal
	for rows.Next() {
		row, err := scanGoal(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goalRows = append(goalRows, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	// Contributions are loaded after the cursor is released; the pool holds
	// a single connection.
	out := make([]core.Goal, 0, len(goalRows))
	for _, row := range goalRows {
		g, err := r.loadGoal(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
