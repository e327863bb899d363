package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Expense struct {
	ID              string
	Owner           string
	AmountCents     int64
	Category        string
	Description     string
	OccurredOn      int64
	AutoCategorized bool
	CreatedAt       int64
	UpdatedAt       int64
}

type Budget struct {
	ID             string
	Owner          string
	Category       string
	Month          int64
	Year           int64
	LimitCents     int64
	SpentCents     int64
	AlertThreshold int64
	IsActive       bool
	CreatedAt      int64
	UpdatedAt      int64
}

type Goal struct {
	ID                 string
	Owner              string
	Title              string
	Description        string
	TargetAmountCents  int64
	CurrentAmountCents int64
	TargetDate         int64
	GoalType           string
	Status             string
	CreatedAt          int64
	UpdatedAt          int64
}

type GoalContribution struct {
	GoalID        string
	Position      int64
	AmountCents   int64
	ContributedAt int64
	Note          string
}

const expenseColumns = `id, owner, amount_cents, category, description, occurred_on, auto_categorized, created_at, updated_at`

const budgetColumns = `id, owner, category, month, year, limit_cents, spent_cents, alert_threshold, is_active, created_at, updated_at`

const goalColumns = `id, owner, title, description, target_amount_cents, current_amount_cents, target_date, goal_type, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(row rowScanner) (Expense, error) {
	var i Expense
	err := row.Scan(
		&i.ID,
		&i.Owner,
		&i.AmountCents,
		&i.Category,
		&i.Description,
		&i.OccurredOn,
		&i.AutoCategorized,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanBudget(row rowScanner) (Budget, error) {
	var i Budget
	err := row.Scan(
		&i.ID,
		&i.Owner,
		&i.Category,
		&i.Month,
		&i.Year,
		&i.LimitCents,
		&i.SpentCents,
		&i.AlertThreshold,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanGoal(row rowScanner) (Goal, error) {
	var i Goal
	err := row.Scan(
		&i.ID,
		&i.Owner,
		&i.Title,
		&i.Description,
		&i.TargetAmountCents,
		&i.CurrentAmountCents,
		&i.TargetDate,
		&i.GoalType,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createExpense = `-- name: CreateExpense :exec
INSERT INTO expenses (` + expenseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateExpense(ctx context.Context, arg Expense) error {
	_, err := q.db.ExecContext(ctx, createExpense,
		arg.ID,
		arg.Owner,
		arg.AmountCents,
		arg.Category,
		arg.Description,
		arg.OccurredOn,
		arg.AutoCategorized,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getExpense = `-- name: GetExpense :one
SELECT ` + expenseColumns + ` FROM expenses WHERE owner = ? AND id = ?`

func (q *Queries) GetExpense(ctx context.Context, owner, id string) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, owner, id))
}

const updateExpense = `-- name: UpdateExpense :execrows
UPDATE expenses
SET amount_cents = ?, category = ?, description = ?, occurred_on = ?, auto_categorized = ?, updated_at = ?
WHERE owner = ? AND id = ?`

func (q *Queries) UpdateExpense(ctx context.Context, arg Expense) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateExpense,
		arg.AmountCents,
		arg.Category,
		arg.Description,
		arg.OccurredOn,
		arg.AutoCategorized,
		arg.UpdatedAt,
		arg.Owner,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpense = `-- name: DeleteExpense :execrows
DELETE FROM expenses WHERE owner = ? AND id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, owner, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, owner, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createBudget = `-- name: CreateBudget :exec
INSERT INTO budgets (` + budgetColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateBudget(ctx context.Context, arg Budget) error {
	_, err := q.db.ExecContext(ctx, createBudget,
		arg.ID,
		arg.Owner,
		arg.Category,
		arg.Month,
		arg.Year,
		arg.LimitCents,
		arg.SpentCents,
		arg.AlertThreshold,
		arg.IsActive,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getBudget = `-- name: GetBudget :one
SELECT ` + budgetColumns + ` FROM budgets WHERE owner = ? AND id = ?`

func (q *Queries) GetBudget(ctx context.Context, owner, id string) (Budget, error) {
	return scanBudget(q.db.QueryRowContext(ctx, getBudget, owner, id))
}

const getBudgetByKey = `-- name: GetBudgetByKey :one
SELECT ` + budgetColumns + ` FROM budgets WHERE owner = ? AND category = ? AND month = ? AND year = ?`

type BudgetKeyParams struct {
	Owner    string
	Category string
	Month    int64
	Year     int64
}

func (q *Queries) GetBudgetByKey(ctx context.Context, arg BudgetKeyParams) (Budget, error) {
	return scanBudget(q.db.QueryRowContext(ctx, getBudgetByKey, arg.Owner, arg.Category, arg.Month, arg.Year))
}

const updateBudget = `-- name: UpdateBudget :execrows
UPDATE budgets
SET limit_cents = ?, spent_cents = ?, alert_threshold = ?, is_active = ?, updated_at = ?
WHERE owner = ? AND id = ?`

func (q *Queries) UpdateBudget(ctx context.Context, arg Budget) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateBudget,
		arg.LimitCents,
		arg.SpentCents,
		arg.AlertThreshold,
		arg.IsActive,
		arg.UpdatedAt,
		arg.Owner,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setBudgetSpent = `-- name: SetBudgetSpent :execrows
UPDATE budgets SET spent_cents = ?, updated_at = ?
WHERE owner = ? AND category = ? AND month = ? AND year = ?`

type SetBudgetSpentParams struct {
	BudgetKeyParams
	SpentCents int64
	UpdatedAt  int64
}

func (q *Queries) SetBudgetSpent(ctx context.Context, arg SetBudgetSpentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setBudgetSpent,
		arg.SpentCents,
		arg.UpdatedAt,
		arg.Owner,
		arg.Category,
		arg.Month,
		arg.Year,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteBudget = `-- name: DeleteBudget :execrows
DELETE FROM budgets WHERE owner = ? AND id = ?`

func (q *Queries) DeleteBudget(ctx context.Context, owner, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteBudget, owner, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createGoal = `-- name: CreateGoal :exec
INSERT INTO goals (` + goalColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateGoal(ctx context.Context, arg Goal) error {
	_, err := q.db.ExecContext(ctx, createGoal,
		arg.ID,
		arg.Owner,
		arg.Title,
		arg.Description,
		arg.TargetAmountCents,
		arg.CurrentAmountCents,
		arg.TargetDate,
		arg.GoalType,
		arg.Status,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getGoal = `-- name: GetGoal :one
SELECT ` + goalColumns + ` FROM goals WHERE owner = ? AND id = ?`

func (q *Queries) GetGoal(ctx context.Context, owner, id string) (Goal, error) {
	return scanGoal(q.db.QueryRowContext(ctx, getGoal, owner, id))
}

const updateGoal = `-- name: UpdateGoal :execrows
UPDATE goals
SET title = ?, description = ?, target_amount_cents = ?, current_amount_cents = ?, target_date = ?,
    goal_type = ?, status = ?, updated_at = ?
WHERE owner = ? AND id = ?`

func (q *Queries) UpdateGoal(ctx context.Context, arg Goal) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateGoal,
		arg.Title,
		arg.Description,
		arg.TargetAmountCents,
		arg.CurrentAmountCents,
		arg.TargetDate,
		arg.GoalType,
		arg.Status,
		arg.UpdatedAt,
		arg.Owner,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteGoal = `-- name: DeleteGoal :execrows
DELETE FROM goals WHERE owner = ? AND id = ?`

func (q *Queries) DeleteGoal(ctx context.Context, owner, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteGoal, owner, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createGoalContribution = `-- name: CreateGoalContribution :exec
INSERT INTO goal_contributions (goal_id, position, amount_cents, contributed_at, note) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateGoalContribution(ctx context.Context, arg GoalContribution) error {
	_, err := q.db.ExecContext(ctx, createGoalContribution,
		arg.GoalID,
		arg.Position,
		arg.AmountCents,
		arg.ContributedAt,
		arg.Note,
	)
	return err
}

const deleteGoalContributions = `-- name: DeleteGoalContributions :exec
DELETE FROM goal_contributions WHERE goal_id = ?`

func (q *Queries) DeleteGoalContributions(ctx context.Context, goalID string) error {
	_, err := q.db.ExecContext(ctx, deleteGoalContributions, goalID)
	return err
}

const listGoalContributions = `-- name: ListGoalContributions :many
SELECT goal_id, position, amount_cents, contributed_at, note
FROM goal_contributions WHERE goal_id = ? ORDER BY position`

func (q *Queries) ListGoalContributions(ctx context.Context, goalID string) ([]GoalContribution, error) {
	rows, err := q.db.QueryContext(ctx, listGoalContributions, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GoalContribution
	for rows.Next() {
		var i GoalContribution
		if err := rows.Scan(&i.GoalID, &i.Position, &i.AmountCents, &i.ContributedAt, &i.Note); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
