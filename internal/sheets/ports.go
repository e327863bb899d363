package sheets

import (
	"context"

	"finassist/internal/core"
)

// ExpenseMirror appends expenses to an external spreadsheet. Mirrors are
// append-only; the document store stays the source of truth.
type ExpenseMirror interface {
	Append(ctx context.Context, e core.Expense) (rowRef string, err error)
}

// Row lays out an expense as spreadsheet cells:
// date, owner, description, amount, category.
func Row(e core.Expense) []any {
	return []any{
		e.OccurredOn.UTC().Format("2006-01-02"),
		e.Owner,
		e.Description,
		e.Amount.String(),
		string(e.Category),
	}
}
