package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finassist/internal/core"
)

type EventType string

const (
	ExpenseCreated EventType = "expense.created"
	ExpenseUpdated EventType = "expense.updated"
	ExpenseDeleted EventType = "expense.deleted"
)

// ExpenseEvent announces an expense mutation. Buckets lists every budget
// bucket the mutation touched: one for create and delete, the old and new
// bucket for an update that moved the expense.
type ExpenseEvent struct {
	Type        EventType     `json:"type"`
	ExpenseID   string        `json:"expense_id"`
	Owner       string        `json:"owner"`
	AmountCents int64         `json:"amount_cents"`
	Category    core.Category `json:"category"`
	Description string        `json:"description"`
	OccurredOn  time.Time     `json:"occurred_on"`
	Buckets     []core.Bucket `json:"buckets"`
	Timestamp   time.Time     `json:"timestamp"`
}

// NewExpenseEvent builds an event for e touching the given buckets.
func NewExpenseEvent(t EventType, e core.Expense, buckets ...core.Bucket) *ExpenseEvent {
	return &ExpenseEvent{
		Type:        t,
		ExpenseID:   e.ID,
		Owner:       e.Owner,
		AmountCents: e.Amount.Cents,
		Category:    e.Category,
		Description: e.Description,
		OccurredOn:  e.OccurredOn,
		Buckets:     buckets,
		Timestamp:   time.Now(),
	}
}

// Expense reconstructs the expense snapshot carried by the event.
func (m *ExpenseEvent) Expense() core.Expense {
	return core.Expense{
		ID:          m.ExpenseID,
		Owner:       m.Owner,
		Amount:      core.Cents(m.AmountCents),
		Category:    m.Category,
		Description: m.Description,
		OccurredOn:  m.OccurredOn,
	}
}

func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case ExpenseCreated, ExpenseUpdated, ExpenseDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
