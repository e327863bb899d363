package mongostore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"finassist/internal/core"
	"finassist/internal/storage"
)

func TestExpenseQuery(t *testing.T) {
	from, until := core.MonthWindow(2025, 5)

	q := expenseQuery(storage.ExpenseFilter{Owner: "u1", Category: core.Food, From: from, Until: until})
	assert.Equal(t, "u1", q["owner"])
	assert.Equal(t, "Food", q["category"])
	window, ok := q["occurred_on"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, from, window["$gte"])
	assert.Equal(t, until, window["$lt"])

	open := expenseQuery(storage.ExpenseFilter{Owner: "u1"})
	assert.Equal(t, bson.M{"owner": "u1"}, open)
}

func TestSumPipeline(t *testing.T) {
	p := sumPipeline(storage.ExpenseFilter{Owner: "u1"})
	require.Len(t, p, 2)
	assert.Equal(t, "$match", p[0][0].Key)
	assert.Equal(t, "$group", p[1][0].Key)
}

func TestBudgetQuery(t *testing.T) {
	q := budgetQuery(storage.BudgetFilter{Owner: "u1", Month: 5, Year: 2025, ActiveOnly: true})
	assert.Equal(t, bson.M{"owner": "u1", "month": 5, "year": 2025, "is_active": true}, q)

	key := core.Bucket{Owner: "u1", Category: core.Bills, Month: 2, Year: 2024}
	assert.Equal(t, bson.M{"owner": "u1", "category": "Bills", "month": 2, "year": 2024}, bucketQuery(key))
}

func TestGoalDocRoundTrip(t *testing.T) {
	g := core.Goal{
		ID: "g1", Owner: "u1", Title: "Car", TargetAmount: core.Cents(500000),
		TargetDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), GoalType: core.Car, Status: core.GoalActive,
		Contributions: []core.Contribution{{Amount: core.Cents(2500), Date: time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), Note: "bonus"}},
	}
	g.Recalculate()
	back := toGoalDoc(g).goal()
	assert.Equal(t, g.TargetAmount, back.TargetAmount)
	assert.Equal(t, g.CurrentAmount, back.CurrentAmount)
	require.Len(t, back.Contributions, 1)
	assert.Equal(t, "bonus", back.Contributions[0].Note)
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(mongo.ErrNoDocuments), storage.ErrNotFound)
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	assert.ErrorIs(t, mapErr(dup), storage.ErrConflict)
	other := errors.New("boom")
	assert.Equal(t, other, mapErr(other))
}
