// Package mongostore implements storage.Store on MongoDB. Expenses, budgets
// and goals live in one collection each; goal contributions are embedded.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"finassist/internal/core"
	"finassist/internal/storage"
)

const (
	expensesCollection = "expenses"
	budgetsCollection  = "budgets"
	goalsCollection    = "goals"
)

type Store struct {
	client   *mongo.Client
	expenses *mongo.Collection
	budgets  *mongo.Collection
	goals    *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

type (
	expenseDoc struct {
		ID              string    `bson:"_id"`
		Owner           string    `bson:"owner"`
		AmountCents     int64     `bson:"amount_cents"`
		Category        string    `bson:"category"`
		Description     string    `bson:"description"`
		OccurredOn      time.Time `bson:"occurred_on"`
		AutoCategorized bool      `bson:"auto_categorized"`
		CreatedAt       time.Time `bson:"created_at"`
		UpdatedAt       time.Time `bson:"updated_at"`
	}

	budgetDoc struct {
		ID             string    `bson:"_id"`
		Owner          string    `bson:"owner"`
		Category       string    `bson:"category"`
		Month          int       `bson:"month"`
		Year           int       `bson:"year"`
		LimitCents     int64     `bson:"limit_cents"`
		SpentCents     int64     `bson:"spent_cents"`
		AlertThreshold int       `bson:"alert_threshold"`
		IsActive       bool      `bson:"is_active"`
		CreatedAt      time.Time `bson:"created_at"`
		UpdatedAt      time.Time `bson:"updated_at"`
	}

	contributionDoc struct {
		AmountCents int64     `bson:"amount_cents"`
		Date        time.Time `bson:"date"`
		Note        string    `bson:"note,omitempty"`
	}

	goalDoc struct {
		ID                 string            `bson:"_id"`
		Owner              string            `bson:"owner"`
		Title              string            `bson:"title"`
		Description        string            `bson:"description"`
		TargetAmountCents  int64             `bson:"target_amount_cents"`
		CurrentAmountCents int64             `bson:"current_amount_cents"`
		TargetDate         time.Time         `bson:"target_date"`
		GoalType           string            `bson:"goal_type"`
		Status             string            `bson:"status"`
		Contributions      []contributionDoc `bson:"contributions"`
		CreatedAt          time.Time         `bson:"created_at"`
		UpdatedAt          time.Time         `bson:"updated_at"`
	}
)

// Open connects to uri, verifies the connection and ensures indexes.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		expenses: db.Collection(expensesCollection),
		budgets:  db.Collection(budgetsCollection),
		goals:    db.Collection(goalsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	slog.InfoContext(ctx, "MongoDB store ready", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.budgets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "category", Value: 1}, {Key: "month", Value: 1}, {Key: "year", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("budget_bucket"),
	})
	if err != nil {
		return fmt.Errorf("create budget index: %w", err)
	}
	_, err = s.expenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "category", Value: 1}, {Key: "occurred_on", Value: -1}},
		Options: options.Index().SetName("expense_bucket"),
	})
	if err != nil {
		return fmt.Errorf("create expense index: %w", err)
	}
	_, err = s.goals.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("goal_owner_created"),
	})
	if err != nil {
		return fmt.Errorf("create goal index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return storage.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return storage.ErrConflict
	}
	return err
}

func byOwnerID(owner, id string) bson.M {
	return bson.M{"_id": id, "owner": owner}
}

// expenseQuery renders f as a find filter.
func expenseQuery(f storage.ExpenseFilter) bson.M {
	q := bson.M{"owner": f.Owner}
	if f.Category != "" {
		q["category"] = string(f.Category)
	}
	window := bson.M{}
	if !f.From.IsZero() {
		window["$gte"] = f.From.UTC()
	}
	if !f.Until.IsZero() {
		window["$lt"] = f.Until.UTC()
	}
	if len(window) > 0 {
		q["occurred_on"] = window
	}
	return q
}

// sumPipeline totals amount_cents over the expenses matching f.
func sumPipeline(f storage.ExpenseFilter) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: expenseQuery(f)}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount_cents"}}}},
	}
}

func budgetQuery(f storage.BudgetFilter) bson.M {
	q := bson.M{"owner": f.Owner}
	if f.Category != "" {
		q["category"] = string(f.Category)
	}
	if f.Month != 0 {
		q["month"] = f.Month
	}
	if f.Year != 0 {
		q["year"] = f.Year
	}
	if f.ActiveOnly {
		q["is_active"] = true
	}
	return q
}

func bucketQuery(key core.Bucket) bson.M {
	return bson.M{"owner": key.Owner, "category": string(key.Category), "month": key.Month, "year": key.Year}
}

func goalQuery(f storage.GoalFilter) bson.M {
	q := bson.M{"owner": f.Owner}
	if f.Status != "" {
		q["status"] = string(f.Status)
	}
	if f.GoalType != "" {
		q["goal_type"] = string(f.GoalType)
	}
	return q
}

func toExpenseDoc(e core.Expense) expenseDoc {
	return expenseDoc{
		ID:              e.ID,
		Owner:           e.Owner,
		AmountCents:     e.Amount.Cents,
		Category:        string(e.Category),
		Description:     e.Description,
		OccurredOn:      e.OccurredOn.UTC(),
		AutoCategorized: e.AutoCategorized,
		CreatedAt:       e.CreatedAt.UTC(),
		UpdatedAt:       e.UpdatedAt.UTC(),
	}
}

func (d expenseDoc) expense() core.Expense {
	return core.Expense{
		ID:              d.ID,
		Owner:           d.Owner,
		Amount:          core.Cents(d.AmountCents),
		Category:        core.Category(d.Category),
		Description:     d.Description,
		OccurredOn:      d.OccurredOn.UTC(),
		AutoCategorized: d.AutoCategorized,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

func toBudgetDoc(b core.Budget) budgetDoc {
	return budgetDoc{
		ID:             b.ID,
		Owner:          b.Owner,
		Category:       string(b.Category),
		Month:          b.Month,
		Year:           b.Year,
		LimitCents:     b.Limit.Cents,
		SpentCents:     b.Spent.Cents,
		AlertThreshold: b.AlertThreshold,
		IsActive:       b.IsActive,
		CreatedAt:      b.CreatedAt.UTC(),
		UpdatedAt:      b.UpdatedAt.UTC(),
	}
}

func (d budgetDoc) budget() core.Budget {
	return core.Budget{
		ID:             d.ID,
		Owner:          d.Owner,
		Category:       core.Category(d.Category),
		Month:          d.Month,
		Year:           d.Year,
		Limit:          core.Cents(d.LimitCents),
		Spent:          core.Cents(d.SpentCents),
		AlertThreshold: d.AlertThreshold,
		IsActive:       d.IsActive,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func toGoalDoc(g core.Goal) goalDoc {
	d := goalDoc{
		ID:                 g.ID,
		Owner:              g.Owner,
		Title:              g.Title,
		Description:        g.Description,
		TargetAmountCents:  g.TargetAmount.Cents,
		CurrentAmountCents: g.CurrentAmount.Cents,
		TargetDate:         g.TargetDate.UTC(),
		GoalType:           string(g.GoalType),
		Status:             string(g.Status),
		Contributions:      make([]contributionDoc, 0, len(g.Contributions)),
		CreatedAt:          g.CreatedAt.UTC(),
		UpdatedAt:          g.UpdatedAt.UTC(),
	}
	for _, c := range g.Contributions {
		d.Contributions = append(d.Contributions, contributionDoc{AmountCents: c.Amount.Cents, Date: c.Date.UTC(), Note: c.Note})
	}
	return d
}

func (d goalDoc) goal() core.Goal {
	g := core.Goal{
		ID:            d.ID,
		Owner:         d.Owner,
		Title:         d.Title,
		Description:   d.Description,
		TargetAmount:  core.Cents(d.TargetAmountCents),
		CurrentAmount: core.Cents(d.CurrentAmountCents),
		TargetDate:    d.TargetDate.UTC(),
		GoalType:      core.GoalType(d.GoalType),
		Status:        core.GoalStatus(d.Status),
		Contributions: make([]core.Contribution, 0, len(d.Contributions)),
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	for _, c := range d.Contributions {
		g.Contributions = append(g.Contributions, core.Contribution{Amount: core.Cents(c.AmountCents), Date: c.Date.UTC(), Note: c.Note})
	}
	return g
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) error {
	if _, err := s.expenses.InsertOne(ctx, toExpenseDoc(e)); err != nil {
		if err := mapErr(err); errors.Is(err, storage.ErrConflict) {
			return err
		}
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (s *Store) GetExpense(ctx context.Context, owner, id string) (core.Expense, error) {
	var d expenseDoc
	if err := s.expenses.FindOne(ctx, byOwnerID(owner, id)).Decode(&d); err != nil {
		return core.Expense{}, mapErr(err)
	}
	return d.expense(), nil
}

func (s *Store) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := s.expenses.ReplaceOne(ctx, byOwnerID(e.Owner, e.ID), toExpenseDoc(e))
	if err != nil {
		return fmt.Errorf("replace expense: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, owner, id string) error {
	res, err := s.expenses.DeleteOne(ctx, byOwnerID(owner, id))
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListExpenses(ctx context.Context, f storage.ExpenseFilter, p storage.Page) ([]core.Expense, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_on", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(int64(p.Offset))
	if p.Limit > 0 {
		opts.SetLimit(int64(p.Limit))
	}
	cur, err := s.expenses.Find(ctx, expenseQuery(f), opts)
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}
	var docs []expenseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.expense())
	}
	return out, nil
}

func (s *Store) CountExpenses(ctx context.Context, f storage.ExpenseFilter) (int, error) {
	n, err := s.expenses.CountDocuments(ctx, expenseQuery(f))
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return int(n), nil
}

func (s *Store) SumExpenses(ctx context.Context, f storage.ExpenseFilter) (core.Money, error) {
	cur, err := s.expenses.Aggregate(ctx, sumPipeline(f))
	if err != nil {
		return core.Money{}, fmt.Errorf("aggregate expenses: %w", err)
	}
	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return core.Money{}, fmt.Errorf("decode sum: %w", err)
	}
	if len(rows) == 0 {
		return core.Money{}, nil
	}
	return core.Cents(rows[0].Total), nil
}

func (s *Store) CreateBudget(ctx context.Context, b core.Budget) error {
	if _, err := s.budgets.InsertOne(ctx, toBudgetDoc(b)); err != nil {
		if err := mapErr(err); errors.Is(err, storage.ErrConflict) {
			return err
		}
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (s *Store) GetBudget(ctx context.Context, owner, id string) (core.Budget, error) {
	var d budgetDoc
	if err := s.budgets.FindOne(ctx, byOwnerID(owner, id)).Decode(&d); err != nil {
		return core.Budget{}, mapErr(err)
	}
	return d.budget(), nil
}

func (s *Store) FindBudget(ctx context.Context, key core.Bucket) (core.Budget, error) {
	var d budgetDoc
	if err := s.budgets.FindOne(ctx, bucketQuery(key)).Decode(&d); err != nil {
		return core.Budget{}, mapErr(err)
	}
	return d.budget(), nil
}

func (s *Store) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := s.budgets.ReplaceOne(ctx, byOwnerID(b.Owner, b.ID), toBudgetDoc(b))
	if err != nil {
		if err := mapErr(err); errors.Is(err, storage.ErrConflict) {
			return err
		}
		return fmt.Errorf("replace budget: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) SetSpent(ctx context.Context, key core.Bucket, spent core.Money) (bool, error) {
	update := bson.M{"$set": bson.M{"spent_cents": spent.Cents, "updated_at": time.Now().UTC()}}
	res, err := s.budgets.UpdateOne(ctx, bucketQuery(key), update)
	if err != nil {
		return false, fmt.Errorf("set spent %s: %w", key, err)
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) DeleteBudget(ctx context.Context, owner, id string) error {
	res, err := s.budgets.DeleteOne(ctx, byOwnerID(owner, id))
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListBudgets(ctx context.Context, f storage.BudgetFilter) ([]core.Budget, error) {
	opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "year", Value: 1}, {Key: "month", Value: 1}})
	cur, err := s.budgets.Find(ctx, budgetQuery(f), opts)
	if err != nil {
		return nil, fmt.Errorf("find budgets: %w", err)
	}
	var docs []budgetDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode budgets: %w", err)
	}
	out := make([]core.Budget, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.budget())
	}
	return out, nil
}

func (s *Store) CreateGoal(ctx context.Context, g core.Goal) error {
	if _, err := s.goals.InsertOne(ctx, toGoalDoc(g)); err != nil {
		if err := mapErr(err); errors.Is(err, storage.ErrConflict) {
			return err
		}
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (s *Store) GetGoal(ctx context.Context, owner, id string) (core.Goal, error) {
	var d goalDoc
	if err := s.goals.FindOne(ctx, byOwnerID(owner, id)).Decode(&d); err != nil {
		return core.Goal{}, mapErr(err)
	}
	return d.goal(), nil
}

func (s *Store) UpdateGoal(ctx context.Context, g core.Goal) error {
	res, err := s.goals.ReplaceOne(ctx, byOwnerID(g.Owner, g.ID), toGoalDoc(g))
	if err != nil {
		return fmt.Errorf("replace goal: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, owner, id string) error {
	res, err := s.goals.DeleteOne(ctx, byOwnerID(owner, id))
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListGoals(ctx context.Context, f storage.GoalFilter) ([]core.Goal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.goals.Find(ctx, goalQuery(f), opts)
	if err != nil {
		return nil, fmt.Errorf("find goals: %w", err)
	}
	var docs []goalDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	out := make([]core.Goal, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.goal())
	}
	return out, nil
}
