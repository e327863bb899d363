package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"finassist/internal/core"
	"finassist/internal/storage"
)

type (
	GoalInput struct {
		Title        string
		Description  string
		TargetAmount core.Money
		TargetDate   time.Time
		GoalType     string
	}

	GoalPatch struct {
		Title        *string
		Description  *string
		TargetAmount *core.Money
		TargetDate   *time.Time
		GoalType     *string
		Status       *string
	}

	ContributionInput struct {
		Amount core.Money
		Note   string
	}
)

type GoalService struct {
	store storage.GoalStore
	now   func() time.Time
	newID func() string
}

func NewGoalService(store storage.GoalStore) *GoalService {
	return &GoalService{store: store, now: time.Now, newID: uuid.NewString}
}

func (s *GoalService) CreateGoal(ctx context.Context, owner string, in GoalInput) (core.Goal, error) {
	gt, err := core.ParseGoalType(in.GoalType)
	if err != nil {
		return core.Goal{}, &core.ValidationError{Field: "goalType", Err: err}
	}
	now := s.now().UTC()
	g := core.Goal{
		ID:            s.newID(),
		Owner:         owner,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		TargetAmount:  in.TargetAmount,
		TargetDate:    in.TargetDate.UTC(),
		GoalType:      gt,
		Status:        core.GoalActive,
		Contributions: []core.Contribution{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.Recalculate()

	if err := s.store.CreateGoal(ctx, g); err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal created", "goal_id", g.ID, "owner", owner, "goal_type", g.GoalType)
	return g, nil
}

func (s *GoalService) GetGoal(ctx context.Context, owner, id string) (core.Goal, error) {
	return s.store.GetGoal(ctx, owner, id)
}

func (s *GoalService) ListGoals(ctx context.Context, f storage.GoalFilter) ([]core.Goal, error) {
	goals, err := s.store.ListGoals(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	if goals == nil {
		goals = []core.Goal{}
	}
	return goals, nil
}

func (s *GoalService) UpdateGoal(ctx context.Context, owner, id string, patch GoalPatch) (core.Goal, error) {
	g, err := s.store.GetGoal(ctx, owner, id)
	if err != nil {
		return core.Goal{}, err
	}
	if patch.Title != nil {
		g.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		g.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.TargetAmount != nil {
		g.TargetAmount = *patch.TargetAmount
	}
	if patch.TargetDate != nil {
		g.TargetDate = patch.TargetDate.UTC()
	}
	if patch.GoalType != nil {
		gt, err := core.ParseGoalType(*patch.GoalType)
		if err != nil {
			return core.Goal{}, &core.ValidationError{Field: "goalType", Err: err}
		}
		g.GoalType = gt
	}
	if patch.Status != nil {
		st, err := core.ParseGoalStatus(*patch.Status)
		if err != nil {
			return core.Goal{}, &core.ValidationError{Field: "status", Err: err}
		}
		g.Status = st
	}
	return s.save(ctx, g)
}

func (s *GoalService) save(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.Recalculate()
	g.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateGoal(ctx, g); err != nil {
		return core.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	return g, nil
}

func (s *GoalService) DeleteGoal(ctx context.Context, owner, id string) error {
	return s.store.DeleteGoal(ctx, owner, id)
}

// AddContribution records a contribution dated now. Completed goals refuse
// further contributions.
func (s *GoalService) AddContribution(ctx context.Context, owner, id string, in ContributionInput) (core.Goal, error) {
	if err := in.Amount.Validate(); err != nil {
		return core.Goal{}, &core.ValidationError{Field: "amount", Err: err}
	}
	g, err := s.store.GetGoal(ctx, owner, id)
	if err != nil {
		return core.Goal{}, err
	}
	if g.Status == core.GoalCompleted {
		return core.Goal{}, core.ErrGoalCompleted
	}
	g.Contributions = append(g.Contributions, core.Contribution{
		Amount: in.Amount,
		Date:   s.now().UTC(),
		Note:   strings.TrimSpace(in.Note),
	})

	g, err = s.save(ctx, g)
	if err != nil {
		return core.Goal{}, err
	}
	slog.InfoContext(ctx, "Goal contribution added",
		"goal_id", g.ID,
		"amount_cents", in.Amount.Cents,
		"status", g.Status)
	return g, nil
}

func (s *GoalService) Progress(ctx context.Context, owner, id string) (core.GoalProgress, error) {
	g, err := s.store.GetGoal(ctx, owner, id)
	if err != nil {
		return core.GoalProgress{}, err
	}
	return core.ProgressOf(g, s.now()), nil
}

// Reminders returns at most one nudge per active goal.
func (s *GoalService) Reminders(ctx context.Context, owner string) ([]core.Reminder, error) {
	goals, err := s.store.ListGoals(ctx, storage.GoalFilter{Owner: owner, Status: core.GoalActive})
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	now := s.now()
	out := []core.Reminder{}
	for _, g := range goals {
		if r, ok := core.ReminderFor(g, now); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *GoalService) Dashboard(ctx context.Context, owner string) (core.GoalsDashboard, error) {
	goals, err := s.store.ListGoals(ctx, storage.GoalFilter{Owner: owner})
	if err != nil {
		return core.GoalsDashboard{}, fmt.Errorf("list goals: %w", err)
	}
	return core.Dashboard(goals, s.now()), nil
}
