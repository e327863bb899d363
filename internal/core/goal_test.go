package core

import (
	"strings"
	"testing"
	"time"
)

var goalNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newGoal(target int64, targetDate time.Time) Goal {
	return Goal{
		ID:           "g1",
		Owner:        "u1",
		Title:        "Trip",
		TargetAmount: Cents(target),
		TargetDate:   targetDate,
		GoalType:     Vacation,
		Status:       GoalActive,
	}
}

func TestGoalRecalculateCompletes(t *testing.T) {
	g := newGoal(10000, goalNow.AddDate(0, 3, 0))
	g.Contributions = []Contribution{{Amount: Cents(4000)}, {Amount: Cents(6000)}}
	g.Recalculate()
	if g.CurrentAmount.Cents != 10000 {
		t.Fatalf("current = %d", g.CurrentAmount.Cents)
	}
	if g.Status != GoalCompleted {
		t.Fatalf("expected completed, got %s", g.Status)
	}

	p := newGoal(10000, goalNow)
	p.Status = GoalPaused
	p.Contributions = []Contribution{{Amount: Cents(20000)}}
	p.Recalculate()
	if p.Status != GoalPaused {
		t.Fatalf("paused goal must not auto-complete")
	}
	if p.ProgressPercentage() != 100 {
		t.Fatalf("progress must be capped at 100, got %d", p.ProgressPercentage())
	}
}

func TestGoalValidate(t *testing.T) {
	g := newGoal(10000, goalNow)
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []func(*Goal){
		func(g *Goal) { g.Title = "" },
		func(g *Goal) { g.TargetAmount = Cents(0) },
		func(g *Goal) { g.TargetDate = time.Time{} },
		func(g *Goal) { g.TargetDate = time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC) },
		func(g *Goal) { g.TargetAmount = Cents(MaxAmount + 1) },
		func(g *Goal) { g.GoalType = "Boat" },
		func(g *Goal) { g.Status = "Archived" },
		func(g *Goal) { g.Contributions = []Contribution{{Amount: Cents(-1)}} },
	}
	for i, mod := range bads {
		c := g
		mod(&c)
		if err := c.Validate(); !IsValidation(err) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestProgressOf(t *testing.T) {
	g := newGoal(100000, goalNow.Add(60*day))
	g.Contributions = []Contribution{
		{Amount: Cents(10000), Date: goalNow.Add(-20 * day)},
		{Amount: Cents(15000), Date: goalNow.Add(-2 * day)},
	}
	g.Recalculate()

	p := ProgressOf(g, goalNow)
	if p.RemainingAmount.Cents != 75000 {
		t.Fatalf("remaining = %d", p.RemainingAmount.Cents)
	}
	if p.ProgressPercentage != 25 {
		t.Fatalf("progress = %d", p.ProgressPercentage)
	}
	if p.DaysRemaining != 60 {
		t.Fatalf("days = %d", p.DaysRemaining)
	}
	// 750 over two months.
	if p.MonthlyTarget.Cents != 37500 {
		t.Fatalf("monthly target = %d", p.MonthlyTarget.Cents)
	}
	if !p.Contributions[0].Date.After(p.Contributions[1].Date) {
		t.Fatalf("contributions must be newest first")
	}
	if p.IsOverdue {
		t.Fatalf("goal is not overdue")
	}
}

func TestDaysRemainingRoundsUp(t *testing.T) {
	g := newGoal(100, goalNow.Add(36*time.Hour))
	if d := g.DaysRemaining(goalNow); d != 2 {
		t.Fatalf("days = %d, want 2", d)
	}
	g.TargetDate = goalNow.Add(-36 * time.Hour)
	if d := g.DaysRemaining(goalNow); d != -1 {
		t.Fatalf("days = %d, want -1", d)
	}
}

func TestReminderFor(t *testing.T) {
	t.Run("overdue", func(t *testing.T) {
		g := newGoal(10000, goalNow.Add(-day))
		r, ok := ReminderFor(g, goalNow)
		if !ok || r.Type != ReminderOverdue || r.Severity != SeverityHigh {
			t.Fatalf("unexpected reminder %+v", r)
		}
	})

	t.Run("behind schedule", func(t *testing.T) {
		g := newGoal(100000, goalNow.Add(70*day))
		g.Contributions = []Contribution{{Amount: Cents(10000), Date: goalNow.Add(-day)}}
		g.Recalculate()
		r, ok := ReminderFor(g, goalNow)
		if !ok || r.Type != ReminderBehindSchedule || r.Severity != SeverityMedium {
			t.Fatalf("unexpected reminder %+v", r)
		}
		// 900 over 10 weeks.
		if !strings.Contains(r.Message, "90.00 weekly") {
			t.Fatalf("unexpected message %q", r.Message)
		}
	})

	t.Run("contribution reminder without contributions", func(t *testing.T) {
		g := newGoal(60000, goalNow.Add(180*day))
		r, ok := ReminderFor(g, goalNow)
		if !ok || r.Type != ReminderContributeAgain || r.Severity != SeverityLow {
			t.Fatalf("unexpected reminder %+v", r)
		}
		// 600 over six months.
		if !strings.Contains(r.Message, "Add 100.00") {
			t.Fatalf("unexpected message %q", r.Message)
		}
	})

	t.Run("recent contribution on track", func(t *testing.T) {
		g := newGoal(60000, goalNow.Add(180*day))
		g.Contributions = []Contribution{{Amount: Cents(1000), Date: goalNow.Add(-2 * day)}}
		g.Recalculate()
		if r, ok := ReminderFor(g, goalNow); ok {
			t.Fatalf("no reminder expected, got %+v", r)
		}
	})

	t.Run("stale contribution", func(t *testing.T) {
		g := newGoal(60000, goalNow.Add(180*day))
		g.Contributions = []Contribution{{Amount: Cents(1000), Date: goalNow.Add(-8 * day)}}
		g.Recalculate()
		r, ok := ReminderFor(g, goalNow)
		if !ok || r.Type != ReminderContributeAgain {
			t.Fatalf("unexpected reminder %+v", r)
		}
	})

	t.Run("paused goals are skipped", func(t *testing.T) {
		g := newGoal(10000, goalNow.Add(-day))
		g.Status = GoalPaused
		if _, ok := ReminderFor(g, goalNow); ok {
			t.Fatalf("paused goal must not produce reminders")
		}
	})
}

func TestDashboard(t *testing.T) {
	var goals []Goal
	for i := 0; i < 7; i++ {
		g := newGoal(10000, goalNow.Add(time.Duration(10+i*20)*day))
		g.ID = string(rune('a' + i))
		g.CreatedAt = goalNow.Add(time.Duration(i) * time.Hour)
		goals = append(goals, g)
	}
	goals[0].Status = GoalCompleted
	goals[0].CurrentAmount = Cents(10000)
	goals[1].Status = GoalPaused
	goals[2].CurrentAmount = Cents(4000)
	goals[3].TargetDate = goalNow.Add(5 * day)

	d := Dashboard(goals, goalNow)
	if d.TotalGoals != 7 || d.ActiveGoals != 5 || d.CompletedGoals != 1 || d.PausedGoals != 1 {
		t.Fatalf("unexpected counts %+v", d)
	}
	if d.TotalTargetAmount.Cents != 70000 || d.TotalSavedAmount.Cents != 14000 {
		t.Fatalf("unexpected totals %+v", d)
	}
	if d.OverallProgress != 20 {
		t.Fatalf("overall progress = %d", d.OverallProgress)
	}
	if len(d.RecentGoals) != 5 || d.RecentGoals[0].ID != "g" {
		t.Fatalf("recent goals must be the 5 newest, got %d first=%s", len(d.RecentGoals), d.RecentGoals[0].ID)
	}
	if len(d.UrgentGoals) != 1 || d.UrgentGoals[0].ID != "d" {
		t.Fatalf("expected goal d to be urgent, got %+v", d.UrgentGoals)
	}
}
