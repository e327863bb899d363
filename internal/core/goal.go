package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EmergencyFund GoalType = "Emergency Fund"
	Vacation      GoalType = "Vacation"
	Car           GoalType = "Car"
	House         GoalType = "House"
	GoalEducation GoalType = "Education"
	Investment    GoalType = "Investment"
	GoalOther     GoalType = "Other"

	GoalActive    GoalStatus = "Active"
	GoalCompleted GoalStatus = "Completed"
	GoalPaused    GoalStatus = "Paused"

	ReminderOverdue         ReminderType = "overdue"
	ReminderBehindSchedule  ReminderType = "behind_schedule"
	ReminderContributeAgain ReminderType = "contribution_reminder"

	day = 24 * time.Hour
)

type (
	GoalType     string
	GoalStatus   string
	ReminderType string

	Contribution struct {
		Amount Money     `json:"amount"`
		Date   time.Time `json:"date"`
		Note   string    `json:"note,omitempty"`
	}

	// Goal is a savings target. CurrentAmount is always the sum of the
	// contributions and is refreshed by Recalculate.
	Goal struct {
		ID            string         `json:"id"`
		Owner         string         `json:"owner"`
		Title         string         `json:"title"`
		Description   string         `json:"description,omitempty"`
		TargetAmount  Money          `json:"targetAmount"`
		CurrentAmount Money          `json:"currentAmount"`
		TargetDate    time.Time      `json:"targetDate"`
		GoalType      GoalType       `json:"goalType"`
		Status        GoalStatus     `json:"status"`
		Contributions []Contribution `json:"contributions"`
		CreatedAt     time.Time      `json:"createdAt"`
		UpdatedAt     time.Time      `json:"updatedAt"`
	}

	GoalProgress struct {
		GoalID             string         `json:"goalId"`
		Title              string         `json:"title"`
		TargetAmount       Money          `json:"targetAmount"`
		CurrentAmount      Money          `json:"currentAmount"`
		RemainingAmount    Money          `json:"remainingAmount"`
		ProgressPercentage int64          `json:"progressPercentage"`
		DaysRemaining      int            `json:"daysRemaining"`
		IsOverdue          bool           `json:"isOverdue"`
		Status             GoalStatus     `json:"status"`
		Contributions      []Contribution `json:"contributions"`
		MonthlyTarget      Money          `json:"monthlyTarget"`
	}

	Reminder struct {
		Type     ReminderType `json:"type"`
		Severity Severity     `json:"severity"`
		GoalID   string       `json:"goalId"`
		Title    string       `json:"title"`
		Message  string       `json:"message"`
	}

	GoalsDashboard struct {
		TotalGoals        int    `json:"totalGoals"`
		ActiveGoals       int    `json:"activeGoals"`
		CompletedGoals    int    `json:"completedGoals"`
		PausedGoals       int    `json:"pausedGoals"`
		TotalTargetAmount Money  `json:"totalTargetAmount"`
		TotalSavedAmount  Money  `json:"totalSavedAmount"`
		OverallProgress   int64  `json:"overallProgress"`
		RecentGoals       []Goal `json:"recentGoals"`
		UrgentGoals       []Goal `json:"urgentGoals"`
	}
)

var (
	ErrEmptyTitle        = errors.New("empty title")
	ErrInvalidGoalType   = errors.New("invalid goal type")
	ErrInvalidGoalStatus = errors.New("invalid goal status")
	ErrGoalCompleted     = errors.New("cannot add contribution to completed goal")
)

var goalTypes = []GoalType{EmergencyFund, Vacation, Car, House, GoalEducation, Investment, GoalOther}

func ParseGoalType(s string) (GoalType, error) {
	for _, t := range goalTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", ErrInvalidGoalType
}

func ParseGoalStatus(s string) (GoalStatus, error) {
	for _, st := range []GoalStatus{GoalActive, GoalCompleted, GoalPaused} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", ErrInvalidGoalStatus
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Owner) == "" {
		return invalid("owner", ErrEmptyOwner)
	}
	if strings.TrimSpace(g.Title) == "" {
		return invalid("title", ErrEmptyTitle)
	}
	if g.TargetAmount.Cents <= 0 || g.TargetAmount.Validate() != nil {
		return invalid("targetAmount", ErrInvalidAmount)
	}
	if err := ValidateDate(g.TargetDate); err != nil {
		return invalid("targetDate", err)
	}
	if _, err := ParseGoalType(string(g.GoalType)); err != nil {
		return invalid("goalType", err)
	}
	if _, err := ParseGoalStatus(string(g.Status)); err != nil {
		return invalid("status", err)
	}
	for _, c := range g.Contributions {
		if err := c.Amount.Validate(); err != nil {
			return invalid("contributions", err)
		}
	}
	return nil
}

// Recalculate refreshes CurrentAmount from the contributions and marks an
// active goal completed once the target is reached.
func (g *Goal) Recalculate() {
	var total Money
	for _, c := range g.Contributions {
		total = total.Add(c.Amount)
	}
	g.CurrentAmount = total
	if g.Status == GoalActive && g.CurrentAmount.Cents >= g.TargetAmount.Cents {
		g.Status = GoalCompleted
	}
}

func (g Goal) Remaining() Money {
	if rem := g.TargetAmount.Sub(g.CurrentAmount); rem.Cents > 0 {
		return rem
	}
	return Money{}
}

// ProgressPercentage is current/target rounded and capped at 100.
func (g Goal) ProgressPercentage() int64 {
	p := Percent(g.CurrentAmount, g.TargetAmount, 0).IntPart()
	if p > 100 {
		return 100
	}
	return p
}

// DaysRemaining counts days until the target date, rounding partial days up.
// It is negative once the date has passed.
func (g Goal) DaysRemaining(now time.Time) int {
	return int(math.Ceil(float64(g.TargetDate.Sub(now)) / float64(day)))
}

func (g Goal) IsOverdue(now time.Time) bool {
	return now.After(g.TargetDate) && g.Status != GoalCompleted
}

// ceilPerPeriod returns ceil(amount / (days/period)) in whole currency units.
func ceilPerPeriod(amount Money, days, period float64) Money {
	if days <= 0 {
		return Money{}
	}
	units := amount.Decimal().Div(decimal.NewFromFloat(days / period)).Ceil()
	return Money{Cents: units.Mul(hundred).IntPart()}
}

// ProgressOf reports a goal's progress at now. Contributions are listed
// newest first.
func ProgressOf(g Goal, now time.Time) GoalProgress {
	days := g.DaysRemaining(now)
	contribs := make([]Contribution, len(g.Contributions))
	copy(contribs, g.Contributions)
	sort.SliceStable(contribs, func(i, j int) bool { return contribs[i].Date.After(contribs[j].Date) })

	p := GoalProgress{
		GoalID:             g.ID,
		Title:              g.Title,
		TargetAmount:       g.TargetAmount,
		CurrentAmount:      g.CurrentAmount,
		RemainingAmount:    g.Remaining(),
		ProgressPercentage: g.ProgressPercentage(),
		DaysRemaining:      days,
		IsOverdue:          g.IsOverdue(now),
		Status:             g.Status,
		Contributions:      contribs,
	}
	if days > 0 {
		p.MonthlyTarget = ceilPerPeriod(p.RemainingAmount, float64(days), 30)
	}
	return p
}

// ReminderFor returns at most one nudge for an active goal: overdue,
// behind schedule, or a contribution reminder, in that precedence.
func ReminderFor(g Goal, now time.Time) (Reminder, bool) {
	if g.Status != GoalActive {
		return Reminder{}, false
	}
	days := g.DaysRemaining(now)
	remaining := g.Remaining()
	r := Reminder{GoalID: g.ID, Title: g.Title}

	switch {
	case g.IsOverdue(now):
		r.Type, r.Severity = ReminderOverdue, SeverityHigh
		r.Message = fmt.Sprintf("Your goal %q is overdue. Consider adjusting the target date or increasing contributions.", g.Title)
	case days > 0 && g.ProgressPercentage() < 50 && days < 90:
		weekly := ceilPerPeriod(remaining, float64(days), 7)
		r.Type, r.Severity = ReminderBehindSchedule, SeverityMedium
		r.Message = fmt.Sprintf("You're behind on %q. Consider adding %s weekly to stay on track.", g.Title, weekly)
	case len(g.Contributions) == 0 || now.Sub(g.Contributions[len(g.Contributions)-1].Date) > 7*day:
		months := math.Max(1, float64(days)/30)
		suggested := ceilPerPeriod(remaining, months, 1)
		r.Type, r.Severity = ReminderContributeAgain, SeverityLow
		r.Message = fmt.Sprintf("Add %s to %q this month to stay on track.", suggested, g.Title)
	default:
		return Reminder{}, false
	}
	return r, true
}

// Dashboard aggregates an owner's goals.
func Dashboard(goals []Goal, now time.Time) GoalsDashboard {
	d := GoalsDashboard{TotalGoals: len(goals), RecentGoals: []Goal{}, UrgentGoals: []Goal{}}
	for _, g := range goals {
		switch g.Status {
		case GoalActive:
			d.ActiveGoals++
			if days := g.DaysRemaining(now); days > 0 && days < 30 {
				d.UrgentGoals = append(d.UrgentGoals, g)
			}
		case GoalCompleted:
			d.CompletedGoals++
		case GoalPaused:
			d.PausedGoals++
		}
		d.TotalTargetAmount = d.TotalTargetAmount.Add(g.TargetAmount)
		d.TotalSavedAmount = d.TotalSavedAmount.Add(g.CurrentAmount)
	}
	d.OverallProgress = Percent(d.TotalSavedAmount, d.TotalTargetAmount, 0).IntPart()

	recent := make([]Goal, len(goals))
	copy(recent, goals)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > 5 {
		recent = recent[:5]
	}
	d.RecentGoals = append(d.RecentGoals, recent...)
	return d
}
