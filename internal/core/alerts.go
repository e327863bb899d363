package core

import "fmt"

const (
	AlertOverLimit AlertType = "over_limit"
	AlertNearLimit AlertType = "near_limit"

	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

type (
	AlertType string
	Severity  string

	// BudgetStatus holds the read-time metrics derived from limit, spent
	// and threshold. It is never persisted.
	BudgetStatus struct {
		Remaining       Money `json:"remaining"`
		UsagePercentage int64 `json:"usagePercentage"`
		IsOverLimit     bool  `json:"isOverLimit"`
		IsNearLimit     bool  `json:"isNearLimit"`
	}

	// BudgetView is a budget together with its derived status.
	BudgetView struct {
		Budget
		BudgetStatus
	}

	Alert struct {
		Type     AlertType  `json:"type"`
		Severity Severity   `json:"severity"`
		Category Category   `json:"category"`
		Message  string     `json:"message"`
		Budget   BudgetView `json:"budget"`
	}
)

// StatusOf derives the budget's alert flags.
//
// A zero limit yields 0% usage and is never near its limit; any positive
// spend against it is still over the limit.
func StatusOf(b Budget) BudgetStatus {
	st := BudgetStatus{IsOverLimit: b.Spent.Cents > b.Limit.Cents}
	if rem := b.Limit.Sub(b.Spent); rem.Cents > 0 {
		st.Remaining = rem
	}
	if b.Limit.Cents > 0 {
		st.UsagePercentage = Percent(b.Spent, b.Limit, 0).IntPart()
		// spent/limit*100 >= threshold, kept in integers.
		st.IsNearLimit = b.Spent.Cents*100 >= int64(b.AlertThreshold)*b.Limit.Cents
	}
	return st
}

// View pairs b with its derived status.
func View(b Budget) BudgetView {
	return BudgetView{Budget: b, BudgetStatus: StatusOf(b)}
}

// NeedsAttention reports whether the budget is near or over its limit.
func (v BudgetView) NeedsAttention() bool {
	return v.IsNearLimit || v.IsOverLimit
}

// AlertFor builds the alert for an active budget, if one applies.
// Over-limit takes precedence over near-limit.
func AlertFor(v BudgetView) (Alert, bool) {
	switch {
	case v.IsOverLimit:
		return Alert{
			Type:     AlertOverLimit,
			Severity: SeverityHigh,
			Category: v.Category,
			Message:  fmt.Sprintf("You have exceeded your %s budget by %s", v.Category, v.Spent.Sub(v.Limit)),
			Budget:   v,
		}, true
	case v.IsNearLimit:
		return Alert{
			Type:     AlertNearLimit,
			Severity: SeverityMedium,
			Category: v.Category,
			Message:  fmt.Sprintf("You have used %d%% of your %s budget", v.UsagePercentage, v.Category),
			Budget:   v,
		}, true
	}
	return Alert{}, false
}
