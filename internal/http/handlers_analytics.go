package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) analyticsRoutes(r chi.Router) {
	r.Get("/monthly-analytics", s.handleMonthlyAnalytics)
	r.Get("/recurring-expenses", ownerQuery(s.svc.Analytics.RecurringExpenses))
	r.Get("/high-spending", ownerQuery(s.svc.Analytics.HighSpending))
	r.Get("/expense-income-ratio", ownerQuery(s.svc.Analytics.ExpenseIncomeRatio))
}

func (s *Server) insightRoutes(r chi.Router) {
	r.Get("/budget-optimization", ownerQuery(s.svc.Analytics.BudgetOptimization))
	r.Get("/smart-tips", ownerQuery(s.svc.Analytics.SmartTips))
	r.Get("/financial-health-score", ownerQuery(s.svc.Analytics.FinancialHealthScore))
}

// ownerQuery adapts a read-only query over the caller's data into a handler.
func ownerQuery[T any](query func(ctx context.Context, owner string) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := query(r.Context(), owner(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		OK(v).Write(w)
	}
}

// handleMonthlyAnalytics handles GET /api/analytics/monthly-analytics?year&month;
// both default to the current month.
func (s *Server) handleMonthlyAnalytics(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriodQuery(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	cmp, err := s.svc.Analytics.MonthlyComparison(r.Context(), owner(r), p.Year, p.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(cmp).Write(w)
}
