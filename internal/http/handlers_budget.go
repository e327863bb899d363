package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"finassist/internal/core"
	"finassist/internal/services"
	"finassist/internal/storage"
)

type (
	budgetRequest struct {
		Category       string      `json:"category"`
		Month          int         `json:"month"`
		Year           int         `json:"year"`
		Limit          *core.Money `json:"limit"`
		AlertThreshold *int        `json:"alertThreshold"`
	}

	budgetPatchRequest struct {
		Limit          *core.Money `json:"limit"`
		AlertThreshold *int        `json:"alertThreshold"`
		IsActive       *bool       `json:"isActive"`
	}

	resetRequest struct {
		FromMonth int `json:"fromMonth"`
		FromYear  int `json:"fromYear"`
		ToMonth   int `json:"toMonth"`
		ToYear    int `json:"toYear"`
	}
)

func (s *Server) budgetRoutes(r chi.Router) {
	r.Post("/", s.handleSetBudget)
	r.Get("/", s.handleListBudgets)
	r.Get("/tracking/{year}/{month}", s.handleBudgetTracking)
	r.Get("/alerts", s.handleBudgetAlerts)
	r.Post("/reset", s.handleResetBudgets)
	r.Get("/{id}", s.handleGetBudget)
	r.Put("/{id}", s.handleUpdateBudget)
	r.Delete("/{id}", s.handleDeleteBudget)
}

// handleSetBudget handles POST /api/budgets: create, or update the budget
// already at (category, month, year).
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Limit == nil {
		writeError(w, r, &core.ValidationError{Field: "limit", Err: core.ErrInvalidAmount})
		return
	}

	b, created, err := s.svc.Budgets.SetBudget(r.Context(), owner(r), services.BudgetInput{
		Category:       req.Category,
		Month:          req.Month,
		Year:           req.Year,
		Limit:          *req.Limit,
		AlertThreshold: req.AlertThreshold,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if created {
		Created(core.View(b)).Message("Budget created").Write(w)
		return
	}
	OK(core.View(b)).Message("Budget updated").Write(w)
}

// handleListBudgets handles GET /api/budgets?month&year&category.
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.BudgetFilter{Owner: owner(r)}

	var err error
	if f.Month, err = queryInt(q, "month", 0); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Year, err = queryInt(q, "year", 0); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Category, err = queryCategory(q); err != nil {
		writeError(w, r, err)
		return
	}

	views, err := s.svc.Budgets.ListBudgets(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(views).Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Budgets.GetBudget(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(v).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.Budgets.UpdateBudget(r.Context(), owner(r), chi.URLParam(r, "id"), services.BudgetPatch{
		Limit:          req.Limit,
		AlertThreshold: req.AlertThreshold,
		IsActive:       req.IsActive,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(v).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Budgets.DeleteBudget(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Message("Budget deleted").Write(w)
}

func (s *Server) handleBudgetTracking(w http.ResponseWriter, r *http.Request) {
	p, err := parsePathPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Budgets.Tracking(r.Context(), owner(r), p.Year, p.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(t).Write(w)
}

// handleBudgetAlerts handles GET /api/budgets/alerts for the current month.
func (s *Server) handleBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.svc.Budgets.Alerts(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(alerts).Write(w)
}

func (s *Server) handleResetBudgets(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.Budgets.ResetBudgets(r.Context(), owner(r), req.FromYear, req.FromMonth, req.ToYear, req.ToMonth)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(created).
		Message(fmt.Sprintf("Created %d budgets for %d/%d", len(created), req.ToMonth, req.ToYear)).
		Write(w)
}
