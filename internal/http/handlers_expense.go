package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"finassist/internal/core"
	"finassist/internal/services"
)

type expenseRequest struct {
	Amount      *core.Money `json:"amount"`
	Category    *string     `json:"category"`
	Description *string     `json:"description"`
	Date        *string     `json:"date"`
}

func (s *Server) expenseRoutes(r chi.Router) {
	r.Post("/", s.handleCreateExpense)
	r.Get("/", s.handleListExpenses)
	r.Get("/summary/{year}/{month}", s.handleMonthlySummary)
	r.Get("/{id}", s.handleGetExpense)
	r.Put("/{id}", s.handleUpdateExpense)
	r.Delete("/{id}", s.handleDeleteExpense)
}

// handleCreateExpense handles POST /api/expenses. An omitted category is
// assigned from the description.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount})
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in := services.ExpenseInput{Amount: *req.Amount, Date: date}
	if req.Category != nil {
		in.Category = *req.Category
	}
	if req.Description != nil {
		in.Description = sanitizeInput(*req.Description)
	}

	e, err := s.svc.Expenses.CreateExpense(r.Context(), owner(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(e).Write(w)
}

// handleListExpenses handles GET /api/expenses?page&limit&category&startDate&endDate.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var query services.ExpenseQuery
	var err error
	if query.Page, err = queryInt(q, "page", 1); err != nil {
		writeError(w, r, err)
		return
	}
	if query.Limit, err = queryInt(q, "limit", services.DefaultPageSize); err != nil {
		writeError(w, r, err)
		return
	}
	if query.Category, err = queryCategory(q); err != nil {
		writeError(w, r, err)
		return
	}
	if v := strings.TrimSpace(q.Get("startDate")); v != "" {
		if query.From, _, err = parseDate("startDate", v); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if v := strings.TrimSpace(q.Get("endDate")); v != "" {
		end, dateOnly, err := parseDate("endDate", v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		// Until is exclusive: a bare date includes the whole day.
		if dateOnly {
			query.Until = end.AddDate(0, 0, 1)
		} else {
			query.Until = end.Add(time.Nanosecond)
		}
	}

	page, err := s.svc.Expenses.ListExpenses(r.Context(), owner(r), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(page).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Expenses.GetExpense(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(e).Write(w)
}

// handleUpdateExpense handles PUT /api/expenses/{id}. Only the fields
// present in the body change; an empty category re-runs auto-assignment.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	patch := services.ExpensePatch{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: sanitized(req.Description),
		Date:        date,
	}
	e, err := s.svc.Expenses.UpdateExpense(r.Context(), owner(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(e).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Expenses.DeleteExpense(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Message("Expense deleted").Write(w)
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	p, err := parsePathPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.svc.Expenses.MonthlySummary(r.Context(), owner(r), p.Year, p.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(sum).Write(w)
}
