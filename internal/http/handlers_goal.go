package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"finassist/internal/core"
	"finassist/internal/services"
	"finassist/internal/storage"
)

type (
	goalRequest struct {
		Title        *string     `json:"title"`
		Description  *string     `json:"description"`
		TargetAmount *core.Money `json:"targetAmount"`
		TargetDate   *string     `json:"targetDate"`
		GoalType     *string     `json:"goalType"`
		Status       *string     `json:"status"`
	}

	contributionRequest struct {
		Amount *core.Money `json:"amount"`
		Note   string      `json:"note"`
	}
)

func (s *Server) goalRoutes(r chi.Router) {
	r.Post("/", s.handleCreateGoal)
	r.Get("/", s.handleListGoals)
	r.Get("/dashboard", s.handleGoalsDashboard)
	r.Get("/reminders", s.handleGoalReminders)
	r.Get("/{id}", s.handleGetGoal)
	r.Put("/{id}", s.handleUpdateGoal)
	r.Delete("/{id}", s.handleDeleteGoal)
	r.Post("/{id}/contribute", s.handleContribute)
	r.Get("/{id}/progress", s.handleGoalProgress)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := services.GoalInput{
		Title:       sanitizeInput(deref(req.Title)),
		Description: sanitizeInput(deref(req.Description)),
		GoalType:    deref(req.GoalType),
	}
	if req.TargetAmount != nil {
		in.TargetAmount = *req.TargetAmount
	}
	target, err := optionalDate("targetDate", req.TargetDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if target != nil {
		in.TargetDate = *target
	}

	g, err := s.svc.Goals.CreateGoal(r.Context(), owner(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(g).Write(w)
}

// handleListGoals handles GET /api/goals?status&goalType.
func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.GoalFilter{Owner: owner(r)}

	if v := strings.TrimSpace(q.Get("status")); v != "" {
		st, err := core.ParseGoalStatus(v)
		if err != nil {
			writeError(w, r, &core.ValidationError{Field: "status", Err: err})
			return
		}
		f.Status = st
	}
	if v := strings.TrimSpace(q.Get("goalType")); v != "" {
		gt, err := core.ParseGoalType(v)
		if err != nil {
			writeError(w, r, &core.ValidationError{Field: "goalType", Err: err})
			return
		}
		f.GoalType = gt
	}

	goals, err := s.svc.Goals.ListGoals(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(goals).Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Goals.GetGoal(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(g).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, err := optionalDate("targetDate", req.TargetDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Goals.UpdateGoal(r.Context(), owner(r), chi.URLParam(r, "id"), services.GoalPatch{
		Title:        sanitized(req.Title),
		Description:  sanitized(req.Description),
		TargetAmount: req.TargetAmount,
		TargetDate:   target,
		GoalType:     req.GoalType,
		Status:       req.Status,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(g).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Goals.DeleteGoal(r.Context(), owner(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Message("Goal deleted").Write(w)
}

// handleContribute handles POST /api/goals/{id}/contribute.
func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var req contributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount})
		return
	}
	g, err := s.svc.Goals.AddContribution(r.Context(), owner(r), chi.URLParam(r, "id"), services.ContributionInput{
		Amount: *req.Amount,
		Note:   sanitizeInput(req.Note),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Contribution added"
	if g.Status == core.GoalCompleted {
		msg = "Contribution added, goal completed"
	}
	OK(g).Message(msg).Write(w)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Goals.Progress(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(p).Write(w)
}

func (s *Server) handleGoalReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.svc.Goals.Reminders(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(reminders).Write(w)
}

func (s *Server) handleGoalsDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Goals.Dashboard(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(d).Write(w)
}
