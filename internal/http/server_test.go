package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finassist/internal/core"
	"finassist/internal/services"
	"finassist/internal/storage/memory"
)

const token = "t-alice"

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type testAPI struct {
	t     *testing.T
	srv   *Server
	store *memory.Store
}

func newTestAPI(t *testing.T, ready func(context.Context) error) *testAPI {
	t.Helper()
	store := memory.New()
	rec := services.NewReconciler(store, store)
	svc := Services{
		Expenses:  services.NewExpenseService(store, rec, core.NewCategorizer(core.DefaultCategoryRules())),
		Budgets:   services.NewBudgetService(store, rec),
		Goals:     services.NewGoalService(store),
		Analytics: services.NewAnalyticsService(store, store),
	}
	srv := NewServer(":0", svc, Options{
		Tokens:             map[string]string{token: "alice", "t-bob": "bob"},
		RateLimitPerMinute: 1000,
		Ready:              ready,
		Now:                func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testAPI{t: t, srv: srv, store: store}
}

func (a *testAPI) do(method, path, body string, bearer string) *httptest.ResponseRecorder {
	a.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) call(method, path, body string, wantStatus int, out any) apiResponse {
	a.t.Helper()
	rr := a.do(method, path, body, token)
	require.Equal(a.t, wantStatus, rr.Code, "body: %s", rr.Body.String())

	var resp apiResponse
	require.NoError(a.t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(a.t, wantStatus < 400, resp.Success)
	if out != nil {
		require.NoError(a.t, json.Unmarshal(resp.Data, out))
	}
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := api.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	rr := api.do(http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "FinAssist API is running")

	rr = api.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "finassist_http_request")
}

func TestReadyzReportsBackendFailure(t *testing.T) {
	api := newTestAPI(t, func(context.Context) error { return errors.New("db down") })
	rr := api.do(http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, nil)

	rr := api.do(http.MethodGet, "/api/expenses", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)

	rr = api.do(http.MethodGet, "/api/expenses", "", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestExpenseLifecycleReconcilesBudget(t *testing.T) {
	api := newTestAPI(t, nil)

	var budget core.BudgetView
	resp := api.call(http.MethodPost, "/api/budgets",
		`{"category":"Food","month":3,"year":2025,"limit":100,"alertThreshold":80}`, http.StatusCreated, &budget)
	assert.Equal(t, "Budget created", resp.Message)
	assert.Equal(t, int64(0), budget.Spent.Cents)

	var e core.Expense
	api.call(http.MethodPost, "/api/expenses",
		`{"amount":"85.50","description":"Groceries at market","category":"food","date":"2025-03-10"}`, http.StatusCreated, &e)
	assert.Equal(t, core.Food, e.Category)
	assert.False(t, e.AutoCategorized)

	api.call(http.MethodGet, "/api/budgets/"+budget.ID, "", http.StatusOK, &budget)
	assert.Equal(t, int64(8550), budget.Spent.Cents)
	assert.True(t, budget.IsNearLimit)
	assert.False(t, budget.IsOverLimit)

	api.call(http.MethodPut, "/api/expenses/"+e.ID, `{"amount":120}`, http.StatusOK, &e)
	api.call(http.MethodGet, "/api/budgets/"+budget.ID, "", http.StatusOK, &budget)
	assert.Equal(t, int64(12000), budget.Spent.Cents)
	assert.True(t, budget.IsOverLimit)

	var tracking services.Tracking
	api.call(http.MethodGet, "/api/budgets/tracking/2025/3", "", http.StatusOK, &tracking)
	require.Len(t, tracking.Budgets, 1)
	assert.Len(t, tracking.Alerts, 1)

	api.call(http.MethodDelete, "/api/expenses/"+e.ID, "", http.StatusOK, nil)
	api.call(http.MethodGet, "/api/budgets/"+budget.ID, "", http.StatusOK, &budget)
	assert.Equal(t, int64(0), budget.Spent.Cents)

	api.call(http.MethodGet, "/api/expenses/"+e.ID, "", http.StatusNotFound, nil)
}

func TestCreateExpenseAutoCategorizes(t *testing.T) {
	api := newTestAPI(t, nil)

	var e core.Expense
	api.call(http.MethodPost, "/api/expenses", `{"amount":12,"description":"Uber ride home","date":"2025-03-02"}`, http.StatusCreated, &e)
	assert.Equal(t, core.Transport, e.Category)
	assert.True(t, e.AutoCategorized)
}

func TestExpenseErrors(t *testing.T) {
	api := newTestAPI(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/expenses", `{"amount":`, http.StatusBadRequest},
		{"missing amount", http.MethodPost, "/api/expenses", `{"description":"x"}`, http.StatusUnprocessableEntity},
		{"negative amount", http.MethodPost, "/api/expenses", `{"amount":-1,"description":"x"}`, http.StatusUnprocessableEntity},
		{"unknown category", http.MethodPost, "/api/expenses", `{"amount":1,"description":"x","category":"Crypto"}`, http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/expenses", `{"amount":1,"description":"x","date":"yesterday"}`, http.StatusUnprocessableEntity},
		{"date before 1970", http.MethodPost, "/api/expenses", `{"amount":1,"description":"x","date":"1500-01-01"}`, http.StatusUnprocessableEntity},
		{"date after 2200", http.MethodPost, "/api/expenses", `{"amount":1,"description":"x","date":"2300-01-15"}`, http.StatusUnprocessableEntity},
		{"amount above cap", http.MethodPost, "/api/expenses", `{"amount":9223372036854775807,"description":"x"}`, http.StatusUnprocessableEntity},
		{"empty description", http.MethodPost, "/api/expenses", `{"amount":1,"description":"   "}`, http.StatusUnprocessableEntity},
		{"update missing", http.MethodPut, "/api/expenses/nope", `{"amount":1}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/expenses/nope", "", http.StatusNotFound},
		{"summary bad month", http.MethodGet, "/api/expenses/summary/2025/13", "", http.StatusUnprocessableEntity},
		{"list bad page", http.MethodGet, "/api/expenses?page=x", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api.call(tt.method, tt.path, tt.body, tt.want, nil)
		})
	}
}

func TestListExpensesFiltersAndPaginates(t *testing.T) {
	api := newTestAPI(t, nil)
	for day := 1; day <= 12; day++ {
		body := fmt.Sprintf(`{"amount":%d,"description":"Lunch %d","category":"Food","date":"2025-03-%02d"}`, day, day, day)
		api.call(http.MethodPost, "/api/expenses", body, http.StatusCreated, nil)
	}
	api.call(http.MethodPost, "/api/expenses", `{"amount":5,"description":"Bus","category":"Transport","date":"2025-03-05"}`, http.StatusCreated, nil)

	var page services.ExpensePage
	api.call(http.MethodGet, "/api/expenses?category=Food&limit=5&page=2", "", http.StatusOK, &page)
	assert.Equal(t, services.Pagination{Page: 2, Limit: 5, Total: 12, Pages: 3}, page.Pagination)
	require.Len(t, page.Expenses, 5)
	assert.Equal(t, "Lunch 7", page.Expenses[0].Description)

	api.call(http.MethodGet, "/api/expenses?startDate=2025-03-05&endDate=2025-03-06", "", http.StatusOK, &page)
	assert.Equal(t, 3, page.Pagination.Total)

	var sum core.MonthlySummary
	api.call(http.MethodGet, "/api/expenses/summary/2025/3", "", http.StatusOK, &sum)
	assert.Equal(t, 13, sum.Count)
	assert.Equal(t, int64(8300), sum.Total.Cents)
	require.Len(t, sum.ByCategory, 2)
	assert.Equal(t, core.Food, sum.ByCategory[0].Category)
}

func TestOwnersAreIsolated(t *testing.T) {
	api := newTestAPI(t, nil)

	var e core.Expense
	api.call(http.MethodPost, "/api/expenses", `{"amount":9,"description":"Cinema","category":"Entertainment"}`, http.StatusCreated, &e)

	rr := api.do(http.MethodGet, "/api/expenses/"+e.ID, "", "t-bob")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = api.do(http.MethodDelete, "/api/expenses/"+e.ID, "", "t-bob")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBudgetEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)

	var b core.BudgetView
	api.call(http.MethodPost, "/api/budgets", `{"category":"Bills","month":2,"year":2025,"limit":50}`, http.StatusCreated, &b)
	assert.Equal(t, core.DefaultAlertThreshold, b.AlertThreshold)

	resp := api.call(http.MethodPost, "/api/budgets", `{"category":"Bills","month":2,"year":2025,"limit":75}`, http.StatusOK, &b)
	assert.Equal(t, "Budget updated", resp.Message)
	assert.Equal(t, int64(7500), b.Limit.Cents)

	api.call(http.MethodPut, "/api/budgets/"+b.ID, `{"alertThreshold":150}`, http.StatusUnprocessableEntity, nil)
	api.call(http.MethodPut, "/api/budgets/"+b.ID, `{"isActive":false}`, http.StatusOK, &b)
	assert.False(t, b.IsActive)

	var created []core.BudgetView
	resp = api.call(http.MethodPost, "/api/budgets/reset", `{"fromMonth":2,"fromYear":2025,"toMonth":3,"toYear":2025}`, http.StatusOK, &created)
	assert.Empty(t, created, "inactive budgets are not copied")
	assert.Equal(t, "Created 0 budgets for 3/2025", resp.Message)

	api.call(http.MethodPut, "/api/budgets/"+b.ID, `{"isActive":true}`, http.StatusOK, nil)
	api.call(http.MethodPost, "/api/budgets/reset", `{"fromMonth":2,"fromYear":2025,"toMonth":3,"toYear":2025}`, http.StatusOK, &created)
	require.Len(t, created, 1)
	assert.Equal(t, 3, created[0].Month)

	var list []core.BudgetView
	api.call(http.MethodGet, "/api/budgets?year=2025&month=3", "", http.StatusOK, &list)
	assert.Len(t, list, 1)
	api.call(http.MethodGet, "/api/budgets?category=Nope", "", http.StatusUnprocessableEntity, nil)

	var alerts []core.Alert
	api.call(http.MethodGet, "/api/budgets/alerts", "", http.StatusOK, &alerts)
	assert.NotNil(t, alerts)

	api.call(http.MethodPost, "/api/budgets", `{"category":"Bills","month":0,"year":2025,"limit":1}`, http.StatusUnprocessableEntity, nil)
	api.call(http.MethodDelete, "/api/budgets/"+b.ID, "", http.StatusOK, nil)
	api.call(http.MethodGet, "/api/budgets/"+b.ID, "", http.StatusNotFound, nil)
}

func TestGoalEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)

	var g core.Goal
	api.call(http.MethodPost, "/api/goals",
		`{"title":"Rainy day","targetAmount":1000,"targetDate":"2030-01-01","goalType":"emergency fund"}`, http.StatusCreated, &g)
	assert.Equal(t, core.EmergencyFund, g.GoalType)
	assert.Equal(t, core.GoalActive, g.Status)

	api.call(http.MethodPost, "/api/goals", `{"title":"x","targetAmount":10,"targetDate":"2030-01-01","goalType":"Yacht"}`, http.StatusUnprocessableEntity, nil)

	api.call(http.MethodPost, "/api/goals/"+g.ID+"/contribute", `{"amount":400,"note":"bonus"}`, http.StatusOK, &g)
	assert.Equal(t, int64(40000), g.CurrentAmount.Cents)

	var progress core.GoalProgress
	api.call(http.MethodGet, "/api/goals/"+g.ID+"/progress", "", http.StatusOK, &progress)
	assert.Equal(t, int64(40), progress.ProgressPercentage)

	resp := api.call(http.MethodPost, "/api/goals/"+g.ID+"/contribute", `{"amount":600}`, http.StatusOK, &g)
	assert.Equal(t, core.GoalCompleted, g.Status)
	assert.Equal(t, "Contribution added, goal completed", resp.Message)

	api.call(http.MethodPost, "/api/goals/"+g.ID+"/contribute", `{"amount":1}`, http.StatusBadRequest, nil)

	var goals []core.Goal
	api.call(http.MethodGet, "/api/goals?status=completed", "", http.StatusOK, &goals)
	assert.Len(t, goals, 1)
	api.call(http.MethodGet, "/api/goals?status=done", "", http.StatusUnprocessableEntity, nil)

	var dash core.GoalsDashboard
	api.call(http.MethodGet, "/api/goals/dashboard", "", http.StatusOK, &dash)
	assert.Equal(t, 1, dash.CompletedGoals)

	var reminders []core.Reminder
	api.call(http.MethodGet, "/api/goals/reminders", "", http.StatusOK, &reminders)
	assert.Empty(t, reminders)

	api.call(http.MethodPut, "/api/goals/"+g.ID, `{"title":"Safety net"}`, http.StatusOK, &g)
	assert.Equal(t, "Safety net", g.Title)

	api.call(http.MethodDelete, "/api/goals/"+g.ID, "", http.StatusOK, nil)
	api.call(http.MethodGet, "/api/goals/"+g.ID, "", http.StatusNotFound, nil)
}

func TestAnalyticsEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	api.call(http.MethodPost, "/api/expenses", `{"amount":20,"description":"Netflix","date":"2025-03-01"}`, http.StatusCreated, nil)
	api.call(http.MethodPost, "/api/expenses", `{"amount":20,"description":"Netflix","date":"2025-02-01"}`, http.StatusCreated, nil)

	var cmp services.MonthlyComparison
	api.call(http.MethodGet, "/api/analytics/monthly-analytics?year=2025&month=3", "", http.StatusOK, &cmp)
	assert.Equal(t, int64(2000), cmp.Current.Total.Cents)
	assert.Equal(t, int64(2000), cmp.Previous.Total.Cents)
	api.call(http.MethodGet, "/api/analytics/monthly-analytics?month=0", "", http.StatusUnprocessableEntity, nil)

	rr := api.do(http.MethodGet, "/api/analytics/monthly-analytics?year=2025&month=3", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"currentExpenses":`)
	assert.Contains(t, rr.Body.String(), `"previousExpenses":`)

	var recurring []services.RecurringExpense
	api.call(http.MethodGet, "/api/analytics/recurring-expenses", "", http.StatusOK, &recurring)
	require.Len(t, recurring, 1)
	assert.Equal(t, 2, recurring[0].Count)

	for _, path := range []string{
		"/api/analytics/high-spending",
		"/api/analytics/expense-income-ratio",
		"/api/ai/budget-optimization",
		"/api/ai/smart-tips",
		"/api/ai/financial-health-score",
		"/api/insights/budget-optimization",
		"/api/insights/smart-tips",
		"/api/insights/financial-health-score",
	} {
		api.call(http.MethodGet, path, "", http.StatusOK, nil)
	}

	var score services.HealthScore
	api.call(http.MethodGet, "/api/ai/financial-health-score", "", http.StatusOK, &score)
	assert.Equal(t, 100, score.Score)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	api := newTestAPI(t, nil)

	rr := api.do(http.MethodGet, "/nope", "", token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)

	rr = api.do(http.MethodPatch, "/api/health", "", token)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMutationsAreRateLimited(t *testing.T) {
	store := memory.New()
	rec := services.NewReconciler(store, store)
	srv := NewServer(":0", Services{
		Expenses: services.NewExpenseService(store, rec, core.NewCategorizer(core.DefaultCategoryRules())),
	}, Options{Tokens: map[string]string{token: "alice"}, RateLimitPerMinute: 2})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(`{"amount":1,"description":"Coffee"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}
