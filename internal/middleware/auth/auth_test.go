package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBearerMiddleware(t *testing.T) {
	tokens := map[string]string{"t-alice": "alice", "t-bob": "bob", "": "nobody"}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantOwner  string
	}{
		{"valid token", "Bearer t-alice", http.StatusOK, "alice"},
		{"scheme is case-insensitive", "bearer t-bob", http.StatusOK, "bob"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic dDphbGljZQ==", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var owner string
			h := BearerMiddleware(tokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				owner = OwnerFrom(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantOwner, owner)
		})
	}
}

func TestBearerMiddlewareCustomDeny(t *testing.T) {
	var message string
	h := BearerMiddleware(nil, func(w http.ResponseWriter, _ *http.Request, msg string) {
		message = msg
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached without a token table")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "invalid token", message)
}

func TestOwnerFromEmptyContext(t *testing.T) {
	assert.Empty(t, OwnerFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
