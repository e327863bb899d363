package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"finassist/internal/core"
)

func TestParsePeriodQuery(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		query     url.Values
		want      PeriodParams
		wantField string
	}{
		{"defaults to now", url.Values{}, PeriodParams{Year: 2025, Month: 3}, ""},
		{"explicit values", url.Values{"year": {"2024"}, "month": {"12"}}, PeriodParams{Year: 2024, Month: 12}, ""},
		{"only month", url.Values{"month": {"6"}}, PeriodParams{Year: 2025, Month: 6}, ""},
		{"month out of range", url.Values{"month": {"13"}}, PeriodParams{}, "month"},
		{"non-numeric year", url.Values{"year": {"abc"}}, PeriodParams{}, "year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeriodQuery(tt.query, now)
			if tt.wantField != "" {
				var ve *core.ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.wantField {
					t.Fatalf("err = %v, want validation error on %s", err, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, dateOnly, err := parseDate("date", "2025-03-04")
	if err != nil || !dateOnly || !d.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date-only: %v %v %v", d, dateOnly, err)
	}

	ts, dateOnly, err := parseDate("date", "2025-03-04T10:30:00+02:00")
	if err != nil || dateOnly || !ts.Equal(time.Date(2025, 3, 4, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("timestamp: %v %v %v", ts, dateOnly, err)
	}

	if _, _, err := parseDate("date", "04/03/2025"); !core.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Amount *core.Money `json:"amount"`
		Name   string      `json:"name"`
	}
	tests := []struct {
		name           string
		payload        string
		wantValidation bool
		wantBadRequest bool
	}{
		{"valid", `{"amount": 12.5, "name": "x"}`, false, false},
		{"amount as string", `{"amount": "12,50"}`, false, false},
		{"negative amount", `{"amount": -3}`, true, false},
		{"empty body", ``, false, true},
		{"malformed", `{"amount": `, false, true},
		{"unknown field", `{"amonut": 1}`, false, true},
		{"trailing object", `{"name": "a"}{"name": "b"}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			var b body
			err := decodeJSON(httptest.NewRecorder(), r, &b)

			var re *requestError
			switch {
			case tt.wantValidation:
				if !core.IsValidation(err) {
					t.Errorf("expected validation error, got %v", err)
				}
			case tt.wantBadRequest:
				if !errors.As(err, &re) {
					t.Errorf("expected request error, got %v", err)
				}
			default:
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	q := url.Values{"page": {"3"}, "limit": {"x"}, "category": {"food"}}

	if n, err := queryInt(q, "page", 1); err != nil || n != 3 {
		t.Errorf("page = %d, %v", n, err)
	}
	if n, err := queryInt(q, "missing", 7); err != nil || n != 7 {
		t.Errorf("missing = %d, %v", n, err)
	}
	if _, err := queryInt(q, "limit", 10); err == nil {
		t.Error("expected error for non-numeric limit")
	}
	if c, err := queryCategory(q); err != nil || c != core.Food {
		t.Errorf("category = %q, %v", c, err)
	}
	if _, err := queryCategory(url.Values{"category": {"Crypto"}}); !core.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b\x07c", "abc"},
		{"line1\nline2\ttab", "line1\nline2\ttab"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
