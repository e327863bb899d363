// Package http exposes the services as a JSON API.
//
// This file holds the request decoding helpers shared by the handlers:
// JSON bodies, path and query integers, dates and enum filters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"finassist/internal/core"
)

const maxBodyBytes = 1 << 20

// requestError is a malformed request that never reached validation.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads a single JSON object into dst. Bad amounts surface as
// validation errors; anything else malformed is a requestError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, core.ErrInvalidAmount):
			return &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &maxErr):
			return badRequest("request body exceeds %d bytes", maxErr.Limit)
		default:
			return badRequest("invalid request body: %v", err)
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// dateOnly reports which form was given.
func parseDate(field, s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if d, perr := time.Parse(time.DateOnly, s); perr == nil {
		t, dateOnly = d, true
	} else if ts, perr := time.Parse(time.RFC3339, s); perr == nil {
		t = ts.UTC()
	} else {
		return time.Time{}, false, &core.ValidationError{Field: field, Err: core.ErrInvalidDate}
	}
	if err := core.ValidateDate(t); err != nil {
		return time.Time{}, false, &core.ValidationError{Field: field, Err: err}
	}
	return t, dateOnly, nil
}

func optionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, _, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PeriodParams holds a year and month from a path or query.
type PeriodParams struct {
	Year  int
	Month int
}

// parsePathPeriod reads the {year} and {month} route parameters.
func parsePathPeriod(r *http.Request) (PeriodParams, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return PeriodParams{}, &core.ValidationError{Field: "year", Err: core.ErrInvalidYear}
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		return PeriodParams{}, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	return PeriodParams{Year: year, Month: month}, nil
}

// ParsePeriodQuery reads year and month from the query, defaulting each to
// now's. Present but malformed values are validation errors.
func ParsePeriodQuery(query url.Values, now time.Time) (PeriodParams, error) {
	p := PeriodParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return PeriodParams{}, &core.ValidationError{Field: "year", Err: core.ErrInvalidYear}
		}
		p.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return PeriodParams{}, &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
		}
		p.Month = m
	}
	return p, nil
}

// queryInt returns the named integer parameter, or def when absent.
func queryInt(query url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("query parameter %q must be an integer", name)
	}
	return n, nil
}

func queryCategory(query url.Values) (core.Category, error) {
	v := strings.TrimSpace(query.Get("category"))
	if v == "" {
		return "", nil
	}
	c, err := core.ParseCategory(v)
	if err != nil {
		return "", &core.ValidationError{Field: "category", Err: err}
	}
	return c, nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitized(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}
