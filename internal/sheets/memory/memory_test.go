package memory

import (
	"context"
	"testing"
	"time"

	"finassist/internal/core"
)

func TestMemoryStoreAppend(t *testing.T) {
	s := New()
	e := core.Expense{
		ID:          "e1",
		Owner:       "alice",
		Amount:      core.Cents(1250),
		Category:    core.Food,
		Description: "Pizza",
		OccurredOn:  time.Date(2025, 3, 4, 18, 0, 0, 0, time.UTC),
	}

	ref, err := s.Append(context.Background(), e)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ref != "mem:1" {
		t.Fatalf("ref = %q, want mem:1", ref)
	}

	rows := s.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	want := []any{"2025-03-04", "alice", "Pizza", "12.50", "Food"}
	for i, v := range want {
		if rows[0][i] != v {
			t.Errorf("cell %d = %v, want %v", i, rows[0][i], v)
		}
	}
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	s := New()
	if _, err := s.Append(context.Background(), core.Expense{}); err == nil {
		t.Fatal("expected validation error")
	}
	if len(s.Rows()) != 0 {
		t.Fatal("invalid expense must not be stored")
	}
}
