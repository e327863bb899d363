package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Entertainment Category = "Entertainment"
	Shopping      Category = "Shopping"
	Bills         Category = "Bills"
	Healthcare    Category = "Healthcare"
	Education     Category = "Education"
	Other         Category = "Other"
)

const (
	// MinBudgetYear is the earliest year a budget bucket may target.
	MinBudgetYear = 2020
	// DefaultAlertThreshold is the near-limit percentage used when none is given.
	DefaultAlertThreshold = 80
	// MinDateYear and MaxDateYear bound expense and goal dates. Stores keep
	// timestamps as int64 Unix nanoseconds, which cover 1678 to 2262.
	MinDateYear = 1970
	MaxDateYear = 2200

	maxDescriptionLength = 200
)

type (
	Category string

	// Bucket identifies one (owner, category, month, year) budget slot.
	// Expenses belong to the bucket of their UTC occurrence month.
	Bucket struct {
		Owner    string   `json:"owner"`
		Category Category `json:"category"`
		Month    int      `json:"month"`
		Year     int      `json:"year"`
	}

	Expense struct {
		ID              string    `json:"id"`
		Owner           string    `json:"owner"`
		Amount          Money     `json:"amount"`
		Category        Category  `json:"category"`
		Description     string    `json:"description"`
		OccurredOn      time.Time `json:"date"`
		AutoCategorized bool      `json:"isAutoCategorized"`
		CreatedAt       time.Time `json:"createdAt"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}

	// Budget is a monthly spending limit for one category. Spent is a
	// cached aggregate maintained by reconciliation.
	Budget struct {
		ID             string    `json:"id"`
		Owner          string    `json:"owner"`
		Category       Category  `json:"category"`
		Month          int       `json:"month"`
		Year           int       `json:"year"`
		Limit          Money     `json:"limit"`
		Spent          Money     `json:"spent"`
		AlertThreshold int       `json:"alertThreshold"`
		IsActive       bool      `json:"isActive"`
		CreatedAt      time.Time `json:"createdAt"`
		UpdatedAt      time.Time `json:"updatedAt"`
	}
)

var categories = []Category{Food, Transport, Entertainment, Shopping, Bills, Healthcare, Education, Other}

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidThreshold   = errors.New("alert threshold must be between 0 and 100")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyOwner         = errors.New("empty owner")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// ValidationError marks an input problem detected before any store call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateDate rejects zero dates and dates whose UTC year falls outside
// [MinDateYear, MaxDateYear].
func ValidateDate(t time.Time) error {
	if t.IsZero() {
		return ErrInvalidDate
	}
	if y := t.UTC().Year(); y < MinDateYear || y > MaxDateYear {
		return fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidDate, y, MinDateYear, MaxDateYear)
	}
	return nil
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// Valid reports whether c is exactly one of the known categories.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// MonthWindow returns the half-open UTC interval [start, end) covering
// the given month, end being the first instant of the next month. Every
// instant of the last day, up to its final nanosecond, falls inside.
func MonthWindow(year, month int) (start, end time.Time) {
	start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// PreviousMonth returns the month before (year, month).
func PreviousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// BucketOf returns the bucket an expense with the given attributes falls in.
func BucketOf(owner string, category Category, at time.Time) Bucket {
	at = at.UTC()
	return Bucket{Owner: owner, Category: category, Month: int(at.Month()), Year: at.Year()}
}

func (b Bucket) Validate() error {
	if strings.TrimSpace(b.Owner) == "" {
		return invalid("owner", ErrEmptyOwner)
	}
	if !b.Category.Valid() {
		return invalid("category", ErrInvalidCategory)
	}
	if b.Month < 1 || b.Month > 12 {
		return invalid("month", ErrInvalidMonth)
	}
	if b.Year < MinBudgetYear || b.Year > MaxDateYear {
		return invalid("year", ErrInvalidYear)
	}
	return nil
}

// Window returns the bucket's month window.
func (b Bucket) Window() (time.Time, time.Time) {
	return MonthWindow(b.Year, b.Month)
}

// Contains reports whether e counts toward the bucket.
func (b Bucket) Contains(e Expense) bool {
	if e.Owner != b.Owner || e.Category != b.Category {
		return false
	}
	start, end := b.Window()
	return !e.OccurredOn.Before(start) && e.OccurredOn.Before(end)
}

func (b Bucket) String() string {
	return fmt.Sprintf("%s/%s/%04d-%02d", b.Owner, b.Category, b.Year, b.Month)
}

// Bucket returns the bucket this expense currently belongs to.
func (e Expense) Bucket() Bucket {
	return BucketOf(e.Owner, e.Category, e.OccurredOn)
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Owner) == "" {
		return invalid("owner", ErrEmptyOwner)
	}
	if err := e.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if !e.Category.Valid() {
		return invalid("category", ErrInvalidCategory)
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return invalid("description", ErrEmptyDescription)
	}
	if len(e.Description) > maxDescriptionLength {
		return invalid("description", ErrDescriptionTooLong)
	}
	if err := ValidateDate(e.OccurredOn); err != nil {
		return invalid("date", err)
	}
	return nil
}

// Key returns the budget's natural key.
func (b Budget) Key() Bucket {
	return Bucket{Owner: b.Owner, Category: b.Category, Month: b.Month, Year: b.Year}
}

func (b Budget) Validate() error {
	if err := b.Key().Validate(); err != nil {
		return err
	}
	if err := b.Limit.Validate(); err != nil {
		return invalid("limit", err)
	}
	if b.Spent.Cents < 0 {
		return invalid("spent", ErrInvalidAmount)
	}
	if err := ValidateThreshold(b.AlertThreshold); err != nil {
		return err
	}
	return nil
}

func ValidateThreshold(t int) error {
	if t < 0 || t > 100 {
		return invalid("alertThreshold", ErrInvalidThreshold)
	}
	return nil
}
