package core

import (
	"sort"
)

// CategoryAmount is an amount aggregated by category.
type CategoryAmount struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
	Count    int      `json:"count"`
}

// CategoryShare is a category total with its share of the month.
type CategoryShare struct {
	CategoryAmount
	Percentage float64 `json:"percentage"`
}

// MonthlySummary is the per-category breakdown of one owner's month.
type MonthlySummary struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Total      Money           `json:"totalAmount"`
	Count      int             `json:"totalCount"`
	ByCategory []CategoryShare `json:"categories"`
}

// GroupByCategory totals expenses per category, largest first.
func GroupByCategory(expenses []Expense) []CategoryAmount {
	idx := make(map[Category]int)
	var out []CategoryAmount
	for _, e := range expenses {
		i, ok := idx[e.Category]
		if !ok {
			i = len(out)
			idx[e.Category] = i
			out = append(out, CategoryAmount{Category: e.Category})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Amount.Cents != out[b].Amount.Cents {
			return out[a].Amount.Cents > out[b].Amount.Cents
		}
		return out[a].Category < out[b].Category
	})
	return out
}

// Summarize builds the monthly summary for expenses already limited to
// (year, month).
func Summarize(year, month int, expenses []Expense) MonthlySummary {
	s := MonthlySummary{Year: year, Month: month, Count: len(expenses), ByCategory: []CategoryShare{}}
	groups := GroupByCategory(expenses)
	for _, g := range groups {
		s.Total = s.Total.Add(g.Amount)
	}
	for _, g := range groups {
		pct := Percent(g.Amount, s.Total, 2).InexactFloat64()
		s.ByCategory = append(s.ByCategory, CategoryShare{CategoryAmount: g, Percentage: pct})
	}
	return s
}
