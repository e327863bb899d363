package core

import "strings"

// CategoryRule maps a category to the description keywords that select it.
type CategoryRule struct {
	Category Category
	Keywords []string
}

// DefaultCategoryRules returns a fresh copy of the built-in keyword table.
// Order matters: "gas" is listed under both Transport and Bills and the
// first rule wins.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Transport, []string{"uber", "taxi", "bus", "train", "metro", "rickshaw", "fuel", "petrol", "gas"}},
		{Food, []string{"restaurant", "food", "meal", "lunch", "dinner", "breakfast", "cafe", "pizza", "burger"}},
		{Entertainment, []string{"movie", "cinema", "game", "concert", "party", "club", "netflix", "spotify"}},
		{Shopping, []string{"shop", "store", "mall", "amazon", "flipkart", "clothes", "shoes"}},
		{Bills, []string{"electricity", "water", "gas", "internet", "phone", "rent", "utility"}},
		{Healthcare, []string{"doctor", "hospital", "medicine", "pharmacy", "clinic", "health"}},
		{Education, []string{"school", "college", "university", "course", "book", "tuition"}},
	}
}

// Categorizer assigns a category from free-text descriptions.
type Categorizer struct {
	rules []CategoryRule
}

// NewCategorizer builds a categorizer over an ordered rule table. The
// table is copied and keywords are lower-cased; empty keywords are dropped.
func NewCategorizer(rules []CategoryRule) *Categorizer {
	cp := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				kws = append(kws, kw)
			}
		}
		cp = append(cp, CategoryRule{Category: r.Category, Keywords: kws})
	}
	return &Categorizer{rules: cp}
}

// Categorize returns the category of the first rule with a keyword that
// occurs in description (case-insensitive substring), or Other.
func (c *Categorizer) Categorize(description string) Category {
	desc := strings.ToLower(description)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(desc, kw) {
				return r.Category
			}
		}
	}
	return Other
}
