package core

import "strings"

// Category is one label of the schema's fixed category set.
type Category string

const (
	CategoryFood          Category = "Food & Drinks"
	CategoryShopping      Category = "Shopping"
	CategoryTransport     Category = "Transport"
	CategoryHousing       Category = "Housing"
	CategoryEntertainment Category = "Entertainment"
	CategoryIncome        Category = "Income"
	CategoryHealth        Category = "Health"
	CategoryInvestment    Category = "Investment"
	CategoryOther         Category = "Other"
)

// Schema describes one persisted layout of the ledger: the slot it lives in
// and the categories its entries may carry.
type Schema struct {
	Version    int
	Slot       string
	AdviceSlot string
	Categories []Category
}

// SchemaV1 is the only schema this build reads or writes. Entries are stored
// in insertion order, oldest first.
var SchemaV1 = Schema{
	Version:    1,
	Slot:       "ledgerly_in_transactions",
	AdviceSlot: "ledgerly_in_advice",
	Categories: []Category{
		CategoryFood,
		CategoryShopping,
		CategoryTransport,
		CategoryHousing,
		CategoryEntertainment,
		CategoryIncome,
		CategoryHealth,
		CategoryInvestment,
		CategoryOther,
	},
}

func (s Schema) HasCategory(c Category) bool {
	for _, known := range s.Categories {
		if known == c {
			return true
		}
	}
	return false
}

// ParseCategory matches free text against the category set, ignoring case,
// surrounding quotes and trailing punctuation. The boolean is false when the
// text names no known category.
func (s Schema) ParseCategory(text string) (Category, bool) {
	t := strings.Trim(text, " \t\r\n\"'`*.!")
	if t == "" {
		return "", false
	}
	for _, known := range s.Categories {
		if strings.EqualFold(string(known), t) {
			return known, true
		}
	}
	return "", false
}

// CategoryNames returns the category labels as plain strings.
func (s Schema) CategoryNames() []string {
	out := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		out[i] = string(c)
	}
	return out
}

// ParseCategory is SchemaV1.ParseCategory.
func ParseCategory(text string) (Category, bool) {
	return SchemaV1.ParseCategory(text)
}
