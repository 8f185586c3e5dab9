package emissions

import (
	"strings"

	"golang.org/x/text/cases"
)

// DefaultCO2 is the tier C value (kg CO2) used for foods found in no table.
const DefaultCO2 = 0.5

// Entry is one food with its emissions per serving in kg CO2.
type Entry struct {
	Name          string  `json:"food_item"`
	CO2PerServing float64 `json:"co2_emission"`
}

// Normalize folds a food name into lookup-key form: trimmed and Unicode
// case-folded, so "Biryani", "BIRYANI" and " biryani " share a key.
func Normalize(name string) string {
	// A Caser is stateful; each call gets its own.
	return cases.Fold().String(strings.TrimSpace(name))
}

// Table is an immutable lookup from food name to kg CO2 per serving.
// Keys are normalized when the table is built, so lookups never re-fold
// stored keys. Declaration order is kept for listing.
type Table struct {
	values map[string]float64
	order  []string
}

// NewTable builds a Table. A later entry with the same normalized name
// replaces an earlier one.
func NewTable(entries []Entry) *Table {
	t := &Table{values: make(map[string]float64, len(entries))}
	for _, e := range entries {
		k := Normalize(e.Name)
		if _, seen := t.values[k]; !seen {
			t.order = append(t.order, k)
		}
		t.values[k] = e.CO2PerServing
	}
	return t
}

// Lookup returns the value stored for name. A nil table holds nothing.
func (t *Table) Lookup(name string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.values[Normalize(name)]
	return v, ok
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.values)
}

// Keys returns the normalized keys in declaration order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Entries returns the table contents in declaration order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, Entry{Name: k, CO2PerServing: t.values[k]})
	}
	return out
}

// heuristicEntries is the hand-maintained fallback table (kg CO2 per serving).
var heuristicEntries = []Entry{
	{"samosa", 0.3},
	{"biryani", 2.5},
	{"butter chicken", 3.8},
	{"paneer tikka", 1.2},
	{"dosa", 0.4},
	{"idli", 0.3},
	{"chole bhature", 0.6},
	{"naan", 0.2},
	{"nan", 0.2},
	{"dal makhani", 0.8},
	{"roti", 0.1},
	{"rice", 0.5},
	{"salad", 0.2},
	{"burger", 3.0},
	{"pizza", 2.2},
}

// HeuristicTable returns the curated tier B table.
func HeuristicTable() *Table { return NewTable(heuristicEntries) }
