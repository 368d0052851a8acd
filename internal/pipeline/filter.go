// Package pipeline filters a transaction table by a core.FilterSelection and
// computes the aggregates the dashboard charts are drawn from. Every function
// here is pure: the same table and selection always produce the same output.
package pipeline

import (
	"sort"

	"pulse/internal/core"
)

// matcher tests records against a selection. A nil set matches everything.
type matcher struct {
	years    map[int]struct{}
	quarters map[int]struct{}
	states   map[string]struct{}
	types    map[string]struct{}
}

func newMatcher(sel core.FilterSelection) matcher {
	return matcher{
		years:    toSet(sel.Years),
		quarters: toSet(sel.Quarters),
		states:   toSet(sel.States),
		types:    toSet(sel.TransactionTypes),
	}
}

func toSet[T comparable](values []T) map[T]struct{} {
	if values == nil {
		return nil
	}
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func in[T comparable](set map[T]struct{}, v T) bool {
	if set == nil {
		return true
	}
	_, ok := set[v]
	return ok
}

func (m matcher) match(r core.TransactionRecord) bool {
	return in(m.years, r.Year) &&
		in(m.quarters, r.Quarter) &&
		in(m.states, r.State) &&
		in(m.types, r.TransactionType)
}

// Filter returns the rows of table matching every dimension of sel.
// The table is never modified; the result is a new slice.
func Filter(table []core.TransactionRecord, sel core.FilterSelection) []core.TransactionRecord {
	if sel.AllSelected() {
		return append([]core.TransactionRecord(nil), table...)
	}
	m := newMatcher(sel)
	view := make([]core.TransactionRecord, 0, len(table))
	for _, r := range table {
		if m.match(r) {
			view = append(view, r)
		}
	}
	return view
}

// Observe lists the distinct values of each filter dimension in table.
func Observe(table []core.TransactionRecord) core.Dimensions {
	years := map[int]struct{}{}
	quarters := map[int]struct{}{}
	states := map[string]struct{}{}
	types := map[string]struct{}{}
	for _, r := range table {
		years[r.Year] = struct{}{}
		quarters[r.Quarter] = struct{}{}
		states[r.State] = struct{}{}
		types[r.TransactionType] = struct{}{}
	}
	return core.Dimensions{
		Years:            sortedInts(years),
		Quarters:         sortedInts(quarters),
		States:           sortedStrings(states),
		TransactionTypes: sortedStrings(types),
	}
}

func sortedInts(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
