package core

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Quarters is the fixed quarter domain used by pivots and validation.
var Quarters = [4]int{1, 2, 3, 4}

type (
	// TransactionRecord is one flattened (state, year, quarter, type) row.
	TransactionRecord struct {
		State           string  `json:"state"`
		Year            int     `json:"year"`
		Quarter         int     `json:"quarter"`
		TransactionType string  `json:"transaction_type"`
		Count           int64   `json:"count"`
		Amount          float64 `json:"amount"`
	}

	// FilterSelection holds the chosen values for each filter dimension.
	// A nil slice selects every observed value and encodes as null; a non-nil
	// empty slice selects nothing.
	FilterSelection struct {
		Years            []int    `json:"years"`
		Quarters         []int    `json:"quarters"`
		States           []string `json:"states"`
		TransactionTypes []string `json:"transaction_types"`
	}

	// Dimensions lists the distinct values observed in a table, sorted ascending.
	Dimensions struct {
		Years            []int    `json:"years"`
		Quarters         []int    `json:"quarters"`
		States           []string `json:"states"`
		TransactionTypes []string `json:"transaction_types"`
	}
)

var (
	ErrEmptyState     = errors.New("empty state")
	ErrInvalidYear    = errors.New("invalid year")
	ErrInvalidQuarter = errors.New("invalid quarter")
	ErrEmptyType      = errors.New("empty transaction type")
	ErrNegativeCount  = errors.New("negative count")
	ErrNegativeAmount = errors.New("negative amount")
)

func (r TransactionRecord) Validate() error {
	if strings.TrimSpace(r.State) == "" {
		return ErrEmptyState
	}
	if r.Year <= 0 {
		return ErrInvalidYear
	}
	if !ValidQuarter(r.Quarter) {
		return ErrInvalidQuarter
	}
	if strings.TrimSpace(r.TransactionType) == "" {
		return ErrEmptyType
	}
	if r.Count < 0 {
		return ErrNegativeCount
	}
	if r.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// ValidQuarter reports whether q is within 1-4.
func ValidQuarter(q int) bool {
	return q >= 1 && q <= 4
}

// AllSelected reports whether the selection leaves every dimension unrestricted.
func (s FilterSelection) AllSelected() bool {
	return s.Years == nil && s.Quarters == nil && s.States == nil && s.TransactionTypes == nil
}

// Key returns a canonical representation usable as a cache key.
// Selections that match the same rows on every table produce the same key.
func (s FilterSelection) Key() string {
	var b strings.Builder
	b.WriteString("y=")
	b.WriteString(intSetKey(s.Years))
	b.WriteString("|q=")
	b.WriteString(intSetKey(s.Quarters))
	b.WriteString("|s=")
	b.WriteString(stringSetKey(s.States))
	b.WriteString("|t=")
	b.WriteString(stringSetKey(s.TransactionTypes))
	return b.String()
}

func intSetKey(v []int) string {
	if v == nil {
		return "*"
	}
	c := append([]int(nil), v...)
	sort.Ints(c)
	parts := make([]string, 0, len(c))
	for i, n := range c {
		if i > 0 && c[i-1] == n {
			continue
		}
		parts = append(parts, strconv.Itoa(n))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func stringSetKey(v []string) string {
	if v == nil {
		return "*"
	}
	c := append([]string(nil), v...)
	sort.Strings(c)
	parts := make([]string, 0, len(c))
	for i, s := range c {
		if i > 0 && c[i-1] == s {
			continue
		}
		parts = append(parts, strconv.Quote(s))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
