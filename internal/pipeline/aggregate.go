package pipeline

import (
	"sort"

	"github.com/shopspring/decimal"

	"pulse/internal/core"
)

// TopStatesLimit caps the number of rows returned by TopStatesByAmount.
const TopStatesLimit = 10

type (
	Totals struct {
		Count  int64   `json:"total_count"`
		Amount float64 `json:"total_amount"`
	}

	YearCount struct {
		Year  int   `json:"year"`
		Count int64 `json:"count"`
	}

	StateAmount struct {
		State  string  `json:"state"`
		Amount float64 `json:"amount"`
	}

	TypeCount struct {
		TransactionType string `json:"transaction_type"`
		Count           int64  `json:"count"`
	}

	// TypeShare is one pie segment; the percentages of a slice sum to 100.
	TypeShare struct {
		TransactionType string  `json:"transaction_type"`
		Count           int64   `json:"count"`
		Percent         float64 `json:"percent"`
	}

	// Pivot is a state by quarter table of summed amounts.
	// Columns are always quarters 1-4, in order.
	Pivot struct {
		States   []string     `json:"states"`
		Quarters [4]int       `json:"quarters"`
		Cells    [][4]float64 `json:"cells"`
	}

	Pair struct {
		Count           int64   `json:"count"`
		Amount          float64 `json:"amount"`
		TransactionType string  `json:"transaction_type"`
	}

	QuarterAmount struct {
		Year    int     `json:"year"`
		Quarter int     `json:"quarter"`
		Amount  float64 `json:"amount"`
	}
)

// sumAmounts accumulates amounts in decimal so that large sums do not drift.
func sumAmounts(view []core.TransactionRecord, key func(core.TransactionRecord) string) map[string]decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	for _, r := range view {
		k := key(r)
		sums[k] = sums[k].Add(decimal.NewFromFloat(r.Amount))
	}
	return sums
}

// ComputeTotals returns the headline metrics of view.
func ComputeTotals(view []core.TransactionRecord) Totals {
	var (
		count  int64
		amount decimal.Decimal
	)
	for _, r := range view {
		count += r.Count
		amount = amount.Add(decimal.NewFromFloat(r.Amount))
	}
	return Totals{Count: count, Amount: amount.InexactFloat64()}
}

// ByYear sums count per year, ascending by year.
func ByYear(view []core.TransactionRecord) []YearCount {
	sums := map[int]int64{}
	for _, r := range view {
		sums[r.Year] += r.Count
	}
	out := make([]YearCount, 0, len(sums))
	for y, c := range sums {
		out = append(out, YearCount{Year: y, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// TopStatesByAmount sums amount per state and keeps the largest
// TopStatesLimit, ties broken by state name.
func TopStatesByAmount(view []core.TransactionRecord) []StateAmount {
	sums := sumAmounts(view, func(r core.TransactionRecord) string { return r.State })
	type row struct {
		state  string
		amount decimal.Decimal
	}
	rows := make([]row, 0, len(sums))
	for s, a := range sums {
		rows = append(rows, row{state: s, amount: a})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].amount.Cmp(rows[j].amount); c != 0 {
			return c > 0
		}
		return rows[i].state < rows[j].state
	})
	if len(rows) > TopStatesLimit {
		rows = rows[:TopStatesLimit]
	}
	out := make([]StateAmount, len(rows))
	for i, r := range rows {
		out[i] = StateAmount{State: r.state, Amount: r.amount.InexactFloat64()}
	}
	return out
}

// ByType sums count per transaction type, ordered by type name.
func ByType(view []core.TransactionRecord) []TypeCount {
	sums := map[string]int64{}
	for _, r := range view {
		sums[r.TransactionType] += r.Count
	}
	out := make([]TypeCount, 0, len(sums))
	for t, c := range sums {
		out = append(out, TypeCount{TransactionType: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionType < out[j].TransactionType })
	return out
}

// TypeShares converts per-type counts into pie segments. A zero total
// yields no segments.
func TypeShares(byType []TypeCount) []TypeShare {
	var total int64
	for _, t := range byType {
		total += t.Count
	}
	if total == 0 {
		return []TypeShare{}
	}
	out := make([]TypeShare, 0, len(byType))
	var assigned float64
	for i, t := range byType {
		pct := float64(t.Count) / float64(total) * 100
		if i == len(byType)-1 {
			pct = 100 - assigned
		}
		assigned += pct
		out = append(out, TypeShare{TransactionType: t.TransactionType, Count: t.Count, Percent: pct})
	}
	return out
}

// StateQuarterPivot cross-tabulates summed amount by state and quarter.
func StateQuarterPivot(view []core.TransactionRecord) Pivot {
	cells := map[string]*[4]decimal.Decimal{}
	for _, r := range view {
		if !core.ValidQuarter(r.Quarter) {
			continue
		}
		row, ok := cells[r.State]
		if !ok {
			row = &[4]decimal.Decimal{}
			cells[r.State] = row
		}
		row[r.Quarter-1] = row[r.Quarter-1].Add(decimal.NewFromFloat(r.Amount))
	}

	p := Pivot{
		States:   make([]string, 0, len(cells)),
		Quarters: core.Quarters,
	}
	for s := range cells {
		p.States = append(p.States, s)
	}
	sort.Strings(p.States)
	p.Cells = make([][4]float64, len(p.States))
	for i, s := range p.States {
		for q, d := range cells[s] {
			p.Cells[i][q] = d.InexactFloat64()
		}
	}
	return p
}

// CountAmountPairs returns the raw scatter points of view.
func CountAmountPairs(view []core.TransactionRecord) []Pair {
	out := make([]Pair, len(view))
	for i, r := range view {
		out[i] = Pair{Count: r.Count, Amount: r.Amount, TransactionType: r.TransactionType}
	}
	return out
}

// QuarterTrend sums amount per (year, quarter), ascending.
func QuarterTrend(view []core.TransactionRecord) []QuarterAmount {
	type yq struct{ year, quarter int }
	sums := map[yq]decimal.Decimal{}
	for _, r := range view {
		k := yq{r.Year, r.Quarter}
		sums[k] = sums[k].Add(decimal.NewFromFloat(r.Amount))
	}
	out := make([]QuarterAmount, 0, len(sums))
	for k, a := range sums {
		out = append(out, QuarterAmount{Year: k.year, Quarter: k.quarter, Amount: a.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Quarter < out[j].Quarter
	})
	return out
}
