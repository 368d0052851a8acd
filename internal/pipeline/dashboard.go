package pipeline

import "pulse/internal/core"

// Dashboard bundles every aggregate drawn for one selection.
type Dashboard struct {
	Selection         core.FilterSelection
	Rows              int
	Totals            Totals
	ByYear            []YearCount
	TopStatesByAmount []StateAmount
	ByType            []TypeCount
	TypeShares        []TypeShare
	StateQuarterPivot Pivot
	CountAmountPairs  []Pair
	Correlation       float64
	CorrelationMatrix [2][2]float64
	QuarterTrend      []QuarterAmount
}

// Compute filters table by sel and derives all aggregates from the view.
func Compute(table []core.TransactionRecord, sel core.FilterSelection) Dashboard {
	view := Filter(table, sel)
	byType := ByType(view)
	r := Correlation(view)
	return Dashboard{
		Selection:         sel,
		Rows:              len(view),
		Totals:            ComputeTotals(view),
		ByYear:            ByYear(view),
		TopStatesByAmount: TopStatesByAmount(view),
		ByType:            byType,
		TypeShares:        TypeShares(byType),
		StateQuarterPivot: StateQuarterPivot(view),
		CountAmountPairs:  CountAmountPairs(view),
		Correlation:       r,
		CorrelationMatrix: CorrelationMatrix(r),
		QuarterTrend:      QuarterTrend(view),
	}
}
