package pipeline

import (
	"fmt"
	"math"
	"testing"

	"pulse/internal/core"
)

func exampleTable() []core.TransactionRecord {
	return []core.TransactionRecord{
		{State: "Karnataka", Year: 2021, Quarter: 1, TransactionType: "Recharge", Count: 1000, Amount: 1e6},
		{State: "Karnataka", Year: 2021, Quarter: 2, TransactionType: "Recharge", Count: 1500, Amount: 1.5e6},
		{State: "Delhi", Year: 2022, Quarter: 1, TransactionType: "Recharge", Count: 2000, Amount: 2e6},
	}
}

func mixedTable() []core.TransactionRecord {
	return []core.TransactionRecord{
		{State: "Goa", Year: 2020, Quarter: 1, TransactionType: "Recharge", Count: 10, Amount: 100},
		{State: "Goa", Year: 2020, Quarter: 3, TransactionType: "Merchant payments", Count: 30, Amount: 450},
		{State: "Kerala", Year: 2021, Quarter: 2, TransactionType: "Recharge", Count: 20, Amount: 150},
		{State: "Kerala", Year: 2021, Quarter: 4, TransactionType: "Peer-to-peer payments", Count: 5, Amount: 900},
		{State: "Delhi", Year: 2021, Quarter: 4, TransactionType: "Merchant payments", Count: 50, Amount: 700},
	}
}

func TestComputeExample(t *testing.T) {
	d := Compute(exampleTable(), core.FilterSelection{})

	if d.Totals.Count != 4500 || d.Totals.Amount != 4.5e6 {
		t.Fatalf("totals = %+v, want 4500 / 4.5e6", d.Totals)
	}
	wantYears := []YearCount{{2021, 2500}, {2022, 2000}}
	if fmt.Sprint(d.ByYear) != fmt.Sprint(wantYears) {
		t.Fatalf("ByYear = %v, want %v", d.ByYear, wantYears)
	}
	wantStates := []StateAmount{{"Karnataka", 2.5e6}, {"Delhi", 2e6}}
	if fmt.Sprint(d.TopStatesByAmount) != fmt.Sprint(wantStates) {
		t.Fatalf("TopStatesByAmount = %v, want %v", d.TopStatesByAmount, wantStates)
	}
	if len(d.TypeShares) != 1 || d.TypeShares[0].Percent != 100 {
		t.Fatalf("TypeShares = %+v, want single 100%% segment", d.TypeShares)
	}
	if d.Rows != 3 || len(d.CountAmountPairs) != 3 {
		t.Fatalf("rows = %d, pairs = %d", d.Rows, len(d.CountAmountPairs))
	}
	// count and amount are exactly proportional here
	if math.Abs(d.Correlation-1) > 1e-12 {
		t.Fatalf("Correlation = %v, want 1", d.Correlation)
	}
}

func TestComputeEmptyView(t *testing.T) {
	d := Compute(mixedTable(), core.FilterSelection{States: []string{"Atlantis"}})

	if d.Rows != 0 || d.Totals.Count != 0 || d.Totals.Amount != 0 {
		t.Fatalf("expected zero totals, got %+v rows=%d", d.Totals, d.Rows)
	}
	if len(d.ByYear) != 0 || len(d.TopStatesByAmount) != 0 || len(d.ByType) != 0 || len(d.TypeShares) != 0 {
		t.Fatalf("expected empty groupings: %+v", d)
	}
	if len(d.StateQuarterPivot.States) != 0 || len(d.StateQuarterPivot.Cells) != 0 {
		t.Fatalf("expected pivot without rows: %+v", d.StateQuarterPivot)
	}
	if !math.IsNaN(d.Correlation) {
		t.Fatalf("Correlation = %v, want NaN", d.Correlation)
	}
	for _, row := range d.CorrelationMatrix {
		for _, v := range row {
			if !math.IsNaN(v) {
				t.Fatalf("matrix = %v, want all NaN", d.CorrelationMatrix)
			}
		}
	}
	if len(d.QuarterTrend) != 0 || len(d.CountAmountPairs) != 0 {
		t.Fatal("expected empty trend and pairs")
	}
}

func TestFilterConjunction(t *testing.T) {
	table := mixedTable()
	tests := []struct {
		name string
		sel  core.FilterSelection
		want int
	}{
		{"all", core.FilterSelection{}, 5},
		{"one year", core.FilterSelection{Years: []int{2021}}, 3},
		{"or within dimension", core.FilterSelection{States: []string{"Goa", "Delhi"}}, 3},
		{"and across dimensions", core.FilterSelection{Years: []int{2021}, TransactionTypes: []string{"Merchant payments"}}, 1},
		{"quarter", core.FilterSelection{Quarters: []int{4}}, 2},
		{"empty set selects nothing", core.FilterSelection{Quarters: []int{}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Filter(table, tt.sel)); got != tt.want {
				t.Errorf("Filter() rows = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFilterDoesNotAliasTable(t *testing.T) {
	table := mixedTable()
	view := Filter(table, core.FilterSelection{})
	view[0].Count = 999
	if table[0].Count == 999 {
		t.Fatal("Filter returned a view sharing the table's backing array")
	}
}

func TestNarrowingNeverIncreases(t *testing.T) {
	table := mixedTable()
	full := Compute(table, core.FilterSelection{})
	narrowed := []core.FilterSelection{
		{Years: []int{2021}},
		{Quarters: []int{1, 4}},
		{States: []string{"Kerala"}},
		{TransactionTypes: []string{"Recharge"}},
	}
	for _, sel := range narrowed {
		d := Compute(table, sel)
		if d.Totals.Count > full.Totals.Count || d.Totals.Amount > full.Totals.Amount {
			t.Fatalf("narrowing %+v increased totals: %+v > %+v", sel, d.Totals, full.Totals)
		}
		if len(d.TopStatesByAmount) > len(full.TopStatesByAmount) || d.Rows > full.Rows {
			t.Fatalf("narrowing %+v grew groupings", sel)
		}
	}
}

func TestTopStatesLimitAndTies(t *testing.T) {
	var table []core.TransactionRecord
	for i := 0; i < 15; i++ {
		table = append(table, core.TransactionRecord{
			State: fmt.Sprintf("State %02d", i), Year: 2022, Quarter: 1, TransactionType: "Recharge",
			Count: 1, Amount: float64(100 * (i % 5)),
		})
	}
	top := TopStatesByAmount(table)
	if len(top) != TopStatesLimit {
		t.Fatalf("len = %d, want %d", len(top), TopStatesLimit)
	}
	for i := 1; i < len(top); i++ {
		prev, cur := top[i-1], top[i]
		if cur.Amount > prev.Amount {
			t.Fatalf("not descending at %d: %v", i, top)
		}
		if cur.Amount == prev.Amount && cur.State < prev.State {
			t.Fatalf("tie not broken by name at %d: %v", i, top)
		}
	}
	if top[0].State != "State 04" || top[1].State != "State 09" || top[2].State != "State 14" {
		t.Fatalf("unexpected leaders: %v", top[:3])
	}
}

func TestStateQuarterPivotFixedColumns(t *testing.T) {
	p := StateQuarterPivot(Filter(mixedTable(), core.FilterSelection{Quarters: []int{4}}))
	if p.Quarters != [4]int{1, 2, 3, 4} {
		t.Fatalf("Quarters = %v", p.Quarters)
	}
	if fmt.Sprint(p.States) != "[Delhi Kerala]" {
		t.Fatalf("States = %v", p.States)
	}
	want := [][4]float64{{0, 0, 0, 700}, {0, 0, 0, 900}}
	if fmt.Sprint(p.Cells) != fmt.Sprint(want) {
		t.Fatalf("Cells = %v, want %v", p.Cells, want)
	}
}

func TestTypeSharesSumTo100(t *testing.T) {
	shares := TypeShares(ByType(mixedTable()))
	if len(shares) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(shares))
	}
	var sum float64
	for _, s := range shares {
		sum += s.Percent
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Fatalf("shares sum to %v", sum)
	}

	zero := TypeShares([]TypeCount{{TransactionType: "Recharge", Count: 0}})
	if len(zero) != 0 {
		t.Fatalf("zero-sum view must produce no segments, got %+v", zero)
	}
}

func TestCorrelationUndefined(t *testing.T) {
	single := mixedTable()[:1]
	if !math.IsNaN(Correlation(single)) {
		t.Fatal("single row must be NaN")
	}
	constant := []core.TransactionRecord{
		{Count: 5, Amount: 1}, {Count: 5, Amount: 2}, {Count: 5, Amount: 3},
	}
	if !math.IsNaN(Correlation(constant)) {
		t.Fatal("zero variance must be NaN")
	}
	inverse := []core.TransactionRecord{{Count: 1, Amount: 3}, {Count: 2, Amount: 2}, {Count: 3, Amount: 1}}
	if r := Correlation(inverse); math.Abs(r+1) > 1e-12 {
		t.Fatalf("Correlation = %v, want -1", r)
	}
	if m := CorrelationMatrix(0.5); m != [2][2]float64{{1, 0.5}, {0.5, 1}} {
		t.Fatalf("CorrelationMatrix = %v", m)
	}
}

func TestQuarterTrendOrder(t *testing.T) {
	got := QuarterTrend(mixedTable())
	want := []QuarterAmount{{2020, 1, 100}, {2020, 3, 450}, {2021, 2, 150}, {2021, 4, 1600}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("QuarterTrend = %v, want %v", got, want)
	}
}

func TestObserve(t *testing.T) {
	d := Observe(mixedTable())
	if fmt.Sprint(d.Years) != "[2020 2021]" || fmt.Sprint(d.Quarters) != "[1 2 3 4]" {
		t.Fatalf("unexpected dims %+v", d)
	}
	if fmt.Sprint(d.States) != "[Delhi Goa Kerala]" || len(d.TransactionTypes) != 3 {
		t.Fatalf("unexpected dims %+v", d)
	}
	empty := Observe(nil)
	if len(empty.Years) != 0 || empty.States == nil {
		t.Fatalf("empty table dims = %+v", empty)
	}
}

func TestTotalsMatchTable(t *testing.T) {
	table := mixedTable()
	var count int64
	var amount float64
	for _, r := range table {
		count += r.Count
		amount += r.Amount
	}
	got := ComputeTotals(Filter(table, core.FilterSelection{}))
	if got.Count != count || got.Amount != amount {
		t.Fatalf("totals %+v, want %d / %v", got, count, amount)
	}
}
