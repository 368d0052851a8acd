package http

import (
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"pulse/internal/core"
	"pulse/internal/ingest"
	"pulse/internal/pipeline"
	"pulse/internal/services"
)

// nullable maps NaN and infinities to nil so they encode as JSON null.
func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

type snapshotJSON struct {
	Version        uint64    `json:"version"`
	Degraded       bool      `json:"degraded"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
	LoadedAt       time.Time `json:"loaded_at"`
}

type dashboardJSON struct {
	Snapshot          snapshotJSON             `json:"snapshot"`
	Selection         core.FilterSelection     `json:"selection"`
	Rows              int                      `json:"rows"`
	Totals            pipeline.Totals          `json:"totals"`
	ByYear            []pipeline.YearCount     `json:"by_year"`
	TopStatesByAmount []pipeline.StateAmount   `json:"top_states_by_amount"`
	ByType            []pipeline.TypeCount     `json:"by_type"`
	TypeShares        []pipeline.TypeShare     `json:"type_shares"`
	StateQuarterPivot pipeline.Pivot           `json:"state_quarter_pivot"`
	CountAmountPairs  []pipeline.Pair          `json:"count_amount_pairs"`
	Correlation       *float64                 `json:"correlation"`
	CorrelationMatrix [2][2]*float64           `json:"correlation_matrix"`
	QuarterTrend      []pipeline.QuarterAmount `json:"quarter_trend"`
}

func snapshotView(res services.Result) snapshotJSON {
	return snapshotJSON{
		Version:        res.Version,
		Degraded:       res.Degraded,
		DegradedReason: res.DegradedReason,
		LoadedAt:       res.LoadedAt,
	}
}

func newDashboardJSON(res services.Result) dashboardJSON {
	d := res.Dashboard
	out := dashboardJSON{
		Snapshot:          snapshotView(res),
		Selection:         d.Selection,
		Rows:              d.Rows,
		Totals:            d.Totals,
		ByYear:            d.ByYear,
		TopStatesByAmount: d.TopStatesByAmount,
		ByType:            d.ByType,
		TypeShares:        d.TypeShares,
		StateQuarterPivot: d.StateQuarterPivot,
		CountAmountPairs:  d.CountAmountPairs,
		Correlation:       nullable(d.Correlation),
		QuarterTrend:      d.QuarterTrend,
	}
	for i := range d.CorrelationMatrix {
		for j := range d.CorrelationMatrix[i] {
			out.CorrelationMatrix[i][j] = nullable(d.CorrelationMatrix[i][j])
		}
	}
	return out
}

type reportJSON struct {
	ingest.Report
	FilesLoaded    int `json:"files_loaded"`
	FilesEmpty     int `json:"files_empty"`
	FilesSkipped   int `json:"files_skipped"`
	EntriesSkipped int `json:"entries_skipped"`
	RecordCount    int `json:"record_count"`
}

func newReportJSON(r ingest.Report) reportJSON {
	if r.Files == nil {
		r.Files = []ingest.FileResult{}
	}
	return reportJSON{
		Report:         r,
		FilesLoaded:    r.FilesLoaded(),
		FilesEmpty:     r.FilesEmpty(),
		FilesSkipped:   r.FilesSkipped(),
		EntriesSkipped: r.EntriesSkipped(),
		RecordCount:    r.RecordCount(),
	}
}

func formatCount(n int64) string {
	return humanize.Comma(n)
}

func formatAmount(f float64) string {
	return humanize.FormatFloat("#,###.##", f)
}

func formatCorrelation(r float64) string {
	if math.IsNaN(r) {
		return "n/a"
	}
	return humanize.FormatFloat("#.###", r)
}

// summaryView is the data behind the summary partial.
type summaryView struct {
	Version        uint64
	Degraded       bool
	DegradedReason string
	Rows           int
	TotalCount     string
	TotalAmount    string
	Correlation    string
	ByYear         []labelValue
	TopStates      []labelValue
	TypeShares     []shareRow
	Pivot          pivotView
}

type labelValue struct {
	Label string
	Value string
}

type shareRow struct {
	Label   string
	Count   string
	Percent string
}

type pivotView struct {
	Quarters [4]int
	Rows     []pivotRow
}

type pivotRow struct {
	State string
	Cells [4]string
}

func newSummaryView(res services.Result) summaryView {
	d := res.Dashboard
	v := summaryView{
		Version:        res.Version,
		Degraded:       res.Degraded,
		DegradedReason: res.DegradedReason,
		Rows:           d.Rows,
		TotalCount:     formatCount(d.Totals.Count),
		TotalAmount:    formatAmount(d.Totals.Amount),
		Correlation:    formatCorrelation(d.Correlation),
		Pivot:          pivotView{Quarters: d.StateQuarterPivot.Quarters},
	}
	for _, y := range d.ByYear {
		v.ByYear = append(v.ByYear, labelValue{Label: strconv.Itoa(y.Year), Value: formatCount(y.Count)})
	}
	for _, s := range d.TopStatesByAmount {
		v.TopStates = append(v.TopStates, labelValue{Label: s.State, Value: formatAmount(s.Amount)})
	}
	for _, s := range d.TypeShares {
		v.TypeShares = append(v.TypeShares, shareRow{
			Label:   s.TransactionType,
			Count:   formatCount(s.Count),
			Percent: humanize.FormatFloat("#.#", s.Percent) + "%",
		})
	}
	for i, state := range d.StateQuarterPivot.States {
		row := pivotRow{State: state}
		for q, amount := range d.StateQuarterPivot.Cells[i] {
			row.Cells[q] = formatAmount(amount)
		}
		v.Pivot.Rows = append(v.Pivot.Rows, row)
	}
	return v
}
