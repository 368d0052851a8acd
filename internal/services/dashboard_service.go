// Package services wires the dataset store, the pipeline and the stores
// around them into the operations the HTTP layer and commands call.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pulse/internal/cache"
	"pulse/internal/core"
	"pulse/internal/dataset"
	"pulse/internal/ingest"
	plog "pulse/internal/log"
	"pulse/internal/pipeline"
)

// SnapshotStore is the part of dataset.Store the dashboard reads and reloads.
type SnapshotStore interface {
	Current() *dataset.Snapshot
	Reload(ctx context.Context, force bool) (*dataset.Snapshot, bool, error)
}

// Result is a computed dashboard together with the snapshot it came from.
type Result struct {
	Version        uint64
	Degraded       bool
	DegradedReason string
	LoadedAt       time.Time
	Dashboard      pipeline.Dashboard
}

// DashboardService computes dashboards for selections, memoising results per
// snapshot version.
type DashboardService struct {
	store  SnapshotStore
	cache  cache.Cache[pipeline.Dashboard]
	logger *slog.Logger
}

func NewDashboardService(store SnapshotStore, c cache.Cache[pipeline.Dashboard], logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		store:  store,
		cache:  c,
		logger: logger.With(plog.FieldComponent, plog.ComponentPipeline),
	}
}

func cacheKey(version uint64, sel core.FilterSelection) string {
	return fmt.Sprintf("v%d|%s", version, sel.Key())
}

// Dashboard returns every aggregate for sel over the current snapshot.
func (s *DashboardService) Dashboard(ctx context.Context, sel core.FilterSelection) Result {
	snap := s.store.Current()
	res := Result{
		Version:        snap.Version,
		Degraded:       snap.Degraded(),
		DegradedReason: snap.Report.DegradedReason,
		LoadedAt:       snap.LoadedAt,
	}

	key := cacheKey(snap.Version, sel)
	if s.cache != nil {
		if d, ok := s.cache.Get(key); ok {
			res.Dashboard = d
			return res
		}
	}

	start := time.Now()
	res.Dashboard = pipeline.Compute(snap.Records, sel)
	s.logger.DebugContext(ctx, "Dashboard computed",
		plog.FieldOperation, plog.OpCompute,
		plog.FieldVersion, snap.Version,
		plog.FieldSelection, sel.Key(),
		"rows", res.Dashboard.Rows,
		plog.FieldDuration, time.Since(start).Milliseconds())

	if s.cache != nil {
		s.cache.Set(key, res.Dashboard)
	}
	return res
}

// Records returns the filtered view for sel.
func (s *DashboardService) Records(sel core.FilterSelection) []core.TransactionRecord {
	return pipeline.Filter(s.store.Current().Records, sel)
}

// Dimensions returns the filter values observed in the current snapshot.
func (s *DashboardService) Dimensions() core.Dimensions {
	return s.store.Current().Dimensions
}

// LoadReport returns the report of the load behind the current snapshot.
func (s *DashboardService) LoadReport() ingest.Report {
	return s.store.Current().Report
}

// Snapshot returns the current snapshot.
func (s *DashboardService) Snapshot() *dataset.Snapshot {
	return s.store.Current()
}

// Reload forces a reload of the source. Cached dashboards of older versions
// are dropped when a new snapshot is published.
func (s *DashboardService) Reload(ctx context.Context) (*dataset.Snapshot, error) {
	snap, changed, err := s.store.Reload(ctx, true)
	if err != nil {
		return snap, err
	}
	if changed && s.cache != nil {
		s.cache.Purge()
	}
	return snap, nil
}
