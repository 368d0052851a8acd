// Package dataset holds the transaction table currently served by the
// process. A table is immutable once published; reloads build a new
// snapshot and swap it in as a whole.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pulse/internal/core"
	"pulse/internal/ingest"
	plog "pulse/internal/log"
	"pulse/internal/pipeline"
)

// Source produces complete tables.
type Source interface {
	// Name identifies the source in logs and reports.
	Name() string
	// Fingerprint returns a key that changes whenever Load would return different data.
	Fingerprint(ctx context.Context) (string, error)
	Load(ctx context.Context) (*ingest.Result, error)
}

// Snapshot is one published table with everything derived from it at load time.
type Snapshot struct {
	Version     uint64
	Records     []core.TransactionRecord
	Dimensions  core.Dimensions
	Report      ingest.Report
	Fingerprint string
	LoadedAt    time.Time
}

// Degraded reports whether the snapshot stands in for data that could not be loaded.
func (s *Snapshot) Degraded() bool {
	return s.Report.Degraded
}

// Store publishes snapshots to concurrent readers.
type Store struct {
	source  Source
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]

	// reloadMu serialises reloads; readers never take it.
	reloadMu sync.Mutex
	version  uint64
}

// NewStore creates a store holding an empty, degraded snapshot until the first reload.
func NewStore(source Source, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		source: source,
		logger: logger.With(plog.FieldComponent, plog.ComponentDataset),
	}
	s.current.Store(&Snapshot{
		Dimensions: pipeline.Observe(nil),
		Report: ingest.Report{
			Source:         source.Name(),
			Degraded:       true,
			DegradedReason: "dataset not loaded yet",
		},
	})
	return s
}

// Current returns the published snapshot. It is never nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload loads the source and publishes the result. Unless force is set, a
// source whose fingerprint matches the current snapshot is not re-read.
// The returned bool reports whether a new snapshot was published.
func (s *Store) Reload(ctx context.Context, force bool) (*Snapshot, bool, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	cur := s.Current()
	fp, err := s.source.Fingerprint(ctx)
	if err != nil {
		// Without a fingerprint the load still runs; it just cannot be skipped.
		s.logger.WarnContext(ctx, "Source fingerprint failed", plog.FieldError, err, "source", s.source.Name())
		fp = ""
	}
	if !force && fp != "" && cur.Version > 0 && fp == cur.Fingerprint {
		s.logger.DebugContext(ctx, "Source unchanged, keeping snapshot", plog.FieldVersion, cur.Version)
		return cur, false, nil
	}

	res, err := s.source.Load(ctx)
	if err != nil {
		return cur, false, fmt.Errorf("load %s: %w", s.source.Name(), err)
	}

	s.version++
	next := &Snapshot{
		Version:     s.version,
		Records:     res.Records,
		Dimensions:  pipeline.Observe(res.Records),
		Report:      res.Report,
		Fingerprint: fp,
		LoadedAt:    time.Now(),
	}
	s.current.Store(next)

	s.logger.InfoContext(ctx, "Snapshot published",
		plog.NewFields().
			WithOperation(plog.OpReload).
			WithSnapshot(next.Report.RunID, next.Version, len(next.Records)).
			ToSlice()...)
	if next.Degraded() {
		s.logger.WarnContext(ctx, "Serving degraded snapshot", "reason", next.Report.DegradedReason)
	}
	return next, true, nil
}
