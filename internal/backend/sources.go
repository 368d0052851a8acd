package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pulse/internal/core"
	"pulse/internal/ingest"
	"pulse/internal/storage"
)

// DirectorySource reads the quarter-file tree on every load.
type DirectorySource struct {
	root   string
	loader *ingest.Loader
}

func NewDirectorySource(root string, workers int, logger *slog.Logger) *DirectorySource {
	return &DirectorySource{root: root, loader: ingest.NewLoader(workers, logger)}
}

func (s *DirectorySource) Name() string { return ingest.SourceDirectory }

func (s *DirectorySource) Fingerprint(ctx context.Context) (string, error) {
	return ingest.Fingerprint(s.root)
}

func (s *DirectorySource) Load(ctx context.Context) (*ingest.Result, error) {
	return s.loader.Load(ctx, s.root)
}

// RecordStore is the part of the SQLite repository a source reads from.
type RecordStore interface {
	ListRecords(ctx context.Context) ([]core.TransactionRecord, error)
	LatestReport(ctx context.Context) (ingest.Report, error)
	Path() string
}

// SourceSQLite names tables served from an import.
const SourceSQLite = "sqlite"

// SQLiteSource serves the table stored by the last import. The load report
// is the import's report, so skipped files stay visible after the move.
type SQLiteSource struct {
	store RecordStore
}

func NewSQLiteSource(store RecordStore) *SQLiteSource {
	return &SQLiteSource{store: store}
}

func (s *SQLiteSource) Name() string { return SourceSQLite }

// Fingerprint is the id of the latest import run.
func (s *SQLiteSource) Fingerprint(ctx context.Context) (string, error) {
	report, err := s.store.LatestReport(ctx)
	if errors.Is(err, storage.ErrNoRuns) {
		return "no-runs", nil
	}
	if err != nil {
		return "", err
	}
	return "run:" + report.RunID, nil
}

func (s *SQLiteSource) Load(ctx context.Context) (*ingest.Result, error) {
	start := time.Now()
	report, err := s.store.LatestReport(ctx)
	if errors.Is(err, storage.ErrNoRuns) {
		return &ingest.Result{Report: ingest.Report{
			RunID:          uuid.NewString(),
			Source:         SourceSQLite,
			Root:           s.store.Path(),
			StartedAt:      start,
			Degraded:       true,
			DegradedReason: "no import has been recorded in " + s.store.Path(),
		}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read latest report: %w", err)
	}

	records, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	report.Source = SourceSQLite
	return &ingest.Result{Records: records, Report: report}, nil
}
