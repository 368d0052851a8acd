package services

import (
	"context"
	"fmt"
	"log/slog"

	"pulse/internal/amqp"
	"pulse/internal/backend"
	"pulse/internal/core"
	"pulse/internal/ingest"
	plog "pulse/internal/log"
)

// TableLoader reads a table and its report.
type TableLoader interface {
	Load(ctx context.Context, root string) (*ingest.Result, error)
}

// SnapshotWriter stores an imported table.
type SnapshotWriter interface {
	ReplaceSnapshot(ctx context.Context, records []core.TransactionRecord, report ingest.Report) error
	Close() error
}

// ReloadPublisher announces a finished import.
type ReloadPublisher interface {
	PublishReload(ctx context.Context, msg *amqp.ReloadMessage) error
	Close() error
}

// ImportService copies the directory tree into SQLite and tells running
// servers to reload.
type ImportService struct {
	loader    TableLoader
	storage   SnapshotWriter
	publisher ReloadPublisher
	logger    *slog.Logger
}

// NewImportService creates an import service. publisher may be nil.
func NewImportService(loader TableLoader, storage SnapshotWriter, publisher ReloadPublisher, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		loader:    loader,
		storage:   storage,
		publisher: publisher,
		logger:    logger.With(plog.FieldComponent, plog.ComponentImport),
	}
}

// Import loads root and replaces the stored table with it. A degraded load is
// not stored, so a missing directory never wipes a previous import.
func (s *ImportService) Import(ctx context.Context, root string) (ingest.Report, error) {
	res, err := s.loader.Load(ctx, root)
	if err != nil {
		return ingest.Report{}, fmt.Errorf("load %s: %w", root, err)
	}
	if res.Report.Degraded {
		return res.Report, fmt.Errorf("refusing to import degraded load: %s", res.Report.DegradedReason)
	}

	if err := s.storage.ReplaceSnapshot(ctx, res.Records, res.Report); err != nil {
		return res.Report, fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.InfoContext(ctx, "Import stored",
		plog.NewFields().
			WithOperation(plog.OpImport).
			WithSnapshot(res.Report.RunID, 0, len(res.Records)).
			ToSlice()...)

	// The import is committed; a failed announcement only delays the reload.
	if err := s.publishReload(ctx, res.Report); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish reload message", plog.FieldRunID, res.Report.RunID, plog.FieldError, err)
	}
	return res.Report, nil
}

func (s *ImportService) publishReload(ctx context.Context, report ingest.Report) error {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping reload message")
		return nil
	}
	return s.publisher.PublishReload(ctx, amqp.NewReloadMessage(report.RunID, backend.SourceSQLite, "import finished"))
}

// Close closes both storage and AMQP connections
func (s *ImportService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close import service: %v", errs)
	}

	return nil
}
