package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pulse/internal/core"
	"pulse/internal/ingest"
	plog "pulse/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNoRuns is returned by LatestReport when nothing has been imported yet.
var ErrNoRuns = errors.New("no load runs recorded")

// SQLiteRepository persists an imported transaction table and the reports
// of the runs that produced it.
type SQLiteRepository struct {
	db            *sql.DB
	path          string
	schemaVersion uint
	logger        *slog.Logger
}

func NewSQLiteRepository(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps writes serialised for sqlite.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	version, err := migrateSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:            db,
		path:          dbPath,
		schemaVersion: version,
		logger:        logger.With(plog.FieldComponent, plog.ComponentStorage),
	}
	repo.logger.Debug("SQLite repository ready", "path", dbPath, "schema_version", version)
	return repo, nil
}

// SchemaVersion returns the migration version the database was opened at.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

// Path returns the database file path.
func (r *SQLiteRepository) Path() string {
	return r.path
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReplaceSnapshot swaps the stored table for records and records the run
// report, all in one transaction.
func (r *SQLiteRepository) ReplaceSnapshot(ctx context.Context, records []core.TransactionRecord, report ingest.Report) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transaction_records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO transaction_records
		(state, year, quarter, transaction_type, count, amount) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer insert.Close()
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %s/%d/Q%d/%s: %w", rec.State, rec.Year, rec.Quarter, rec.TransactionType, err)
		}
		if _, err := insert.ExecContext(ctx, rec.State, rec.Year, rec.Quarter, rec.TransactionType, rec.Count, rec.Amount); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}

	if err := saveReport(ctx, tx, report); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	r.logger.InfoContext(ctx, "Snapshot saved to SQLite",
		plog.FieldRunID, report.RunID,
		plog.FieldRecords, len(records),
		"files", len(report.Files))
	return nil
}

func saveReport(ctx context.Context, tx *sql.Tx, report ingest.Report) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO load_runs
		(run_id, source, root, started_at, duration_ms, degraded, degraded_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Source, report.Root,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.Duration.Milliseconds(), boolToInt(report.Degraded), report.DegradedReason)
	if err != nil {
		return fmt.Errorf("insert load run: %w", err)
	}

	for _, f := range report.Files {
		_, err := tx.ExecContext(ctx, `INSERT INTO load_files
			(run_id, path, state, year, quarter, status, records, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, f.Path, f.State, f.Year, f.Quarter, string(f.Status), f.Records, f.Reason)
		if err != nil {
			return fmt.Errorf("insert load file %s: %w", f.Path, err)
		}
		for _, s := range f.SkippedEntries {
			_, err := tx.ExecContext(ctx, `INSERT INTO load_entry_skips
				(run_id, path, entry_index, name, reason) VALUES (?, ?, ?, ?, ?)`,
				report.RunID, f.Path, s.Index, s.Name, s.Reason)
			if err != nil {
				return fmt.Errorf("insert entry skip %s[%d]: %w", f.Path, s.Index, err)
			}
		}
	}
	return nil
}

// ListRecords returns the stored table.
func (r *SQLiteRepository) ListRecords(ctx context.Context) ([]core.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT state, year, quarter, transaction_type, count, amount
		FROM transaction_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.TransactionRecord
	for rows.Next() {
		var rec core.TransactionRecord
		if err := rows.Scan(&rec.State, &rec.Year, &rec.Quarter, &rec.TransactionType, &rec.Count, &rec.Amount); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// LatestReport rebuilds the report of the most recent run.
func (r *SQLiteRepository) LatestReport(ctx context.Context) (ingest.Report, error) {
	var (
		rep        ingest.Report
		startedAt  string
		durationMs int64
		degraded   int
	)
	err := r.db.QueryRowContext(ctx, `SELECT run_id, source, root, started_at, duration_ms, degraded, degraded_reason
		FROM load_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).
		Scan(&rep.RunID, &rep.Source, &rep.Root, &startedAt, &durationMs, &degraded, &rep.DegradedReason)
	if errors.Is(err, sql.ErrNoRows) {
		return ingest.Report{}, ErrNoRuns
	}
	if err != nil {
		return ingest.Report{}, fmt.Errorf("query latest run: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		rep.StartedAt = t
	}
	rep.Duration = time.Duration(durationMs) * time.Millisecond
	rep.Degraded = degraded != 0

	files, err := r.loadFiles(ctx, rep.RunID)
	if err != nil {
		return ingest.Report{}, err
	}
	rep.Files = files
	return rep, nil
}

func (r *SQLiteRepository) loadFiles(ctx context.Context, runID string) ([]ingest.FileResult, error) {
	skips, err := r.loadEntrySkips(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT path, state, year, quarter, status, records, reason
		FROM load_files WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("query load files: %w", err)
	}
	defer rows.Close()

	var files []ingest.FileResult
	for rows.Next() {
		var (
			f      ingest.FileResult
			status string
		)
		if err := rows.Scan(&f.Path, &f.State, &f.Year, &f.Quarter, &status, &f.Records, &f.Reason); err != nil {
			return nil, fmt.Errorf("scan load file: %w", err)
		}
		f.Status = ingest.FileStatus(status)
		f.SkippedEntries = skips[f.Path]
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate load files: %w", err)
	}
	return files, nil
}

func (r *SQLiteRepository) loadEntrySkips(ctx context.Context, runID string) (map[string][]ingest.EntrySkip, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT path, entry_index, name, reason
		FROM load_entry_skips WHERE run_id = ? ORDER BY path, entry_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entry skips: %w", err)
	}
	defer rows.Close()

	out := map[string][]ingest.EntrySkip{}
	for rows.Next() {
		var (
			path string
			s    ingest.EntrySkip
		)
		if err := rows.Scan(&path, &s.Index, &s.Name, &s.Reason); err != nil {
			return nil, fmt.Errorf("scan entry skip: %w", err)
		}
		out[path] = append(out[path], s)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
