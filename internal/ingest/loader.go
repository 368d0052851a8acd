// Package ingest walks a state/year/quarter directory tree of transaction
// files and flattens it into a table of core.TransactionRecord rows.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pulse/internal/core"
	plog "pulse/internal/log"
)

// SourceDirectory labels reports produced by reading the directory tree.
const SourceDirectory = "directory"

// Loader reads quarter files from disk.
type Loader struct {
	workers int
	logger  *slog.Logger
}

// NewLoader creates a loader that parses up to workers files at a time.
func NewLoader(workers int, logger *slog.Logger) *Loader {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		workers: workers,
		logger:  logger.With(plog.FieldComponent, plog.ComponentIngest),
	}
}

// fileTask is a quarter file found during traversal.
type fileTask struct {
	path string
	key  fileKey
}

// Load reads the tree rooted at root. A missing root yields an empty,
// degraded result. The only error returned is the context's.
func (l *Loader) Load(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	res := &Result{
		Report: Report{
			RunID:     uuid.NewString(),
			Source:    SourceDirectory,
			Root:      root,
			StartedAt: start,
		},
	}

	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.Report.Degraded = true
		res.Report.DegradedReason = "data directory does not exist"
		l.logger.WarnContext(ctx, "Data directory missing, serving empty table", "root", root)
		return finish(res, start), nil
	case err != nil:
		res.Report.Degraded = true
		res.Report.DegradedReason = fmt.Sprintf("stat data directory: %v", err)
		l.logger.WarnContext(ctx, "Data directory unreadable, serving empty table", "root", root, plog.FieldError, err)
		return finish(res, start), nil
	case !info.IsDir():
		res.Report.Degraded = true
		res.Report.DegradedReason = "data path is not a directory"
		l.logger.WarnContext(ctx, "Data path is not a directory, serving empty table", "root", root)
		return finish(res, start), nil
	}

	tasks, skipped := l.discover(ctx, root)
	results := make([]FileResult, len(tasks))
	records := make([][]core.TransactionRecord, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, task := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], records[i] = l.readFile(gctx, task)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load %s: %w", root, err)
	}

	for _, recs := range records {
		res.Records = append(res.Records, recs...)
	}
	res.Report.Files = append(skipped, results...)
	sort.SliceStable(res.Report.Files, func(i, j int) bool {
		return res.Report.Files[i].Path < res.Report.Files[j].Path
	})
	if len(res.Report.Files) == 0 {
		res.Report.Degraded = true
		res.Report.DegradedReason = "no quarter files found"
	}

	finish(res, start)
	l.logger.InfoContext(ctx, "Dataset loaded",
		"root", root,
		"run_id", res.Report.RunID,
		"records", len(res.Records),
		"files_loaded", res.Report.FilesLoaded(),
		"files_empty", res.Report.FilesEmpty(),
		"files_skipped", res.Report.FilesSkipped(),
		"entries_skipped", res.Report.EntriesSkipped(),
		plog.FieldDuration, res.Report.Duration.Milliseconds())
	return res, nil
}

func finish(res *Result, start time.Time) *Result {
	res.Report.Duration = time.Since(start)
	return res
}

// discover lists quarter files in path order. Directories and files whose
// names do not encode a year or quarter come back as skipped results.
func (l *Loader) discover(ctx context.Context, root string) ([]fileTask, []FileResult) {
	var (
		tasks   []fileTask
		skipped []FileResult
	)
	skip := func(path, reason string) {
		l.logger.WarnContext(ctx, "Skipping path", "path", path, "reason", reason)
		skipped = append(skipped, FileResult{Path: path, Status: StatusSkipped, Reason: reason})
	}

	states, err := os.ReadDir(root)
	if err != nil {
		skip(root, fmt.Sprintf("read directory: %v", err))
		return nil, skipped
	}
	for _, sd := range states {
		if !sd.IsDir() {
			continue
		}
		state := StateName(sd.Name())
		statePath := filepath.Join(root, sd.Name())
		years, err := os.ReadDir(statePath)
		if err != nil {
			skip(statePath, fmt.Sprintf("read directory: %v", err))
			continue
		}
		for _, yd := range years {
			if !yd.IsDir() {
				continue
			}
			yearPath := filepath.Join(statePath, yd.Name())
			year, ok := parseYear(yd.Name())
			if !ok {
				skip(yearPath, "directory name is not a year")
				continue
			}
			files, err := os.ReadDir(yearPath)
			if err != nil {
				skip(yearPath, fmt.Sprintf("read directory: %v", err))
				continue
			}
			for _, fe := range files {
				if fe.IsDir() {
					continue
				}
				path := filepath.Join(yearPath, fe.Name())
				quarter, ok := parseQuarter(fe.Name())
				if !ok {
					skip(path, "file name is not a quarter between 1 and 4")
					continue
				}
				tasks = append(tasks, fileTask{
					path: path,
					key:  fileKey{State: state, Year: year, Quarter: quarter},
				})
			}
		}
	}
	return tasks, skipped
}

func (l *Loader) readFile(ctx context.Context, task fileTask) (FileResult, []core.TransactionRecord) {
	fr := FileResult{
		Path:    task.path,
		State:   task.key.State,
		Year:    task.key.Year,
		Quarter: task.key.Quarter,
	}

	body, err := os.ReadFile(task.path)
	if err != nil {
		fr.Status = StatusSkipped
		fr.Reason = fmt.Sprintf("read file: %v", err)
		l.logger.WarnContext(ctx, "Skipping unreadable file", "path", task.path, plog.FieldError, err)
		return fr, nil
	}

	records, skipped, hasData, err := parseQuarterFile(body, task.key)
	if err != nil {
		fr.Status = StatusSkipped
		fr.Reason = err.Error()
		l.logger.WarnContext(ctx, "Skipping malformed file", "path", task.path, plog.FieldError, err)
		return fr, nil
	}
	if !hasData {
		fr.Status = StatusEmpty
		fr.Reason = "no data.transactionData list"
		l.logger.DebugContext(ctx, "File has no transaction data", "path", task.path)
		return fr, nil
	}

	for _, s := range skipped {
		l.logger.WarnContext(ctx, "Skipping malformed entry",
			"path", task.path,
			"index", s.Index,
			"name", s.Name,
			"reason", s.Reason)
	}
	fr.Status = StatusLoaded
	fr.Records = len(records)
	fr.SkippedEntries = skipped
	return fr, records
}
