package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pulse/internal/core"
	"pulse/internal/ingest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "pulse.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleReport(runID string, started time.Time) ingest.Report {
	return ingest.Report{
		RunID:     runID,
		Source:    ingest.SourceDirectory,
		Root:      "/data/state",
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Files: []ingest.FileResult{
			{Path: "/data/state/goa/2020/1.json", State: "Goa", Year: 2020, Quarter: 1, Status: ingest.StatusLoaded, Records: 2,
				SkippedEntries: []ingest.EntrySkip{{Index: 3, Name: "Broken", Reason: "missing amount"}}},
			{Path: "/data/state/goa/2020/x.json", Status: ingest.StatusSkipped, Reason: "file name is not a quarter between 1 and 4"},
		},
	}
}

func TestReplaceSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.LatestReport(ctx); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("LatestReport() on empty db error = %v, want ErrNoRuns", err)
	}

	records := []core.TransactionRecord{
		{State: "Goa", Year: 2020, Quarter: 1, TransactionType: "Recharge", Count: 10, Amount: 100.5},
		{State: "Goa", Year: 2020, Quarter: 1, TransactionType: "Merchant payments", Count: 3, Amount: 12},
	}
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.ReplaceSnapshot(ctx, records, sampleReport("run-1", started)); err != nil {
		t.Fatalf("ReplaceSnapshot() error = %v", err)
	}

	got, err := repo.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(got) != 2 || got[0] != records[0] || got[1] != records[1] {
		t.Fatalf("ListRecords() = %+v, want %+v", got, records)
	}

	rep, err := repo.LatestReport(ctx)
	if err != nil {
		t.Fatalf("LatestReport() error = %v", err)
	}
	if rep.RunID != "run-1" || !rep.StartedAt.Equal(started) || rep.Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected run metadata: %+v", rep)
	}
	if len(rep.Files) != 2 || rep.FilesSkipped() != 1 || rep.EntriesSkipped() != 1 || rep.RecordCount() != 2 {
		t.Fatalf("unexpected files: %+v", rep.Files)
	}
}

func TestReplaceSnapshotReplacesRecords(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := []core.TransactionRecord{{State: "Goa", Year: 2020, Quarter: 1, TransactionType: "Recharge", Count: 1, Amount: 1}}
	second := []core.TransactionRecord{{State: "Kerala", Year: 2021, Quarter: 2, TransactionType: "Recharge", Count: 2, Amount: 2}}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := repo.ReplaceSnapshot(ctx, first, sampleReport("run-a", base)); err != nil {
		t.Fatalf("first ReplaceSnapshot() error = %v", err)
	}
	if err := repo.ReplaceSnapshot(ctx, second, sampleReport("run-b", base.Add(time.Hour))); err != nil {
		t.Fatalf("second ReplaceSnapshot() error = %v", err)
	}

	got, _ := repo.ListRecords(ctx)
	if len(got) != 1 || got[0].State != "Kerala" {
		t.Fatalf("records not replaced: %+v", got)
	}
	rep, _ := repo.LatestReport(ctx)
	if rep.RunID != "run-b" {
		t.Fatalf("LatestReport().RunID = %s, want run-b", rep.RunID)
	}
}

func TestReplaceSnapshotRejectsInvalidRecord(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	good := []core.TransactionRecord{{State: "Goa", Year: 2020, Quarter: 1, TransactionType: "Recharge", Count: 1, Amount: 1}}
	if err := repo.ReplaceSnapshot(ctx, good, sampleReport("run-ok", time.Now())); err != nil {
		t.Fatalf("ReplaceSnapshot() error = %v", err)
	}

	bad := []core.TransactionRecord{{State: "Goa", Year: 2020, Quarter: 9, TransactionType: "Recharge"}}
	if err := repo.ReplaceSnapshot(ctx, bad, sampleReport("run-bad", time.Now())); err == nil {
		t.Fatal("expected validation error")
	}

	// rolled back: the previous table survives
	got, _ := repo.ListRecords(ctx)
	if len(got) != 1 || got[0] != good[0] {
		t.Fatalf("previous snapshot lost after failed replace: %+v", got)
	}
}

func TestNewSQLiteRepositoryReopensAtSameSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.db")

	first, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if first.SchemaVersion() != 1 {
		t.Errorf("SchemaVersion() = %d, want 1", first.SchemaVersion())
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if second.SchemaVersion() != 1 {
		t.Errorf("SchemaVersion() after reopen = %d, want 1", second.SchemaVersion())
	}
}
