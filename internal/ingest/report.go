package ingest

import (
	"time"

	"pulse/internal/core"
)

// FileStatus describes the outcome of reading one quarter file.
type FileStatus string

const (
	StatusLoaded  FileStatus = "loaded"
	StatusEmpty   FileStatus = "empty"
	StatusSkipped FileStatus = "skipped"
)

// EntrySkip records a single transaction entry dropped from an otherwise readable file.
type EntrySkip struct {
	Index  int    `json:"index"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// FileResult is the per-file outcome of a load.
type FileResult struct {
	Path           string      `json:"path"`
	State          string      `json:"state,omitempty"`
	Year           int         `json:"year,omitempty"`
	Quarter        int         `json:"quarter,omitempty"`
	Status         FileStatus  `json:"status"`
	Records        int         `json:"records"`
	Reason         string      `json:"reason,omitempty"`
	SkippedEntries []EntrySkip `json:"skipped_entries,omitempty"`
}

// Report summarises one load run. It is kept apart from the records so that
// failures stay inspectable.
type Report struct {
	RunID          string        `json:"run_id"`
	Source         string        `json:"source"`
	Root           string        `json:"root"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration_ns"`
	Degraded       bool          `json:"degraded"`
	DegradedReason string        `json:"degraded_reason,omitempty"`
	Files          []FileResult  `json:"files"`
}

// Result is the table produced by a load together with its report.
type Result struct {
	Records []core.TransactionRecord
	Report  Report
}

func (r Report) countStatus(s FileStatus) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == s {
			n++
		}
	}
	return n
}

// FilesLoaded returns the number of files that contributed at least their entry list.
func (r Report) FilesLoaded() int { return r.countStatus(StatusLoaded) }

// FilesEmpty returns the number of files without a transaction entry list.
func (r Report) FilesEmpty() int { return r.countStatus(StatusEmpty) }

// FilesSkipped returns the number of files that could not be read at all.
func (r Report) FilesSkipped() int { return r.countStatus(StatusSkipped) }

// EntriesSkipped returns the number of malformed entries dropped across all files.
func (r Report) EntriesSkipped() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.SkippedEntries)
	}
	return n
}

// RecordCount returns the number of records contributed by all files.
func (r Report) RecordCount() int {
	n := 0
	for _, f := range r.Files {
		n += f.Records
	}
	return n
}
