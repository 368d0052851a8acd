package backend

import (
	"pulse/internal/dataset"
)

// CleanupFunc releases resources held by a source.
type CleanupFunc func() error

// BackendResult contains the table source and an optional cleanup function.
type BackendResult struct {
	Source  dataset.Source
	Cleanup CleanupFunc
}

// Config holds configuration for source creation
type Config struct {
	Type BackendType

	// directory
	DataDir     string
	LoadWorkers int

	// sqlite
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	DirectoryBackend BackendType = "directory"
	SQLiteBackend    BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case DirectoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	return []string{DirectoryBackend.String(), SQLiteBackend.String()}
}
