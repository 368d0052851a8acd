package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Fingerprint summarises the tree under root from file metadata alone:
// the quarter file count, their total size and the newest modification time.
// Two equal fingerprints mean a reload would read the same bytes, barring
// edits that preserve both size and mtime.
func Fingerprint(root string) (string, error) {
	var (
		files  int
		size   int64
		newest time.Time
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		// Only state/year/quarter files count.
		if strings.Count(filepath.ToSlash(rel), "/") != 2 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		size += info.Size()
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return "missing:" + root, nil
	}
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", root, err)
	}
	return fmt.Sprintf("%s|files=%d|size=%d|mtime=%d", root, files, size, newest.UnixNano()), nil
}
