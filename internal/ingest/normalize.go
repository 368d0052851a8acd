package ingest

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"pulse/internal/core"
)

// StateName turns a state directory name into its display form:
// "andaman-&-nicobar-islands" becomes "Andaman & Nicobar Islands".
func StateName(dir string) string {
	return titleCase(strings.ReplaceAll(dir, "-", " "))
}

// titleCase upper-cases a letter when the preceding rune is not a letter and
// lower-cases it otherwise.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func parseYear(dir string) (int, bool) {
	y, err := strconv.Atoi(strings.TrimSpace(dir))
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}

func parseQuarter(file string) (int, bool) {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	q, err := strconv.Atoi(strings.TrimSpace(base))
	if err != nil || !core.ValidQuarter(q) {
		return 0, false
	}
	return q, true
}
