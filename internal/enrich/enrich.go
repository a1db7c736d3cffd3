// Package enrich attaches file-system provenance to a unified result.
// Timestamp access is best-effort: anything the storage layer cannot answer
// degrades to the literal "unknown", never to an error.
package enrich

import (
	"os"
	"time"

	"github.com/docufuse/docufuse/internal/fusion"
)

// TimestampUnknown is stored when a timestamp cannot be determined.
const TimestampUnknown = "unknown"

// SourceHandle abstracts whatever storage backs the source image. A handle
// returns the zero time for any timestamp it cannot report.
type SourceHandle interface {
	CreationTime() (time.Time, error)
	ModificationTime() (time.Time, error)
}

// Enrich stamps provenance onto the result. Pure transform: it never fails,
// and a nil handle just yields "unknown" for both fields.
func Enrich(res fusion.UnifiedResult, src SourceHandle) fusion.UnifiedResult {
	res.CreationDate = TimestampUnknown
	res.ModificationDate = TimestampUnknown
	if src == nil {
		return res
	}
	if t, err := src.CreationTime(); err == nil && !t.IsZero() {
		res.CreationDate = t.UTC().Format(time.RFC3339)
	}
	if t, err := src.ModificationTime(); err == nil && !t.IsZero() {
		res.ModificationDate = t.UTC().Format(time.RFC3339)
	}
	return res
}

// FileHandle reads timestamps from a file on the local filesystem.
type FileHandle struct {
	Path string
}

// CreationTime reports the file birth time where the platform exposes one.
// Linux stat does not, so this degrades to the zero time there.
func (h FileHandle) CreationTime() (time.Time, error) {
	return creationTime(h.Path)
}

// ModificationTime reports the file mtime.
func (h FileHandle) ModificationTime() (time.Time, error) {
	info, err := os.Stat(h.Path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
