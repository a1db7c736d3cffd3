package enrich

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufuse/docufuse/internal/fusion"
)

type stubHandle struct {
	created  time.Time
	modified time.Time
	err      error
}

func (s stubHandle) CreationTime() (time.Time, error)     { return s.created, s.err }
func (s stubHandle) ModificationTime() (time.Time, error) { return s.modified, s.err }

func TestEnrichStampsTimestamps(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	modified := time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC)

	res := Enrich(fusion.UnifiedResult{Text: "x"}, stubHandle{created: created, modified: modified})
	assert.Equal(t, "2024-03-01T09:30:00Z", res.CreationDate)
	assert.Equal(t, "2024-03-02T18:00:00Z", res.ModificationDate)
	assert.Equal(t, "x", res.Text, "result payload untouched")
}

func TestEnrichUnknownOnError(t *testing.T) {
	res := Enrich(fusion.UnifiedResult{}, stubHandle{err: errors.New("not supported")})
	assert.Equal(t, TimestampUnknown, res.CreationDate)
	assert.Equal(t, TimestampUnknown, res.ModificationDate)
}

func TestEnrichUnknownOnZeroTime(t *testing.T) {
	res := Enrich(fusion.UnifiedResult{}, stubHandle{modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.Equal(t, TimestampUnknown, res.CreationDate)
	assert.Equal(t, "2024-01-01T00:00:00Z", res.ModificationDate)
}

func TestEnrichNilHandle(t *testing.T) {
	res := Enrich(fusion.UnifiedResult{}, nil)
	assert.Equal(t, TimestampUnknown, res.CreationDate)
	assert.Equal(t, TimestampUnknown, res.ModificationDate)
}

func TestFileHandleModificationTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.png")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	mtime, err := FileHandle{Path: path}.ModificationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), mtime, time.Minute)
}

func TestFileHandleMissingFile(t *testing.T) {
	_, err := FileHandle{Path: "/nonexistent/doc.png"}.ModificationTime()
	assert.Error(t, err)

	res := Enrich(fusion.UnifiedResult{}, FileHandle{Path: "/nonexistent/doc.png"})
	assert.Equal(t, TimestampUnknown, res.ModificationDate)
}
