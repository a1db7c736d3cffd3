package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufuse/docufuse/internal/fusion"
)

type recordingProgress struct {
	mu       sync.Mutex
	started  int
	events   int
	complete bool
	errs     int
}

func (r *recordingProgress) OnStart(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = total
}

func (r *recordingProgress) OnProgress(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events++
}

func (r *recordingProgress) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = true
}

func (r *recordingProgress) OnError(int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs++
}

func writeTestFiles(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	data := testPNG(t)
	paths := make([]string, n)
	for i := range n {
		paths[i] = filepath.Join(dir, "doc"+string(rune('a'+i))+".png")
		require.NoError(t, os.WriteFile(paths[i], data, 0o644))
	}
	return paths
}

func TestProcessFilesParallel(t *testing.T) {
	progress := &recordingProgress{}
	p := buildPipeline(t, NewBuilder().
		WithEngines(okEngine("vision_llm", "batch text", 0.9)).
		WithParallelWorkers(3).
		WithProgressCallback(progress))

	paths := writeTestFiles(t, 5)
	results, err := p.ProcessFilesParallel(context.Background(), paths, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, res := range results {
		assert.Equal(t, "batch text", res.Text)
	}
	assert.Equal(t, 5, progress.started)
	assert.Equal(t, 5, progress.events)
	assert.True(t, progress.complete)
}

func TestProcessFilesParallelPartialFailure(t *testing.T) {
	progress := &recordingProgress{}
	p := buildPipeline(t, NewBuilder().
		WithEngines(okEngine("vision_llm", "ok", 0.9)).
		WithProgressCallback(progress))

	paths := writeTestFiles(t, 2)
	paths = append(paths, "/nonexistent/doc.png")

	results, err := p.ProcessFilesParallel(context.Background(), paths, DefaultOptions())
	require.Error(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "ok", results[0].Text)
	assert.Equal(t, "ok", results[1].Text)
	assert.Empty(t, results[2].Method)
	assert.Equal(t, 1, progress.errs)
}

func TestProcessFilesParallelEmpty(t *testing.T) {
	p := buildPipeline(t, NewBuilder().WithEngines(okEngine("a", "x", 0.9)))
	_, err := p.ProcessFilesParallel(context.Background(), nil, DefaultOptions())
	assert.Error(t, err)
}

func TestProcessFilesParallelCanceled(t *testing.T) {
	p := buildPipeline(t, NewBuilder().WithEngines(okEngine("a", "x", 0.9)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProcessFilesParallel(ctx, writeTestFiles(t, 2), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBatchStats(t *testing.T) {
	results := []fusion.UnifiedResult{
		{Method: "vision_llm", Engines: []fusion.EngineReport{{EngineID: "vision_llm"}}},
		{Method: "none", Engines: []fusion.EngineReport{{EngineID: "vision_llm"}}},
		{},
	}
	stats := CalculateBatchStats(results, 2*time.Second, 4)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 2, stats.ProcessedFiles)
	assert.Equal(t, 1, stats.FailedFiles)
	assert.Equal(t, 4, stats.WorkerCount)
	assert.Equal(t, time.Second, stats.AveragePerFile)
	assert.InDelta(t, 1.0, stats.ThroughputPerSec, 1e-9)
}
