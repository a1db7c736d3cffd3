package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/docufuse/docufuse/internal/fusion"
)

// ParallelConfig holds configuration for batch processing.
type ParallelConfig struct {
	MaxWorkers       int                     // parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback        // optional progress reporting
	ErrorHandler     func(int, string, error) // optional per-file error handler
}

// DefaultParallelConfig returns sensible defaults for batch processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

// fileJob represents a single file processing job.
type fileJob struct {
	index int
	path  string
}

// fileResult represents the outcome of processing a single file.
type fileResult struct {
	index  int
	result fusion.UnifiedResult
	err    error
}

// ProcessFilesParallel processes files with a worker pool. Results come back
// in input order; a failed file leaves a zero result at its index and the
// first error is returned after the whole batch finishes.
func (p *Pipeline) ProcessFilesParallel(ctx context.Context, paths []string, opts Options) ([]fusion.UnifiedResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files provided")
	}

	config := p.cfg.Parallel
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	if config.MaxWorkers > len(paths) {
		config.MaxWorkers = len(paths)
	}

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(paths))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan fileJob, len(paths))
	results := make(chan fileResult, len(paths))

	var wg sync.WaitGroup
	for range config.MaxWorkers {
		wg.Add(1)
		go p.fileWorker(ctx, jobs, results, &wg, opts)
	}

	go func() {
		defer close(jobs)
		for i, path := range paths {
			select {
			case jobs <- fileJob{index: i, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]fusion.UnifiedResult, len(paths))
	errs := make([]error, len(paths))
	processed := 0
	for res := range results {
		ordered[res.index] = res.result
		errs[res.index] = res.err
		processed++
		if config.ProgressCallback != nil {
			config.ProgressCallback.OnProgress(processed, len(paths))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", paths[i], err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, paths[i], err)
		}
		if config.ProgressCallback != nil {
			config.ProgressCallback.OnError(i, err)
		}
	}
	return ordered, firstErr
}

// fileWorker processes files from the jobs channel.
func (p *Pipeline) fileWorker(
	ctx context.Context,
	jobs <-chan fileJob,
	results chan<- fileResult,
	wg *sync.WaitGroup,
	opts Options,
) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res, err := p.ProcessFile(ctx, job.path, opts)
			select {
			case results <- fileResult{index: job.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// BatchStats holds statistics about one batch run.
type BatchStats struct {
	TotalFiles       int           `json:"total_files"`
	ProcessedFiles   int           `json:"processed_files"`
	FailedFiles      int           `json:"failed_files"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerFile   time.Duration `json:"average_per_file_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateBatchStats derives performance statistics for a finished batch.
// A result with method "none" still counts as processed; only hard failures
// (empty method and zero engines) count as failed.
func CalculateBatchStats(results []fusion.UnifiedResult, duration time.Duration, workerCount int) BatchStats {
	processed := 0
	failed := 0
	for _, r := range results {
		if r.Method == "" && len(r.Engines) == 0 {
			failed++
		} else {
			processed++
		}
	}

	var avg time.Duration
	var throughput float64
	if processed > 0 {
		avg = duration / time.Duration(processed)
		throughput = float64(processed) / duration.Seconds()
	}

	return BatchStats{
		TotalFiles:       len(results),
		ProcessedFiles:   processed,
		FailedFiles:      failed,
		WorkerCount:      workerCount,
		TotalDuration:    duration,
		AveragePerFile:   avg,
		ThroughputPerSec: throughput,
	}
}
