package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/docufuse/docufuse/internal/pipeline"
)

// batchCmd processes directories of images with a worker pool.
var batchCmd = &cobra.Command{
	Use:   "batch [flags] <path>...",
	Short: "Recognize text in many images in parallel",
	Long: `Process files or whole directories of document images with a parallel
worker pool. Directories are scanned non-recursively unless --recursive is
set.

Examples:
  docufuse batch ./scans
  docufuse batch --workers 8 --recursive ./archive
  docufuse batch --format json -o results.json ./scans`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringP("format", "f", "", "output format: json, text, or csv")
	batchCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
	batchCmd.Flags().StringSlice("languages", nil, "language hints, e.g. ja,en")
	batchCmd.Flags().IntP("workers", "w", 0, "number of parallel workers (0 = number of CPUs)")
	batchCmd.Flags().BoolP("recursive", "r", false, "recurse into subdirectories")
	batchCmd.Flags().Bool("progress", true, "show a progress bar on stderr")
	batchCmd.Flags().Bool("stats", false, "print batch statistics after processing")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	recursive, _ := cmd.Flags().GetBool("recursive")
	paths, err := discoverImages(args, recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no image files found under %s", strings.Join(args, ", "))
	}

	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Batch.Workers = workers
	}

	var progress pipeline.ProgressCallback
	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
		progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "batch")
	}

	p, err := buildPipeline(cmd.Context(), cfg, progress)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	languages, _ := cmd.Flags().GetStringSlice("languages")
	opts := optionsFromConfig(cfg, languages)

	started := time.Now()
	results, err := p.ProcessFilesParallel(cmd.Context(), paths, opts)
	if err != nil && !cfg.Batch.ContinueOnError {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = cfg.Output.Format
	}
	outputFile, _ := cmd.Flags().GetString("output")

	var rendered []string
	if format == "json" || format == "" {
		out, jsonErr := pipeline.ToJSONBatch(results)
		if jsonErr != nil {
			return jsonErr
		}
		rendered = append(rendered, out)
	} else {
		for _, res := range results {
			out, fmtErr := pipeline.Format(res, format)
			if fmtErr != nil {
				return fmtErr
			}
			rendered = append(rendered, out)
		}
	}

	if writeErr := writeOutput(cmd, outputFile, rendered); writeErr != nil {
		return writeErr
	}

	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		stats := pipeline.CalculateBatchStats(results, time.Since(started), cfg.Batch.Workers)
		fmt.Fprintf(cmd.ErrOrStderr(), "processed %d/%d files in %s (%.1f/s)\n",
			stats.ProcessedFiles, stats.TotalFiles, stats.TotalDuration.Round(time.Millisecond),
			stats.ThroughputPerSec)
	}

	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: some files failed: %v\n", err)
	}
	return nil
}

// imageExtensions are the file types the batch scanner picks up.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

// discoverImages expands files and directories into a sorted list of image
// paths.
func discoverImages(args []string, recursive bool) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := scanDirectory(arg, recursive)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	sort.Strings(paths)
	return paths, nil
}

func scanDirectory(dir string, recursive bool) ([]string, error) {
	var paths []string
	if recursive {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		return paths, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
