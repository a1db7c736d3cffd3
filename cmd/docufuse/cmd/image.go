package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docufuse/docufuse/internal/pipeline"
)

// imageCmd processes one or more image files.
var imageCmd = &cobra.Command{
	Use:   "image [flags] <file>...",
	Short: "Recognize text in document images",
	Long: `Run the recognition pipeline over one or more document images and print
the unified result.

Examples:
  docufuse image scan.png
  docufuse image --format text --languages ja,en page1.jpg page2.jpg
  docufuse image --mode sequential --confidence-threshold 0.85 photo.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImage,
}

func init() {
	imageCmd.Flags().StringP("format", "f", "", "output format: json, text, or csv")
	imageCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
	imageCmd.Flags().StringSlice("languages", nil, "language hints, e.g. ja,en")
	imageCmd.Flags().String("mode", "", "orchestration mode: fusion or sequential")
	imageCmd.Flags().Float64("confidence-threshold", 0, "sequential acceptance threshold")
	imageCmd.Flags().Bool("no-preprocess", false, "skip enhancement, only grayscale reduction")
	imageCmd.Flags().Bool("no-layout", false, "skip layout analysis")

	rootCmd.AddCommand(imageCmd)
}

func runImage(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	p, err := buildPipeline(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	languages, _ := cmd.Flags().GetStringSlice("languages")
	opts := optionsFromConfig(cfg, languages)
	if err := applyImageFlags(cmd, &opts); err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = cfg.Output.Format
	}
	outputFile, _ := cmd.Flags().GetString("output")
	if outputFile == "" {
		outputFile = cfg.Output.File
	}

	var rendered []string
	for _, path := range args {
		result, err := p.ProcessFile(cmd.Context(), path, opts)
		if err != nil {
			return fmt.Errorf("process %s: %w", path, err)
		}
		out, err := pipeline.Format(result, format)
		if err != nil {
			return err
		}
		rendered = append(rendered, out)
	}

	return writeOutput(cmd, outputFile, rendered)
}

func applyImageFlags(cmd *cobra.Command, opts *pipeline.Options) error {
	if noPreprocess, _ := cmd.Flags().GetBool("no-preprocess"); noPreprocess {
		opts.Preprocess = false
	}
	if noLayout, _ := cmd.Flags().GetBool("no-layout"); noLayout {
		opts.DetectLayout = false
	}
	if modeStr, _ := cmd.Flags().GetString("mode"); modeStr != "" {
		mode, err := parseModeFlag(modeStr)
		if err != nil {
			return err
		}
		opts.Mode = mode
	}
	if th, _ := cmd.Flags().GetFloat64("confidence-threshold"); th > 0 {
		if th > 1 {
			return fmt.Errorf("confidence threshold %.2f outside (0,1]", th)
		}
		opts.ConfidenceThreshold = th
	}
	return nil
}

func writeOutput(cmd *cobra.Command, outputFile string, rendered []string) error {
	var sink = cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		sink = f
	}
	for _, out := range rendered {
		if _, err := fmt.Fprintln(sink, out); err != nil {
			return err
		}
	}
	return nil
}
