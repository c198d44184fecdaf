package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docpipe/internal/config"
	"docpipe/internal/logger"
	"docpipe/internal/pipeline"
	"docpipe/pkg/models"
)

var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Run the full extraction pipeline on a single document",
	Long: `Process a PDF or image through the complete extraction pipeline:
validation, rasterization, preprocessing, multi-engine OCR with per-page
engine selection, table extraction, and room/measurement detection.

The primary engine is a local Tesseract installation. When Google Cloud
Vision credentials are configured (GOOGLE_APPLICATION_CREDENTIALS or
GOOGLE_CREDENTIALS) a secondary engine competes on every page and the
higher-confidence result wins.`,
	Example: `  # Process a scanned offer and print the result JSON
  docpipe process offer.pdf

  # Save the result to a file, keep color pages
  docpipe process floorplan.png -o result.json --no-grayscale

  # Process with custom timeout
  docpipe process large-scan.pdf --timeout 600`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	processCmd.Flags().Int64("owner", 0, "Owner ID to attach to the result")
	processCmd.Flags().Bool("no-grayscale", false, "Skip the grayscale preprocessing pass")
	processCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	outputPath, _ := cmd.Flags().GetString("output")
	ownerID, _ := cmd.Flags().GetInt64("owner")
	noGrayscale, _ := cmd.Flags().GetBool("no-grayscale")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	path := args[0]

	log.Info().
		Str("file", path).
		Str("output", outputPath).
		Int("timeout", timeoutSecs).
		Msg("Starting document processing")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := contextWithTimeout(timeoutSecs, log)
	defer cancel()

	processor, cleanup, err := pipeline.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer cleanup()

	opts := models.DefaultOptions()
	if noGrayscale {
		opts.Grayscale = false
	}

	result, err := processor.ProcessDocument(ctx, path, filepath.Base(path), "", ownerID, opts)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Document processing failed")
		return err
	}

	return writeResultJSON(result, outputPath)
}

// contextWithTimeout builds the processing context and cancels it on SIGINT
// or SIGTERM so a half-processed document does not hold engine resources.
func contextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Warn().Str("signal", sig.String()).Msg("Received signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func writeResultJSON(result any, outputPath string) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if outputPath == "" {
		fmt.Println(string(encoded))
		return nil
	}
	if err := os.WriteFile(outputPath, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
