package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"docpipe/internal/config"
	"docpipe/internal/logger"
	"docpipe/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check whether a file is accepted by the processing pipeline",
	Long: `Validate a file against the pipeline's intake constraints: supported
format (png, jpg, jpeg, bmp, tiff, webp, pdf), size limit, and for images,
structural openability and dimension bounds (100x100 to 10000x10000).

The first failing check is reported with a human-readable reason.`,
	Example: `  # Validate a scanned floor plan
  docpipe validate floorplan.png

  # Validate with JSON output
  docpipe validate offer.pdf --json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().Bool("json", false, "Output as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("validate")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	path := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	result := validate.New(cfg.MaxFileSizeMB).Check(path, filepath.Base(path))

	log.Info().
		Str("file", path).
		Bool("valid", result.Valid).
		Str("reason", result.Error).
		Msg("Validation completed")

	if jsonOutput {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(encoded))
		return nil
	}

	if result.Valid {
		fmt.Printf("OK: %s (%d bytes)\n", path, result.FileSize)
	} else {
		fmt.Printf("REJECTED: %s: %s\n", path, result.Error)
	}
	return nil
}
