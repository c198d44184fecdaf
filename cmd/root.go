package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docpipe/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docpipe",
	Short: "docpipe - document ingestion and OCR extraction pipeline",
	Long: `docpipe processes uploaded painter documents (floor plans, photos,
scanned offers) into structured cost-quote data.

Documents run through validation, rasterization, multi-engine OCR with
confidence-based reconciliation, table extraction, and room/measurement
detection. Results are content-addressed cached so identical uploads are
processed at most once per cache window.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("docpipe executed")

		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
