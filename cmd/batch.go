package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"docpipe/internal/config"
	"docpipe/internal/logger"
	"docpipe/internal/notify"
	"docpipe/internal/pipeline"
	"docpipe/internal/store"
	"docpipe/pkg/models"
)

var batchCmd = &cobra.Command{
	Use:   "batch [files...]",
	Short: "Process up to 10 documents as a batch",
	Long: `Process multiple documents through the extraction pipeline with bounded
concurrency. Each document succeeds or fails on its own: the output always
contains one result per input, in input order, with failures converted to
error records at their position.

When MYSQL_DSN is configured, every document's outcome is persisted. When
REDIS_ADDR is configured, processing start and completion events are
published to the owner's notification channel.`,
	Example: `  # Process three scans for owner 42
  docpipe batch -u 42 scan1.pdf scan2.pdf photo.jpg

  # Write the batch result to a file
  docpipe batch -u 42 -o results.json *.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	batchCmd.Flags().Int64P("owner", "u", 0, "Owner ID the batch belongs to")
	batchCmd.Flags().Bool("no-grayscale", false, "Skip the grayscale preprocessing pass")
	batchCmd.Flags().Int("timeout", 1800, "Batch timeout in seconds")
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch")

	outputPath, _ := cmd.Flags().GetString("output")
	ownerID, _ := cmd.Flags().GetInt64("owner")
	noGrayscale, _ := cmd.Flags().GetBool("no-grayscale")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

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

	var results store.ResultStore
	if cfg.MySQLDSN != "" {
		mysqlStore, err := store.Open(cfg.MySQLDSN)
		if err != nil {
			return fmt.Errorf("failed to connect result store: %w", err)
		}
		defer mysqlStore.Close()
		results = mysqlStore
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.RedisAddr != "" {
		redisNotifier := notify.NewRedisNotifier(cfg.RedisAddr, cfg.RedisPassword)
		defer redisNotifier.Close()
		notifier = redisNotifier
	}

	orchestrator := pipeline.NewOrchestrator(processor, results, notifier, cfg.BatchLimit, cfg.BatchConcurrency)

	reqs := make([]pipeline.Request, len(args))
	for i, path := range args {
		reqs[i] = pipeline.Request{Path: path, Filename: filepath.Base(path)}
	}

	opts := models.DefaultOptions()
	if noGrayscale {
		opts.Grayscale = false
	}

	batchResults, err := orchestrator.ProcessBatch(ctx, reqs, ownerID, opts)
	if err != nil {
		log.Error().Err(err).Int("documents", len(args)).Msg("Batch rejected")
		return err
	}

	return writeResultJSON(batchResults, outputPath)
}
