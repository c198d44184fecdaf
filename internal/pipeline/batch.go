package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"docpipe/internal/logger"
	"docpipe/internal/notify"
	"docpipe/internal/store"
	"docpipe/pkg/models"
)

// Request is one document submitted in a batch. DocumentID and QuoteID come
// from the upload layer when it has pre-allocated rows; a missing DocumentID
// is allocated here.
type Request struct {
	Path       string
	Filename   string
	MimeType   string
	DocumentID string
	QuoteID    *int64
}

// DocumentProcessor is the single-document pipeline consumed by the
// orchestrator.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, path, filename, mimeType string, ownerID int64, opts models.ProcessingOptions) (*models.DocumentProcessingResult, error)
}

// Orchestrator fans a batch of documents out over the single-document
// pipeline. Concurrency is bounded by a counting semaphore regardless of
// batch size; the recognition engines are CPU and memory heavy, so in-flight
// pipelines must stay capped no matter how many documents are queued.
type Orchestrator struct {
	processor   DocumentProcessor
	store       store.ResultStore // nil disables persistence
	notifier    notify.Notifier
	batchLimit  int
	concurrency int64
	log         zerolog.Logger
}

// NewOrchestrator creates a batch orchestrator. A nil results store disables
// persistence; pass notify.Nop{} to discard notifications.
func NewOrchestrator(processor DocumentProcessor, results store.ResultStore, notifier notify.Notifier, batchLimit, concurrency int) *Orchestrator {
	return &Orchestrator{
		processor:   processor,
		store:       results,
		notifier:    notifier,
		batchLimit:  batchLimit,
		concurrency: int64(concurrency),
		log:         logger.WithComponent("batch"),
	}
}

// ProcessBatch processes up to the batch limit of documents for one owner.
// The returned slice always has one entry per request, in request order; a
// document's failure becomes an error record at its position and never
// affects siblings. Oversized batches are rejected before any work starts.
// A canceled or expired batch context aborts the whole batch: the owner is
// notified with an error event and an error is returned instead of results.
func (o *Orchestrator) ProcessBatch(ctx context.Context, reqs []Request, ownerID int64, opts models.ProcessingOptions) ([]models.DocumentProcessingResult, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(reqs) > o.batchLimit {
		return nil, fmt.Errorf("%w: maximum %d documents allowed, got %d", ErrBatchTooLarge, o.batchLimit, len(reqs))
	}

	batchID := uuid.NewString()
	log := o.log.With().Str("batch_id", batchID).Int64("owner_id", ownerID).Logger()
	log.Info().Int("documents", len(reqs)).Msg("Starting batch processing")

	o.notifier.Notify(ctx, ownerID, notify.EventProcessingStarted, map[string]any{
		"batch_id":       batchID,
		"message":        fmt.Sprintf("Processing %d documents...", len(reqs)),
		"document_count": len(reqs),
	})

	sem := semaphore.NewWeighted(o.concurrency)
	results := make([]models.DocumentProcessingResult, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = models.ErrorResult(req.Filename, err)
				return
			}
			defer sem.Release(1)

			result, err := o.processor.ProcessDocument(ctx, req.Path, req.Filename, req.MimeType, ownerID, opts)
			if err != nil {
				log.Error().Err(err).Str("file", req.Filename).Msg("Document processing failed")
				results[i] = models.ErrorResult(req.Filename, err)
				return
			}
			results[i] = *result
		}(i, req)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		log.Error().Err(err).Msg("Batch processing aborted")
		// The batch context is already dead; the notification still has to
		// go out.
		o.notifier.Notify(context.WithoutCancel(ctx), ownerID, notify.EventProcessingError, map[string]any{
			"batch_id": batchID,
			"message":  fmt.Sprintf("Document processing failed: %v", err),
		})
		return nil, fmt.Errorf("batch %s aborted: %w", batchID, err)
	}

	o.persist(ctx, batchID, ownerID, reqs, results)

	o.notifier.Notify(ctx, ownerID, notify.EventProcessingCompleted, map[string]any{
		"batch_id": batchID,
		"message":  "Document processing completed",
		"results":  results,
	})

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	log.Info().Int("succeeded", succeeded).Int("total", len(results)).Msg("Batch processing completed")

	return results, nil
}

// persist writes each document's outcome to the results store, one call per
// document so a partial batch stays durably recorded. Write failures are
// logged; the computed results are still returned and notified.
func (o *Orchestrator) persist(ctx context.Context, batchID string, ownerID int64, reqs []Request, results []models.DocumentProcessingResult) {
	if o.store == nil {
		return
	}

	for i := range reqs {
		documentID := reqs[i].DocumentID
		if documentID == "" {
			documentID = uuid.NewString()
		}
		var fileSize int64
		if info, err := os.Stat(reqs[i].Path); err == nil {
			fileSize = info.Size()
		}

		rec := store.DocumentRecord{
			DocumentID:       documentID,
			OwnerID:          ownerID,
			QuoteID:          reqs[i].QuoteID,
			BatchID:          batchID,
			Filename:         reqs[i].Filename,
			OriginalFilename: reqs[i].Filename,
			StoragePath:      reqs[i].Path,
			FileSize:         fileSize,
			MimeType:         reqs[i].MimeType,
			Result:           &results[i],
		}
		if err := o.store.SaveDocumentResult(ctx, rec); err != nil {
			o.log.Error().Err(err).Str("file", reqs[i].Filename).Msg("Failed to persist document result")
		}
	}
}
