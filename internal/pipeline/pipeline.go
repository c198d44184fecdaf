// Package pipeline turns uploaded painter documents into structured
// processing results. A single document flows cache lookup -> validation ->
// rasterization -> preprocessing -> multi-engine recognition -> table and
// entity extraction -> cache write; batches fan the same flow out across
// documents with bounded concurrency and per-document failure isolation.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docpipe/internal/engine"
	"docpipe/internal/extract"
	"docpipe/internal/logger"
	"docpipe/internal/preprocess"
	"docpipe/internal/raster"
	"docpipe/internal/validate"
	"docpipe/pkg/models"
)

// pageDelimiter separates page texts in the concatenated document text.
const pageDelimiter = "\n--- Seite %d ---\n"

// ResultCache is the content-addressed result cache consumed by the processor.
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.DocumentProcessingResult, bool)
	Put(ctx context.Context, key string, result *models.DocumentProcessingResult, ttl time.Duration)
}

// Fingerprinter derives the content half of the cache key from file bytes.
type Fingerprinter func(path string) (string, error)

// KeyBuilder combines a fingerprint with canonical options into a cache key.
type KeyBuilder func(fingerprint string, opts models.ProcessingOptions) string

// Rasterizer renders a PDF into ordered page images.
type Rasterizer interface {
	Pages(ctx context.Context, path string) ([]raster.Page, error)
}

// Recognizer reconciles recognition engines into one result per page.
type Recognizer interface {
	Recognize(ctx context.Context, page engine.Page) models.PageResult
}

// TableExtractor finds candidate tables in a PDF. It never fails the document.
type TableExtractor interface {
	Extract(path string) []models.TableRecord
}

// Processor runs the single-document pipeline.
type Processor struct {
	validator   *validate.Validator
	rasterizer  Rasterizer
	recognizer  Recognizer
	tables      TableExtractor
	cache       ResultCache
	cacheTTL    time.Duration
	fingerprint Fingerprinter
	cacheKey    KeyBuilder
	log         zerolog.Logger
}

// ProcessorConfig wires a processor from its collaborators. Fingerprint and
// CacheKey default to the content-hash implementations.
type ProcessorConfig struct {
	Validator   *validate.Validator
	Rasterizer  Rasterizer
	Recognizer  Recognizer
	Tables      TableExtractor
	Cache       ResultCache
	CacheTTL    time.Duration
	Fingerprint Fingerprinter
	CacheKey    KeyBuilder
}

// NewProcessor creates a document processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		validator:   cfg.Validator,
		rasterizer:  cfg.Rasterizer,
		recognizer:  cfg.Recognizer,
		tables:      cfg.Tables,
		cache:       cfg.Cache,
		cacheTTL:    cfg.CacheTTL,
		fingerprint: cfg.Fingerprint,
		cacheKey:    cfg.CacheKey,
		log:         logger.WithComponent("pipeline"),
	}
}

// ValidateFile checks a file against format and size constraints without
// processing it.
func (p *Processor) ValidateFile(path, filename string) models.ValidationResult {
	return p.validator.Check(path, filename)
}

// ProcessDocument runs the full pipeline for one document. The result is
// immutable once returned; identical content and options within the cache TTL
// return the cached result without invoking any engine.
func (p *Processor) ProcessDocument(ctx context.Context, path, filename, mimeType string, ownerID int64, opts models.ProcessingOptions) (*models.DocumentProcessingResult, error) {
	fingerprint, err := p.fingerprint(path)
	if err != nil {
		// An unhashable file can still be processable. The timestamped
		// pseudo-fingerprint yields a one-off key, so the result is simply
		// never served from cache.
		p.log.Warn().Err(err).Str("file", filename).Msg("File hashing failed, result will not be cached")
		fingerprint = fmt.Sprintf("unhashed_%d", time.Now().UnixNano())
	}
	key := p.cacheKey(fingerprint, opts)

	if cached, ok := p.cache.Get(ctx, key); ok {
		p.log.Info().Str("file", filename).Msg("Using cached processing result")
		return cached, nil
	}

	if v := p.validator.Check(path, filename); !v.Valid {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, v.Error)
	}

	p.log.Info().Str("file", filename).Int64("owner_id", ownerID).Msg("Processing document")

	var result *models.DocumentProcessingResult
	switch {
	case validate.IsPDF(filename):
		result, err = p.processPDF(ctx, path, opts)
	case validate.IsImage(filename):
		result, err = p.processImage(ctx, path, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(result.ExtractedText)
	result.DetectedRooms = extract.Rooms(lower)
	result.DetectedMeasurements = extract.Measurements(lower)

	result.Filename = filename
	result.FileType = strings.ToLower(filepath.Ext(filename))
	result.ProcessedAt = time.Now()
	result.UserID = ownerID
	result.FileHash = fingerprint
	result.Success = true

	p.cache.Put(ctx, key, result, p.cacheTTL)

	p.log.Info().
		Str("file", filename).
		Int("pages", result.PageCount()).
		Int("tables", len(result.Tables)).
		Float64("confidence", result.TextConfidence).
		Msg("Document processing completed")
	return result, nil
}

// processPDF rasterizes the document, recognizes each page in page order and
// extracts tables from the original file.
func (p *Processor) processPDF(ctx context.Context, path string, opts models.ProcessingOptions) (*models.DocumentProcessingResult, error) {
	pages, err := p.rasterizer.Pages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("pdf processing: %w", err)
	}

	result := &models.DocumentProcessingResult{
		Pages:            make([]models.PageResult, 0, len(pages)),
		Tables:           []models.TableRecord{},
		ProcessingMethod: "pdf_advanced",
	}

	var text strings.Builder
	var confidenceSum float64
	for _, page := range pages {
		pageResult, err := p.recognizePage(ctx, page.Number, page.Image, opts)
		if err != nil {
			return nil, err
		}
		result.Pages = append(result.Pages, pageResult)

		if pageResult.Text != "" {
			fmt.Fprintf(&text, pageDelimiter, pageResult.PageNumber)
			text.WriteString(pageResult.Text)
		}
		confidenceSum += pageResult.Confidence
		if pageResult.HandwritingDetected {
			result.HandwritingDetected = true
		}
	}

	result.ExtractedText = text.String()
	if len(result.Pages) > 0 {
		result.TextConfidence = confidenceSum / float64(len(result.Pages))
	}

	result.Tables = p.tables.Extract(path)
	return result, nil
}

// processImage treats the file as a single page.
func (p *Processor) processImage(ctx context.Context, path string, opts models.ProcessingOptions) (*models.DocumentProcessingResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	pageResult, err := p.recognizePage(ctx, 1, img, opts)
	if err != nil {
		return nil, err
	}

	return &models.DocumentProcessingResult{
		Pages:               []models.PageResult{pageResult},
		Tables:              []models.TableRecord{},
		ExtractedText:       pageResult.Text,
		TextConfidence:      pageResult.Confidence,
		HandwritingDetected: pageResult.HandwritingDetected,
		ProcessingMethod:    "image_advanced",
	}, nil
}

func (p *Processor) recognizePage(ctx context.Context, number int, img image.Image, opts models.ProcessingOptions) (models.PageResult, error) {
	prepared := preprocess.Apply(img, opts)
	page, err := engine.NewPage(number, prepared)
	if err != nil {
		return models.PageResult{}, err
	}
	return p.recognizer.Recognize(ctx, page), nil
}
