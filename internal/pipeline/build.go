package pipeline

import (
	"context"
	"time"

	"docpipe/internal/cache"
	"docpipe/internal/config"
	"docpipe/internal/engine"
	"docpipe/internal/logger"
	"docpipe/internal/raster"
	"docpipe/internal/tables"
	"docpipe/internal/validate"
)

// Build wires a production processor from configuration. Engines are
// constructed once here and shared read-only by every concurrent document
// pipeline; the returned cleanup releases their resources. A secondary engine
// that cannot initialize (typically missing Vision credentials) is left out
// of the engine set rather than treated as an error.
func Build(ctx context.Context, cfg *config.Config) (*Processor, func(), error) {
	log := logger.WithComponent("pipeline")

	engines := []engine.Engine{
		engine.NewTesseractEngine(engine.TesseractConfig{
			Language:          cfg.OCRLanguage,
			WordConfidenceMin: cfg.WordConfidenceMin,
			HandwritingAvgMax: cfg.HandwritingAvgMax,
		}),
	}

	vis, err := engine.NewVisionEngine(ctx, engine.VisionConfig{
		LanguageHints:          cfg.VisionLanguages,
		SegmentConfidenceMin:   cfg.SegmentConfidence,
		HandwritingMeanMax:     cfg.HandwritingMeanMax,
		HandwritingVarianceMin: cfg.HandwritingVarMin,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Secondary recognition engine unavailable, continuing with primary only")
	} else {
		engines = append(engines, vis)
	}

	cacheClient := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)

	processor := NewProcessor(ProcessorConfig{
		Validator:   validate.New(cfg.MaxFileSizeMB),
		Rasterizer:  raster.New(cfg.RasterDPI),
		Recognizer:  engine.NewExecutor(engines...),
		Tables:      tables.New(),
		Cache:       cacheClient,
		CacheTTL:    time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Fingerprint: cache.Fingerprint,
		CacheKey:    cache.Key,
	})

	cleanup := func() {
		if vis != nil {
			vis.Close()
		}
		cacheClient.Close()
	}
	return processor, cleanup, nil
}
