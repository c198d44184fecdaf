package engine

import (
	"context"

	"github.com/rs/zerolog"

	"docpipe/internal/logger"
	"docpipe/pkg/models"
)

// Executor runs every available engine against a page and selects the result
// with the highest confidence. It is polymorphic over the capability set: an
// optional engine that failed to initialize at startup is simply absent from
// the list, which covers deployments without Vision credentials or without a
// local Tesseract installation.
type Executor struct {
	engines []Engine
	log     zerolog.Logger
}

// NewExecutor creates an executor over the engines available in this process.
// Engine order is fixed for the life of the executor; ties are broken in
// favor of the engine evaluated later.
func NewExecutor(engines ...Engine) *Executor {
	return &Executor{
		engines: engines,
		log:     logger.WithComponent("executor"),
	}
}

// EngineCount returns the number of available engines.
func (x *Executor) EngineCount() int { return len(x.engines) }

// Recognize runs all engines on the page and returns the winning result. Text
// and confidence always come from the same engine. An engine error degrades
// to the remaining engines; with no usable engine output the page yields an
// empty zero-confidence result rather than an error, since partial extraction
// beats no extraction.
func (x *Executor) Recognize(ctx context.Context, page Page) models.PageResult {
	var best *Result
	for _, eng := range x.engines {
		res, err := eng.Recognize(ctx, page)
		if err != nil {
			x.log.Warn().
				Err(err).
				Str("engine", eng.Name()).
				Int("page", page.Number).
				Msg("Engine failed, continuing with remaining engines")
			continue
		}
		x.log.Debug().
			Str("engine", res.Engine).
			Int("page", page.Number).
			Float64("confidence", res.Confidence).
			Int("words", res.WordCount).
			Msg("Engine result")
		if best == nil || res.Confidence >= best.Confidence {
			best = &res
		}
	}

	if best == nil {
		return models.PageResult{PageNumber: page.Number}
	}

	return models.PageResult{
		PageNumber:          page.Number,
		Text:                best.Text,
		Confidence:          best.Confidence,
		HandwritingDetected: best.HandwritingSuspected,
		BestEngine:          best.Engine,
	}
}
