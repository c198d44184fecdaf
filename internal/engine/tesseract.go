package engine

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// DefaultWhitelist restricts Tesseract to characters that occur in German
// painter documents: alphanumerics, umlauts, punctuation and currency signs.
// Everything else is recognition noise.
const DefaultWhitelist = `0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyzäöüßÄÖÜ.,!?()-+*/=€$%&@#:;'"`

// TesseractConfig tunes the printed-text engine. Zero values fall back to the
// calibrated defaults.
type TesseractConfig struct {
	// Language is the Tesseract trained-data language (e.g. "deu").
	Language string
	// Whitelist restricts recognition to a known-good character set.
	Whitelist string
	// WordConfidenceMin excludes words below this per-word confidence (0-100)
	// from both the returned text and the confidence average.
	WordConfidenceMin float64
	// HandwritingAvgMax flags handwriting when the average confidence falls
	// below this value and enough confident words were found. Printed-text
	// recognition degrades non-uniformly on handwriting, scattering low
	// scores through the page.
	HandwritingAvgMax float64
	// HandwritingMinWords is the confident-word count required before the
	// low-average heuristic fires.
	HandwritingMinWords int
}

func (c TesseractConfig) withDefaults() TesseractConfig {
	if c.Language == "" {
		c.Language = "deu"
	}
	if c.Whitelist == "" {
		c.Whitelist = DefaultWhitelist
	}
	if c.WordConfidenceMin == 0 {
		c.WordConfidenceMin = 30
	}
	if c.HandwritingAvgMax == 0 {
		c.HandwritingAvgMax = 70
	}
	if c.HandwritingMinWords == 0 {
		c.HandwritingMinWords = 10
	}
	return c
}

// TesseractEngine recognizes printed block text using a local Tesseract
// installation via gosseract. It reports per-word confidences, which drive
// both the word filter and the handwriting heuristic.
type TesseractEngine struct {
	cfg           TesseractConfig
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs the printed-text engine.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	return &TesseractEngine{
		cfg:           cfg.withDefaults(),
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract_" + e.cfg.Language }

// Recognize runs Tesseract over the page and returns the confident words.
func (e *TesseractEngine) Recognize(ctx context.Context, page Page) (Result, error) {
	const op = "TesseractEngine.Recognize"

	if err := ctx.Err(); err != nil {
		return Result{}, WrapEngineError(op, err, "")
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(page.PNG); err != nil {
		return Result{}, WrapEngineError(op, ErrInvalidPage, err.Error())
	}
	if err := c.SetLanguage(e.cfg.Language); err != nil {
		return Result{}, WrapEngineError(op, ErrEngineUnavailable, err.Error())
	}
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return Result{}, WrapEngineError(op, ErrEngineUnavailable, err.Error())
	}
	if err := c.SetWhitelist(e.cfg.Whitelist); err != nil {
		return Result{}, WrapEngineError(op, ErrEngineUnavailable, err.Error())
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{}, WrapEngineError(op, ErrRecognitionFailed, err.Error())
	}

	var words []string
	var confidences []float64
	for _, b := range boxes {
		if b.Confidence <= e.cfg.WordConfidenceMin {
			continue
		}
		if word := strings.TrimSpace(b.Word); word != "" {
			words = append(words, word)
			confidences = append(confidences, b.Confidence)
		}
	}

	avg := mean(confidences)
	return Result{
		Engine:               e.Name(),
		Text:                 strings.Join(words, " "),
		Confidence:           avg,
		HandwritingSuspected: avg < e.cfg.HandwritingAvgMax && len(words) > e.cfg.HandwritingMinWords,
		WordCount:            len(words),
	}, nil
}
