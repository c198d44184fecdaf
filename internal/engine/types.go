// Package engine runs page images through independent recognition engines and
// reconciles their output by confidence. Engines are expensive to initialize
// and are constructed once at startup; a single engine instance is shared
// read-only across all concurrent document pipelines.
package engine

import (
	"bytes"
	"context"
	"image"
	"image/png"
)

// Page is one normalized raster page submitted for recognition.
type Page struct {
	// Number is the 1-based page number within the source document.
	Number int
	// Width and Height are the pixel dimensions of the encoded image.
	Width  int
	Height int
	// PNG is the encoded image payload.
	PNG []byte
}

// NewPage encodes a preprocessed page image for recognition.
func NewPage(number int, img image.Image) (Page, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Page{}, WrapEngineError("NewPage", err, "encode page image")
	}
	b := img.Bounds()
	return Page{
		Number: number,
		Width:  b.Dx(),
		Height: b.Dy(),
		PNG:    buf.Bytes(),
	}, nil
}

// Result is the output of a single engine on a single page. Results from
// competing engines are compared by Confidence and the loser is discarded.
type Result struct {
	// Engine names the engine that produced this result.
	Engine string
	// Text is the recognized text, filtered to confident tokens only.
	Text string
	// Confidence is the engine's self-reported certainty, normalized to 0-100.
	Confidence float64
	// HandwritingSuspected is a heuristic flag derived from the confidence
	// distribution, not a ground-truth classification.
	HandwritingSuspected bool
	// WordCount is the number of tokens that passed the engine's filter.
	WordCount int
}

// Engine is an independent recognition implementation with its own
// confidence calibration.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, page Page) (Result, error)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the population variance, matching how the handwriting
// thresholds were originally calibrated.
func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}
