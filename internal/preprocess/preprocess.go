// Package preprocess normalizes page images before recognition. The steps
// mirror what scanned painter documents need in practice: consistent color
// mode, a working resolution the engines handle well, and mild contrast and
// sharpness boosts.
package preprocess

import (
	"image"

	"github.com/disintegration/imaging"

	"docpipe/pkg/models"
)

const (
	// Minimum working resolution; smaller pages are upscaled.
	minWidth  = 800
	minHeight = 600

	// Maximum working resolution; larger pages are downscaled.
	maxDimension = 3000

	// Enhancement multipliers tuned on scanned floor plans and offer
	// sheets. Not configurable per call.
	contrastPercent = 20  // ~1.2x contrast
	sharpenSigma    = 0.5 // ~1.1x perceived sharpness
)

// Apply runs the preprocessing steps selected by opts and returns the
// normalized image. Apply never fails: a nil input is returned unchanged so a
// broken page degrades to whatever the engines can make of the original.
func Apply(img image.Image, opts models.ProcessingOptions) image.Image {
	if img == nil {
		return img
	}

	// Normalize to NRGBA so every engine sees the same color mode.
	out := imaging.Clone(img)

	if !opts.SkipResize {
		out = adaptiveResize(out)
	}

	if !opts.SkipEnhance {
		out = imaging.AdjustContrast(out, contrastPercent)
		out = imaging.Sharpen(out, sharpenSigma)
	}

	if opts.Grayscale {
		// Engines consume the 3-channel interface, so the grayscale pass
		// keeps NRGBA with equal channels.
		out = imaging.Grayscale(out)
	}

	return out
}

// adaptiveResize upscales pages below the minimum working resolution and
// downscales pages above the maximum, preserving aspect ratio. Lanczos keeps
// glyph edges usable for OCR in both directions.
func adaptiveResize(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch {
	case w < minWidth || h < minHeight:
		scale := max(float64(minWidth)/float64(w), float64(minHeight)/float64(h))
		return imaging.Resize(img, int(float64(w)*scale), int(float64(h)*scale), imaging.Lanczos)
	case w > maxDimension || h > maxDimension:
		scale := min(float64(maxDimension)/float64(w), float64(maxDimension)/float64(h))
		return imaging.Resize(img, int(float64(w)*scale), int(float64(h)*scale), imaging.Lanczos)
	default:
		return img
	}
}
