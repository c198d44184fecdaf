package engine

import (
	"bytes"
	"context"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionConfig tunes the general-purpose engine. Zero values fall back to the
// calibrated defaults.
type VisionConfig struct {
	// LanguageHints are BCP-47 hints passed to the API (e.g. "de", "en").
	LanguageHints []string
	// SegmentConfidenceMin excludes segments at or below this confidence
	// (0-1). The cutoff is lower than the printed-text engine's because this
	// engine's calibration runs lower even on correct recognitions.
	SegmentConfidenceMin float64
	// HandwritingMeanMax flags handwriting when the mean confidence (0-100)
	// falls below this value.
	HandwritingMeanMax float64
	// HandwritingVarianceMin flags handwriting when the variance of segment
	// confidences exceeds this value. Scattered high/low scores are the
	// primary handwriting signal for this engine; consistently low scores
	// suggest genuinely difficult content instead.
	HandwritingVarianceMin float64
}

func (c VisionConfig) withDefaults() VisionConfig {
	if len(c.LanguageHints) == 0 {
		c.LanguageHints = []string{"de", "en"}
	}
	if c.SegmentConfidenceMin == 0 {
		c.SegmentConfidenceMin = 0.3
	}
	if c.HandwritingMeanMax == 0 {
		c.HandwritingMeanMax = 60
	}
	if c.HandwritingVarianceMin == 0 {
		c.HandwritingVarianceMin = 200
	}
	return c
}

// VisionEngine recognizes text using Google Cloud Vision document text
// detection. It tolerates handwriting better than the printed-text engine and
// reports per-segment confidences.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
	cfg    VisionConfig
}

// NewVisionEngine creates the engine with credentials from the environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS
// JSON in env. A missing deployment of this engine is expected; callers fall
// back to the printed-text engine alone.
func NewVisionEngine(ctx context.Context, cfg VisionConfig) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapEngineError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapEngineError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapEngineError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionEngine{client: client, cfg: cfg.withDefaults()}, nil
}

// NewVisionEngineWithClient creates the engine with an explicit client (for testing).
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient, cfg VisionConfig) *VisionEngine {
	return &VisionEngine{client: client, cfg: cfg.withDefaults()}
}

func (e *VisionEngine) Name() string { return "vision" }

// Close releases the underlying API client.
func (e *VisionEngine) Close() error {
	return e.client.Close()
}

// Recognize runs document text detection over the page and keeps the
// confident segments.
func (e *VisionEngine) Recognize(ctx context.Context, page Page) (Result, error) {
	const op = "VisionEngine.Recognize"

	img, err := vision.NewImageFromReader(bytes.NewReader(page.PNG))
	if err != nil {
		return Result{}, WrapEngineError(op, ErrInvalidPage, err.Error())
	}

	annotation, err := e.client.DetectDocumentText(ctx, img, &visionpb.ImageContext{
		LanguageHints: e.cfg.LanguageHints,
	})
	if err != nil {
		return Result{}, WrapEngineError(op, ErrRecognitionFailed, err.Error())
	}

	var segments []string
	var confidences []float64
	if annotation != nil {
		for _, p := range annotation.GetPages() {
			for _, block := range p.GetBlocks() {
				for _, paragraph := range block.GetParagraphs() {
					for _, word := range paragraph.GetWords() {
						conf := float64(word.GetConfidence())
						if conf <= e.cfg.SegmentConfidenceMin {
							continue
						}
						if text := wordText(word); text != "" {
							segments = append(segments, text)
							confidences = append(confidences, conf*100)
						}
					}
				}
			}
		}
	}

	avg := mean(confidences)
	spread := variance(confidences)
	return Result{
		Engine:               e.Name(),
		Text:                 strings.Join(segments, " "),
		Confidence:           avg,
		HandwritingSuspected: spread > e.cfg.HandwritingVarianceMin || avg < e.cfg.HandwritingMeanMax,
		WordCount:            len(segments),
	}, nil
}

func wordText(word *visionpb.Word) string {
	var sb strings.Builder
	for _, symbol := range word.GetSymbols() {
		sb.WriteString(symbol.GetText())
	}
	return strings.TrimSpace(sb.String())
}
