package engine_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"docpipe/internal/engine"
)

// Example demonstrates running both engines against a page and letting the
// executor pick the winner.
func Example() {
	// Create context with timeout for recognition
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Tesseract runs locally and needs no credentials
	tesseract := engine.NewTesseractEngine(engine.TesseractConfig{Language: "deu"})

	// Vision reads credentials from the environment; a deployment without
	// them simply runs single-engine
	engines := []engine.Engine{tesseract}
	if vision, err := engine.NewVisionEngine(ctx, engine.VisionConfig{}); err == nil {
		defer vision.Close()
		engines = append(engines, vision)
	}

	executor := engine.NewExecutor(engines...)

	// Encode a rendered page image for recognition
	page, err := engine.NewPage(1, image.NewNRGBA(image.Rect(0, 0, 800, 600)))
	if err != nil {
		log.Fatalf("Failed to encode page: %v", err)
	}

	result := executor.Recognize(ctx, page)
	fmt.Printf("Page %d: %.1f%% via %s\n%s\n", result.PageNumber, result.Confidence, result.BestEngine, result.Text)
}

// ExampleNewVisionEngine demonstrates credential error handling.
func ExampleNewVisionEngine() {
	ctx := context.Background()

	vision, err := engine.NewVisionEngine(ctx, engine.VisionConfig{})
	if err != nil {
		if errors.Is(err, engine.ErrMissingCredentials) {
			log.Fatalf("Please set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
		}
		log.Fatalf("Failed to create Vision engine: %v", err)
	}
	defer vision.Close()

	_ = vision
}
