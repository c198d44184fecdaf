// Package raster converts PDF documents into per-page images suitable for
// OCR. Rendering runs at a fixed high DPI: recognition accuracy is worth more
// than throughput for uploaded floor plans and offer sheets.
package raster

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog"

	"docpipe/internal/logger"
)

// renderWorkers bounds parallel page renders. Each rendered page at 300 DPI
// is tens of megabytes, so large PDFs must not render all pages at once.
const renderWorkers = 2

// Page is a single rasterized page in document order.
type Page struct {
	Number int // 1-based
	Image  image.Image
}

// Rasterizer renders PDF pages to images.
type Rasterizer struct {
	dpi float64
	log zerolog.Logger
}

// New creates a rasterizer rendering at the given DPI.
func New(dpi int) *Rasterizer {
	return &Rasterizer{
		dpi: float64(dpi),
		log: logger.WithComponent("raster"),
	}
}

// Pages renders every page of the PDF at path, in page order. A corrupt or
// unreadable PDF fails the whole document; the caller isolates that failure
// from sibling documents.
func (r *Rasterizer) Pages(ctx context.Context, path string) ([]Page, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := doc.NumPage()
	doc.Close()

	if total == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages := make([]Page, total)
	errs := make([]error, renderWorkers)
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < renderWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			errs[worker] = r.renderPages(ctx, path, indexes, pages)
		}(w)
	}

	for i := 0; i < total; i++ {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	r.log.Debug().Str("file", path).Int("pages", total).Msg("Rasterized PDF")
	return pages, nil
}

// renderPages drains page indexes using a worker-local document handle; the
// fitz document is not safe for concurrent use. The channel is drained even
// after a failure so the feeding goroutine never blocks on a dead worker.
func (r *Rasterizer) renderPages(ctx context.Context, path string, indexes <-chan int, pages []Page) error {
	doc, err := fitz.New(path)
	if err != nil {
		err = fmt.Errorf("open pdf: %w", err)
	} else {
		defer doc.Close()
	}

	var firstErr error
	for i := range indexes {
		if err != nil || firstErr != nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			firstErr = ctxErr
			continue
		}
		img, renderErr := doc.ImageDPI(i, r.dpi)
		if renderErr != nil {
			firstErr = fmt.Errorf("render page %d: %w", i+1, renderErr)
			continue
		}
		pages[i] = Page{Number: i + 1, Image: img}
	}

	if err != nil {
		return err
	}
	return firstErr
}
