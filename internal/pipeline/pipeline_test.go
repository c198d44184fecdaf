package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docpipe/internal/engine"
	"docpipe/internal/raster"
	"docpipe/internal/validate"
	"docpipe/pkg/models"
)

// fakeCache is an in-memory ResultCache tracking access counts.
type fakeCache struct {
	entries map[string]*models.DocumentProcessingResult
	gets    int
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.DocumentProcessingResult)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (*models.DocumentProcessingResult, bool) {
	c.gets++
	result, ok := c.entries[key]
	return result, ok
}

func (c *fakeCache) Put(ctx context.Context, key string, result *models.DocumentProcessingResult, ttl time.Duration) {
	c.puts++
	c.entries[key] = result
}

// fakeRasterizer yields a fixed number of blank pages.
type fakeRasterizer struct {
	pages int
}

func (r *fakeRasterizer) Pages(ctx context.Context, path string) ([]raster.Page, error) {
	pages := make([]raster.Page, r.pages)
	for i := range pages {
		pages[i] = raster.Page{Number: i + 1, Image: image.NewNRGBA(image.Rect(0, 0, 20, 20))}
	}
	return pages, nil
}

// scriptedEngine returns a fixed result per page number and counts
// invocations.
type scriptedEngine struct {
	name   string
	byPage map[int]engine.Result
	calls  int
}

func (e *scriptedEngine) Name() string { return e.name }

func (e *scriptedEngine) Recognize(ctx context.Context, page engine.Page) (engine.Result, error) {
	e.calls++
	res, ok := e.byPage[page.Number]
	if !ok {
		return engine.Result{}, errors.New("no script for page")
	}
	return res, nil
}

// fakeTables returns fixed records and notes whether it ran.
type fakeTables struct {
	records []models.TableRecord
	calls   int
}

func (f *fakeTables) Extract(path string) []models.TableRecord {
	f.calls++
	if f.records == nil {
		return []models.TableRecord{}
	}
	return f.records
}

func fastOptions() models.ProcessingOptions {
	return models.ProcessingOptions{SkipResize: true, SkipEnhance: true}
}

func newTestProcessor(rasterPages int, cache *fakeCache, tables *fakeTables, engines ...engine.Engine) *Processor {
	return NewProcessor(ProcessorConfig{
		Validator:   validate.New(50),
		Rasterizer:  &fakeRasterizer{pages: rasterPages},
		Recognizer:  engine.NewExecutor(engines...),
		Tables:      tables,
		Cache:       cache,
		CacheTTL:    time.Hour,
		Fingerprint: func(path string) (string, error) { return "f1e2d3c4b5a69788", nil },
		CacheKey: func(fingerprint string, opts models.ProcessingOptions) string {
			return fmt.Sprintf("test:%s:%v", fingerprint, opts)
		},
	})
}

func writeTestPDF(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func writeTestImage(t *testing.T, name string, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write test image: %v", err)
	}
	return path
}

func TestProcessDocumentSelectsWinnerPerPage(t *testing.T) {
	first := &scriptedEngine{
		name: "first",
		byPage: map[int]engine.Result{
			1: {Engine: "first", Text: "Wohnzimmer und Flur streichen", Confidence: 80},
			2: {Engine: "first", Text: "Gcsamt 45 5 qm", Confidence: 40},
		},
	}
	second := &scriptedEngine{
		name: "second",
		byPage: map[int]engine.Result{
			1: {Engine: "second", Text: "Wohnzlmmer und F1ur strelchen", Confidence: 55},
			2: {Engine: "second", Text: "Gesamt 45,5 qm", Confidence: 72},
		},
	}
	path := writeTestPDF(t, "angebot.pdf")

	result, err := newTestProcessor(2, newFakeCache(), &fakeTables{}, first, second).
		ProcessDocument(context.Background(), path, "angebot.pdf", "application/pdf", 7, fastOptions())
	if err != nil {
		t.Fatalf("ProcessDocument failed: %v", err)
	}

	if len(result.Pages) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(result.Pages))
	}
	if result.Pages[0].BestEngine != "first" || result.Pages[0].Confidence != 80 {
		t.Errorf("Page 1: expected first@80, got %s@%f", result.Pages[0].BestEngine, result.Pages[0].Confidence)
	}
	if result.Pages[1].BestEngine != "second" || result.Pages[1].Confidence != 72 {
		t.Errorf("Page 2: expected second@72, got %s@%f", result.Pages[1].BestEngine, result.Pages[1].Confidence)
	}

	wantText := fmt.Sprintf(pageDelimiter, 1) + "Wohnzimmer und Flur streichen" +
		fmt.Sprintf(pageDelimiter, 2) + "Gesamt 45,5 qm"
	if result.ExtractedText != wantText {
		t.Errorf("Unexpected extracted text:\n%q\nwant:\n%q", result.ExtractedText, wantText)
	}

	if result.TextConfidence != 76 {
		t.Errorf("Expected confidence (80+72)/2 = 76, got %f", result.TextConfidence)
	}
	if result.ProcessingMethod != "pdf_advanced" {
		t.Errorf("Expected pdf_advanced, got %s", result.ProcessingMethod)
	}
	if result.UserID != 7 || result.FileHash != "f1e2d3c4b5a69788" || !result.Success {
		t.Errorf("Unexpected metadata: %+v", result)
	}
}

func TestProcessDocumentRunsEntityExtraction(t *testing.T) {
	eng := &scriptedEngine{
		name: "only",
		byPage: map[int]engine.Result{
			1: {Engine: "only", Text: "Wohnzimmer streichen, Fläche 15,36 qm", Confidence: 90},
		},
	}
	path := writeTestPDF(t, "angebot.pdf")

	result, err := newTestProcessor(1, newFakeCache(), &fakeTables{}, eng).
		ProcessDocument(context.Background(), path, "angebot.pdf", "application/pdf", 1, fastOptions())
	if err != nil {
		t.Fatalf("ProcessDocument failed: %v", err)
	}

	foundRoom := false
	for _, r := range result.DetectedRooms {
		if r == "wohnzimmer" {
			foundRoom = true
		}
	}
	if !foundRoom {
		t.Errorf("Expected wohnzimmer in detected rooms, got %v", result.DetectedRooms)
	}

	foundArea := false
	for _, m := range result.DetectedMeasurements {
		if m.Value == "15.36" && m.Unit == "qm" {
			foundArea = true
		}
	}
	if !foundArea {
		t.Errorf("Expected 15.36 qm in measurements, got %v", result.DetectedMeasurements)
	}
}

func TestProcessDocumentCacheHitSkipsEngines(t *testing.T) {
	eng := &scriptedEngine{
		name: "only",
		byPage: map[int]engine.Result{
			1: {Engine: "only", Text: "Seite eins", Confidence: 65},
		},
	}
	cache := newFakeCache()
	processor := newTestProcessor(1, cache, &fakeTables{}, eng)
	path := writeTestPDF(t, "angebot.pdf")
	ctx := context.Background()

	first, err := processor.ProcessDocument(ctx, path, "angebot.pdf", "application/pdf", 1, fastOptions())
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	callsAfterFirst := eng.calls
	if cache.puts != 1 {
		t.Fatalf("Expected one cache write, got %d", cache.puts)
	}

	second, err := processor.ProcessDocument(ctx, path, "angebot.pdf", "application/pdf", 1, fastOptions())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if eng.calls != callsAfterFirst {
		t.Errorf("Expected no engine invocations on cache hit, got %d extra", eng.calls-callsAfterFirst)
	}
	if second.ExtractedText != first.ExtractedText || second.TextConfidence != first.TextConfidence {
		t.Error("Expected the cached result to equal the computed result")
	}
}

func TestProcessDocumentCacheKeyVariesWithOptions(t *testing.T) {
	eng := &scriptedEngine{
		name: "only",
		byPage: map[int]engine.Result{
			1: {Engine: "only", Text: "Seite eins", Confidence: 65},
		},
	}
	cache := newFakeCache()
	processor := newTestProcessor(1, cache, &fakeTables{}, eng)
	path := writeTestPDF(t, "angebot.pdf")
	ctx := context.Background()

	if _, err := processor.ProcessDocument(ctx, path, "angebot.pdf", "application/pdf", 1, fastOptions()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	callsAfterFirst := eng.calls

	other := fastOptions()
	other.Grayscale = true
	if _, err := processor.ProcessDocument(ctx, path, "angebot.pdf", "application/pdf", 1, other); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if eng.calls == callsAfterFirst {
		t.Error("Expected a recompute for different options")
	}
	if cache.puts != 2 {
		t.Errorf("Expected two distinct cache entries, got %d writes", cache.puts)
	}
}

func TestProcessDocumentImagePath(t *testing.T) {
	eng := &scriptedEngine{
		name: "only",
		byPage: map[int]engine.Result{
			1: {Engine: "only", Text: "Badezimmer 10 qm", Confidence: 88, HandwritingSuspected: true},
		},
	}
	tables := &fakeTables{}
	path := writeTestImage(t, "foto.png", 120, 120)

	result, err := newTestProcessor(0, newFakeCache(), tables, eng).
		ProcessDocument(context.Background(), path, "foto.png", "image/png", 1, fastOptions())
	if err != nil {
		t.Fatalf("ProcessDocument failed: %v", err)
	}

	if result.ProcessingMethod != "image_advanced" {
		t.Errorf("Expected image_advanced, got %s", result.ProcessingMethod)
	}
	if len(result.Pages) != 1 {
		t.Fatalf("Expected a single page, got %d", len(result.Pages))
	}
	if !result.HandwritingDetected {
		t.Error("Expected handwriting flag to propagate")
	}
	if tables.calls != 0 {
		t.Error("Expected no table extraction for images")
	}
	if len(result.Tables) != 0 {
		t.Errorf("Expected no tables, got %v", result.Tables)
	}
}

func TestProcessDocumentHashingFailureDegrades(t *testing.T) {
	eng := &scriptedEngine{
		name: "only",
		byPage: map[int]engine.Result{
			1: {Engine: "only", Text: "Seite eins", Confidence: 65},
		},
	}
	processor := NewProcessor(ProcessorConfig{
		Validator:   validate.New(50),
		Rasterizer:  &fakeRasterizer{pages: 1},
		Recognizer:  engine.NewExecutor(eng),
		Tables:      &fakeTables{},
		Cache:       newFakeCache(),
		CacheTTL:    time.Hour,
		Fingerprint: func(path string) (string, error) { return "", errors.New("read interrupted") },
		CacheKey: func(fingerprint string, opts models.ProcessingOptions) string {
			return "test:" + fingerprint
		},
	})
	path := writeTestPDF(t, "angebot.pdf")

	result, err := processor.ProcessDocument(context.Background(), path, "angebot.pdf", "application/pdf", 1, fastOptions())
	if err != nil {
		t.Fatalf("Expected processing to survive a hashing failure, got %v", err)
	}

	if !result.Success {
		t.Error("Expected a successful result")
	}
	if !strings.HasPrefix(result.FileHash, "unhashed_") {
		t.Errorf("Expected a pseudo-fingerprint, got %q", result.FileHash)
	}
	if eng.calls == 0 {
		t.Error("Expected the document to be processed")
	}
}

func TestProcessDocumentValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	eng := &scriptedEngine{name: "only", byPage: map[int]engine.Result{}}

	_, err := newTestProcessor(1, newFakeCache(), &fakeTables{}, eng).
		ProcessDocument(context.Background(), path, "notes.txt", "text/plain", 1, fastOptions())

	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("Expected ErrValidationFailed, got %v", err)
	}
	if eng.calls != 0 {
		t.Errorf("Expected no engine calls for an invalid file, got %d", eng.calls)
	}
}

func TestProcessDocumentHandwritingAggregatesAcrossPages(t *testing.T) {
	eng := &scriptedEngine{
		name: "only",
		byPage: map[int]engine.Result{
			1: {Engine: "only", Text: "gedruckt", Confidence: 90},
			2: {Engine: "only", Text: "handschrift", Confidence: 50, HandwritingSuspected: true},
		},
	}
	path := writeTestPDF(t, "misch.pdf")

	result, err := newTestProcessor(2, newFakeCache(), &fakeTables{}, eng).
		ProcessDocument(context.Background(), path, "misch.pdf", "application/pdf", 1, fastOptions())
	if err != nil {
		t.Fatalf("ProcessDocument failed: %v", err)
	}

	if !result.HandwritingDetected {
		t.Error("Expected handwriting detected when any page is suspected")
	}
	if result.Pages[0].HandwritingDetected {
		t.Error("Expected page 1 flag to stay false")
	}
}

func TestProcessDocumentTablesAttached(t *testing.T) {
	eng := &scriptedEngine{
		name: "only",
		byPage: map[int]engine.Result{
			1: {Engine: "only", Text: "text", Confidence: 70},
		},
	}
	tables := &fakeTables{records: []models.TableRecord{{
		TableID: 1,
		Method:  "grid_lattice",
		Data:    [][]string{{"Pos", "Menge"}, {"Wand", "25"}},
		Shape:   [2]int{2, 2},
		Page:    "1",
	}}}
	path := writeTestPDF(t, "angebot.pdf")

	result, err := newTestProcessor(1, newFakeCache(), tables, eng).
		ProcessDocument(context.Background(), path, "angebot.pdf", "application/pdf", 1, fastOptions())
	if err != nil {
		t.Fatalf("ProcessDocument failed: %v", err)
	}

	if len(result.Tables) != 1 || result.Tables[0].Method != "grid_lattice" {
		t.Errorf("Expected the extracted table to be attached, got %v", result.Tables)
	}
	if !strings.Contains(result.ExtractedText, "text") {
		t.Errorf("Unexpected text: %q", result.ExtractedText)
	}
}
