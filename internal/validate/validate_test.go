package validate

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write test image: %v", err)
	}
	return path
}

func TestCheckAcceptsValidImage(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "scan.png", 120, 120)

	result := New(50).Check(path, "scan.png")

	if !result.Valid {
		t.Fatalf("Expected valid, got error: %s", result.Error)
	}
	if result.FileSize == 0 {
		t.Error("Expected file size to be reported")
	}
}

func TestCheckRejectsSmallImage(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "tiny.png", 99, 99)

	result := New(50).Check(path, "tiny.png")

	if result.Valid {
		t.Fatal("Expected rejection of a 99x99 image")
	}
	if !strings.Contains(result.Error, "too small") {
		t.Errorf("Expected size error, got: %s", result.Error)
	}
}

func TestCheckAcceptsMinimumDimensions(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "edge.png", 100, 100)

	result := New(50).Check(path, "edge.png")

	if !result.Valid {
		t.Errorf("Expected a 100x100 image to pass, got: %s", result.Error)
	}
}

func TestCheckRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.pdf")
	if err := os.WriteFile(path, make([]byte, 2*1024*1024), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	result := New(1).Check(path, "big.pdf")

	if result.Valid {
		t.Fatal("Expected rejection of a file over the size limit")
	}
	if !strings.Contains(result.Error, "too large") {
		t.Errorf("Expected size error, got: %s", result.Error)
	}
}

func TestCheckRejectsUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	result := New(50).Check(path, "notes.txt")

	if result.Valid {
		t.Fatal("Expected rejection of a .txt file")
	}
	if !strings.Contains(result.Error, "Unsupported format") {
		t.Errorf("Expected format error, got: %s", result.Error)
	}
}

func TestCheckRejectsMissingFile(t *testing.T) {
	result := New(50).Check(filepath.Join(t.TempDir(), "gone.png"), "gone.png")

	if result.Valid {
		t.Fatal("Expected rejection of a missing file")
	}
	if result.Error != "File not found" {
		t.Errorf("Unexpected error: %s", result.Error)
	}
}

func TestCheckRejectsCorruptedImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(path, []byte("not a png"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	result := New(50).Check(path, "broken.png")

	if result.Valid {
		t.Fatal("Expected rejection of corrupted image data")
	}
	if !strings.Contains(result.Error, "corrupted") {
		t.Errorf("Expected corruption error, got: %s", result.Error)
	}
}

func TestCheckSkipsImageChecksForPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quote.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	result := New(50).Check(path, "quote.pdf")

	if !result.Valid {
		t.Errorf("Expected PDF to pass structural checks, got: %s", result.Error)
	}
}

func TestIsImageAndIsPDF(t *testing.T) {
	tests := []struct {
		filename string
		isImage  bool
		isPDF    bool
	}{
		{"scan.png", true, false},
		{"photo.JPG", true, false},
		{"doc.webp", true, false},
		{"quote.pdf", false, true},
		{"QUOTE.PDF", false, true},
		{"notes.txt", false, false},
		{"noext", false, false},
	}

	for _, tt := range tests {
		if got := IsImage(tt.filename); got != tt.isImage {
			t.Errorf("IsImage(%q) = %v, want %v", tt.filename, got, tt.isImage)
		}
		if got := IsPDF(tt.filename); got != tt.isPDF {
			t.Errorf("IsPDF(%q) = %v, want %v", tt.filename, got, tt.isPDF)
		}
	}
}
