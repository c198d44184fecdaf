// Package validate performs structural sanity checks on uploaded files before
// any processing begins. Checks run in a fixed order and the first failure
// short-circuits with a human-readable reason; recognized failure modes are
// reported in the result, never as errors.
package validate

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// Decoders for the supported image formats. BMP, TIFF and WebP are not
	// in the standard library.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"docpipe/pkg/models"
)

const (
	MinImageDimension = 100
	MaxImageDimension = 10000
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

var documentExtensions = map[string]bool{
	".pdf": true,
}

// IsImage reports whether the filename carries a supported image extension.
func IsImage(filename string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IsPDF reports whether the filename carries a PDF extension.
func IsPDF(filename string) bool {
	return documentExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Validator checks uploaded files against size and format constraints.
type Validator struct {
	maxSizeMB int
}

// New creates a validator with the given size limit in megabytes.
func New(maxSizeMB int) *Validator {
	return &Validator{maxSizeMB: maxSizeMB}
}

// Check validates the file at path. The filename is checked separately from
// the path because uploads are staged under temporary names.
func (v *Validator) Check(path, filename string) models.ValidationResult {
	info, err := os.Stat(path)
	if err != nil {
		return models.ValidationResult{Valid: false, Error: "File not found"}
	}

	fileSize := info.Size()
	if fileSize > int64(v.maxSizeMB)*1024*1024 {
		return models.ValidationResult{
			Valid: false,
			Error: fmt.Sprintf("File too large (max %dMB)", v.maxSizeMB),
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] && !documentExtensions[ext] {
		return models.ValidationResult{
			Valid: false,
			Error: fmt.Sprintf("Unsupported format: %s", ext),
		}
	}

	if imageExtensions[ext] {
		if result := v.checkImage(path); !result.Valid {
			return result
		}
	}

	return models.ValidationResult{Valid: true, FileSize: fileSize}
}

func (v *Validator) checkImage(path string) models.ValidationResult {
	f, err := os.Open(path)
	if err != nil {
		return models.ValidationResult{Valid: false, Error: "Invalid or corrupted image file"}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return models.ValidationResult{Valid: false, Error: "Invalid or corrupted image file"}
	}

	if cfg.Width < MinImageDimension || cfg.Height < MinImageDimension {
		return models.ValidationResult{
			Valid: false,
			Error: fmt.Sprintf("Image too small (min %dx%d)", MinImageDimension, MinImageDimension),
		}
	}
	if cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension {
		return models.ValidationResult{
			Valid: false,
			Error: fmt.Sprintf("Image too large (max %dx%d)", MaxImageDimension, MaxImageDimension),
		}
	}

	return models.ValidationResult{Valid: true}
}
