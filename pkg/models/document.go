package models

import "time"

// ProcessingOptions controls optional pipeline behavior. The canonical JSON
// form of this struct is part of the cache key, so identical options always
// produce identical keys.
type ProcessingOptions struct {
	// Grayscale converts pages to grayscale before OCR. Improves recognition
	// on most scanned documents.
	Grayscale bool `json:"grayscale"`

	// SkipResize disables the adaptive resize step of preprocessing.
	SkipResize bool `json:"skip_resize,omitempty"`

	// SkipEnhance disables the contrast/sharpness enhancement step.
	SkipEnhance bool `json:"skip_enhance,omitempty"`
}

// DefaultOptions returns the options used when a caller passes none.
func DefaultOptions() ProcessingOptions {
	return ProcessingOptions{Grayscale: true}
}

// ValidationResult reports the outcome of pre-processing file validation.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// PageResult is the reconciled recognition result for a single page. Text and
// confidence always originate from the same engine; output from the losing
// engine is discarded, never mixed in.
type PageResult struct {
	PageNumber          int     `json:"page_number"`
	Text                string  `json:"text"`
	Confidence          float64 `json:"confidence"`
	HandwritingDetected bool    `json:"handwriting_detected"`
	BestEngine          string  `json:"best_method"`
}

// TableRecord is one candidate table found in a document. Candidates from
// different extraction strategies are kept side by side and not deduplicated,
// so the same physical table may appear twice with different methods.
type TableRecord struct {
	TableID  int        `json:"table_id"`
	Method   string     `json:"method"`
	Accuracy float64    `json:"accuracy"`
	Data     [][]string `json:"data"`
	Shape    [2]int     `json:"shape"`
	// Page is the 1-based source page as a string, or "unknown" for
	// strategies that do not track page provenance.
	Page string `json:"page"`
}

// Measurement is a typed record extracted from recognized text. Type is
// either "measurement" (Value + Unit) or "dimensions" (Width x Height + Unit).
// Numeric strings use a decimal point regardless of the source locale.
type Measurement struct {
	Value  string `json:"value,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
	Unit   string `json:"unit"`
	Type   string `json:"type"`
}

// DocumentProcessingResult is the top-level artifact produced for one
// document. It is written to the cache and the persistence sink, and its
// JSON shape is the contract downstream consumers depend on.
type DocumentProcessingResult struct {
	Pages                []PageResult  `json:"pages"`
	Tables               []TableRecord `json:"tables"`
	ExtractedText        string        `json:"extracted_text"`
	TextConfidence       float64       `json:"text_confidence"`
	HandwritingDetected  bool          `json:"handwriting_detected"`
	ProcessingMethod     string        `json:"processing_method"`
	DetectedRooms        []string      `json:"detected_rooms"`
	DetectedMeasurements []Measurement `json:"detected_measurements"`
	Filename             string        `json:"filename"`
	FileType             string        `json:"file_type"`
	ProcessedAt          time.Time     `json:"processed_at"`
	UserID               int64         `json:"user_id"`
	FileHash             string        `json:"file_hash"`
	Success              bool          `json:"success"`
	Error                string        `json:"error,omitempty"`
}

// PageCount returns the number of recognized pages.
func (r *DocumentProcessingResult) PageCount() int {
	return len(r.Pages)
}

// ErrorResult builds the per-document error record that takes a failed
// document's position in a batch result.
func ErrorResult(filename string, err error) DocumentProcessingResult {
	return DocumentProcessingResult{
		Filename:    filename,
		Error:       err.Error(),
		Success:     false,
		ProcessedAt: time.Now(),
	}
}
