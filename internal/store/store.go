// Package store persists processing results to the document database. The
// pipeline treats the store as a sink: a failed write is logged by the caller
// and the in-memory result is still returned, since losing the write should
// not also lose the computation.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"docpipe/internal/logger"
	"docpipe/pkg/models"
)

// DocumentRecord is one document's persisted row. DocumentID is pre-allocated
// by the upload layer and keys the upsert.
type DocumentRecord struct {
	DocumentID       string
	OwnerID          int64
	QuoteID          *int64
	BatchID          string
	Filename         string
	OriginalFilename string
	StoragePath      string
	FileSize         int64
	MimeType         string
	Result           *models.DocumentProcessingResult
}

// ResultStore is the persistence sink consumed by the batch orchestrator.
type ResultStore interface {
	SaveDocumentResult(ctx context.Context, rec DocumentRecord) error
}

// MySQLStore writes document rows to MySQL, one transaction per document so a
// mid-batch crash leaves completed documents durably recorded.
type MySQLStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open connects to MySQL with the given DSN.
func Open(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &MySQLStore{db: db, log: logger.WithComponent("store")}, nil
}

// Close releases the connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

// SaveDocumentResult upserts the processing outcome for one document. Partial
// and failed results are stored too; the status column distinguishes them.
func (s *MySQLStore) SaveDocumentResult(ctx context.Context, rec DocumentRecord) error {
	result := rec.Result
	if result == nil {
		return fmt.Errorf("document %s: result is required", rec.DocumentID)
	}

	status := "completed"
	if !result.Success {
		status = "failed"
	}

	analysis, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis result: %w", err)
	}
	rooms, _ := json.Marshal(result.DetectedRooms)
	measurements, _ := json.Marshal(result.DetectedMeasurements)
	detectedTables, _ := json.Marshal(result.Tables)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO documents (
			document_id, user_id, quote_id, batch_id,
			filename, original_filename, storage_path, file_size, mime_type,
			processing_status, extracted_text, text_confidence, handwriting_detected,
			processing_method, analysis_result, page_count,
			detected_rooms, detected_measurements, detected_tables
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			processing_status = VALUES(processing_status),
			extracted_text = VALUES(extracted_text),
			text_confidence = VALUES(text_confidence),
			handwriting_detected = VALUES(handwriting_detected),
			processing_method = VALUES(processing_method),
			analysis_result = VALUES(analysis_result),
			page_count = VALUES(page_count),
			detected_rooms = VALUES(detected_rooms),
			detected_measurements = VALUES(detected_measurements),
			detected_tables = VALUES(detected_tables)`

	if _, err := tx.ExecContext(ctx, query,
		rec.DocumentID, rec.OwnerID, rec.QuoteID, rec.BatchID,
		rec.Filename, rec.OriginalFilename, rec.StoragePath, rec.FileSize, rec.MimeType,
		status, result.ExtractedText, result.TextConfidence, result.HandwritingDetected,
		result.ProcessingMethod, analysis, result.PageCount(),
		rooms, measurements, detectedTables,
	); err != nil {
		return fmt.Errorf("upsert document %s: %w", rec.DocumentID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document %s: %w", rec.DocumentID, err)
	}

	s.log.Debug().
		Str("document_id", rec.DocumentID).
		Str("status", status).
		Msg("Document result persisted")
	return nil
}
