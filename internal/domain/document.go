package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the lifecycle status of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents an uploaded file tracked through the ingestion pipeline.
// The documents table is the system of record for ingestion state.
type Document struct {
	ID             string
	UserID         string
	Filename       string // original filename as uploaded
	StoredKey      string // key in the file store
	FileType       string // declared extension, e.g. ".pdf"
	FileSize       int64
	Status         DocumentStatus
	ChunkCount     int
	EmbeddingCount int
	ContentPreview string
	ErrorMessage   string
	CreatedAt      time.Time
	ProcessedAt    *time.Time
}

// NewDocument creates a new Document in the pending state.
func NewDocument(id, userID, filename, storedKey, fileType string, fileSize int64, createdAt time.Time) *Document {
	return &Document{
		ID:        id,
		UserID:    userID,
		Filename:  filename,
		StoredKey: storedKey,
		FileType:  fileType,
		FileSize:  fileSize,
		Status:    DocumentStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.UserID == "" {
		return fmt.Errorf("document UserID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if d.FileSize < 0 {
		return fmt.Errorf("document FileSize cannot be negative")
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	if d.Status != DocumentStatusCompleted && (d.ChunkCount != 0 || d.EmbeddingCount != 0) {
		return fmt.Errorf("chunk counts must be zero unless document is completed")
	}

	if d.EmbeddingCount > d.ChunkCount {
		return fmt.Errorf("document EmbeddingCount cannot exceed ChunkCount")
	}

	return nil
}

// CanTransition reports whether moving from the document's current status
// to next is a legal state machine transition.
func (d *Document) CanTransition(next DocumentStatus) bool {
	switch d.Status {
	case DocumentStatusPending:
		return next == DocumentStatusProcessing
	case DocumentStatusProcessing:
		return next == DocumentStatusCompleted || next == DocumentStatusFailed
	case DocumentStatusCompleted, DocumentStatusFailed:
		// Reprocess re-queues a finished document.
		return next == DocumentStatusPending
	}
	return false
}

// isValidDocumentStatus checks if a DocumentStatus is valid
func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}
