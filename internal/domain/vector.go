package domain

import "time"

// VectorRecord represents one embedded chunk stored in the vector index.
// Its identity is (DocumentID, ChunkIndex); all records for a document are
// replaced together on re-ingestion and removed together on delete.
type VectorRecord struct {
	DocumentID   string
	ChunkIndex   int
	UserID       string
	DocumentName string
	Content      string
	Embedding    []float32
	CreatedAt    time.Time
}
