package service

import "context"

// SearchHit is one ranked result from the vector index.
type SearchHit struct {
	DocumentID   string
	ChunkIndex   int
	DocumentName string
	Content      string
	Score        float64
}

// VectorStats summarizes the index contents for one owner.
type VectorStats struct {
	TotalRecords int
}

// VectorIndex stores embedded chunks scoped by owner and answers
// nearest-neighbor queries by cosine similarity. Upsert replaces all
// records for a document as one atomic unit: a concurrent search sees
// either none or all of the document's records, never a partial set.
type VectorIndex interface {
	// Upsert replaces any existing records for documentID and inserts one
	// record per (chunk, vector) pair. It returns the number inserted.
	Upsert(ctx context.Context, userID, documentID, documentName string, chunks []string, vectors [][]float32) (int, error)

	// Search returns up to topK records owned by userID, ordered by cosine
	// similarity descending; ties break by lower chunk index, then lower
	// document ID.
	Search(ctx context.Context, userID string, query []float32, topK int) ([]SearchHit, error)

	// DeleteDocument removes every record for documentID owned by userID
	// and returns the removed count.
	DeleteDocument(ctx context.Context, userID, documentID string) (int, error)

	// Stats reports totals for the owner's records.
	Stats(ctx context.Context, userID string) (VectorStats, error)
}
