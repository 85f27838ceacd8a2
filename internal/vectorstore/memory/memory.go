// Package memory provides an in-process vector index using an exact
// brute-force cosine similarity scan. It is the reference implementation
// for ranking behavior and the default index for offline operation.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/lumora-ai/lumora/internal/domain"
	"github.com/lumora-ai/lumora/internal/service"
)

// Index stores vector records in memory, scoped by owner.
type Index struct {
	mu      sync.RWMutex
	records []domain.VectorRecord
}

func NewIndex() *Index {
	return &Index{}
}

// Upsert replaces all records for documentID and inserts the new chunk
// records under the same lock, so a concurrent Search never observes a
// partially written document.
func (ix *Index) Upsert(ctx context.Context, userID, documentID, documentName string, chunks []string, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(userID, documentID)

	now := time.Now().UTC()
	for i := range chunks {
		ix.records = append(ix.records, domain.VectorRecord{
			DocumentID:   documentID,
			ChunkIndex:   i,
			UserID:       userID,
			DocumentName: documentName,
			Content:      chunks[i],
			Embedding:    vectors[i],
			CreatedAt:    now,
		})
	}
	return len(chunks), nil
}

// Search scans every record owned by userID and returns the topK by
// cosine similarity. Ties break by lower chunk index, then lower
// document ID, so result order is reproducible.
func (ix *Index) Search(ctx context.Context, userID string, query []float32, topK int) ([]service.SearchHit, error) {
	if topK <= 0 {
		return []service.SearchHit{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]service.SearchHit, 0, len(ix.records))
	for i := range ix.records {
		rec := &ix.records[i]
		if rec.UserID != userID {
			continue
		}
		hits = append(hits, service.SearchHit{
			DocumentID:   rec.DocumentID,
			ChunkIndex:   rec.ChunkIndex,
			DocumentName: rec.DocumentName,
			Content:      rec.Content,
			Score:        CosineSimilarity(query, rec.Embedding),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].ChunkIndex != hits[j].ChunkIndex {
			return hits[i].ChunkIndex < hits[j].ChunkIndex
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// DeleteDocument removes all records for documentID owned by userID.
func (ix *Index) DeleteDocument(ctx context.Context, userID, documentID string) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.removeLocked(userID, documentID), nil
}

// Stats reports the number of records owned by userID.
func (ix *Index) Stats(ctx context.Context, userID string) (service.VectorStats, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	count := 0
	for i := range ix.records {
		if ix.records[i].UserID == userID {
			count++
		}
	}
	return service.VectorStats{TotalRecords: count}, nil
}

func (ix *Index) removeLocked(userID, documentID string) int {
	kept := ix.records[:0]
	removed := 0
	for _, rec := range ix.records {
		if rec.UserID == userID && rec.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	ix.records = kept
	return removed
}

// CosineSimilarity computes dot(a,b) / (|a|*|b|). Mismatched lengths and
// zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
