package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/lumora-ai/lumora/internal/service"
)

// VectorRecordRepository persists chunk embeddings in the document_vectors
// table and serves cosine similarity search. It satisfies service.VectorIndex.
type VectorRecordRepository struct {
	pool *pgxpool.Pool
}

func NewVectorRecordRepository(pool *pgxpool.Pool) *VectorRecordRepository {
	return &VectorRecordRepository{pool: pool}
}

// Upsert replaces all vectors for a document with the given chunk/vector
// pairs. The delete and inserts run in a single transaction so readers never
// observe a partially replaced document.
func (r *VectorRecordRepository) Upsert(ctx context.Context, userID, documentID, documentName string, chunks []string, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM document_vectors WHERE user_id = $1 AND document_id = $2`,
		userID, documentID,
	)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	for i, content := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO document_vectors
				(document_id, chunk_index, user_id, document_name, content, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7)`,
			documentID,
			i,
			userID,
			documentName,
			content,
			pgvector.NewVector(vectors[i]),
			now,
		)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return len(chunks), nil
}

// Search returns the topK most similar chunks owned by userID, scored by
// cosine similarity. Ties break on chunk index, then document ID, so results
// are deterministic for identical inputs.
func (r *VectorRecordRepository) Search(ctx context.Context, userID string, query []float32, topK int) ([]service.SearchHit, error) {
	if topK <= 0 {
		return []service.SearchHit{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT document_id, chunk_index, document_name, content,
		        1.0 - (embedding <=> $1) AS score
		 FROM document_vectors
		 WHERE user_id = $2
		 ORDER BY score DESC, chunk_index ASC, document_id ASC
		 LIMIT $3`,
		pgvector.NewVector(query), userID, topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]service.SearchHit, 0, topK)
	for rows.Next() {
		var hit service.SearchHit
		if err := rows.Scan(&hit.DocumentID, &hit.ChunkIndex, &hit.DocumentName, &hit.Content, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// DeleteDocument removes every vector for the document and reports how many
// rows were removed. Deleting a document with no vectors is not an error.
func (r *VectorRecordRepository) DeleteDocument(ctx context.Context, userID, documentID string) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM document_vectors WHERE user_id = $1 AND document_id = $2`,
		userID, documentID,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Stats returns aggregate vector counts for the user.
func (r *VectorRecordRepository) Stats(ctx context.Context, userID string) (service.VectorStats, error) {
	var stats service.VectorStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_vectors WHERE user_id = $1`,
		userID,
	).Scan(&stats.TotalRecords)
	if err != nil {
		return service.VectorStats{}, err
	}
	return stats, nil
}
