package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumora-ai/lumora/internal/domain"
)

// ErrStaleDocument is returned when a conditional status update matched no
// row, meaning the document was deleted or re-queued while processing.
var ErrStaleDocument = domain.ErrDocumentStale

// DocumentRepository persists document records and drives the ingestion
// status state machine with conditional updates.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	if err := domain.ValidateDocument(d); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents
			(id, user_id, filename, stored_key, file_type, file_size, status, chunk_count, embedding_count, content_preview, error_message, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.UserID, d.Filename, d.StoredKey, d.FileType, d.FileSize, d.Status,
		d.ChunkCount, d.EmbeddingCount, nullableString(d.ContentPreview), nullableString(d.ErrorMessage),
		d.CreatedAt, d.ProcessedAt,
	)
	return err
}

// GetByUserAndID fetches a document scoped to its owner. A document owned
// by someone else is indistinguishable from a missing one.
func (r *DocumentRepository) GetByUserAndID(ctx context.Context, userID, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, filename, stored_key, file_type, file_size, status, chunk_count, embedding_count, content_preview, error_message, created_at, processed_at
		 FROM documents WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	return scanDocumentRow(row)
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, filename, stored_key, file_type, file_size, status, chunk_count, embedding_count, content_preview, error_message, created_at, processed_at
		 FROM documents WHERE id = $1`,
		id,
	)
	return scanDocumentRow(row)
}

func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, filename, stored_key, file_type, file_size, status, chunk_count, embedding_count, content_preview, error_message, created_at, processed_at
		 FROM documents WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ClaimPending atomically moves up to limit pending documents to
// processing and returns them. SKIP LOCKED keeps concurrent claimers from
// picking the same document.
func (r *DocumentRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM documents
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE documents
		 SET status = $3,
		     error_message = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE documents.id = cte.id
		 RETURNING documents.id, documents.user_id, documents.filename, documents.stored_key, documents.file_type,
		           documents.file_size, documents.status, documents.chunk_count, documents.embedding_count,
		           documents.content_preview, documents.error_message, documents.created_at, documents.processed_at`,
		domain.DocumentStatusPending, limit, domain.DocumentStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// MarkCompleted finalizes a successful pipeline run. The update only
// applies while the document is still processing, so a delete or
// reprocess that raced ahead wins and the stale write reports
// ErrStaleDocument instead of regressing the state machine.
func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string, chunkCount, embeddingCount int, preview string) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, chunk_count = $2, embedding_count = $3, content_preview = $4, error_message = NULL, processed_at = $5
		 WHERE id = $6 AND status = $7`,
		domain.DocumentStatusCompleted, chunkCount, embeddingCount, nullableString(preview), now,
		id, domain.DocumentStatusProcessing,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStaleDocument
	}
	return nil
}

// MarkFailed records a pipeline failure, under the same staleness rule as
// MarkCompleted.
func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, chunk_count = 0, embedding_count = 0, error_message = $2, processed_at = $3
		 WHERE id = $4 AND status = $5`,
		domain.DocumentStatusFailed, errMsg, now,
		id, domain.DocumentStatusProcessing,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStaleDocument
	}
	return nil
}

// Requeue moves a finished document back to pending for reprocessing.
// Documents that are pending or still processing are left untouched.
func (r *DocumentRepository) Requeue(ctx context.Context, userID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, chunk_count = 0, embedding_count = 0, content_preview = NULL, error_message = NULL, processed_at = NULL
		 WHERE id = $2 AND user_id = $3 AND status IN ($4, $5)`,
		domain.DocumentStatusPending, id, userID,
		domain.DocumentStatusCompleted, domain.DocumentStatusFailed,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		// Zero rows is ambiguous between a missing document and one
		// that is pending or processing. Only the latter is a conflict.
		if _, err := r.GetByUserAndID(ctx, userID, id); err != nil {
			return err
		}
		return domain.ErrDocumentInFlight
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, userID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// CountsByUser returns document count plus chunk and embedding totals for
// one owner.
func (r *DocumentRepository) CountsByUser(ctx context.Context, userID string) (documents, chunks, embeddings int, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(chunk_count), 0), COALESCE(SUM(embedding_count), 0)
		 FROM documents WHERE user_id = $1`,
		userID,
	).Scan(&documents, &chunks, &embeddings)
	return documents, chunks, embeddings, err
}

func scanDocumentRow(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var preview, errMsg pgtype.Text
	err := row.Scan(&d.ID, &d.UserID, &d.Filename, &d.StoredKey, &d.FileType, &d.FileSize, &d.Status,
		&d.ChunkCount, &d.EmbeddingCount, &preview, &errMsg, &d.CreatedAt, &d.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if preview.Valid {
		d.ContentPreview = preview.String
	}
	if errMsg.Valid {
		d.ErrorMessage = errMsg.String
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		var preview, errMsg pgtype.Text
		if err := rows.Scan(&d.ID, &d.UserID, &d.Filename, &d.StoredKey, &d.FileType, &d.FileSize, &d.Status,
			&d.ChunkCount, &d.EmbeddingCount, &preview, &errMsg, &d.CreatedAt, &d.ProcessedAt); err != nil {
			return nil, err
		}
		if preview.Valid {
			d.ContentPreview = preview.String
		}
		if errMsg.Valid {
			d.ErrorMessage = errMsg.String
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}
