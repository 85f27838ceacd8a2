//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumora-ai/lumora/internal/domain"
	"github.com/lumora-ai/lumora/internal/testutil"
)

func newStoredDocument(userID string) *domain.Document {
	id := uuid.NewString()
	return &domain.Document{
		ID:        id,
		UserID:    userID,
		Filename:  "notes.txt",
		StoredKey: id + ".txt",
		FileType:  ".txt",
		FileSize:  42,
		Status:    domain.DocumentStatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newStoredDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	retrieved, err := repo.GetByUserAndID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)
	assert.Equal(t, doc.Filename, retrieved.Filename)
	assert.Equal(t, doc.StoredKey, retrieved.StoredKey)
	assert.Equal(t, domain.DocumentStatusPending, retrieved.Status)
	assert.Nil(t, retrieved.ProcessedAt)
}

func TestDocumentRepository_Create_RejectsInvalidDocument(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newStoredDocument("user-1")
	doc.Status = domain.DocumentStatus("archived")

	err := repo.Create(ctx, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Status is invalid")

	_, err = repo.GetByUserAndID(ctx, "user-1", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_GetByUserAndID_OwnerScoped(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newStoredDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	// Another user's lookup reports not found, never a permission error.
	_, err := repo.GetByUserAndID(ctx, "user-2", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ListByUser(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	older := newStoredDocument("user-1")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	newer := newStoredDocument("user-1")
	other := newStoredDocument("user-2")

	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, other))

	docs, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, newer.ID, docs[0].ID)
	assert.Equal(t, older.ID, docs[1].ID)
}

func TestDocumentRepository_ClaimPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newStoredDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, doc.ID, claimed[0].ID)
	assert.Equal(t, domain.DocumentStatusProcessing, claimed[0].Status)

	// Already claimed, so a second claim comes back empty.
	claimed, err = repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestDocumentRepository_MarkCompleted(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newStoredDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))
	_, err := repo.ClaimPending(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.MarkCompleted(ctx, doc.ID, 3, 3, "preview text"))

	retrieved, err := repo.GetByUserAndID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusCompleted, retrieved.Status)
	assert.Equal(t, 3, retrieved.ChunkCount)
	assert.Equal(t, 3, retrieved.EmbeddingCount)
	assert.Equal(t, "preview text", retrieved.ContentPreview)
	assert.NotNil(t, retrieved.ProcessedAt)
}

func TestDocumentRepository_MarkCompleted_StaleWhenNotProcessing(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newStoredDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	// Still pending, never claimed.
	err := repo.MarkCompleted(ctx, doc.ID, 3, 3, "preview")
	assert.ErrorIs(t, err, ErrStaleDocument)

	// Deleted mid-flight.
	_, err = repo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "user-1", doc.ID))
	err = repo.MarkCompleted(ctx, doc.ID, 3, 3, "preview")
	assert.ErrorIs(t, err, ErrStaleDocument)
}

func TestDocumentRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newStoredDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))
	_, err := repo.ClaimPending(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed(ctx, doc.ID, "extraction failed"))

	retrieved, err := repo.GetByUserAndID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusFailed, retrieved.Status)
	assert.Equal(t, "extraction failed", retrieved.ErrorMessage)
}

func TestDocumentRepository_Requeue(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newStoredDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	// Pending documents cannot be re-queued.
	err := repo.Requeue(ctx, "user-1", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentInFlight)

	// A missing or foreign-owned document is not a conflict.
	err = repo.Requeue(ctx, "user-1", uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	err = repo.Requeue(ctx, "user-2", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	_, err = repo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, doc.ID, "boom"))

	require.NoError(t, repo.Requeue(ctx, "user-1", doc.ID))

	retrieved, err := repo.GetByUserAndID(ctx, "user-1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusPending, retrieved.Status)
	assert.Empty(t, retrieved.ErrorMessage)
	assert.Zero(t, retrieved.ChunkCount)
}

func TestDocumentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newStoredDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))

	require.NoError(t, repo.Delete(ctx, "user-1", doc.ID))

	_, err := repo.GetByUserAndID(ctx, "user-1", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	err = repo.Delete(ctx, "user-1", doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_CountsByUser(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	doc := newStoredDocument("user-1")
	require.NoError(t, repo.Create(ctx, doc))
	_, err := repo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.MarkCompleted(ctx, doc.ID, 5, 5, "preview"))

	documents, chunks, embeddings, err := repo.CountsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, documents)
	assert.Equal(t, 5, chunks)
	assert.Equal(t, 5, embeddings)

	documents, chunks, embeddings, err = repo.CountsByUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Zero(t, documents)
	assert.Zero(t, chunks)
	assert.Zero(t, embeddings)
}
