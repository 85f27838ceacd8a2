package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lumora-ai/lumora/internal/domain"
)

// MockDocumentStore is a mock implementation of DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentStore) GetByUserAndID(ctx context.Context, userID, id string) (*domain.Document, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) ListByUser(ctx context.Context, userID string) ([]*domain.Document, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentStore) MarkCompleted(ctx context.Context, id string, chunkCount, embeddingCount int, preview string) error {
	args := m.Called(ctx, id, chunkCount, embeddingCount, preview)
	return args.Error(0)
}

func (m *MockDocumentStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockDocumentStore) Requeue(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockDocumentStore) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockDocumentStore) CountsByUser(ctx context.Context, userID string) (int, int, int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Int(1), args.Int(2), args.Error(3)
}

// MockFileStore is a mock implementation of FileStore
type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Save(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

func (m *MockFileStore) Load(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockFileStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockVectorIndex is a mock implementation of VectorIndex
type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Upsert(ctx context.Context, userID, documentID, documentName string, chunks []string, vectors [][]float32) (int, error) {
	args := m.Called(ctx, userID, documentID, documentName, chunks, vectors)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorIndex) Search(ctx context.Context, userID string, query []float32, topK int) ([]SearchHit, error) {
	args := m.Called(ctx, userID, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SearchHit), args.Error(1)
}

func (m *MockVectorIndex) DeleteDocument(ctx context.Context, userID, documentID string) (int, error) {
	args := m.Called(ctx, userID, documentID)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorIndex) Stats(ctx context.Context, userID string) (VectorStats, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(VectorStats), args.Error(1)
}

type fixedUUIDGen struct {
	id string
}

func (g *fixedUUIDGen) NewString() string {
	return g.id
}

func testIngestConfig() IngestConfig {
	return IngestConfig{
		MaxFileSize:       1024,
		AllowedExtensions: []string{".txt", ".pdf"},
		Chunking:          ChunkConfig{Size: 20, Overlap: 5},
		EmbedMaxRetries:   3,
		EmbedRetryBase:    time.Millisecond,
	}
}

func newTestIngestService(docs *MockDocumentStore, files *MockFileStore, embedder *MockEmbeddingClient, index *MockVectorIndex) *IngestService {
	return NewIngestServiceWithUUIDGen(docs, files, embedder, index, testIngestConfig(), &fixedUUIDGen{id: "doc-1"})
}

func TestSubmitDocument_Success(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	svc := newTestIngestService(docs, files, new(MockEmbeddingClient), new(MockVectorIndex))

	data := []byte("hello")
	files.On("Save", mock.Anything, "doc-1.txt", data).Return(nil)
	docs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.ID == "doc-1" &&
			d.UserID == "user-1" &&
			d.Filename == "notes.txt" &&
			d.StoredKey == "doc-1.txt" &&
			d.FileType == ".txt" &&
			d.FileSize == int64(len(data)) &&
			d.Status == domain.DocumentStatusPending
	})).Return(nil)

	doc, err := svc.SubmitDocument(context.Background(), "user-1", "notes.txt", data)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusPending, doc.Status)
	assert.Zero(t, doc.ChunkCount)

	files.AssertExpectations(t)
	docs.AssertExpectations(t)
}

func TestSubmitDocument_Validation(t *testing.T) {
	svc := newTestIngestService(new(MockDocumentStore), new(MockFileStore), new(MockEmbeddingClient), new(MockVectorIndex))
	ctx := context.Background()

	tests := []struct {
		name     string
		userID   string
		filename string
		data     []byte
		wantErr  error
	}{
		{"missing user", "", "a.txt", []byte("x"), domain.ErrMissingRequiredField},
		{"missing filename", "user-1", "", []byte("x"), domain.ErrMissingRequiredField},
		{"unsupported extension", "user-1", "a.exe", []byte("x"), domain.ErrUnsupportedFileType},
		{"no extension", "user-1", "README", []byte("x"), domain.ErrUnsupportedFileType},
		{"empty file", "user-1", "a.txt", []byte{}, domain.ErrEmptyFile},
		{"too large", "user-1", "a.txt", make([]byte, 2048), domain.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := svc.SubmitDocument(ctx, tt.userID, tt.filename, tt.data)
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSubmitDocument_RemovesFileWhenRecordFails(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	svc := newTestIngestService(docs, files, new(MockEmbeddingClient), new(MockVectorIndex))

	files.On("Save", mock.Anything, "doc-1.txt", mock.Anything).Return(nil)
	docs.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
	files.On("Delete", mock.Anything, "doc-1.txt").Return(nil)

	_, err := svc.SubmitDocument(context.Background(), "user-1", "a.txt", []byte("x"))
	require.Error(t, err)

	files.AssertCalled(t, "Delete", mock.Anything, "doc-1.txt")
}

func processingDoc() *domain.Document {
	return &domain.Document{
		ID:        "doc-1",
		UserID:    "user-1",
		Filename:  "notes.txt",
		StoredKey: "doc-1.txt",
		FileType:  ".txt",
		FileSize:  50,
		Status:    domain.DocumentStatusProcessing,
		CreatedAt: time.Now().UTC(),
	}
}

func TestProcess_Success(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	embedder := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestIngestService(docs, files, embedder, index)

	text := strings.Repeat("A", 50)
	chunks := []string{strings.Repeat("A", 20), strings.Repeat("A", 20), strings.Repeat("A", 20)}
	vectors := [][]float32{{0.1}, {0.2}, {0.3}}

	files.On("Load", mock.Anything, "doc-1.txt").Return([]byte(text), nil)
	embedder.On("EmbedBatch", mock.Anything, chunks).Return(vectors, nil)
	index.On("Upsert", mock.Anything, "user-1", "doc-1", "notes.txt", chunks, vectors).Return(3, nil)
	docs.On("MarkCompleted", mock.Anything, "doc-1", 3, 3, text).Return(nil)

	err := svc.Process(context.Background(), processingDoc())
	require.NoError(t, err)

	docs.AssertExpectations(t)
	index.AssertExpectations(t)
}

func TestProcess_PreviewTruncated(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	embedder := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestIngestService(docs, files, embedder, index)

	text := strings.Repeat("B", 600)

	files.On("Load", mock.Anything, "doc-1.txt").Return([]byte(text), nil)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	index.On("Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(1, nil)
	docs.On("MarkCompleted", mock.Anything, "doc-1", mock.Anything, mock.Anything,
		strings.Repeat("B", 500)+"...").Return(nil)

	err := svc.Process(context.Background(), processingDoc())
	require.NoError(t, err)
	docs.AssertExpectations(t)
}

func TestProcess_MarksFailedOnExtractionError(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	svc := newTestIngestService(docs, files, new(MockEmbeddingClient), new(MockVectorIndex))

	doc := processingDoc()
	doc.StoredKey = "doc-1.pdf"
	doc.FileType = ".pdf"

	files.On("Load", mock.Anything, "doc-1.pdf").Return([]byte("not a pdf"), nil)
	docs.On("MarkFailed", mock.Anything, "doc-1", mock.Anything).Return(nil)

	err := svc.Process(context.Background(), doc)
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrCodeExtractionFailure, domainErr.Code)
	docs.AssertCalled(t, "MarkFailed", mock.Anything, "doc-1", mock.Anything)
}

func TestProcess_MarksFailedOnEmptyText(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	svc := newTestIngestService(docs, files, new(MockEmbeddingClient), new(MockVectorIndex))

	files.On("Load", mock.Anything, "doc-1.txt").Return([]byte("   \n  "), nil)
	docs.On("MarkFailed", mock.Anything, "doc-1", mock.Anything).Return(nil)

	err := svc.Process(context.Background(), processingDoc())
	require.Error(t, err)
	docs.AssertCalled(t, "MarkFailed", mock.Anything, "doc-1", mock.Anything)
}

func TestProcess_RetriesTransientEmbeddingFailure(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	embedder := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestIngestService(docs, files, embedder, index)

	files.On("Load", mock.Anything, "doc-1.txt").Return([]byte("short text"), nil)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).
		Return(nil, domain.ErrEmbeddingUnavailable).Twice()
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).
		Return([][]float32{{0.5}}, nil).Once()
	index.On("Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(1, nil)
	docs.On("MarkCompleted", mock.Anything, "doc-1", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := svc.Process(context.Background(), processingDoc())
	require.NoError(t, err)

	embedder.AssertNumberOfCalls(t, "EmbedBatch", 3)
}

func TestProcess_FailsAfterRetriesExhausted(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	embedder := new(MockEmbeddingClient)
	svc := newTestIngestService(docs, files, embedder, new(MockVectorIndex))

	files.On("Load", mock.Anything, "doc-1.txt").Return([]byte("short text"), nil)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, domain.ErrEmbeddingUnavailable)
	docs.On("MarkFailed", mock.Anything, "doc-1", mock.Anything).Return(nil)

	err := svc.Process(context.Background(), processingDoc())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	// Initial attempt plus EmbedMaxRetries retries.
	embedder.AssertNumberOfCalls(t, "EmbedBatch", 4)
	docs.AssertCalled(t, "MarkFailed", mock.Anything, "doc-1", mock.Anything)
}

func TestProcess_NonRetryableErrorFailsImmediately(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	embedder := new(MockEmbeddingClient)
	svc := newTestIngestService(docs, files, embedder, new(MockVectorIndex))

	files.On("Load", mock.Anything, "doc-1.txt").Return([]byte("short text"), nil)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, errors.New("bad request"))
	docs.On("MarkFailed", mock.Anything, "doc-1", mock.Anything).Return(nil)

	err := svc.Process(context.Background(), processingDoc())
	require.Error(t, err)

	embedder.AssertNumberOfCalls(t, "EmbedBatch", 1)
}

func TestProcess_MarksFailedAfterTimeout(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	embedder := new(MockEmbeddingClient)
	svc := newTestIngestService(docs, files, embedder, new(MockVectorIndex))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	files.On("Load", mock.Anything, "doc-1.txt").Return([]byte("short text"), nil)
	// The provider call outlives the per-document deadline.
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			callCtx := args.Get(0).(context.Context)
			<-callCtx.Done()
		}).
		Return(nil, context.DeadlineExceeded)
	// The failure write must arrive on a live context even though the
	// pipeline context has expired, or the document would never leave
	// the processing state.
	docs.On("MarkFailed", mock.Anything, "doc-1", mock.Anything).
		Run(func(args mock.Arguments) {
			writeCtx := args.Get(0).(context.Context)
			assert.NoError(t, writeCtx.Err())
		}).
		Return(nil)

	err := svc.Process(ctx, processingDoc())
	require.Error(t, err)

	docs.AssertCalled(t, "MarkFailed", mock.Anything, "doc-1", mock.Anything)
}

func TestProcess_StaleDocumentCompensates(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	embedder := new(MockEmbeddingClient)
	index := new(MockVectorIndex)
	svc := newTestIngestService(docs, files, embedder, index)

	files.On("Load", mock.Anything, "doc-1.txt").Return([]byte("short text"), nil)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return([][]float32{{0.5}}, nil)
	index.On("Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(1, nil)
	docs.On("MarkCompleted", mock.Anything, "doc-1", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ErrDocumentStale)
	index.On("DeleteDocument", mock.Anything, "user-1", "doc-1").Return(1, nil)

	err := svc.Process(context.Background(), processingDoc())
	assert.ErrorIs(t, err, domain.ErrDocumentStale)

	// The freshly written vectors must be taken out again.
	index.AssertCalled(t, "DeleteDocument", mock.Anything, "user-1", "doc-1")
}

func TestDelete_RemovesRecordVectorsAndFile(t *testing.T) {
	docs := new(MockDocumentStore)
	files := new(MockFileStore)
	index := new(MockVectorIndex)
	svc := newTestIngestService(docs, files, new(MockEmbeddingClient), index)

	doc := processingDoc()
	docs.On("GetByUserAndID", mock.Anything, "user-1", "doc-1").Return(doc, nil)
	docs.On("Delete", mock.Anything, "user-1", "doc-1").Return(nil)
	index.On("DeleteDocument", mock.Anything, "user-1", "doc-1").Return(3, nil)
	files.On("Delete", mock.Anything, "doc-1.txt").Return(nil)

	err := svc.Delete(context.Background(), "user-1", "doc-1")
	require.NoError(t, err)

	docs.AssertExpectations(t)
	index.AssertExpectations(t)
	files.AssertExpectations(t)
}

func TestDelete_NotFound(t *testing.T) {
	docs := new(MockDocumentStore)
	svc := newTestIngestService(docs, new(MockFileStore), new(MockEmbeddingClient), new(MockVectorIndex))

	docs.On("GetByUserAndID", mock.Anything, "user-1", "missing").Return(nil, domain.ErrDocumentNotFound)

	err := svc.Delete(context.Background(), "user-1", "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func completedDoc() *domain.Document {
	doc := processingDoc()
	doc.Status = domain.DocumentStatusCompleted
	doc.ChunkCount = 3
	doc.EmbeddingCount = 3
	return doc
}

func TestReprocess_RequeuesAndClearsVectors(t *testing.T) {
	docs := new(MockDocumentStore)
	index := new(MockVectorIndex)
	svc := newTestIngestService(docs, new(MockFileStore), new(MockEmbeddingClient), index)

	docs.On("GetByUserAndID", mock.Anything, "user-1", "doc-1").Return(completedDoc(), nil)
	index.On("DeleteDocument", mock.Anything, "user-1", "doc-1").Return(3, nil)
	docs.On("Requeue", mock.Anything, "user-1", "doc-1").Return(nil)

	err := svc.Reprocess(context.Background(), "user-1", "doc-1")
	require.NoError(t, err)

	docs.AssertExpectations(t)
	index.AssertExpectations(t)
}

func TestReprocess_ClearsVectorsBeforeRequeue(t *testing.T) {
	docs := new(MockDocumentStore)
	index := new(MockVectorIndex)
	svc := newTestIngestService(docs, new(MockFileStore), new(MockEmbeddingClient), index)

	// A worker claims documents the moment they turn pending, so the old
	// vectors must be gone before the re-queue lands. Otherwise a fast
	// pipeline run could complete and then have its fresh vectors deleted.
	var order []string
	docs.On("GetByUserAndID", mock.Anything, "user-1", "doc-1").Return(completedDoc(), nil)
	index.On("DeleteDocument", mock.Anything, "user-1", "doc-1").
		Run(func(args mock.Arguments) { order = append(order, "clear-vectors") }).
		Return(3, nil)
	docs.On("Requeue", mock.Anything, "user-1", "doc-1").
		Run(func(args mock.Arguments) { order = append(order, "requeue") }).
		Return(nil)

	err := svc.Reprocess(context.Background(), "user-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"clear-vectors", "requeue"}, order)
}

func TestReprocess_InFlightDocument(t *testing.T) {
	docs := new(MockDocumentStore)
	index := new(MockVectorIndex)
	svc := newTestIngestService(docs, new(MockFileStore), new(MockEmbeddingClient), index)

	docs.On("GetByUserAndID", mock.Anything, "user-1", "doc-1").Return(processingDoc(), nil)

	err := svc.Reprocess(context.Background(), "user-1", "doc-1")
	assert.ErrorIs(t, err, domain.ErrDocumentInFlight)
	index.AssertNotCalled(t, "DeleteDocument", mock.Anything, mock.Anything, mock.Anything)
	docs.AssertNotCalled(t, "Requeue", mock.Anything, mock.Anything, mock.Anything)
}

func TestReprocess_NotFound(t *testing.T) {
	docs := new(MockDocumentStore)
	index := new(MockVectorIndex)
	svc := newTestIngestService(docs, new(MockFileStore), new(MockEmbeddingClient), index)

	docs.On("GetByUserAndID", mock.Anything, "user-1", "missing").Return(nil, domain.ErrDocumentNotFound)

	err := svc.Reprocess(context.Background(), "user-1", "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	index.AssertNotCalled(t, "DeleteDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestStats_CombinesRecordAndIndexCounts(t *testing.T) {
	docs := new(MockDocumentStore)
	index := new(MockVectorIndex)
	svc := newTestIngestService(docs, new(MockFileStore), new(MockEmbeddingClient), index)

	docs.On("CountsByUser", mock.Anything, "user-1").Return(2, 7, 7, nil)
	index.On("Stats", mock.Anything, "user-1").Return(VectorStats{TotalRecords: 7}, nil)

	stats, err := svc.Stats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 7, stats.ChunkCount)
	assert.Equal(t, 7, stats.Embeddings)
	assert.Equal(t, 7, stats.IndexRecords)
}
