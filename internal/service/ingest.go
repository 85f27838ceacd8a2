package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/lumora-ai/lumora/internal/domain"
)

const previewLength = 500

// DocumentStore persists document records and drives their status
// transitions.
type DocumentStore interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByUserAndID(ctx context.Context, userID, id string) (*domain.Document, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Document, error)
	MarkCompleted(ctx context.Context, id string, chunkCount, embeddingCount int, preview string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Requeue(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
	CountsByUser(ctx context.Context, userID string) (documents, chunks, embeddings int, err error)
}

// FileStore persists the raw uploaded files.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IngestConfig tunes upload validation and pipeline behavior.
type IngestConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
	Chunking          ChunkConfig
	EmbedMaxRetries   uint64
	EmbedRetryBase    time.Duration
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		MaxFileSize:       10 * 1024 * 1024,
		AllowedExtensions: []string{".txt", ".pdf"},
		Chunking:          DefaultChunkConfig(),
		EmbedMaxRetries:   3,
		EmbedRetryBase:    500 * time.Millisecond,
	}
}

// IngestService handles document submission and the asynchronous
// extract/chunk/embed/index pipeline.
type IngestService struct {
	docs      DocumentStore
	files     FileStore
	embedder  EmbeddingClient
	index     VectorIndex
	extractor *Extractor
	cfg       IngestConfig
	uuidGen   UUIDGenerator
}

// NewIngestService creates a new IngestService instance
func NewIngestService(docs DocumentStore, files FileStore, embedder EmbeddingClient, index VectorIndex, cfg IngestConfig) *IngestService {
	return &IngestService{
		docs:      docs,
		files:     files,
		embedder:  embedder,
		index:     index,
		extractor: NewExtractor(),
		cfg:       cfg,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

func NewIngestServiceWithUUIDGen(docs DocumentStore, files FileStore, embedder EmbeddingClient, index VectorIndex, cfg IngestConfig, uuidGen UUIDGenerator) *IngestService {
	s := NewIngestService(docs, files, embedder, index, cfg)
	s.uuidGen = uuidGen
	return s
}

// SubmitDocument validates and accepts an upload, stores the file, and
// creates a pending document record for the background pipeline to pick up.
// The returned document is always in the pending state.
func (s *IngestService) SubmitDocument(ctx context.Context, userID, filename string, data []byte) (*domain.Document, error) {
	if userID == "" || filename == "" {
		return nil, domain.ErrMissingRequiredField
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !s.extensionAllowed(ext) {
		return nil, domain.ErrUnsupportedFileType
	}

	if len(data) == 0 {
		return nil, domain.ErrEmptyFile
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, domain.ErrFileTooLarge
	}

	id := s.uuidGen.NewString()
	storedKey := id + ext

	if err := s.files.Save(ctx, storedKey, data); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	doc := domain.NewDocument(id, userID, filename, storedKey, ext, int64(len(data)), time.Now().UTC())
	if err := s.docs.Create(ctx, doc); err != nil {
		// The record is the source of truth. Without it the stored
		// file is unreachable, so remove it again.
		_ = s.files.Delete(ctx, storedKey)
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	return doc, nil
}

// Process runs the pipeline for a document already claimed into the
// processing state: load, extract, chunk, embed, index, complete. Any stage
// failure marks the document failed with a descriptive message. A document
// deleted or re-queued mid-run surfaces as domain.ErrDocumentStale and its
// freshly written vectors are removed again.
func (s *IngestService) Process(ctx context.Context, doc *domain.Document) error {
	data, err := s.files.Load(ctx, doc.StoredKey)
	if err != nil {
		return s.fail(ctx, doc.ID, fmt.Errorf("failed to load stored file: %w", err))
	}

	text, err := s.extractor.Extract(data, doc.FileType)
	if err != nil {
		return s.fail(ctx, doc.ID, err)
	}
	if strings.TrimSpace(text) == "" {
		return s.fail(ctx, doc.ID, domain.NewDomainError(domain.ErrCodeExtractionFailure, "document contains no extractable text"))
	}

	chunks, err := SplitText(text, s.cfg.Chunking)
	if err != nil {
		return s.fail(ctx, doc.ID, err)
	}

	vectors, err := s.embedWithRetry(ctx, chunks)
	if err != nil {
		return s.fail(ctx, doc.ID, err)
	}

	count, err := s.index.Upsert(ctx, doc.UserID, doc.ID, doc.Filename, chunks, vectors)
	if err != nil {
		return s.fail(ctx, doc.ID, fmt.Errorf("failed to index vectors: %w", err))
	}

	if err := s.docs.MarkCompleted(ctx, doc.ID, len(chunks), count, buildPreview(text)); err != nil {
		if errors.Is(err, domain.ErrDocumentStale) {
			// A delete or reprocess won the race. Its view of the
			// index must win too, so take the new vectors back out.
			_, _ = s.index.DeleteDocument(context.WithoutCancel(ctx), doc.UserID, doc.ID)
			return domain.ErrDocumentStale
		}
		return s.fail(ctx, doc.ID, fmt.Errorf("failed to complete document: %w", err))
	}

	return nil
}

// Get returns a single document owned by the user.
func (s *IngestService) Get(ctx context.Context, userID, id string) (*domain.Document, error) {
	if userID == "" || id == "" {
		return nil, domain.ErrMissingRequiredField
	}
	return s.docs.GetByUserAndID(ctx, userID, id)
}

// List returns all of the user's documents, newest first.
func (s *IngestService) List(ctx context.Context, userID string) ([]*domain.Document, error) {
	if userID == "" {
		return nil, domain.ErrMissingRequiredField
	}
	return s.docs.ListByUser(ctx, userID)
}

// Delete removes the document record, its vectors, and the stored file. The
// record goes first so a concurrent pipeline run observes the staleness and
// compensates.
func (s *IngestService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return domain.ErrMissingRequiredField
	}

	doc, err := s.docs.GetByUserAndID(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.docs.Delete(ctx, userID, id); err != nil {
		return err
	}

	if _, err := s.index.DeleteDocument(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}

	if err := s.files.Delete(ctx, doc.StoredKey); err != nil {
		return fmt.Errorf("failed to delete stored file: %w", err)
	}

	return nil
}

// Reprocess re-queues a completed or failed document so the pipeline runs
// again from the stored file. Existing vectors are removed before the
// document goes back to pending, so a worker claiming it cannot race the
// cleanup and search never serves results past the re-queue.
func (s *IngestService) Reprocess(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return domain.ErrMissingRequiredField
	}

	doc, err := s.docs.GetByUserAndID(ctx, userID, id)
	if err != nil {
		return err
	}
	if !doc.CanTransition(domain.DocumentStatusPending) {
		return domain.ErrDocumentInFlight
	}

	if _, err := s.index.DeleteDocument(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}

	return s.docs.Requeue(ctx, userID, id)
}

// IngestStats aggregates per-user knowledge base counters.
type IngestStats struct {
	Documents    int
	ChunkCount   int
	Embeddings   int
	IndexRecords int
}

// Stats reports document and vector counts for the user.
func (s *IngestService) Stats(ctx context.Context, userID string) (IngestStats, error) {
	if userID == "" {
		return IngestStats{}, domain.ErrMissingRequiredField
	}

	docs, chunks, embeddings, err := s.docs.CountsByUser(ctx, userID)
	if err != nil {
		return IngestStats{}, err
	}

	vstats, err := s.index.Stats(ctx, userID)
	if err != nil {
		return IngestStats{}, err
	}

	return IngestStats{
		Documents:    docs,
		ChunkCount:   chunks,
		Embeddings:   embeddings,
		IndexRecords: vstats.TotalRecords,
	}, nil
}

// embedWithRetry calls the embedding provider with exponential backoff.
// Only transient provider failures are retried; everything else fails the
// document on the first attempt.
func (s *IngestService) embedWithRetry(ctx context.Context, chunks []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		var err error
		vectors, err = s.embedder.EmbedBatch(ctx, chunks)
		if err != nil {
			if domain.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.EmbedRetryBase

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, s.cfg.EmbedMaxRetries), ctx))
	if err != nil {
		return nil, err
	}

	return vectors, nil
}

// fail marks the document failed and returns the original error. A stale
// record at this point means a delete or reprocess already took over, so
// there is nothing left to mark.
func (s *IngestService) fail(ctx context.Context, id string, cause error) error {
	// The pipeline context may already be expired when the failure is a
	// timeout. The write must still land or the document would sit in
	// processing with no transition back out.
	ctx = context.WithoutCancel(ctx)
	if err := s.docs.MarkFailed(ctx, id, cause.Error()); err != nil && !errors.Is(err, domain.ErrDocumentStale) {
		return fmt.Errorf("failed to record failure %q: %w", cause.Error(), err)
	}
	return cause
}

func (s *IngestService) extensionAllowed(ext string) bool {
	for _, allowed := range s.cfg.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func buildPreview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
