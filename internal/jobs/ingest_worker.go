package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lumora-ai/lumora/internal/domain"
	"github.com/lumora-ai/lumora/internal/telemetry"
)

const (
	// DefaultBatchSize caps how many pending documents one poll claims.
	DefaultBatchSize = 8

	// DefaultDocumentTimeout bounds one document's pipeline run,
	// including provider retries.
	DefaultDocumentTimeout = 5 * time.Minute
)

// DocumentClaimer atomically claims pending documents into the processing
// state. Claimed documents are invisible to other workers.
type DocumentClaimer interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.Document, error)
}

// DocumentPipeline runs the ingestion pipeline for one claimed document.
type DocumentPipeline interface {
	Process(ctx context.Context, doc *domain.Document) error
}

// IngestWorker drains the pending document queue. Documents claimed in one
// batch are processed concurrently; chunks within a document are handled by
// the pipeline itself.
type IngestWorker struct {
	claimer    DocumentClaimer
	pipeline   DocumentPipeline
	batchSize  int
	docTimeout time.Duration
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(claimer DocumentClaimer, pipeline DocumentPipeline) *IngestWorker {
	return &IngestWorker{
		claimer:    claimer,
		pipeline:   pipeline,
		batchSize:  DefaultBatchSize,
		docTimeout: DefaultDocumentTimeout,
	}
}

func NewIngestWorkerWithLimits(claimer DocumentClaimer, pipeline DocumentPipeline, batchSize int, docTimeout time.Duration) *IngestWorker {
	return &IngestWorker{
		claimer:    claimer,
		pipeline:   pipeline,
		batchSize:  batchSize,
		docTimeout: docTimeout,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	docs, err := w.claimer.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending documents: %w", err)
	}

	if len(docs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending documents", len(docs))

	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		go func(doc *domain.Document) {
			defer wg.Done()
			w.processDocument(ctx, doc)
		}(doc)
	}
	wg.Wait()

	return nil
}

func (w *IngestWorker) processDocument(ctx context.Context, doc *domain.Document) {
	docCtx, cancel := context.WithTimeout(ctx, w.docTimeout)
	defer cancel()

	docCtx, span := telemetry.StartSpan(docCtx, "ingest.document", telemetry.SpanAttributes{
		UserID:     doc.UserID,
		DocumentID: doc.ID,
		Operation:  "process",
	})
	defer span.End()

	log.Printf("Processing document %s (%s)", doc.ID, doc.Filename)

	if err := w.pipeline.Process(docCtx, doc); err != nil {
		if errors.Is(err, domain.ErrDocumentStale) {
			log.Printf("Document %s was removed or re-queued mid-run, result discarded", doc.ID)
			return
		}
		span.SetError(err)
		log.Printf("Document %s failed: %v", doc.ID, err)
		return
	}

	log.Printf("Document %s completed successfully", doc.ID)
}
