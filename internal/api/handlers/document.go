package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumora-ai/lumora/internal/api"
	"github.com/lumora-ai/lumora/internal/api/middleware"
	"github.com/lumora-ai/lumora/internal/domain"
	"github.com/lumora-ai/lumora/internal/service"
)

type IngestService interface {
	SubmitDocument(ctx context.Context, userID, filename string, data []byte) (*domain.Document, error)
	Get(ctx context.Context, userID, id string) (*domain.Document, error)
	List(ctx context.Context, userID string) ([]*domain.Document, error)
	Delete(ctx context.Context, userID, id string) error
	Reprocess(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (service.IngestStats, error)
}

type DocumentHandler struct {
	svc         IngestService
	maxFileSize int64
}

func NewDocumentHandler(svc IngestService, maxFileSize int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxFileSize: maxFileSize}
}

type DocumentResponse struct {
	ID             string  `json:"id"`
	Filename       string  `json:"filename"`
	FileType       string  `json:"file_type"`
	FileSize       int64   `json:"file_size"`
	Status         string  `json:"status"`
	ChunkCount     int     `json:"chunk_count"`
	EmbeddingCount int     `json:"embedding_count"`
	ContentPreview string  `json:"content_preview,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	CreatedAt      string  `json:"created_at"`
	ProcessedAt    *string `json:"processed_at,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:             d.ID,
		Filename:       d.Filename,
		FileType:       d.FileType,
		FileSize:       d.FileSize,
		Status:         string(d.Status),
		ChunkCount:     d.ChunkCount,
		EmbeddingCount: d.EmbeddingCount,
		ContentPreview: d.ContentPreview,
		ErrorMessage:   d.ErrorMessage,
		CreatedAt:      d.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if d.ProcessedAt != nil {
		processedAt := d.ProcessedAt.Format("2006-01-02T15:04:05Z")
		resp.ProcessedAt = &processedAt
	}
	return resp
}

// Upload accepts a multipart file, validates it, and queues ingestion. The
// response returns before extraction or embedding starts.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	doc, err := h.svc.SubmitDocument(r.Context(), userID, header.Filename, data)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID := chi.URLParam(r, "documentID")

	doc, err := h.svc.Get(r.Context(), userID, documentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	docs, err := h.svc.List(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, documentToResponse(doc))
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID := chi.URLParam(r, "documentID")

	if err := h.svc.Delete(r.Context(), userID, documentID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"message": "document deleted"})
}

func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID := chi.URLParam(r, "documentID")

	if err := h.svc.Reprocess(r.Context(), userID, documentID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, map[string]string{"message": "document queued for reprocessing"})
}

type StatsResponse struct {
	Documents    int `json:"documents"`
	Chunks       int `json:"chunks"`
	Embeddings   int `json:"embeddings"`
	IndexRecords int `json:"index_records"`
}

func (h *DocumentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, StatsResponse{
		Documents:    stats.Documents,
		Chunks:       stats.ChunkCount,
		Embeddings:   stats.Embeddings,
		IndexRecords: stats.IndexRecords,
	})
}
