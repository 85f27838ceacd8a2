package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/lumora-ai/lumora/internal/api"
	"github.com/lumora-ai/lumora/internal/api/middleware"
	"github.com/lumora-ai/lumora/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type AnswerService interface {
	Ask(ctx context.Context, userID, question string) (*domain.ChatExchange, error)
	History(ctx context.Context, userID string, limit int) ([]*domain.ChatExchange, error)
	ClearHistory(ctx context.Context, userID string) (int, error)
}

type ChatHandler struct {
	svc AnswerService
}

func NewChatHandler(svc AnswerService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type AskRequest struct {
	Question string `json:"question"`
}

type SourceResponse struct {
	DocumentName   string  `json:"document_name"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
	Excerpt        string  `json:"excerpt"`
}

type AskResponse struct {
	ID             string           `json:"id"`
	Question       string           `json:"question"`
	Answer         string           `json:"answer"`
	Sources        []SourceResponse `json:"sources"`
	ProcessingSecs float64          `json:"processing_time"`
	CreatedAt      string           `json:"created_at"`
}

func exchangeToResponse(e *domain.ChatExchange) *AskResponse {
	sources := make([]SourceResponse, 0, len(e.Sources))
	for _, s := range e.Sources {
		sources = append(sources, SourceResponse{
			DocumentName:   s.DocumentName,
			ChunkIndex:     s.ChunkIndex,
			RelevanceScore: s.RelevanceScore,
			Excerpt:        s.Excerpt,
		})
	}

	return &AskResponse{
		ID:             e.ID,
		Question:       e.Question,
		Answer:         e.Answer,
		Sources:        sources,
		ProcessingSecs: e.ProcessingSecs,
		CreatedAt:      e.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	exchange, err := h.svc.Ask(r.Context(), userID, req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, exchangeToResponse(exchange))
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	exchanges, err := h.svc.History(r.Context(), userID, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*AskResponse, 0, len(exchanges))
	for _, exchange := range exchanges {
		responses = append(responses, exchangeToResponse(exchange))
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	deleted, err := h.svc.ClearHistory(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]int{"deleted": deleted})
}
