package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lumora-ai/lumora/internal/domain"
)

const excerptLength = 500

// answerSystemPrompt is the fixed instruction template for answer
// generation. The retrieved context is interpolated before the call.
const answerSystemPrompt = `You are a helpful AI knowledge assistant. Your role is to answer questions based on the provided context from uploaded documents.

IMPORTANT INSTRUCTIONS:
1. Only use information from the provided context to answer questions.
2. If the context doesn't contain relevant information, say so clearly.
3. Be concise but comprehensive in your answers.
4. When referencing information, mention which document it came from.
5. If you're uncertain about something, acknowledge the uncertainty.

CONTEXT FROM DOCUMENTS:
%s

---

Please answer the user's question based on the above context. If the context doesn't contain relevant information, let the user know and suggest they upload more relevant documents.`

// noKnowledgeAnswer is returned without invoking the generation capability
// when the user has nothing indexed yet.
const noKnowledgeAnswer = "I don't have any documents in my knowledge base yet. Please upload some documents first, and I'll answer questions about them."

// degradedAnswer is returned when the generation capability is unavailable
// or the circuit breaker is open.
const degradedAnswer = "The answer service is temporarily unavailable. Please try your question again in a moment."

// GenerationClient defines the interface for answer generation.
type GenerationClient interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// ChatStore persists question/answer exchanges.
type ChatStore interface {
	Create(ctx context.Context, exchange *domain.ChatExchange) error
	GetByUserAndID(ctx context.Context, userID, id string) (*domain.ChatExchange, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.ChatExchange, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// AnswerConfig tunes retrieval and context assembly.
type AnswerConfig struct {
	TopK             int
	MaxContextLength int
}

func DefaultAnswerConfig() AnswerConfig {
	return AnswerConfig{
		TopK:             5,
		MaxContextLength: 8000,
	}
}

// AnswerService retrieves relevant chunks and synthesizes answers.
type AnswerService struct {
	chat      ChatStore
	embedder  EmbeddingClient
	generator GenerationClient
	index     VectorIndex
	cfg       AnswerConfig
	breaker   *gobreaker.CircuitBreaker
	uuidGen   UUIDGenerator
}

// NewAnswerService creates a new AnswerService instance
func NewAnswerService(chat ChatStore, embedder EmbeddingClient, generator GenerationClient, index VectorIndex, cfg AnswerConfig) *AnswerService {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "generation",
		Interval: 30 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && counts.ConsecutiveFailures >= 3
		},
	})

	return &AnswerService{
		chat:      chat,
		embedder:  embedder,
		generator: generator,
		index:     index,
		cfg:       cfg,
		breaker:   breaker,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

func NewAnswerServiceWithUUIDGen(chat ChatStore, embedder EmbeddingClient, generator GenerationClient, index VectorIndex, cfg AnswerConfig, uuidGen UUIDGenerator) *AnswerService {
	s := NewAnswerService(chat, embedder, generator, index, cfg)
	s.uuidGen = uuidGen
	return s
}

// Ask answers a question from the user's indexed documents and records the
// exchange. With an empty knowledge base it returns the fixed no-knowledge
// answer without touching the embedding or generation providers.
func (s *AnswerService) Ask(ctx context.Context, userID, question string) (*domain.ChatExchange, error) {
	if userID == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	start := time.Now()

	stats, err := s.index.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check knowledge base: %w", err)
	}
	if stats.TotalRecords == 0 {
		return s.record(ctx, userID, question, noKnowledgeAnswer, []domain.SourceRef{}, start)
	}

	queryVec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	hits, err := s.index.Search(ctx, userID, queryVec, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	used, contextText := assembleContext(hits, s.cfg.MaxContextLength)

	answer, err := s.generate(ctx, contextText, question)
	if err != nil {
		if domain.IsRetryable(err) || err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			answer = degradedAnswer
		} else {
			return nil, err
		}
	}

	sources := make([]domain.SourceRef, 0, len(used))
	for _, hit := range used {
		sources = append(sources, domain.SourceRef{
			DocumentName:   hit.DocumentName,
			ChunkIndex:     hit.ChunkIndex,
			RelevanceScore: hit.Score,
			Excerpt:        truncateRunes(hit.Content, excerptLength),
		})
	}

	return s.record(ctx, userID, question, answer, sources, start)
}

// History returns the user's most recent exchanges, newest first.
func (s *AnswerService) History(ctx context.Context, userID string, limit int) ([]*domain.ChatExchange, error) {
	if userID == "" {
		return nil, domain.ErrMissingRequiredField
	}
	return s.chat.ListByUser(ctx, userID, limit)
}

// HistoryCount returns the number of stored exchanges for the user.
func (s *AnswerService) HistoryCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingRequiredField
	}
	return s.chat.CountByUser(ctx, userID)
}

// ClearHistory removes every stored exchange for the user and reports how
// many were removed.
func (s *AnswerService) ClearHistory(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingRequiredField
	}
	return s.chat.DeleteByUser(ctx, userID)
}

// generate calls the generation capability behind the circuit breaker.
func (s *AnswerService) generate(ctx context.Context, contextText, question string) (string, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.generator.Generate(ctx, fmt.Sprintf(answerSystemPrompt, contextText), question)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *AnswerService) record(ctx context.Context, userID, question, answer string, sources []domain.SourceRef, start time.Time) (*domain.ChatExchange, error) {
	exchange := domain.NewChatExchange(
		s.uuidGen.NewString(),
		userID,
		question,
		answer,
		sources,
		time.Since(start).Seconds(),
		time.Now().UTC(),
	)

	if err := s.chat.Create(ctx, exchange); err != nil {
		return nil, fmt.Errorf("failed to save exchange: %w", err)
	}

	return exchange, nil
}

// assembleContext concatenates hit contents in ranked order until the next
// block would exceed maxLength. It returns the hits actually used, in order,
// so sources always mirror the context the model saw.
func assembleContext(hits []SearchHit, maxLength int) ([]SearchHit, string) {
	var b strings.Builder
	used := make([]SearchHit, 0, len(hits))

	for i, hit := range hits {
		block := fmt.Sprintf("[Source %d: %s (chunk %d)]\n%s", i+1, hit.DocumentName, hit.ChunkIndex, hit.Content)
		extra := len(block)
		if b.Len() > 0 {
			extra += len("\n\n---\n\n")
		}
		if maxLength > 0 && b.Len()+extra > maxLength {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(block)
		used = append(used, hit)
	}

	return used, b.String()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
