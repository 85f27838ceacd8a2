package domain

import (
	"fmt"
	"time"
)

// SourceRef is one cited source attached to a chat exchange.
type SourceRef struct {
	DocumentName   string  `json:"document_name"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
	Excerpt        string  `json:"excerpt"`
}

// ChatExchange records one question/answer round. Immutable once created;
// removed only by bulk history clear.
type ChatExchange struct {
	ID             string
	UserID         string
	Question       string
	Answer         string
	Sources        []SourceRef
	ProcessingSecs float64
	CreatedAt      time.Time
}

// NewChatExchange creates a new ChatExchange instance
func NewChatExchange(id, userID, question, answer string, sources []SourceRef, processingSecs float64, createdAt time.Time) *ChatExchange {
	return &ChatExchange{
		ID:             id,
		UserID:         userID,
		Question:       question,
		Answer:         answer,
		Sources:        sources,
		ProcessingSecs: processingSecs,
		CreatedAt:      createdAt,
	}
}

// ValidateChatExchange validates a ChatExchange instance
func ValidateChatExchange(e *ChatExchange) error {
	if e == nil {
		return fmt.Errorf("chat exchange cannot be nil")
	}

	if e.ID == "" {
		return fmt.Errorf("chat exchange ID is required")
	}

	if e.UserID == "" {
		return fmt.Errorf("chat exchange UserID is required")
	}

	if e.Question == "" {
		return fmt.Errorf("chat exchange Question is required")
	}

	if e.ProcessingSecs < 0 {
		return fmt.Errorf("chat exchange ProcessingSecs cannot be negative")
	}

	return nil
}
