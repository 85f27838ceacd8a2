package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lumora-ai/lumora/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultGenerationModel is the OpenAI model used for answer synthesis
	DefaultGenerationModel = "gpt-4o-mini"
	// DefaultEmbeddingDimensions is the expected dimension of embeddings
	DefaultEmbeddingDimensions = 1536
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// CompletionAPI defines the raw provider surface the client depends on.
type CompletionAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	CreateCompletion(ctx context.Context, system, user string) (string, error)
}

// Client wraps the OpenAI API, exposing embedding and generation
// capabilities with dimension validation.
type Client struct {
	api        CompletionAPI
	dimensions int
}

// Adapter calls the real OpenAI API via sashabaranov/go-openai.
type Adapter struct {
	client          *openai.Client
	embeddingModel  openai.EmbeddingModel
	generationModel string
}

func NewAdapter(apiKey, embeddingModel, generationModel string) *Adapter {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if generationModel == "" {
		generationModel = DefaultGenerationModel
	}
	return &Adapter{
		client:          openai.NewClient(apiKey),
		embeddingModel:  openai.EmbeddingModel(embeddingModel),
		generationModel: generationModel,
	}
}

// CreateEmbeddings calls the OpenAI API to embed a batch of texts.
// The response preserves input order.
func (a *Adapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// CreateCompletion calls the OpenAI chat completion API.
func (a *Adapter) CreateCompletion(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.generationModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey              string
	EmbeddingModel      string
	GenerationModel     string
	EmbeddingDimensions int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:        NewAdapter(cfg.APIKey, cfg.EmbeddingModel, cfg.GenerationModel),
		dimensions: dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Embed generates an embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for a batch of texts, order-preserving
// and length-matching the input. Provider errors are reported as
// transient so the pipeline retries them.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, ErrEmptyText
		}
	}

	vectors, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProviderUnavailable,
			"embedding provider unavailable", err)
	}

	for _, vec := range vectors {
		if len(vec) != c.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(vec))
		}
	}
	return vectors, nil
}

// Generate produces a completion for the given system and user prompts.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	answer, err := c.api.CreateCompletion(ctx, system, user)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeProviderUnavailable,
			"generation provider unavailable", err)
	}
	return answer, nil
}

// Dimensions returns the embedding dimensionality the client enforces.
func (c *Client) Dimensions() int {
	return c.dimensions
}
