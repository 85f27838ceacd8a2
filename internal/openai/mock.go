package openai

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// MockClient is a deterministic, offline stand-in for the OpenAI client.
// Embeddings are seeded from a hash of the input text, so the same text
// always maps to the same vector and test suites never touch the network.
type MockClient struct {
	dimensions int
}

func NewMockClient() *MockClient {
	return &MockClient{dimensions: DefaultEmbeddingDimensions}
}

// NewMockClientWithDimensions creates a mock with a custom vector size,
// keeping test fixtures small.
func NewMockClientWithDimensions(dimensions int) *MockClient {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &MockClient{dimensions: dimensions}
}

// Embed returns a deterministic embedding for text.
func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	return m.hashEmbedding(text), nil
}

// EmbedBatch returns one deterministic embedding per input text, in order.
func (m *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if text == "" {
			return nil, ErrEmptyText
		}
		vectors = append(vectors, m.hashEmbedding(text))
	}
	return vectors, nil
}

// Generate returns a canned answer that references the question so
// offline runs still produce inspectable output.
func (m *MockClient) Generate(ctx context.Context, system, user string) (string, error) {
	question := user
	if len(question) > 50 {
		question = question[:50] + "..."
	}
	return fmt.Sprintf("Based on the uploaded documents, I found information that may be relevant to %q. "+
		"Connect an OpenAI API key for generated answers grounded in the document content.", question), nil
}

// Dimensions returns the embedding dimensionality of the mock.
func (m *MockClient) Dimensions() int {
	return m.dimensions
}

// hashEmbedding maps text to a fixed-length vector with components in
// [-1, 1], derived from the SHA-256 digest of the text.
func (m *MockClient) hashEmbedding(text string) []float32 {
	digest := sha256.Sum256([]byte(text))
	vector := make([]float32, m.dimensions)
	for i := range vector {
		b := digest[i%len(digest)]
		vector[i] = (float32(b)/255.0)*2 - 1
	}
	return vector
}
