package openai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_EmbedDeterministic(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	first, err := client.Embed(ctx, "hello world")
	require.NoError(t, err)
	second, err := client.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, DefaultEmbeddingDimensions)
}

func TestMockClient_EmbedDistinctTexts(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	a, err := client.Embed(ctx, "alpha")
	require.NoError(t, err)
	b, err := client.Embed(ctx, "beta")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestMockClient_EmbedRange(t *testing.T) {
	client := NewMockClient()

	vec, err := client.Embed(context.Background(), "range check")
	require.NoError(t, err)

	for _, v := range vec {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestMockClient_EmbedEmptyText(t *testing.T) {
	client := NewMockClient()

	_, err := client.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestMockClient_EmbedBatch(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	texts := []string{"one", "two", "three"}
	vectors, err := client.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	// Batch output matches single embeds, position by position.
	for i, text := range texts {
		single, err := client.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, vectors[i])
	}
}

func TestMockClient_EmbedBatchEmptyText(t *testing.T) {
	client := NewMockClient()

	_, err := client.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestMockClient_CustomDimensions(t *testing.T) {
	client := NewMockClientWithDimensions(8)
	assert.Equal(t, 8, client.Dimensions())

	vec, err := client.Embed(context.Background(), "small")
	require.NoError(t, err)
	assert.Len(t, vec, 8)

	fallback := NewMockClientWithDimensions(-1)
	assert.Equal(t, DefaultEmbeddingDimensions, fallback.Dimensions())
}

func TestMockClient_Generate(t *testing.T) {
	client := NewMockClient()

	answer, err := client.Generate(context.Background(), "system prompt", "What is a widget?")
	require.NoError(t, err)
	assert.Contains(t, answer, "What is a widget?")

	long := strings.Repeat("q", 80)
	answer, err = client.Generate(context.Background(), "system prompt", long)
	require.NoError(t, err)
	assert.Contains(t, answer, strings.Repeat("q", 50)+"...")
	assert.NotContains(t, answer, long)
}
