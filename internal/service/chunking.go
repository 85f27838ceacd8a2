package service

import (
	"unicode"

	"github.com/lumora-ai/lumora/internal/domain"
)

// ChunkConfig controls how extracted text is split before embedding.
// Size and Overlap are measured in characters (runes).
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// SplitText splits text into ordered chunks of at most cfg.Size runes,
// where each chunk after the first starts with the trailing cfg.Overlap
// runes of its predecessor. Splitting prefers a whitespace boundary in the
// back half of the window and falls back to a hard cut. The same input
// always yields the same chunks, and concatenating the first chunk with
// every later chunk minus its leading overlap reconstructs the input.
func SplitText(text string, cfg ChunkConfig) ([]string, error) {
	if cfg.Size <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, domain.ErrInvalidChunkConfig
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return []string{}, nil
	}

	chunks := make([]string, 0, len(runes)/(cfg.Size-cfg.Overlap)+1)
	start := 0
	for start < len(runes) {
		end := start + cfg.Size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Prefer to cut at whitespace, but never give back more than half
		// the window and never stall inside the overlap region.
		cut := end
		minCut := start + cfg.Size/2
		if minCut <= start+cfg.Overlap {
			minCut = start + cfg.Overlap + 1
		}
		for i := end; i > minCut; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}
		end = cut

		chunks = append(chunks, string(runes[start:end]))
		start = end - cfg.Overlap
	}

	return chunks, nil
}
