package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/lumora-ai/lumora/internal/domain"
)

// Extractor converts stored file bytes into plain text based on the
// declared file type.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the plain-text content of data. Unrecognized types fail
// with an UNSUPPORTED_TYPE error; unreadable or corrupt files fail with an
// EXTRACTION_FAILURE error. Both are pipeline-fatal for the document.
func (e *Extractor) Extract(data []byte, fileType string) (string, error) {
	switch strings.ToLower(fileType) {
	case ".txt":
		return extractPlainText(data), nil
	case ".pdf":
		return extractPDF(data)
	default:
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeUnsupportedType,
			"unsupported file type", fmt.Errorf("no extractor for %q", fileType))
	}
}

func extractPlainText(data []byte) string {
	// Invalid UTF-8 sequences are dropped rather than failing the document.
	text := strings.ToValidUTF8(string(data), "")
	return strings.TrimSpace(text)
}

// extractPDF concatenates per-page text in page order. Pages are joined
// with a blank line so chunk boundaries never merge words across pages.
func extractPDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed files; a corrupt upload
	// must surface as a pipeline failure, not a crash.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailure,
				"text extraction failed", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailure,
			"text extraction failed", fmt.Errorf("failed to open pdf: %w", err))
	}

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		pageText, pageErr := page.GetPlainText(fonts)
		if pageErr != nil {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailure,
				"text extraction failed", fmt.Errorf("failed to read page %d: %w", i, pageErr))
		}
		if strings.TrimSpace(pageText) != "" {
			parts = append(parts, pageText)
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}
