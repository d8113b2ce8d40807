package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

// ErrEmptyDocument means extraction succeeded but produced nothing usable.
// Distinct from a read failure: the file was fine, it just holds no text.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Extractor turns uploaded files into bounded plain text.
type Extractor struct {
	limit int // max characters passed onward
}

// NewExtractor creates an extractor with the given character budget.
func NewExtractor(limit int) *Extractor {
	return &Extractor{limit: limit}
}

// Extract reads text from the payload. PDF files go through page text
// extraction; anything else is decoded as text, UTF-8 first and
// Windows-1251 as the fallback. The result is truncated to the budget.
func (e *Extractor) Extract(data []byte, filename string) (string, error) {
	var text string
	var err error

	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, err = extractPDF(data)
	} else {
		text, err = decodeText(data)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}
	return truncate(text, e.limit), nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// A single broken page does not fail the document.
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(pageText)
	}
	return sb.String(), nil
}

// decodeText is the two-attempt decode: valid UTF-8 wins, otherwise the
// bytes are reinterpreted as Windows-1251.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode document text: %w", err)
	}
	return string(decoded), nil
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}
