package extract

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Page is one page of extracted text.
type Page struct {
	Number int    `json:"page_number"`
	Text   string `json:"text"`
}

// Result is the outcome of extracting a document.
type Result struct {
	Pages    []Page            `json:"pages"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// FullText concatenates page text in page order.
func (r *Result) FullText() string {
	var b strings.Builder
	for i, page := range r.Pages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(page.Text)
	}
	return b.String()
}

// TotalTextLength returns the combined length of all page text.
func (r *Result) TotalTextLength() int {
	n := 0
	for _, page := range r.Pages {
		n += len(page.Text)
	}
	return n
}

// Extractor turns raw document bytes into page-structured text plus document
// metadata. PDF and OCR engines live behind this interface as external
// collaborators; the pipeline treats any error or empty result as a hard
// extraction failure.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*Result, error)
}

// TextExtractor handles plain-text documents. Form feeds act as page breaks.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}

	var pages []Page
	for i, pageText := range strings.Split(text, "\f") {
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: pageText})
	}

	return &Result{
		Pages: pages,
		Metadata: map[string]string{
			"extractor": "text",
		},
	}, nil
}
