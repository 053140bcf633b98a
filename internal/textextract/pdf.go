// Package textextract converts uploaded statement documents into plain text
// for the extraction pipeline. PDFs go through layered decoding with a
// readability check so scanned or custom-font documents fail loudly instead
// of feeding garbage to the model.
package textextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

// ErrUnreadableDocument means no decoding method produced readable text.
// The document is likely image-based or uses font encodings that cannot
// be decoded.
var ErrUnreadableDocument = fmt.Errorf("no readable text could be extracted from the document")

// Extractor turns document bytes into statement text. Non-PDF input (CSV
// and plain-text exports) passes through unchanged.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractText(data []byte) (string, error) {
	if !bytes.HasPrefix(data, pdfMagic) {
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", ErrUnreadableDocument
		}
		return text, nil
	}
	return extractPDF(data)
}

// extractPDF tries structured row extraction first, then the library's
// plain-text path. Whatever a method returns is rejected unless the
// readability check passes; garbage never reaches the pipeline.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("extractPDF: decoder crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extractPDF: %w", err)
	}
	if r.NumPage() == 0 {
		return "", fmt.Errorf("extractPDF: document has no pages")
	}

	if text := extractByRow(r); isReadable(text) {
		return text, nil
	}
	if text := extractPlainText(r); isReadable(text) {
		return text, nil
	}
	return "", ErrUnreadableDocument
}

// extractByRow reconstructs each page line by line, which preserves the
// tabular layout most statements use.
func extractByRow(r *pdf.Reader) string {
	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			pages = append(pages, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(pages, "\n\n")
}

// extractPlainText is the whole-document fallback for PDFs whose text
// objects lack usable coordinates.
func extractPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// isReadable requires enough text, a high ratio of plain readable
// characters, and at least one word every bank statement contains. The
// character check is strict ASCII on purpose: identity-encoded fonts decode
// into accented garbage that unicode.IsLetter happily accepts.
func isReadable(text string) bool {
	if len(strings.TrimSpace(text)) <= 50 {
		return false
	}
	if readableRatio(text) <= 0.6 {
		return false
	}
	return containsStatementWord(text)
}

func readableRatio(text string) float64 {
	total := 0
	readable := 0
	for _, r := range text {
		total++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
			strings.ContainsRune(`.,-/:;()'"$%&@#!?+=*`, r) ||
			r == '£' || r == '€' {
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// statementWords appear in virtually every bank statement; text containing
// none of them is almost certainly a failed decode.
var statementWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction",
	"opening", "closing", "transfer", "withdrawal", "deposit",
	"number", "page", "period",
}

func containsStatementWord(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range statementWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
