package extract

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloo-solutions/medrag/internal/domain"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\ufeff"

// Extractor converts source documents into a single normalized text blob.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of doc. A document that opens but yields no text
// produces an empty string; only an unreadable container is an error.
func (e *Extractor) Extract(ctx context.Context, doc domain.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format := doc.Format
	if format == "" {
		f, ok := domain.FormatFor(doc.Name)
		if !ok {
			return "", domain.ErrUnsupportedFormat.WithCause(fmt.Errorf("file %q", doc.Name))
		}
		format = f
	}

	switch format {
	case domain.DocumentFormatText:
		return decodeText(doc.Content), nil
	case domain.DocumentFormatPDF:
		return e.extractPDF(ctx, doc)
	default:
		return "", domain.ErrUnsupportedFormat.WithCause(fmt.Errorf("format %q", format))
	}
}

func (e *Extractor) extractPDF(ctx context.Context, doc domain.Document) (string, error) {
	r, err := openPDF(doc.Content)
	if err != nil {
		return "", domain.ErrExtraction.WithCause(fmt.Errorf("%s: %w", doc.Name, err))
	}

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := pageText(r, i)
		if err != nil {
			log.Printf("extract: %s page %d yielded no text: %v", doc.Name, i, err)
			text = ""
		}
		pages = append(pages, text)
	}

	return norm.NFC.String(strings.ToValidUTF8(strings.Join(pages, "\n"), "")), nil
}

// openPDF guards against the parser panicking on malformed containers.
func openPDF(content []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("corrupt pdf: %v", rec)
		}
	}()
	if len(content) == 0 {
		return nil, fmt.Errorf("empty pdf")
	}
	return pdf.NewReader(bytes.NewReader(content), int64(len(content)))
}

func pageText(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("page parse panic: %v", rec)
		}
	}()
	p := r.Page(num)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

// decodeText drops invalid UTF-8 sequences and normalizes to NFC.
func decodeText(content []byte) string {
	s := strings.ToValidUTF8(string(content), "")
	s = strings.TrimPrefix(s, utf8BOM)
	return norm.NFC.String(s)
}
