package domain

import (
	"path/filepath"
	"strings"
)

// DocumentFormat identifies how a source document is decoded.
type DocumentFormat string

const (
	DocumentFormatPDF  DocumentFormat = "pdf"
	DocumentFormatText DocumentFormat = "text"
)

// Document is a source file read once during ingestion.
type Document struct {
	Name    string
	Format  DocumentFormat
	Content []byte
}

// FormatFor maps a filename to its document format. ok is false for files
// ingestion does not handle.
func FormatFor(name string) (DocumentFormat, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return DocumentFormatPDF, true
	case ".txt", ".text", ".md":
		return DocumentFormatText, true
	}
	return "", false
}

// CorpusFile is an eligible document listed by a corpus source.
type CorpusFile struct {
	// Name is the basename recorded as the chunk source.
	Name string
	// Key locates the file inside its source: a path or an object key.
	Key  string
	Size int64
}
