// Package ingest implements the ingestion pipeline: extraction of plain
// text from PDFs, images and web pages, OCR with image enhancement,
// domain-relevance tagging, technical value mining and chunking.
package ingest

import (
	"github.com/google/uuid"
)

// SourceType identifies the kind of input a record was extracted from.
type SourceType string

const (
	SourceTypePDF   SourceType = "pdf"
	SourceTypeImage SourceType = "image"
	SourceTypeWeb   SourceType = "web"
)

// Record is the atomic unit handed to the vector index: a bounded span of
// extracted text plus the citation metadata. Immutable after creation.
type Record struct {
	ID             string     `json:"id"`
	Content        string     `json:"content"`
	Source         string     `json:"source"` // file path or URL
	SourceType     SourceType `json:"source_type"`
	ChunkIndex     int        `json:"chunk_index"`
	Title          string     `json:"title"` // filename or page title
	DomainRelevant bool       `json:"domain_relevant"`
}

// newRecordID returns a fresh identifier for a record.
func newRecordID() string {
	return uuid.NewString()
}
