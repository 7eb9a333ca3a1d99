// Package rag implements the query pipeline: embedding, vector index
// access, maximal-marginal-relevance retrieval and answer synthesis over
// the configured language-model router.
package rag

import (
	"time"

	"hamrag/pkg/ingest"
)

// SearchHit is one record returned by the vector index, with its stored
// vector and the index similarity score.
type SearchHit struct {
	Record ingest.Record
	Vector []float32
	Score  float32
}

// SourceRef points a reader back at one retrieved chunk.
type SourceRef struct {
	Source     string `json:"source"`
	Title      string `json:"title"`
	ChunkIndex int    `json:"chunk_index"`
	Preview    string `json:"preview"`
}

// QueryResult is the answer returned to callers, with provenance.
type QueryResult struct {
	Answer   string        `json:"answer"`
	Sources  []SourceRef   `json:"sources"`
	Degraded bool          `json:"degraded"`
	Took     time.Duration `json:"took"`
}

// CollectionStats summarizes the index contents. Computed on demand,
// never cached.
type CollectionStats struct {
	Documents       int64            `json:"documents"`
	BySourceType    map[string]int64 `json:"by_source_type"`
	DistinctSources int              `json:"distinct_sources"`
	Class           string           `json:"class"`
}

// Health reports per-dependency availability for the query pipeline.
type Health struct {
	Embeddings    bool `json:"embeddings"`
	Index         bool `json:"index"`
	Backend       bool `json:"backend"`
	PipelineReady bool `json:"pipeline_ready"`
}
