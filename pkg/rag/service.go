package rag

import (
	"context"
	"log/slog"
	"time"

	"hamrag/pkg/config"
	"hamrag/pkg/ingest"
	"hamrag/pkg/llm"
	"hamrag/pkg/monitoring"
)

// unavailableAnswer is returned when every configured backend failed. The
// caller still gets a well-formed result, just without an answer.
const unavailableAnswer = "I cannot generate an answer right now because the language model backends are unavailable. Please try again later."

// Service is the query-side orchestrator: it owns embedding, indexing,
// retrieval and answer synthesis. The ingestion Processor feeds it records.
type Service struct {
	processor *ingest.Processor
	embedder  Embedder
	index     VectorIndex
	retriever *Retriever
	router    *llm.FailoverRouter

	class      string
	previewLen int
	metrics    *monitoring.Metrics
	logger     *slog.Logger
}

// NewService wires the query pipeline together.
func NewService(cfg *config.Config, processor *ingest.Processor, embedder Embedder, index VectorIndex, router *llm.FailoverRouter, metrics *monitoring.Metrics) *Service {
	return &Service{
		processor:  processor,
		embedder:   embedder,
		index:      index,
		retriever:  NewRetriever(embedder, index, cfg.TopK, cfg.FetchK),
		router:     router,
		class:      cfg.WeaviateClass,
		previewLen: cfg.SourcePreviewLen,
		metrics:    metrics,
		logger:     slog.Default().With("component", "rag"),
	}
}

// AddRecords embeds and indexes chunk records. Domain-relevant chunks are
// preferred; when a batch has none, everything is indexed anyway so obscure
// but requested material is still searchable.
func (s *Service) AddRecords(ctx context.Context, records []ingest.Record) (int, error) {
	if len(records) == 0 {
		s.logger.Warn("no records to add")
		return 0, nil
	}

	relevant := make([]ingest.Record, 0, len(records))
	for _, rec := range records {
		if rec.DomainRelevant {
			relevant = append(relevant, rec)
		}
	}
	if len(relevant) == 0 {
		s.logger.Warn("no domain relevant records in batch, indexing all", "count", len(records))
		relevant = records
	}

	indexed := make([]IndexedRecord, 0, len(relevant))
	for _, rec := range relevant {
		vector, err := s.embedder.Embed(ctx, rec.Content)
		if err != nil {
			return 0, err
		}
		indexed = append(indexed, IndexedRecord{Record: rec, Vector: vector})
	}

	if err := s.index.Add(ctx, indexed); err != nil {
		return 0, err
	}
	s.logger.Info("records indexed", "count", len(indexed))
	return len(indexed), nil
}

// IngestFile extracts, chunks and indexes one local file. Unsupported
// extensions index nothing and return zero.
func (s *Service) IngestFile(ctx context.Context, path string) (int, error) {
	records, err := s.processor.ProcessFile(ctx, path)
	if err != nil {
		return 0, err
	}
	return s.AddRecords(ctx, records)
}

// IngestURL fetches, chunks and indexes one web page.
func (s *Service) IngestURL(ctx context.Context, url string) (int, error) {
	records, err := s.processor.ProcessURL(ctx, url)
	if err != nil {
		return 0, err
	}
	return s.AddRecords(ctx, records)
}

// IngestDirectory walks a tree and indexes every supported file.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (*ingest.IngestResult, error) {
	records, result, err := s.processor.ProcessDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}
	if _, err := s.AddRecords(ctx, records); err != nil {
		return nil, err
	}
	return result, nil
}

// Query answers a question from the indexed documentation. Retrieval
// failures surface as errors; generation failures degrade to a polite
// answer with empty sources so interactive callers keep a usable session.
func (s *Service) Query(ctx context.Context, question string) (*QueryResult, error) {
	start := time.Now()

	hits, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		s.countQuery("error")
		return nil, err
	}

	answer, err := s.router.Generate(ctx, BuildPrompt(question, hits))
	if err != nil {
		s.logger.Error("generation failed on all backends", "error", err)
		s.countQuery("backend_failed")
		return &QueryResult{
			Answer:   unavailableAnswer,
			Sources:  []SourceRef{},
			Degraded: s.router.Degraded(),
			Took:     time.Since(start),
		}, nil
	}

	result := &QueryResult{
		Answer:   answer,
		Sources:  make([]SourceRef, 0, len(hits)),
		Degraded: s.router.Degraded(),
		Took:     time.Since(start),
	}
	for _, hit := range hits {
		result.Sources = append(result.Sources, SourceRef{
			Source:     hit.Record.Source,
			Title:      hit.Record.Title,
			ChunkIndex: hit.Record.ChunkIndex,
			Preview:    preview(hit.Record.Content, s.previewLen),
		})
	}

	s.countQuery("success")
	if s.metrics != nil {
		s.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}
	return result, nil
}

// Similar returns the closest chunks without running the language model.
func (s *Service) Similar(ctx context.Context, query string, k int) ([]SearchHit, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.index.SearchByVector(ctx, vector, k)
}

// Stats reports the index contents: total count, the per-type histogram
// and the number of distinct sources.
func (s *Service) Stats(ctx context.Context) (*CollectionStats, error) {
	count, err := s.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	byType, err := s.index.GroupCounts(ctx, "sourceType")
	if err != nil {
		return nil, err
	}
	bySource, err := s.index.GroupCounts(ctx, "source")
	if err != nil {
		return nil, err
	}
	return &CollectionStats{
		Documents:       count,
		BySourceType:    byType,
		DistinctSources: len(bySource),
		Class:           s.class,
	}, nil
}

// DeleteAll clears the index.
func (s *Service) DeleteAll(ctx context.Context) error {
	return s.index.DeleteAll(ctx)
}

// Health probes each dependency. PipelineReady requires all of them.
func (s *Service) CheckHealth(ctx context.Context) *Health {
	h := &Health{
		Embeddings: s.embedder.IsHealthy(ctx),
		Index:      s.index.Ready(ctx),
	}
	for _, status := range s.router.HealthCheck(ctx) {
		if status.Active && status.Healthy {
			h.Backend = true
		}
	}
	h.PipelineReady = h.Embeddings && h.Index && h.Backend
	return h
}

// Backends reports the router's view of its backends.
func (s *Service) Backends(ctx context.Context) []llm.BackendStatus {
	return s.router.HealthCheck(ctx)
}

// ResetRouter restores the primary backend after an operator fixed it.
func (s *Service) ResetRouter() {
	s.router.Reset()
}

func (s *Service) countQuery(status string) {
	if s.metrics != nil {
		s.metrics.QueriesTotal.WithLabelValues(status).Inc()
	}
}

func preview(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n]) + "..."
}
