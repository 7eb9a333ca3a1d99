package rag

import (
	"log/slog"

	"hamrag/pkg/config"
	"hamrag/pkg/ingest"
	"hamrag/pkg/llm"
	"hamrag/pkg/monitoring"
)

// BootstrapService builds the full pipeline from configuration: OCR,
// ingestion processor, embedding service with optional Redis cache, the
// Weaviate index and the backend router. Optional pieces degrade with a
// log line; required pieces fail construction.
func BootstrapService(cfg *config.Config, metrics *monitoring.Metrics) (*Service, error) {
	logger := slog.Default().With("component", "bootstrap")

	var ocr ingest.OCR
	tess, err := ingest.NewTesseractOCR(cfg.TesseractPath)
	if err != nil {
		logger.Warn("OCR unavailable, scanned pages and images will not be readable", "error", err)
	} else {
		ocr = tess
	}
	processor := ingest.NewProcessor(cfg, ocr, metrics)

	var cache EmbeddingCache
	if cfg.RedisAddr != "" {
		redisCache, err := NewRedisEmbeddingCache(cfg)
		if err != nil {
			logger.Warn("embedding cache unavailable, embeddings will be recomputed", "error", err)
		} else {
			cache = redisCache
		}
	}
	embedder := NewEmbeddingService(cfg, cache, metrics)

	index, err := NewWeaviateIndex(cfg)
	if err != nil {
		return nil, err
	}

	router, err := llm.NewRouterFromConfig(cfg, metrics)
	if err != nil {
		return nil, err
	}

	return NewService(cfg, processor, embedder, index, router, metrics), nil
}
