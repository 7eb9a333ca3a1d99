package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
	"hamrag/pkg/ingest"
)

// IndexedRecord pairs a chunk record with its embedding vector.
type IndexedRecord struct {
	Record ingest.Record
	Vector []float32
}

// VectorIndex abstracts the vector store so retrieval and tests do not
// depend on a running Weaviate.
type VectorIndex interface {
	Add(ctx context.Context, records []IndexedRecord) error
	SearchByVector(ctx context.Context, vector []float32, limit int) ([]SearchHit, error)
	Count(ctx context.Context) (int64, error)
	GroupCounts(ctx context.Context, property string) (map[string]int64, error)
	DeleteAll(ctx context.Context) error
	Ready(ctx context.Context) bool
}

// WeaviateIndex stores chunk records in a Weaviate class with externally
// computed vectors.
type WeaviateIndex struct {
	client *weaviate.Client
	class  string
	logger *slog.Logger
}

// NewWeaviateIndex connects to Weaviate and ensures the class exists.
func NewWeaviateIndex(cfg *config.Config) (*WeaviateIndex, error) {
	var authConfig auth.Config
	if cfg.WeaviateAPIKey != "" {
		authConfig = auth.ApiKey{Value: cfg.WeaviateAPIKey}
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:       cfg.WeaviateHost,
		Scheme:     cfg.WeaviateScheme,
		AuthConfig: authConfig,
	})
	if err != nil {
		return nil, hrerrors.NewConfigurationError("weaviate", fmt.Sprintf("failed to create client: %v", err))
	}

	idx := &WeaviateIndex{
		client: client,
		class:  cfg.WeaviateClass,
		logger: slog.Default().With("component", "weaviate-index"),
	}
	if err := idx.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

// ensureSchema creates the chunk class. Vectorizer is "none": vectors are
// computed by the embedding service and supplied with each object.
func (wi *WeaviateIndex) ensureSchema(ctx context.Context) error {
	class := &models.Class{
		Class:       wi.class,
		Description: "Chunked radio and RF documentation with external embeddings",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}, Description: "Chunk text"},
			{Name: "source", DataType: []string{"text"}, Description: "Originating file path or URL"},
			{Name: "sourceType", DataType: []string{"text"}, Description: "pdf, image or web"},
			{Name: "title", DataType: []string{"text"}, Description: "Document or page title"},
			{Name: "chunkIndex", DataType: []string{"int"}, Description: "Position of the chunk within its source"},
			{Name: "domainRelevant", DataType: []string{"boolean"}, Description: "Domain vocabulary match"},
		},
	}

	err := wi.client.Schema().ClassCreator().WithClass(class).Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return hrerrors.NewIndexUnavailableError("ensure_schema", "failed to create class", err)
	}
	wi.logger.Info("created index class", "class", wi.class)
	return nil
}

// Add batches records into the index.
func (wi *WeaviateIndex) Add(ctx context.Context, records []IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(records))
	for _, ir := range records {
		objects = append(objects, &models.Object{
			Class: wi.class,
			ID:    strfmt.UUID(ir.Record.ID),
			Properties: map[string]interface{}{
				"content":        ir.Record.Content,
				"source":         ir.Record.Source,
				"sourceType":     string(ir.Record.SourceType),
				"title":          ir.Record.Title,
				"chunkIndex":     ir.Record.ChunkIndex,
				"domainRelevant": ir.Record.DomainRelevant,
			},
			Vector: models.C11yVector(ir.Vector),
		})
	}

	resp, err := wi.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return hrerrors.NewIndexUnavailableError("add", "batch insert failed", err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return hrerrors.NewIndexUnavailableError("add",
				fmt.Sprintf("object %s rejected: %s", obj.ID, obj.Result.Errors.Error[0].Message), nil)
		}
	}

	wi.logger.Debug("indexed records", "count", len(records), "class", wi.class)
	return nil
}

// SearchByVector returns the closest chunks with their stored vectors, so
// the retriever can re-rank without further round trips.
func (wi *WeaviateIndex) SearchByVector(ctx context.Context, vector []float32, limit int) ([]SearchHit, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "sourceType"},
		{Name: "title"},
		{Name: "chunkIndex"},
		{Name: "domainRelevant"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "distance"},
			{Name: "vector"},
		}},
	}

	nearVector := wi.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	result, err := wi.client.GraphQL().Get().
		WithClassName(wi.class).
		WithNearVector(nearVector).
		WithFields(fields...).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, hrerrors.NewIndexUnavailableError("similarity_search", "query failed", err)
	}
	if len(result.Errors) > 0 {
		return nil, hrerrors.NewIndexUnavailableError("similarity_search",
			fmt.Sprintf("graphql error: %s", result.Errors[0].Message), nil)
	}

	hits := make([]SearchHit, 0, limit)
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return hits, nil
	}
	items, ok := data[wi.class].([]interface{})
	if !ok {
		return hits, nil
	}
	for _, item := range items {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		hits = append(hits, wi.parseHit(itemMap))
	}
	return hits, nil
}

func (wi *WeaviateIndex) parseHit(item map[string]interface{}) SearchHit {
	hit := SearchHit{}
	hit.Record.Content, _ = item["content"].(string)
	hit.Record.Source, _ = item["source"].(string)
	hit.Record.Title, _ = item["title"].(string)
	if st, ok := item["sourceType"].(string); ok {
		hit.Record.SourceType = ingest.SourceType(st)
	}
	if ci, ok := item["chunkIndex"].(float64); ok {
		hit.Record.ChunkIndex = int(ci)
	}
	hit.Record.DomainRelevant, _ = item["domainRelevant"].(bool)

	additional, ok := item["_additional"].(map[string]interface{})
	if !ok {
		return hit
	}
	hit.Record.ID, _ = additional["id"].(string)
	if distance, ok := additional["distance"].(float64); ok {
		// Weaviate reports cosine distance; similarity is its complement.
		hit.Score = 1 - float32(distance)
	}
	if rawVector, ok := additional["vector"].([]interface{}); ok {
		hit.Vector = make([]float32, 0, len(rawVector))
		for _, v := range rawVector {
			if f, ok := v.(float64); ok {
				hit.Vector = append(hit.Vector, float32(f))
			}
		}
	}
	return hit
}

// Count returns the number of stored chunks.
func (wi *WeaviateIndex) Count(ctx context.Context) (int64, error) {
	result, err := wi.client.GraphQL().Aggregate().
		WithClassName(wi.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, hrerrors.NewIndexUnavailableError("count", "aggregate query failed", err)
	}
	if len(result.Errors) > 0 {
		return 0, hrerrors.NewIndexUnavailableError("count",
			fmt.Sprintf("graphql error: %s", result.Errors[0].Message), nil)
	}

	data, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	items, ok := data[wi.class].([]interface{})
	if !ok || len(items) == 0 {
		return 0, nil
	}
	itemMap, ok := items[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := itemMap["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int64(count), nil
}

// GroupCounts aggregates object counts grouped by one text property, e.g.
// sourceType for the per-type histogram or source for distinct sources.
func (wi *WeaviateIndex) GroupCounts(ctx context.Context, property string) (map[string]int64, error) {
	result, err := wi.client.GraphQL().Aggregate().
		WithClassName(wi.class).
		WithGroupBy(property).
		WithFields(
			graphql.Field{Name: "groupedBy", Fields: []graphql.Field{{Name: "value"}}},
			graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}},
		).
		Do(ctx)
	if err != nil {
		return nil, hrerrors.NewIndexUnavailableError("group_counts", "aggregate query failed", err)
	}
	if len(result.Errors) > 0 {
		return nil, hrerrors.NewIndexUnavailableError("group_counts",
			fmt.Sprintf("graphql error: %s", result.Errors[0].Message), nil)
	}

	counts := map[string]int64{}
	data, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return counts, nil
	}
	items, ok := data[wi.class].([]interface{})
	if !ok {
		return counts, nil
	}
	for _, item := range items {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		groupedBy, ok := itemMap["groupedBy"].(map[string]interface{})
		if !ok {
			continue
		}
		value, _ := groupedBy["value"].(string)
		meta, ok := itemMap["meta"].(map[string]interface{})
		if !ok {
			continue
		}
		count, _ := meta["count"].(float64)
		counts[value] = int64(count)
	}
	return counts, nil
}

// DeleteAll drops and recreates the class.
func (wi *WeaviateIndex) DeleteAll(ctx context.Context) error {
	if err := wi.client.Schema().ClassDeleter().WithClassName(wi.class).Do(ctx); err != nil {
		return hrerrors.NewIndexUnavailableError("delete_all", "failed to drop class", err)
	}
	wi.logger.Info("dropped index class", "class", wi.class)
	return wi.ensureSchema(ctx)
}

// Ready reports whether the Weaviate node answers its readiness check.
func (wi *WeaviateIndex) Ready(ctx context.Context) bool {
	ready, err := wi.client.Misc().ReadyChecker().Do(ctx)
	return err == nil && ready
}
