package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
	"hamrag/pkg/ingest"
	"hamrag/pkg/llm"
	"hamrag/pkg/monitoring"
)

type stubBackend struct {
	name   string
	answer string
	err    error
	prompt string
}

func (s *stubBackend) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubBackend) IsHealthy(ctx context.Context) bool { return s.err == nil }
func (s *stubBackend) Name() string                       { return s.name }

func newServiceForTest(t *testing.T, index *fakeIndex, backend *stubBackend) *Service {
	t.Helper()
	return newServiceWithFallback(t, index, backend, nil)
}

func newServiceWithFallback(t *testing.T, index *fakeIndex, primary, fallback llm.Backend) *Service {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SourcePreviewLen = 20
	router := llm.NewFailoverRouter(primary, fallback, monitoring.NewTestMetrics())
	return NewService(cfg, nil, &fakeEmbedder{healthy: true}, index, router, monitoring.NewTestMetrics())
}

func record(id, content string, relevant bool) ingest.Record {
	return ingest.Record{
		ID:             id,
		Content:        content,
		Source:         "handbook.pdf",
		SourceType:     ingest.SourceTypePDF,
		Title:          "handbook.pdf",
		DomainRelevant: relevant,
	}
}

func TestAddRecordsPrefersDomainRelevant(t *testing.T) {
	idx := &fakeIndex{ready: true}
	s := newServiceForTest(t, idx, &stubBackend{name: "primary", answer: "ok"})

	n, err := s.AddRecords(context.Background(), []ingest.Record{
		record("1", "antenna theory", true),
		record("2", "cookie recipe", false),
		record("3", "vswr measurement", true),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, idx.records, 2)
}

func TestAddRecordsFallsBackToAllWhenNoneRelevant(t *testing.T) {
	idx := &fakeIndex{ready: true}
	s := newServiceForTest(t, idx, &stubBackend{name: "primary", answer: "ok"})

	n, err := s.AddRecords(context.Background(), []ingest.Record{
		record("1", "something obscure", false),
		record("2", "but requested anyway", false),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAddRecordsEmptyBatch(t *testing.T) {
	s := newServiceForTest(t, &fakeIndex{}, &stubBackend{name: "primary", answer: "ok"})
	n, err := s.AddRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueryReturnsAnswerWithSources(t *testing.T) {
	idx := &fakeIndex{ready: true, records: []IndexedRecord{
		{Record: record("1", strings.Repeat("antenna theory ", 10), true), Vector: []float32{1, 0, 0}},
	}}
	backend := &stubBackend{name: "primary", answer: "A dipole needs a balun."}
	s := newServiceForTest(t, idx, backend)

	result, err := s.Query(context.Background(), "how do I feed a dipole?")
	require.NoError(t, err)
	assert.Equal(t, "A dipole needs a balun.", result.Answer)
	assert.False(t, result.Degraded)
	require.Len(t, result.Sources, 1)

	src := result.Sources[0]
	assert.Equal(t, "handbook.pdf", src.Source)
	assert.True(t, strings.HasSuffix(src.Preview, "..."))
	assert.LessOrEqual(t, len([]rune(src.Preview)), 20+3)

	// The backend saw the retrieved chunk inside the prompt.
	assert.Contains(t, backend.prompt, "antenna theory")
	assert.Contains(t, backend.prompt, "how do I feed a dipole?")
}

func TestQueryBackendFailureYieldsPoliteAnswer(t *testing.T) {
	idx := &fakeIndex{ready: true, records: []IndexedRecord{
		{Record: record("1", "antenna theory", true), Vector: []float32{1, 0, 0}},
	}}
	backend := &stubBackend{name: "primary", err: hrerrors.NewBackendUnavailableError("primary", "down", nil)}
	s := newServiceForTest(t, idx, backend)

	result, err := s.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, unavailableAnswer, result.Answer)
	assert.Empty(t, result.Sources)

	// Degraded marks answers served by the fallback; with none configured
	// the router keeps the primary active, so a failed query is not degraded.
	assert.False(t, result.Degraded)
}

func TestQueryEmptyIndexAnswersWithoutSources(t *testing.T) {
	idx := &fakeIndex{ready: true}
	backend := &stubBackend{name: "primary", answer: "4"}
	s := newServiceForTest(t, idx, backend)

	result, err := s.Query(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", result.Answer)
	assert.Empty(t, result.Sources)
	assert.False(t, result.Degraded)
	assert.Contains(t, backend.prompt, "What is 2+2?")
}

func TestQueryIndexFailureSurfacesError(t *testing.T) {
	idx := &fakeIndex{err: hrerrors.NewIndexUnavailableError("similarity_search", "down", nil)}
	s := newServiceForTest(t, idx, &stubBackend{name: "primary", answer: "ok"})

	_, err := s.Query(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, hrerrors.IsIndexUnavailable(err))
}

func TestStatsAndDeleteAll(t *testing.T) {
	idx := &fakeIndex{ready: true}
	s := newServiceForTest(t, idx, &stubBackend{name: "primary", answer: "ok"})

	_, err := s.AddRecords(context.Background(), []ingest.Record{record("1", "antenna theory", true)})
	require.NoError(t, err)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Documents)
	assert.EqualValues(t, 1, stats.BySourceType["pdf"])
	assert.Equal(t, 1, stats.DistinctSources)

	require.NoError(t, s.DeleteAll(context.Background()))
	stats, err = s.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.Documents)
}

func TestCheckHealthRequiresAllDependencies(t *testing.T) {
	s := newServiceForTest(t, &fakeIndex{ready: true}, &stubBackend{name: "primary", answer: "ok"})
	h := s.CheckHealth(context.Background())
	assert.True(t, h.Embeddings)
	assert.True(t, h.Index)
	assert.True(t, h.Backend)
	assert.True(t, h.PipelineReady)

	down := newServiceForTest(t, &fakeIndex{ready: false}, &stubBackend{name: "primary", answer: "ok"})
	h = down.CheckHealth(context.Background())
	assert.False(t, h.Index)
	assert.False(t, h.PipelineReady)
}

func TestResetRouterRestoresPrimary(t *testing.T) {
	idx := &fakeIndex{ready: true, records: []IndexedRecord{
		{Record: record("1", "antenna theory", true), Vector: []float32{1, 0, 0}},
	}}
	primary := &stubBackend{name: "primary", err: hrerrors.NewBackendUnavailableError("primary", "down", nil)}
	fallback := &stubBackend{name: "fallback", answer: "from backup"}
	s := newServiceWithFallback(t, idx, primary, fallback)

	result, err := s.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "from backup", result.Answer)
	assert.True(t, result.Degraded)

	primary.err = nil
	primary.answer = "recovered"
	s.ResetRouter()

	result, err = s.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Answer)
	assert.False(t, result.Degraded)
}
