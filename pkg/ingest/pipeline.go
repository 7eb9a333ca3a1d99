package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hamrag/pkg/config"
	"hamrag/pkg/monitoring"
)

// supported file extensions, routed by extractor.
var (
	pdfExtensions   = map[string]bool{".pdf": true}
	imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".tiff": true, ".bmp": true}
)

// IngestResult aggregates the outcome of a directory ingestion. Failures
// are contained per file: one corrupt input never aborts the batch.
type IngestResult struct {
	FilesAdded   int           `json:"files_added"`
	FilesSkipped int           `json:"files_skipped"`
	FilesFailed  int           `json:"files_failed"`
	Chunks       int           `json:"chunks"`
	Duration     time.Duration `json:"duration"`
}

// Processor is the ingestion pipeline: it routes inputs to the right
// extractor, tags relevance, and chunks the result into Records.
type Processor struct {
	pdf       *PDFExtractor
	image     *ImageExtractor
	web       *WebExtractor
	chunker   *Chunker
	relevance *RelevanceFilter

	concurrency int
	metrics     *monitoring.Metrics
	logger      *slog.Logger
}

// NewProcessor wires the pipeline from configuration. ocr may be nil when
// no OCR binary is available; PDF ingestion then covers text pages only and
// image ingestion fails per file.
func NewProcessor(cfg *config.Config, ocr OCR, metrics *monitoring.Metrics) *Processor {
	return &Processor{
		pdf:         NewPDFExtractor(cfg.MinPageText, cfg.RenderDPI, ocr),
		image:       NewImageExtractor(ocr),
		web:         NewWebExtractor(cfg.RequestTimeout, cfg.MaxRetries, cfg.FetchesPerSecond),
		chunker:     NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		relevance:   NewRelevanceFilter(cfg.DomainTopics, cfg.DomainKeywords),
		concurrency: maxInt(cfg.IngestConcurrency, 1),
		metrics:     metrics,
		logger:      slog.Default().With("component", "ingest"),
	}
}

// ProcessPDF extracts and chunks one PDF file. An empty record set is a
// valid outcome for a document OCR could not read.
func (p *Processor) ProcessPDF(ctx context.Context, path string) ([]Record, error) {
	text, err := p.pdf.Extract(ctx, path)
	if err != nil {
		p.countDocument(SourceTypePDF, "failed")
		return nil, err
	}
	records := p.makeRecords(text, path, SourceTypePDF, filepath.Base(path))
	p.countDocument(SourceTypePDF, "processed")
	return records, nil
}

// ProcessImage extracts and chunks one image file.
func (p *Processor) ProcessImage(ctx context.Context, path string) ([]Record, error) {
	text, err := p.image.Extract(ctx, path)
	if err != nil {
		p.countDocument(SourceTypeImage, "failed")
		return nil, err
	}
	records := p.makeRecords(text, path, SourceTypeImage, filepath.Base(path))
	p.countDocument(SourceTypeImage, "processed")
	return records, nil
}

// ProcessURL fetches and chunks one web page.
func (p *Processor) ProcessURL(ctx context.Context, url string) ([]Record, error) {
	text, title, err := p.web.Extract(ctx, url)
	if err != nil {
		p.countDocument(SourceTypeWeb, "failed")
		return nil, err
	}
	if !p.relevance.IsDomainRelevant(text) {
		p.logger.Warn("page content does not appear domain relevant", "url", url)
	}
	records := p.makeRecords(text, url, SourceTypeWeb, title)
	p.countDocument(SourceTypeWeb, "processed")
	return records, nil
}

// ProcessFile routes a local file by extension.
func (p *Processor) ProcessFile(ctx context.Context, path string) ([]Record, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case pdfExtensions[ext]:
		return p.ProcessPDF(ctx, path)
	case imageExtensions[ext]:
		return p.ProcessImage(ctx, path)
	default:
		return nil, nil
	}
}

// ProcessDirectory walks a directory tree and ingests every supported file
// with bounded concurrency. Each file is processed independently; failures
// are counted, logged and skipped.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) ([]Record, *IngestResult, error) {
	start := time.Now()
	result := &IngestResult{}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.logger.Warn("cannot access path, skipping", "path", path, "error", err)
			result.FilesFailed++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !pdfExtensions[ext] && !imageExtensions[ext] {
			result.FilesSkipped++
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var mu sync.Mutex
	var all []Record

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, path := range paths {
		g.Go(func() error {
			records, err := p.ProcessFile(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Error("failed to process file", "file", path, "error", err)
				p.countExtractionFailure()
				result.FilesFailed++
				return nil // partial-failure policy: keep going
			}
			result.FilesAdded++
			result.Chunks += len(records)
			all = append(all, records...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	result.Duration = time.Since(start)
	p.logger.Info("directory ingestion finished",
		"dir", dir,
		"added", result.FilesAdded,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"chunks", result.Chunks,
		"duration", result.Duration,
	)
	return all, result, nil
}

// makeRecords chunks extracted text and tags each chunk independently with
// domain relevance. Chunk indices increase monotonically within the source.
func (p *Processor) makeRecords(text, source string, sourceType SourceType, title string) []Record {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunks := p.chunker.Split(text)
	records := make([]Record, 0, len(chunks))
	for i, chunk := range chunks {
		records = append(records, Record{
			ID:             newRecordID(),
			Content:        chunk,
			Source:         source,
			SourceType:     sourceType,
			ChunkIndex:     i,
			Title:          title,
			DomainRelevant: p.relevance.IsDomainRelevant(chunk),
		})
	}
	if p.metrics != nil {
		p.metrics.ChunksProduced.Add(float64(len(records)))
	}
	return records
}

// Relevance exposes the filter for callers that tag ad-hoc text.
func (p *Processor) Relevance() *RelevanceFilter {
	return p.relevance
}

func (p *Processor) countDocument(st SourceType, status string) {
	if p.metrics != nil {
		p.metrics.DocumentsProcessed.WithLabelValues(string(st), status).Inc()
	}
}

func (p *Processor) countExtractionFailure() {
	if p.metrics != nil {
		p.metrics.ExtractionFailures.Inc()
	}
}
