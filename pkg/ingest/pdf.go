package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	hrerrors "hamrag/pkg/errors"
)

// PDFExtractor extracts plain text from PDF files. Pages with embedded text
// are read natively; pages below the minimum-content threshold are treated
// as scanned images, re-rendered at the configured DPI and run through OCR
// after enhancement.
type PDFExtractor struct {
	minPageText int
	renderDPI   int
	ocr         OCR
	logger      *slog.Logger
}

// NewPDFExtractor creates a PDF extractor. ocr may be nil, in which case
// image-only pages yield no text instead of failing.
func NewPDFExtractor(minPageText, renderDPI int, ocr OCR) *PDFExtractor {
	return &PDFExtractor{
		minPageText: minPageText,
		renderDPI:   renderDPI,
		ocr:         ocr,
		logger:      slog.Default().With("component", "pdf-extractor"),
	}
}

// Extract returns the document text with `--- Page N ---` markers between
// pages so citations can name the page. Failures on individual pages are
// logged and skipped; only a file that cannot be opened at all is an error.
// A document where no page yields text returns an empty string, which the
// pipeline reports as zero records, not a failure.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", hrerrors.NewExtractionError("extract_pdf", path, "cannot open PDF", err)
	}
	defer f.Close()

	// The raster document is opened lazily: most text PDFs never need it.
	var raster *fitz.Document
	defer func() {
		if raster != nil {
			raster.Close()
		}
	}()

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text := e.nativePageText(reader, pageNum)
		if len(strings.TrimSpace(text)) < e.minPageText {
			e.logger.Info("page appears to be image-based, using OCR",
				"file", path, "page", pageNum)
			ocrText, err := e.ocrPage(ctx, &raster, path, pageNum)
			if err != nil {
				e.logger.Warn("OCR failed for page, keeping native text",
					"file", path, "page", pageNum, "error", err)
			} else {
				text = ocrText
			}
		}

		// Pages with no readable text contribute nothing, so a fully
		// unreadable document comes back empty.
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\n--- Page %d ---\n\n%s", pageNum, text)
	}
	return b.String(), nil
}

// nativePageText extracts the embedded text of one page. The parser panics
// on some malformed content streams; those pages are treated as empty so
// the OCR path can take over.
func (e *PDFExtractor) nativePageText(reader *pdf.Reader, pageNum int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("native text extraction panicked", "page", pageNum, "panic", r)
			text = ""
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		e.logger.Warn("native text extraction failed", "page", pageNum, "error", err)
		return ""
	}
	return content
}

// ocrPage rasterizes one page and recognizes it. The fitz document is
// opened on first use and reused for subsequent pages of the same file.
func (e *PDFExtractor) ocrPage(ctx context.Context, raster **fitz.Document, path string, pageNum int) (string, error) {
	if e.ocr == nil {
		return "", hrerrors.NewExtractionError("ocr_page", path, "no OCR configured", nil)
	}

	if *raster == nil {
		doc, err := fitz.New(path)
		if err != nil {
			return "", hrerrors.NewExtractionError("render_page", path, "cannot open for rendering", err)
		}
		*raster = doc
	}

	img, err := (*raster).ImageDPI(pageNum-1, float64(e.renderDPI))
	if err != nil {
		return "", hrerrors.NewExtractionError("render_page", path,
			fmt.Sprintf("cannot render page %d", pageNum), err)
	}

	enhanced := EnhanceForOCR(img, defaultAdaptiveBlock)
	return e.ocr.Recognize(ctx, enhanced)
}
