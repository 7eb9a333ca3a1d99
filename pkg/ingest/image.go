package ingest

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for the formats the pipeline accepts
	_ "image/png"
	"log/slog"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	hrerrors "hamrag/pkg/errors"
)

// ImageExtractor runs OCR over standalone images (scanned schematics,
// diagrams, photographed pages) and enriches the result with mined
// technical values.
type ImageExtractor struct {
	ocr    OCR
	logger *slog.Logger
}

// NewImageExtractor creates an image extractor backed by the given OCR
// collaborator.
func NewImageExtractor(ocr OCR) *ImageExtractor {
	return &ImageExtractor{
		ocr:    ocr,
		logger: slog.Default().With("component", "image-extractor"),
	}
}

// Extract decodes the image, applies the diagram enhancement profile, runs
// technical-mode OCR, and appends the technical-value enrichment block to
// the raw recognized text. The raw text is always kept; the block only
// augments it.
func (e *ImageExtractor) Extract(ctx context.Context, path string) (string, error) {
	if e.ocr == nil {
		return "", hrerrors.NewExtractionError("extract_image", path, "no OCR configured", nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", hrerrors.NewExtractionError("extract_image", path, "cannot open image", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return "", hrerrors.NewExtractionError("extract_image", path, "cannot decode image", err)
	}
	e.logger.Debug("decoded image", "file", path, "format", format)

	enhanced := EnhanceForDiagram(img)
	text, err := e.ocr.RecognizeTechnical(ctx, enhanced)
	if err != nil {
		return "", err
	}

	technical := ExtractTechnicalValues(text)
	return fmt.Sprintf("Image Analysis:\n%s\n\nTechnical Information:\n%s", text, technical), nil
}
