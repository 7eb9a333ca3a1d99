package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	hrerrors "hamrag/pkg/errors"
)

// OCR turns an image into plain text. It is an external collaborator: the
// pipeline only depends on this interface.
type OCR interface {
	// Recognize extracts text from the image. An empty string with a nil
	// error is a valid outcome (nothing readable in the image).
	Recognize(ctx context.Context, img image.Image) (string, error)

	// RecognizeTechnical extracts text using a configuration tuned for
	// schematics: restricted character set, uniform-block segmentation.
	RecognizeTechnical(ctx context.Context, img image.Image) (string, error)
}

// technicalWhitelist limits recognition on diagrams to characters that
// appear in component designators and value annotations.
const technicalWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.,()[]{}+-=*/:;"

// TesseractOCR shells out to the tesseract binary. Each invocation writes
// the image to a temp file and reads recognized text from stdout.
type TesseractOCR struct {
	binaryPath string
}

// NewTesseractOCR verifies the binary exists and returns the client.
// Missing binaries are a configuration failure, reported at startup rather
// than on first use.
func NewTesseractOCR(binaryPath string) (*TesseractOCR, error) {
	if binaryPath == "" {
		return nil, hrerrors.NewConfigurationError("TESSERACT_PATH", "no OCR binary configured")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, hrerrors.NewConfigurationError("TESSERACT_PATH",
			fmt.Sprintf("OCR binary not found at %s", binaryPath))
	}
	return &TesseractOCR{binaryPath: binaryPath}, nil
}

// Recognize runs tesseract with uniform-block page segmentation, the mode
// that works best on re-rendered document pages.
func (t *TesseractOCR) Recognize(ctx context.Context, img image.Image) (string, error) {
	return t.run(ctx, img, "--psm", "6")
}

// RecognizeTechnical additionally restricts the character set.
func (t *TesseractOCR) RecognizeTechnical(ctx context.Context, img image.Image) (string, error) {
	return t.run(ctx, img, "--psm", "6", "-c", "tessedit_char_whitelist="+technicalWhitelist)
}

func (t *TesseractOCR) run(ctx context.Context, img image.Image, args ...string) (string, error) {
	tmp, err := os.CreateTemp("", "hamrag-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp image: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to flush temp image: %w", err)
	}

	// "stdout" as the output base makes tesseract print recognized text
	// instead of writing a sidecar file.
	cmdArgs := append([]string{tmpPath, "stdout"}, args...)
	cmd := exec.CommandContext(ctx, t.binaryPath, cmdArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", hrerrors.NewExtractionError("ocr", filepath.Base(tmpPath),
			strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}
