package ingest

import (
	"strings"
)

// separators, in decreasing granularity. The chunker prefers to cut at the
// largest boundary available inside the window before falling back to a
// hard cut.
var chunkSeparators = []string{"\n\n", "\n", " "}

// Chunker splits extracted text into overlapping sliding windows with
// deterministic boundaries. Sizes are measured in runes so multi-byte
// characters are never split.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap.
// Callers validate size > overlap > 0 at configuration time.
func NewChunker(size, overlap int) *Chunker {
	return &Chunker{size: size, overlap: overlap}
}

// Split cuts text into windows of at most the configured size where each
// window starts overlap runes before the previous window's end. Windows
// are contiguous substrings of the input, so concatenating each chunk's
// unique (non-overlap) span reconstructs the input exactly.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		end = c.cutPoint(runes, start, end)
		chunks = append(chunks, string(runes[start:end]))

		// The next window begins inside the previous one. end-start is
		// always greater than overlap (cutPoint guarantees it), so the
		// start strictly advances.
		start = end - c.overlap
	}
	return chunks
}

// cutPoint picks the boundary for the window [start, limit). It prefers the
// last paragraph break in the window, then the last line break, then the
// last space, and finally a hard cut at the limit. A boundary is only
// usable if it leaves the chunk longer than the overlap, otherwise the
// window could stop advancing.
func (c *Chunker) cutPoint(runes []rune, start, limit int) int {
	window := string(runes[start:limit])
	minCut := c.overlap + 1

	for _, sep := range chunkSeparators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		// Cut after the separator so it stays attached to the earlier chunk.
		cut := len([]rune(window[:idx])) + len([]rune(sep))
		if cut >= minCut {
			return start + cut
		}
	}
	return limit
}

// Reassemble is the inverse of Split: it concatenates the unique spans of
// consecutive chunks (dropping each chunk's leading overlap after the
// first). Used by tests to verify the no-loss invariant; exported because
// diagnostic tooling reuses it.
func (c *Chunker) Reassemble(chunks []string) string {
	var b strings.Builder
	for i, chunk := range chunks {
		runes := []rune(chunk)
		if i == 0 {
			b.WriteString(chunk)
			continue
		}
		if len(runes) <= c.overlap {
			// Final chunk shorter than the overlap: fully contained in the
			// previous chunk's tail, contributes nothing new.
			continue
		}
		b.WriteString(string(runes[c.overlap:]))
	}
	return b.String()
}
