package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// technicalMatcher is one labeled pattern over OCR output.
type technicalMatcher struct {
	label   string
	pattern *regexp.Regexp
}

// technicalMatchers recover component designators and electrical readings
// from OCR text of schematics and diagrams. Matchers are independent; every
// match per category is kept.
var technicalMatchers = []technicalMatcher{
	{"resistors", regexp.MustCompile(`(?i)R\d+\s*[=:]?\s*(\d+\.?\d*\s*[kKmM]?Ω?)`)},
	{"capacitors", regexp.MustCompile(`(?i)C\d+\s*[=:]?\s*(\d+\.?\d*\s*[pnumμ]?F?)`)},
	{"inductors", regexp.MustCompile(`(?i)L\d+\s*[=:]?\s*(\d+\.?\d*\s*[pnumμ]?H?)`)},
	{"frequencies", regexp.MustCompile(`(?i)(\d+\.?\d*\s*[kKmMgG]?Hz)`)},
	{"voltages", regexp.MustCompile(`(?i)(\d+\.?\d*\s*[mμnpkKM]?V)`)},
	{"currents", regexp.MustCompile(`(?i)(\d+\.?\d*\s*[mμnpkKM]?A)`)},
	{"power", regexp.MustCompile(`(?i)(\d+\.?\d*\s*[mμnpkKM]?W)`)},
	{"impedance", regexp.MustCompile(`(\d+\.?\d*\s*Ω)`)},
}

// ExtractTechnicalValues mines component values, frequencies and unit
// readings from raw OCR text and renders them as a human-readable
// enrichment block. The block is appended to the raw text before chunking;
// it never replaces it.
func ExtractTechnicalValues(ocrText string) string {
	var lines []string
	for _, m := range technicalMatchers {
		groups := m.pattern.FindAllStringSubmatch(ocrText, -1)
		if len(groups) == 0 {
			continue
		}
		values := make([]string, 0, len(groups))
		for _, g := range groups {
			values = append(values, strings.TrimSpace(g[1]))
		}
		lines = append(lines, fmt.Sprintf("%s: %s", m.label, strings.Join(values, ", ")))
	}
	if len(lines) == 0 {
		return "No technical values detected"
	}
	return strings.Join(lines, "\n")
}
