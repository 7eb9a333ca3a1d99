package rag

import "strings"

const promptHeader = `You are an expert technical advisor with deep knowledge of:

- RF circuit design and analysis
- Antenna theory and design
- Transmission line theory and impedance matching
- Smith Chart calculations
- Filter design (low-pass, high-pass, band-pass, notch)
- Amplifier design (Class A, B, AB, C, D, E, F)
- Oscillator circuits and frequency synthesis
- Modulation and demodulation techniques
- Microwave and millimeter-wave techniques
- EMC/EMI considerations
- Technical regulations and standards
- Low power techniques
- System design and optimization

Use the following context from technical documentation to answer the question. Be precise, technical, and include relevant formulas, component values, and design considerations when applicable.`

const promptFooter = `Provide a comprehensive technical answer that includes:
1. Direct answer to the question
2. Relevant formulas or calculations if applicable
3. Practical design considerations
4. Component recommendations when appropriate
5. References to standards or common practices
6. Safety considerations if relevant

Answer:`

// BuildPrompt assembles the domain-expert prompt from retrieved chunks.
// Chunks are stuffed in retrieval order, separated by blank lines.
func BuildPrompt(question string, hits []SearchHit) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\nContext: ")
	for i, hit := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(hit.Record.Content)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(promptFooter)
	return b.String()
}
