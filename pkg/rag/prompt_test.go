package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"hamrag/pkg/ingest"
)

func TestBuildPromptStuffsContextInOrder(t *testing.T) {
	hits := []SearchHit{
		{Record: ingest.Record{Content: "first chunk about baluns"}},
		{Record: ingest.Record{Content: "second chunk about chokes"}},
	}
	prompt := BuildPrompt("how do I feed a dipole?", hits)

	assert.Contains(t, prompt, "expert technical advisor")
	assert.Contains(t, prompt, "Question: how do I feed a dipole?")
	assert.Contains(t, prompt, "Answer:")

	first := strings.Index(prompt, "first chunk about baluns")
	second := strings.Index(prompt, "second chunk about chokes")
	assert.Greater(t, first, -1)
	assert.Greater(t, second, first, "chunks keep retrieval order")

	question := strings.Index(prompt, "Question:")
	assert.Greater(t, question, second, "context precedes the question")
}

func TestBuildPromptNoContext(t *testing.T) {
	prompt := BuildPrompt("what is vswr?", nil)
	assert.Contains(t, prompt, "Context:")
	assert.Contains(t, prompt, "Question: what is vswr?")
}
