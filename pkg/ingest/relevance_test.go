package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testFilter() *RelevanceFilter {
	return NewRelevanceFilter(
		[]string{"antenna design", "impedance matching", "filters"},
		[]string{"vswr", "ham radio", "qrp"},
	)
}

func TestIsDomainRelevantThreshold(t *testing.T) {
	rf := testFilter()

	// Two matches across either vocabulary pass.
	assert.True(t, rf.IsDomainRelevant("Antenna design requires good impedance matching."))
	assert.True(t, rf.IsDomainRelevant("check the VSWR on your ham radio rig"))
	assert.True(t, rf.IsDomainRelevant("filters and vswr"))

	// A single match does not.
	assert.False(t, rf.IsDomainRelevant("this text only mentions antenna design once"))
	assert.False(t, rf.IsDomainRelevant("a recipe for sourdough bread"))
	assert.False(t, rf.IsDomainRelevant(""))
}

func TestIsDomainRelevantCaseInsensitive(t *testing.T) {
	rf := testFilter()
	assert.True(t, rf.IsDomainRelevant("ANTENNA DESIGN and Impedance Matching"))
}

func TestIsDomainRelevantPure(t *testing.T) {
	rf := testFilter()
	input := "QRP operation demands efficient antenna design."
	first := rf.IsDomainRelevant(input)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, rf.IsDomainRelevant(input))
	}
}

func TestAddingKeywordsIsMonotonic(t *testing.T) {
	input := "morse code keyers and cw paddles for contest operation"

	small := NewRelevanceFilter([]string{"antenna design"}, []string{"cw"})
	grown := NewRelevanceFilter([]string{"antenna design"}, []string{"cw", "contest", "keyer"})

	// Growing the vocabulary may flip false to true, never true to false.
	assert.False(t, small.IsDomainRelevant(input))
	assert.True(t, grown.IsDomainRelevant(input))

	relevant := "cw contest logs"
	assert.True(t, grown.IsDomainRelevant(relevant))
	assert.True(t, NewRelevanceFilter([]string{"antenna design"},
		[]string{"cw", "contest", "keyer", "paddle"}).IsDomainRelevant(relevant))
}
