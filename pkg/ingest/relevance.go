package ingest

import "strings"

// relevanceThreshold is the combined vocabulary match count at which a text
// fragment counts as domain relevant.
const relevanceThreshold = 2

// RelevanceFilter tags text fragments that match the configured topical
// vocabulary. It only ever annotates: nothing is dropped based on its
// verdict at ingestion time.
type RelevanceFilter struct {
	topics   []string
	keywords []string
}

// NewRelevanceFilter creates a filter over the given vocabularies. Terms
// are matched case-insensitively as substrings.
func NewRelevanceFilter(topics, keywords []string) *RelevanceFilter {
	return &RelevanceFilter{
		topics:   lowercaseAll(topics),
		keywords: lowercaseAll(keywords),
	}
}

// IsDomainRelevant reports whether the text mentions at least two distinct
// vocabulary terms. Pure function of its input: the same text always
// produces the same verdict.
func (rf *RelevanceFilter) IsDomainRelevant(text string) bool {
	lower := strings.ToLower(text)

	matches := 0
	for _, topic := range rf.topics {
		if strings.Contains(lower, topic) {
			matches++
			if matches >= relevanceThreshold {
				return true
			}
		}
	}
	for _, keyword := range rf.keywords {
		if strings.Contains(lower, keyword) {
			matches++
			if matches >= relevanceThreshold {
				return true
			}
		}
	}
	return false
}

func lowercaseAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
