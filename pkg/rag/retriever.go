package rag

import (
	"context"
	"math"
)

// Retriever selects context chunks for a question using maximal marginal
// relevance: a wider candidate set is fetched from the index and re-ranked
// to trade query similarity against redundancy between chosen chunks.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	topK     int
	fetchK   int
	lambda   float32
}

// NewRetriever builds the retriever. lambda 0.5 weighs relevance and
// diversity equally.
func NewRetriever(embedder Embedder, index VectorIndex, topK, fetchK int) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		fetchK:   fetchK,
		lambda:   0.5,
	}
}

// Retrieve embeds the question, fetches fetchK candidates and returns the
// topK most relevant, least redundant ones.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]SearchHit, error) {
	queryVector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	candidates, err := r.index.SearchByVector(ctx, queryVector, r.fetchK)
	if err != nil {
		return nil, err
	}
	return r.rerank(queryVector, candidates), nil
}

// rerank applies the MMR selection loop. Candidates missing their stored
// vector fall back to the index score for the relevance term and never
// contribute a redundancy penalty.
func (r *Retriever) rerank(queryVector []float32, candidates []SearchHit) []SearchHit {
	if len(candidates) <= r.topK {
		return candidates
	}

	relevance := make([]float32, len(candidates))
	for i, c := range candidates {
		if len(c.Vector) > 0 {
			relevance[i] = cosineSimilarity(queryVector, c.Vector)
		} else {
			relevance[i] = c.Score
		}
	}

	selected := make([]SearchHit, 0, r.topK)
	chosen := make([]bool, len(candidates))

	for len(selected) < r.topK {
		bestIdx := -1
		bestScore := float32(math.Inf(-1))
		for i, c := range candidates {
			if chosen[i] {
				continue
			}

			var redundancy float32
			for _, s := range selected {
				if len(c.Vector) == 0 || len(s.Vector) == 0 {
					continue
				}
				if sim := cosineSimilarity(c.Vector, s.Vector); sim > redundancy {
					redundancy = sim
				}
			}

			score := r.lambda*relevance[i] - (1-r.lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		chosen[bestIdx] = true
		selected = append(selected, candidates[bestIdx])
	}
	return selected
}

// cosineSimilarity returns 0 for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
