package vector

import (
	"cmp"
	"slices"
)

// Rank orders hits by descending score with ties broken by ascending ID, then
// truncates to k. The input slice is sorted in place.
func Rank(hits []Hit, k int) []Hit {
	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// ScoreAll scores every document against query under metric m and returns the
// top k hits. Documents without an embedding are skipped.
func ScoreAll(m Metric, query []float32, docs []Document, k int) ([]Hit, error) {
	hits := make([]Hit, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			continue
		}
		score, err := Score(m, query, doc.Embedding)
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{
			ID:       doc.ID,
			Score:    score,
			Fields:   doc.Fields,
			Metadata: doc.Metadata,
		})
	}
	return Rank(hits, k), nil
}

// ToResults converts ranked hits into search results.
func ToResults(hits []Hit) []SearchResult {
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			ID:    h.ID,
			Score: h.Score,
			Source: Source{
				Fields:   h.Fields,
				Metadata: h.Metadata,
			},
		})
	}
	return results
}
