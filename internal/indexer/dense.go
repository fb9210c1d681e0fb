package indexer

import (
	"context"
	"math"
	"sort"
)

// DenseIndex is a set of (id, embedding-vector) pairs searched by brute-force
// cosine similarity. No approximate-nearest-neighbor library is available
// anywhere in the retrieved example pack (see DESIGN.md), so a flat scan is
// the structure this repository builds; it is adequate at the per-project
// scale this system targets.
type DenseIndex struct {
	dimension int
	vectors   [][]float32
	records   []Record
}

func buildDenseIndex(ctx context.Context, records []Record, embedder Embedder) (*DenseIndex, error) {
	idx := &DenseIndex{records: make([]Record, 0, len(records)), vectors: make([][]float32, 0, len(records))}

	for _, r := range records {
		vec, err := embedder.Embed(ctx, r.searchText())
		if err != nil {
			return nil, err
		}
		normalize(vec)
		if idx.dimension == 0 {
			idx.dimension = len(vec)
		}
		idx.records = append(idx.records, r)
		idx.vectors = append(idx.vectors, vec)
	}
	return idx, nil
}

// DenseHit is one cosine-similarity-scored result.
type DenseHit struct {
	Record Record
	Score  float64
}

// Search returns the topN records by cosine similarity to the (already
// embedded) query vector.
func (d *DenseIndex) Search(queryVec []float32, topN int) []DenseHit {
	if topN <= 0 {
		topN = 5
	}
	normalize(queryVec)

	scores := make([]float64, len(d.vectors))
	for i, v := range d.vectors {
		scores[i] = cosine(v, queryVec)
	}

	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.Slice(idxs, func(i, j int) bool { return scores[idxs[i]] > scores[idxs[j]] })

	if topN > len(idxs) {
		topN = len(idxs)
	}
	hits := make([]DenseHit, 0, topN)
	for i := 0; i < topN; i++ {
		j := idxs[i]
		hits = append(hits, DenseHit{Record: d.records[j], Score: scores[j]})
	}
	return hits
}

// Records returns the record set this index was built over, in build order.
func (d *DenseIndex) Records() []Record {
	return d.records
}

// VectorFor returns the stored (already-normalized) embedding for id, if
// present. Used by IndexManager to write dense vectors through to an
// EmbeddingIndex-capable Storage backend without re-embedding.
func (d *DenseIndex) VectorFor(id string) ([]float32, bool) {
	for i, r := range d.records {
		if r.ID == id {
			return d.vectors[i], true
		}
	}
	return nil, false
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
