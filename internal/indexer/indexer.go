// Package indexer builds dense, sparse, and basic search artifacts over a
// project's current record set. The Indexer is pure: given identical input
// records and identical embedder outputs it produces byte-identical
// artifacts (up to deterministic serialization), enabling
// record_fingerprint-based skip in internal/indexmanager.
package indexer

import (
	"context"
	"sort"

	"github.com/cloo-solutions/kbcore/internal/identity"
)

// RecordKind distinguishes FAQ from KB sources in a fused result.
type RecordKind string

const (
	KindFAQ RecordKind = "faq"
	KindKB  RecordKind = "kb"
)

// Record is the Indexer's view of one indexable unit: a FAQ or a single KB
// chunk. Title+Body form the basic substring search text; ChunkIndex and
// ParentDocumentID drive the Retriever's chunk-to-document dedup.
type Record struct {
	ID               string
	Kind             RecordKind
	Title            string
	Body             string
	ChunkIndex       int
	ParentDocumentID string
	AttachmentID     string
}

func (r Record) searchText() string {
	return r.Title + "\n" + r.Body
}

// Embedder maps text to a fixed-dimension vector. Unavailability must not
// fail the build: the dense artifact is simply absent.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Artifacts bundles the three search artifacts produced for one build.
// Dense and Sparse are optional; Basic is always present.
type Artifacts struct {
	Dense             *DenseIndex  // nil if unavailable
	Sparse            *SparseIndex // nil if unavailable
	Basic             *BasicIndex
	RecordFingerprint string
}

// Build produces Artifacts for the given ordered record set. embedder may be
// nil, in which case the dense artifact is omitted.
func Build(ctx context.Context, records []Record, embedder Embedder) (Artifacts, error) {
	basic := buildBasicIndex(records)
	sparse := buildSparseIndex(records)

	var dense *DenseIndex
	if embedder != nil {
		d, err := buildDenseIndex(ctx, records, embedder)
		if err == nil {
			dense = d
		}
		// embedder failure degrades gracefully: dense stays nil, build does
		// not fail.
	}

	fp := fingerprint(records)

	return Artifacts{Dense: dense, Sparse: sparse, Basic: basic, RecordFingerprint: fp}, nil
}

// fingerprint computes record_fingerprint: a content-hash over the ordered
// (id, content-hash) pairs of all indexable records.
func fingerprint(records []Record) string {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	pairs := make([][2]string, len(sorted))
	for i, r := range sorted {
		pairs[i] = [2]string{r.ID, identity.ContentHash(r.searchText())}
	}
	return identity.Fingerprint(pairs)
}
