// Package retriever implements the hybrid dense+sparse+basic search ladder
// (C6): it reads an IndexManager snapshot, queries whichever artifacts are
// present, fuses the result lists by reciprocal rank, and degrades
// gracefully when an artifact is unavailable.
package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/indexer"
	"github.com/cloo-solutions/kbcore/internal/indexmanager"
	"github.com/cloo-solutions/kbcore/internal/storage"
)

const (
	rrfK = 60
	// defaultFloor filters out fused candidates ranked below what a single
	// list's 60th-place entry would score; below this, a hit is noise.
	defaultFloor      = 1.0 / 120.0
	defaultSnippetMax = 220
)

// Source is one retrieval hit surfaced to the QueryOrchestrator.
type Source struct {
	ID            string
	Kind          indexer.RecordKind
	Title         string
	Excerpt       string
	Score         float64
	AttachmentURL string
}

// Retriever is the process-singleton C6 component.
type Retriever struct {
	manager  *indexmanager.Manager
	embedder indexer.Embedder
	store    storage.Storage
	floor    float64
}

// New creates a Retriever. embedder may be nil, in which case dense search
// is never attempted even if a dense artifact happens to be present.
func New(manager *indexmanager.Manager, embedder indexer.Embedder, store storage.Storage) *Retriever {
	return &Retriever{manager: manager, embedder: embedder, store: store, floor: defaultFloor}
}

// rankedEntry is one record's position and score within a single list
// (dense, sparse, or basic), the unit fuse operates over.
type rankedEntry struct {
	record indexer.Record
	score  float64
}

// Retrieve runs the fallback ladder for one query and returns up to k
// sources, highest fused_score first.
func (r *Retriever) Retrieve(ctx context.Context, pid, query string, k int) ([]Source, error) {
	if k <= 0 {
		k = 5
	}
	candidateN := k * 4
	if candidateN < 20 {
		candidateN = 20
	}

	artifacts, release, err := r.acquireArtifacts(ctx, pid)
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}

	var lists [][]rankedEntry

	if artifacts.Dense != nil && r.embedder != nil {
		qvec, embedErr := r.embedder.Embed(ctx, query)
		if embedErr == nil {
			hits := artifacts.Dense.Search(qvec, candidateN)
			list := make([]rankedEntry, len(hits))
			for i, h := range hits {
				list[i] = rankedEntry{record: h.Record, score: h.Score}
			}
			lists = append(lists, list)
		}
	}
	if artifacts.Sparse != nil {
		hits := artifacts.Sparse.Search(query)
		if len(hits) > candidateN {
			hits = hits[:candidateN]
		}
		list := make([]rankedEntry, len(hits))
		for i, h := range hits {
			list[i] = rankedEntry{record: h.Record, score: h.Score}
		}
		lists = append(lists, list)
	}
	if artifacts.Basic != nil {
		hits := artifacts.Basic.Search(query)
		if len(hits) > candidateN {
			hits = hits[:candidateN]
		}
		list := make([]rankedEntry, len(hits))
		for i, h := range hits {
			list[i] = rankedEntry{record: h.Record, score: h.Score}
		}
		lists = append(lists, list)
	}

	fused := fuse(lists)
	deduped := dedupByParent(fused)
	sortFused(deduped)

	out := make([]Source, 0, k)
	for _, c := range deduped {
		if len(out) >= k {
			break
		}
		if c.fused < r.floor {
			continue
		}
		out = append(out, r.toSource(ctx, pid, c))
	}
	return out, nil
}

// acquireArtifacts returns the snapshot's artifacts plus a release func, or
// (for a project with no published index yet) an ephemeral basic-only
// build computed directly over current storage records, per spec.md §4.6
// step 1: "If absent (no index yet), use basic artifact only."
func (r *Retriever) acquireArtifacts(ctx context.Context, pid string) (*indexer.Artifacts, func(), error) {
	snap, err := r.manager.Snapshot(pid)
	if err == nil {
		return snap.Artifacts(), snap.Release, nil
	}
	if domain.Kind(err) != domain.KindNotFound {
		return nil, nil, err
	}

	faqs, err := r.store.ListFAQs(ctx, pid)
	if err != nil {
		return nil, nil, err
	}
	kbs, err := r.store.ListKB(ctx, pid)
	if err != nil {
		return nil, nil, err
	}
	records := make([]indexer.Record, 0, len(faqs)+len(kbs))
	for _, f := range faqs {
		records = append(records, indexer.Record{ID: f.ID, Kind: indexer.KindFAQ, Title: f.Question, Body: f.Answer})
	}
	for _, kb := range kbs {
		records = append(records, indexer.Record{
			ID: kb.ID, Kind: indexer.KindKB, Title: kb.ArticleTitle, Body: kb.Content,
			ChunkIndex: kb.ChunkIndex, ParentDocumentID: kb.ParentDocumentID, AttachmentID: kb.AttachmentID,
		})
	}
	built, err := indexer.Build(ctx, records, nil)
	if err != nil {
		return nil, nil, err
	}
	artifacts := built
	artifacts.Dense = nil
	artifacts.Sparse = nil
	return &artifacts, nil, nil
}

// candidate is one fused search result: a record plus its accumulated RRF
// score and the best individual list score it achieved (kept for display).
type candidate struct {
	record indexer.Record
	score  float64
	fused  float64
}

// fuse computes fused_score = Σ 1/(60+rank_i) over every list a candidate
// appears in (rank_i is 1-based position within that list), preserving the
// best individual score seen for display. Input order is preserved for
// first-seen candidates so dedup/sort stay deterministic.
func fuse(lists [][]rankedEntry) []candidate {
	byID := make(map[string]*candidate)
	order := make([]string, 0)

	for _, list := range lists {
		for rank, entry := range list {
			id := entry.record.ID
			c, ok := byID[id]
			if !ok {
				c = &candidate{record: entry.record}
				byID[id] = c
				order = append(order, id)
			}
			c.fused += 1.0 / float64(rrfK+rank+1)
			if entry.score > c.score {
				c.score = entry.score
			}
		}
	}

	out := make([]candidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// dedupByParent collapses chunks sharing a non-empty parent_document_id into
// one candidate, keeping the highest fused_score chunk's excerpt. Records
// without a parent (FAQs, single-chunk KB entries) are never merged with
// each other since each keys on its own id.
func dedupByParent(candidates []candidate) []candidate {
	key := func(c candidate) string {
		if c.record.ParentDocumentID != "" {
			return c.record.ParentDocumentID
		}
		return c.record.ID
	}

	best := make(map[string]candidate)
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		k := key(c)
		existing, ok := best[k]
		if !ok {
			best[k] = c
			order = append(order, k)
			continue
		}
		if c.fused > existing.fused {
			best[k] = c
		}
	}

	out := make([]candidate, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// sortFused applies the literal tie-break rule: fused_score desc, then
// chunk_index asc, then lexicographic id asc.
func sortFused(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.fused != b.fused {
			return a.fused > b.fused
		}
		if a.record.ChunkIndex != b.record.ChunkIndex {
			return a.record.ChunkIndex < b.record.ChunkIndex
		}
		return a.record.ID < b.record.ID
	})
}

func (r *Retriever) toSource(ctx context.Context, pid string, c candidate) Source {
	src := Source{
		ID:      c.record.ID,
		Kind:    c.record.Kind,
		Title:   c.record.Title,
		Excerpt: snippet(c.record.Body),
		Score:   c.score,
	}
	if c.record.Kind == indexer.KindKB && c.record.AttachmentID != "" {
		if provider, ok := r.store.(storage.AttachmentURLProvider); ok {
			if url, err := provider.AttachmentDownloadURL(ctx, pid, c.record.AttachmentID); err == nil {
				src.AttachmentURL = url
			}
		}
	}
	return src
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if len(clean) <= defaultSnippetMax {
		return clean
	}
	return clean[:defaultSnippetMax-3] + "..."
}
