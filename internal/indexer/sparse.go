package indexer

import (
	"math"
	"sort"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// SparseIndex is an inverted index over whitespace-tokenized, lower-cased,
// stop-word-filtered terms, with term-frequency/document-frequency
// statistics suitable for BM25-style scoring.
type SparseIndex struct {
	postings  map[string][]posting // term -> postings, sorted by record index
	docLen    []int                // tokens per record, by record index
	avgDocLen float64
	records   []Record
	df        map[string]int // document frequency per term
}

type posting struct {
	recordIdx int
	tf        int
}

func buildSparseIndex(records []Record) *SparseIndex {
	idx := &SparseIndex{
		postings: make(map[string][]posting),
		docLen:   make([]int, len(records)),
		records:  records,
		df:       make(map[string]int),
	}

	total := 0
	for i, r := range records {
		tokens := tokenize(r.searchText())
		idx.docLen[i] = len(tokens)
		total += len(tokens)

		counts := make(map[string]int)
		for _, t := range tokens {
			counts[t]++
		}
		for term, tf := range counts {
			idx.postings[term] = append(idx.postings[term], posting{recordIdx: i, tf: tf})
			idx.df[term]++
		}
	}

	if len(records) > 0 {
		idx.avgDocLen = float64(total) / float64(len(records))
	}
	return idx
}

// SparseHit is one BM25-scored result.
type SparseHit struct {
	Record Record
	Score  float64
}

// Search returns BM25 scores for every record containing at least one
// query term.
func (s *SparseIndex) Search(query string) []SparseHit {
	terms := tokenize(query)
	if len(terms) == 0 || len(s.records) == 0 {
		return nil
	}

	n := float64(len(s.records))
	scores := make(map[int]float64)

	seen := make(map[string]struct{})
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		postingsList, ok := s.postings[term]
		if !ok {
			continue
		}
		df := float64(s.df[term])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for _, p := range postingsList {
			dl := float64(s.docLen[p.recordIdx])
			tf := float64(p.tf)
			denom := tf + bm25K1*(1-bm25B+bm25B*dl/maxf(s.avgDocLen, 1))
			scores[p.recordIdx] += idf * (tf * (bm25K1 + 1)) / denom
		}
	}

	hits := make([]SparseHit, 0, len(scores))
	for idx, score := range scores {
		hits = append(hits, SparseHit{Record: s.records[idx], Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
	return hits
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
