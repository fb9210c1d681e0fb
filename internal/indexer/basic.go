package indexer

import (
	"sort"
	"strings"
)

// BasicIndex is the case-insensitive substring fallback table: for every
// record, the lowercased concatenation title + "\n" + body. It must always
// be built, regardless of which optional providers are available.
type BasicIndex struct {
	entries []basicEntry
}

type basicEntry struct {
	record Record
	lower  string
}

func buildBasicIndex(records []Record) *BasicIndex {
	entries := make([]basicEntry, len(records))
	for i, r := range records {
		entries[i] = basicEntry{record: r, lower: strings.ToLower(r.searchText())}
	}
	return &BasicIndex{entries: entries}
}

// BasicHit is one substring-match result: score is the fraction of query
// tokens found in the record's search text.
type BasicHit struct {
	Record Record
	Score  float64
}

// Search scores every record by the fraction of the (not stopword-filtered)
// query tokens that appear as a substring of the record's search text.
func (b *BasicIndex) Search(query string) []BasicHit {
	tokens := tokenizeAll(query)
	if len(tokens) == 0 {
		return nil
	}

	hits := make([]BasicHit, 0, len(b.entries))
	for _, e := range b.entries {
		matched := 0
		for _, t := range tokens {
			if strings.Contains(e.lower, t) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, BasicHit{Record: e.record, Score: float64(matched) / float64(len(tokens))})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
	return hits
}
