package indexer

import (
	"bytes"
	"encoding/gob"
)

// Artifacts are persisted to Storage as opaque bytes via these GobEncode/
// GobDecode pairs, so IndexManager can hand raw bytes to
// storage.PutIndexArtifact without the Storage package needing to know
// anything about index internals. Encoding runs over exported mirror
// structs since DenseIndex/SparseIndex/BasicIndex keep their fields
// unexported outside this package.

type denseSnapshot struct {
	Dimension int
	Vectors   [][]float32
	Records   []Record
}

func (d *DenseIndex) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	snap := denseSnapshot{Dimension: d.dimension, Vectors: d.vectors, Records: d.records}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *DenseIndex) GobDecode(data []byte) error {
	var snap denseSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	d.dimension, d.vectors, d.records = snap.Dimension, snap.Vectors, snap.Records
	return nil
}

// EncodeDenseIndex serializes a DenseIndex for storage.PutIndexArtifact.
func EncodeDenseIndex(d *DenseIndex) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeDenseIndex reconstructs a DenseIndex from storage.GetIndexArtifact bytes.
func DecodeDenseIndex(data []byte) (*DenseIndex, error) {
	d := &DenseIndex{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(d); err != nil {
		return nil, err
	}
	return d, nil
}

// postingSnapshot mirrors posting with exported fields: gob drops
// unexported fields even within the same package.
type postingSnapshot struct {
	RecordIdx int
	TF        int
}

type sparseSnapshot struct {
	Postings  map[string][]postingSnapshot
	DocLen    []int
	AvgDocLen float64
	Records   []Record
	DF        map[string]int
}

func (s *SparseIndex) GobEncode() ([]byte, error) {
	postings := make(map[string][]postingSnapshot, len(s.postings))
	for term, ps := range s.postings {
		out := make([]postingSnapshot, len(ps))
		for i, p := range ps {
			out[i] = postingSnapshot{RecordIdx: p.recordIdx, TF: p.tf}
		}
		postings[term] = out
	}

	var buf bytes.Buffer
	snap := sparseSnapshot{Postings: postings, DocLen: s.docLen, AvgDocLen: s.avgDocLen, Records: s.records, DF: s.df}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *SparseIndex) GobDecode(data []byte) error {
	var snap sparseSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}

	postings := make(map[string][]posting, len(snap.Postings))
	for term, ps := range snap.Postings {
		out := make([]posting, len(ps))
		for i, p := range ps {
			out[i] = posting{recordIdx: p.RecordIdx, tf: p.TF}
		}
		postings[term] = out
	}

	s.postings, s.docLen, s.avgDocLen, s.records, s.df = postings, snap.DocLen, snap.AvgDocLen, snap.Records, snap.DF
	return nil
}

// EncodeSparseIndex serializes a SparseIndex for storage.PutIndexArtifact.
func EncodeSparseIndex(s *SparseIndex) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSparseIndex reconstructs a SparseIndex from storage.GetIndexArtifact bytes.
func DecodeSparseIndex(data []byte) (*SparseIndex, error) {
	s := &SparseIndex{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(s); err != nil {
		return nil, err
	}
	return s, nil
}

// basicEntrySnapshot mirrors basicEntry with exported fields.
type basicEntrySnapshot struct {
	Record Record
	Lower  string
}

type basicSnapshot struct {
	Entries []basicEntrySnapshot
}

func (b *BasicIndex) GobEncode() ([]byte, error) {
	entries := make([]basicEntrySnapshot, len(b.entries))
	for i, e := range b.entries {
		entries[i] = basicEntrySnapshot{Record: e.record, Lower: e.lower}
	}

	var buf bytes.Buffer
	snap := basicSnapshot{Entries: entries}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *BasicIndex) GobDecode(data []byte) error {
	var snap basicSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}

	entries := make([]basicEntry, len(snap.Entries))
	for i, e := range snap.Entries {
		entries[i] = basicEntry{record: e.Record, lower: e.Lower}
	}
	b.entries = entries
	return nil
}

// EncodeBasicIndex serializes a BasicIndex for storage.PutIndexArtifact.
func EncodeBasicIndex(b *BasicIndex) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBasicIndex reconstructs a BasicIndex from storage.GetIndexArtifact bytes.
func DecodeBasicIndex(data []byte) (*BasicIndex, error) {
	b := &BasicIndex{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(b); err != nil {
		return nil, err
	}
	return b, nil
}
