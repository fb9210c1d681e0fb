package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	// deterministic hash-ish embedding for tests
	v := make([]float32, 8)
	for i, r := range text {
		v[i%8] += float32(r % 7)
	}
	return v, nil
}

func sampleRecords() []Record {
	return []Record{
		{ID: "1", Kind: KindFAQ, Title: "ASPCA", Body: "What does ASPCA stand for? American Society for the Prevention of Cruelty to Animals."},
		{ID: "2", Kind: KindKB, Title: "Hours", Body: "We are open from nine to five on weekdays."},
	}
}

func TestBuildAlwaysProducesBasic(t *testing.T) {
	artifacts, err := Build(context.Background(), sampleRecords(), nil)
	require.NoError(t, err)
	assert.NotNil(t, artifacts.Basic)
	assert.Nil(t, artifacts.Dense)
	assert.NotNil(t, artifacts.Sparse)
}

func TestBuildWithEmbedderProducesDense(t *testing.T) {
	artifacts, err := Build(context.Background(), sampleRecords(), fakeEmbedder{})
	require.NoError(t, err)
	assert.NotNil(t, artifacts.Dense)
}

func TestFingerprintStableAcrossReorder(t *testing.T) {
	recs := sampleRecords()
	a1, _ := Build(context.Background(), recs, nil)
	reordered := []Record{recs[1], recs[0]}
	a2, _ := Build(context.Background(), reordered, nil)
	assert.Equal(t, a1.RecordFingerprint, a2.RecordFingerprint)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	recs := sampleRecords()
	a1, _ := Build(context.Background(), recs, nil)
	recs[0].Body = "changed"
	a2, _ := Build(context.Background(), recs, nil)
	assert.NotEqual(t, a1.RecordFingerprint, a2.RecordFingerprint)
}

func TestBasicIndexSearchScoresByTokenCoverage(t *testing.T) {
	artifacts, _ := Build(context.Background(), sampleRecords(), nil)
	hits := artifacts.Basic.Search("ASPCA stand")
	require.NotEmpty(t, hits)
	assert.Equal(t, "1", hits[0].Record.ID)
}

func TestSparseIndexSearchRanksByBM25(t *testing.T) {
	artifacts, _ := Build(context.Background(), sampleRecords(), nil)
	hits := artifacts.Sparse.Search("ASPCA")
	require.NotEmpty(t, hits)
	assert.Equal(t, "1", hits[0].Record.ID)
}

func TestDenseIndexSearchReturnsTopN(t *testing.T) {
	artifacts, err := Build(context.Background(), sampleRecords(), fakeEmbedder{})
	require.NoError(t, err)
	qvec, _ := fakeEmbedder{}.Embed(context.Background(), "ASPCA")
	hits := artifacts.Dense.Search(qvec, 1)
	assert.Len(t, hits, 1)
}
