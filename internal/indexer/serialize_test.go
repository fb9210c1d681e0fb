package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenseIndexEncodeDecodeRoundTrip(t *testing.T) {
	artifacts, err := Build(context.Background(), sampleRecords(), fakeEmbedder{})
	require.NoError(t, err)

	data, err := EncodeDenseIndex(artifacts.Dense)
	require.NoError(t, err)

	decoded, err := DecodeDenseIndex(data)
	require.NoError(t, err)

	qvec, _ := fakeEmbedder{}.Embed(context.Background(), "ASPCA")
	want := artifacts.Dense.Search(qvec, 1)
	got := decoded.Search(qvec, 1)
	require.Len(t, got, 1)
	assert.Equal(t, want[0].Record.ID, got[0].Record.ID)
}

func TestSparseIndexEncodeDecodeRoundTrip(t *testing.T) {
	artifacts, err := Build(context.Background(), sampleRecords(), nil)
	require.NoError(t, err)

	data, err := EncodeSparseIndex(artifacts.Sparse)
	require.NoError(t, err)

	decoded, err := DecodeSparseIndex(data)
	require.NoError(t, err)

	hits := decoded.Search("ASPCA")
	require.NotEmpty(t, hits)
	assert.Equal(t, "1", hits[0].Record.ID)
}

func TestBasicIndexEncodeDecodeRoundTrip(t *testing.T) {
	artifacts, err := Build(context.Background(), sampleRecords(), nil)
	require.NoError(t, err)

	data, err := EncodeBasicIndex(artifacts.Basic)
	require.NoError(t, err)

	decoded, err := DecodeBasicIndex(data)
	require.NoError(t, err)

	hits := decoded.Search("ASPCA stand")
	require.NotEmpty(t, hits)
	assert.Equal(t, "1", hits[0].Record.ID)
}
