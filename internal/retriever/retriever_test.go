package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/indexer"
	"github.com/cloo-solutions/kbcore/internal/indexmanager"
	"github.com/cloo-solutions/kbcore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 8)
	for i, r := range text {
		v[i%8] += float32(r % 7)
	}
	return v, nil
}

func newTestSetup(t *testing.T) (*Retriever, *indexmanager.Manager, storage.Storage) {
	t.Helper()
	st, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	mgr := indexmanager.New(st, fakeEmbedder{})
	r := New(mgr, fakeEmbedder{}, st)
	return r, mgr, st
}

func seedFAQ(t *testing.T, st storage.Storage, pid, id, q, a string) {
	t.Helper()
	faq := domain.NewFAQ(id, pid, q, a, domain.SourceManual, time.Now().UTC())
	_, err := st.PutFAQ(context.Background(), pid, faq)
	require.NoError(t, err)
}

func seedKBChunk(t *testing.T, st storage.Storage, pid, id, title, content, parent string, chunkIndex int) {
	t.Helper()
	kb := domain.NewKB(id, pid, title, content, domain.SourceManual, chunkIndex, time.Now().UTC())
	kb.ParentDocumentID = parent
	_, err := st.PutKB(context.Background(), pid, kb)
	require.NoError(t, err)
}

func TestRetrieveFallsBackToBasicWhenNoIndexPublished(t *testing.T) {
	r, _, st := newTestSetup(t)
	seedFAQ(t, st, "proj-1", "faq-1", "What does ASPCA stand for?", "American Society for the Prevention of Cruelty to Animals.")

	sources, err := r.Retrieve(context.Background(), "proj-1", "ASPCA", 5)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "faq-1", sources[0].ID)
}

func TestRetrieveUsesPublishedSnapshot(t *testing.T) {
	r, mgr, st := newTestSetup(t)
	seedFAQ(t, st, "proj-1", "faq-1", "What is the refund policy?", "Refunds are processed within 5 business days.")
	seedFAQ(t, st, "proj-1", "faq-2", "How do I reset my password?", "Use the forgot-password link on the login page.")

	_, err := mgr.RebuildNow(context.Background(), "proj-1")
	require.NoError(t, err)

	sources, err := r.Retrieve(context.Background(), "proj-1", "refund policy", 5)
	require.NoError(t, err)
	require.NotEmpty(t, sources)
	assert.Equal(t, "faq-1", sources[0].ID)
}

func TestRetrieveDedupsChunksByParentDocument(t *testing.T) {
	r, mgr, st := newTestSetup(t)
	seedKBChunk(t, st, "proj-1", "kb-1", "Onboarding Guide", "Step one: create your account and verify your email.", "doc-1", 0)
	seedKBChunk(t, st, "proj-1", "kb-2", "Onboarding Guide", "Step two: invite your team members to the workspace.", "doc-1", 1)

	_, err := mgr.RebuildNow(context.Background(), "proj-1")
	require.NoError(t, err)

	sources, err := r.Retrieve(context.Background(), "proj-1", "account email team workspace", 5)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestRetrieveFloorExcludesWeakMatches(t *testing.T) {
	r, mgr, st := newTestSetup(t)
	seedFAQ(t, st, "proj-1", "faq-1", "Unrelated question", "Unrelated answer with no overlap.")

	_, err := mgr.RebuildNow(context.Background(), "proj-1")
	require.NoError(t, err)

	sources, err := r.Retrieve(context.Background(), "proj-1", "completely different query terms", 5)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestFuseTieBreaksByChunkIndexThenID(t *testing.T) {
	// Each entry is rank 0 of its own list, so both fuse to 1/61 and tie.
	lists := [][]rankedEntry{
		{{record: indexer.Record{ID: "b", ChunkIndex: 1}, score: 1}},
		{{record: indexer.Record{ID: "a", ChunkIndex: 0}, score: 1}},
	}
	fused := fuse(lists)
	sortFused(fused)
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].record.ID)
	assert.Equal(t, "b", fused[1].record.ID)
}

func TestFuseAccumulatesScoreAcrossLists(t *testing.T) {
	lists := [][]rankedEntry{
		{{record: indexer.Record{ID: "x"}, score: 0.9}},
		{{record: indexer.Record{ID: "x"}, score: 0.5}},
	}
	fused := fuse(lists)
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/61.0+1.0/61.0, fused[0].fused, 1e-9)
}

func TestFuseTracksBestPerListScoreSeparatelyFromFused(t *testing.T) {
	lists := [][]rankedEntry{
		{{record: indexer.Record{ID: "x"}, score: 0.9}},
		{{record: indexer.Record{ID: "x"}, score: 0.5}},
	}
	fused := fuse(lists)
	require.Len(t, fused, 1)
	assert.Equal(t, 0.9, fused[0].score)
	assert.NotEqual(t, fused[0].score, fused[0].fused)
}

func TestToSourceDisplaysBestIndividualScoreNotFused(t *testing.T) {
	r, _, _ := newTestSetup(t)
	c := candidate{
		record: indexer.Record{ID: "kb-1", Kind: indexer.KindKB, Title: "t", Body: "b"},
		fused:  1.0/61.0 + 1.0/62.0,
		score:  0.87,
	}
	src := r.toSource(context.Background(), "proj-1", c)
	assert.Equal(t, 0.87, src.Score)
}

func TestSnippetTruncatesLongContent(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "word "
	}
	s := snippet(long)
	assert.LessOrEqual(t, len(s), defaultSnippetMax)
	assert.Contains(t, s, "...")
}
