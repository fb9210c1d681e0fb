package indexmanager

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
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

func newTestManager(t *testing.T) (*Manager, storage.Storage) {
	t.Helper()
	st, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return New(st, fakeEmbedder{}), st
}

func seedFAQ(t *testing.T, st storage.Storage, pid, id, q, a string) {
	t.Helper()
	faq := domain.NewFAQ(id, pid, q, a, domain.SourceManual, time.Now().UTC())
	_, err := st.PutFAQ(context.Background(), pid, faq)
	require.NoError(t, err)
}

func TestRebuildNowPublishesFirstVersion(t *testing.T) {
	m, st := newTestManager(t)
	seedFAQ(t, st, "proj-1", "faq-1", "What does ASPCA stand for?", "American Society for the Prevention of Cruelty to Animals.")

	state, err := m.RebuildNow(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.CurrentVersion)
	assert.Empty(t, state.LastError)

	snap, err := m.Snapshot("proj-1")
	require.NoError(t, err)
	defer snap.Release()
	assert.Equal(t, uint64(1), snap.Version())
	require.NotNil(t, snap.Artifacts().Basic)
}

func TestMarkDirtyCoalescesIntoOneFollowUpBuild(t *testing.T) {
	m, st := newTestManager(t)
	seedFAQ(t, st, "proj-1", "faq-1", "Q1", "A1")

	_, err := m.RebuildNow(context.Background(), "proj-1")
	require.NoError(t, err)

	seedFAQ(t, st, "proj-1", "faq-2", "Q2", "A2")
	seedFAQ(t, st, "proj-1", "faq-3", "Q3", "A3")
	m.MarkDirty("proj-1")
	m.MarkDirty("proj-1")

	state, err := m.RebuildNow(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, state.CurrentVersion, uint64(2))

	snap, err := m.Snapshot("proj-1")
	require.NoError(t, err)
	defer snap.Release()
	hits := snap.Artifacts().Basic.Search("Q2")
	require.NotEmpty(t, hits)
}

func TestChangeDetectionSkipKeepsSameVersion(t *testing.T) {
	m, st := newTestManager(t)
	seedFAQ(t, st, "proj-1", "faq-1", "Q1", "A1")

	state, err := m.RebuildNow(context.Background(), "proj-1")
	require.NoError(t, err)
	firstVersion := state.CurrentVersion

	// mark_dirty with no underlying content change should settle back on
	// the same current_version rather than minting a new one.
	state, err = m.RebuildNow(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, firstVersion, state.CurrentVersion)
}

func TestSnapshotWithoutPublishedVersionIsNotFound(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Snapshot("no-such-project")
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))
}

func TestSnapshotPinsArtifactsAcrossRepublish(t *testing.T) {
	m, st := newTestManager(t)
	seedFAQ(t, st, "proj-1", "faq-1", "Q1", "A1")
	_, err := m.RebuildNow(context.Background(), "proj-1")
	require.NoError(t, err)

	snap, err := m.Snapshot("proj-1")
	require.NoError(t, err)

	seedFAQ(t, st, "proj-1", "faq-2", "Q2", "A2")
	_, err = m.RebuildNow(context.Background(), "proj-1")
	require.NoError(t, err)

	// the pinned snapshot still reflects the version it was taken from.
	assert.Equal(t, uint64(1), snap.Version())
	assert.Empty(t, snap.Artifacts().Basic.Search("Q2"))

	snap.Release()

	latest, err := m.Snapshot("proj-1")
	require.NoError(t, err)
	defer latest.Release()
	assert.Equal(t, uint64(2), latest.Version())
}

func TestStatusReportsBuildFailure(t *testing.T) {
	m := New(failingStorage{}, fakeEmbedder{})
	_, err := m.RebuildNow(context.Background(), "proj-1")
	require.Error(t, err)
	assert.Equal(t, domain.KindBuildFailure, domain.Kind(err))

	state := m.Status("proj-1")
	assert.NotEmpty(t, state.LastError)
}

// failingStorage always errors on ListFAQs so a build can be forced to fail
// without needing an unreachable backend.
type failingStorage struct{ storage.Storage }

func (failingStorage) ListFAQs(ctx context.Context, projectID string) ([]*domain.FAQ, error) {
	return nil, assertErr
}

var assertErr = domain.NewDomainError(domain.KindInternal, "forced failure")
