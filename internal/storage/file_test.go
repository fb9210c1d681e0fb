package storage

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStorage(t *testing.T) *FileStorage {
	t.Helper()
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestFileStoragePutAndListFAQs(t *testing.T) {
	s := newTestFileStorage(t)
	ctx := context.Background()
	now := time.Now()

	faq := domain.NewFAQ("faq-1", "proj-1", "What does ASPCA stand for?", "American Society for the Prevention of Cruelty to Animals.", domain.SourceManual, now)
	prior, err := s.PutFAQ(ctx, "proj-1", faq)
	require.NoError(t, err)
	assert.Nil(t, prior)

	faqs, err := s.ListFAQs(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, faqs, 1)
	assert.Equal(t, "faq-1", faqs[0].ID)
}

func TestFileStoragePutFAQUpsertReturnsPrior(t *testing.T) {
	s := newTestFileStorage(t)
	ctx := context.Background()
	now := time.Now()

	first := domain.NewFAQ("faq-1", "proj-1", "Q", "A1", domain.SourceManual, now)
	_, err := s.PutFAQ(ctx, "proj-1", first)
	require.NoError(t, err)

	second := domain.NewFAQ("faq-1", "proj-1", "Q", "A2", domain.SourceManual, now)
	prior, err := s.PutFAQ(ctx, "proj-1", second)
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, "A1", prior.Answer)

	faqs, err := s.ListFAQs(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, faqs, 1)
	assert.Equal(t, "A2", faqs[0].Answer)
}

func TestFileStorageDeleteFAQ(t *testing.T) {
	s := newTestFileStorage(t)
	ctx := context.Background()
	now := time.Now()

	faq := domain.NewFAQ("faq-1", "proj-1", "Q", "A", domain.SourceManual, now)
	_, err := s.PutFAQ(ctx, "proj-1", faq)
	require.NoError(t, err)

	removed, err := s.DeleteFAQ(ctx, "proj-1", "faq-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteFAQ(ctx, "proj-1", "faq-1")
	require.NoError(t, err)
	assert.False(t, removed)

	faqs, err := s.ListFAQs(ctx, "proj-1")
	require.NoError(t, err)
	assert.Empty(t, faqs)
}

func TestFileStorageDeleteKBReclaimsOrphanedAttachment(t *testing.T) {
	s := newTestFileStorage(t)
	ctx := context.Background()
	now := time.Now()

	attachmentID, err := s.PutAttachment(ctx, "proj-1", []byte("pdf bytes"), "application/pdf", "doc.pdf")
	require.NoError(t, err)

	kb1 := domain.NewKB("kb-1", "proj-1", "Doc", "chunk one", domain.SourceUpload, 0, now)
	kb1.AttachmentID = attachmentID
	kb1.ParentDocumentID = "doc-1"
	kb2 := domain.NewKB("kb-2", "proj-1", "Doc", "chunk two", domain.SourceUpload, 1, now)
	kb2.AttachmentID = attachmentID
	kb2.ParentDocumentID = "doc-1"

	_, err = s.PutKB(ctx, "proj-1", kb1)
	require.NoError(t, err)
	_, err = s.PutKB(ctx, "proj-1", kb2)
	require.NoError(t, err)

	removed, err := s.DeleteKB(ctx, "proj-1", "kb-1")
	require.NoError(t, err)
	assert.True(t, removed)

	// kb-2 still references the attachment, so it must survive.
	att, err := s.GetAttachment(ctx, "proj-1", attachmentID)
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", att.OriginalName)

	removed, err = s.DeleteKB(ctx, "proj-1", "kb-2")
	require.NoError(t, err)
	assert.True(t, removed)

	// No KB record references it anymore, so it must be reclaimed.
	_, err = s.GetAttachment(ctx, "proj-1", attachmentID)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))
}

func TestFileStorageIndexArtifactRoundTrip(t *testing.T) {
	s := newTestFileStorage(t)
	ctx := context.Background()

	err := s.PutIndexArtifact(ctx, "proj-1", 1, domain.ArtifactSparse, []byte("sparse-bytes"))
	require.NoError(t, err)

	data, err := s.GetIndexArtifact(ctx, "proj-1", 1, domain.ArtifactSparse)
	require.NoError(t, err)
	assert.Equal(t, []byte("sparse-bytes"), data)

	_, err = s.GetIndexArtifact(ctx, "proj-1", 1, domain.ArtifactDense)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))

	require.NoError(t, s.DeleteIndexVersion(ctx, "proj-1", 1))
	_, err = s.GetIndexArtifact(ctx, "proj-1", 1, domain.ArtifactSparse)
	require.Error(t, err)
}

func TestFileStorageProjectRoundTrip(t *testing.T) {
	s := newTestFileStorage(t)
	ctx := context.Background()
	now := time.Now()

	p := domain.NewProject("proj-1", "ASPCA", now)
	require.NoError(t, s.PutProject(ctx, p))

	got, err := s.GetProject(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "ASPCA", got.Name)

	_, err = s.GetProject(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
}
