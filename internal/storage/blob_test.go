//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBlobStorage(ctx context.Context, t *testing.T) *BlobStorage {
	t.Helper()
	s3Container := testutil.NewRustFSContainer(ctx, t)
	t.Cleanup(func() { s3Container.Terminate(ctx) })

	store, err := NewBlobStorage(ctx, BlobClientConfig{
		Endpoint:        s3Container.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-kb",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, store.EnsureBucket(ctx))
	return store
}

func TestBlobStorage_FAQLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestBlobStorage(ctx, t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	faq := domain.NewFAQ("faq-1", "proj-1", "What does ASPCA stand for?", "American Society for the Prevention of Cruelty to Animals.", domain.SourceManual, now)
	prior, err := store.PutFAQ(ctx, "proj-1", faq)
	require.NoError(t, err)
	assert.Nil(t, prior)

	faqs, err := store.ListFAQs(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, faqs, 1)
	assert.Equal(t, "faq-1", faqs[0].ID)

	removed, err := store.DeleteFAQ(ctx, "proj-1", "faq-1")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestBlobStorage_AttachmentAndPresignedDownloadURL(t *testing.T) {
	ctx := context.Background()
	store := newTestBlobStorage(ctx, t)

	id, err := store.PutAttachment(ctx, "proj-1", []byte("pdf bytes"), "application/pdf", "doc.pdf")
	require.NoError(t, err)

	att, err := store.GetAttachment(ctx, "proj-1", id)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), att.Bytes)

	url, err := store.AttachmentDownloadURL(ctx, "proj-1", id)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

func TestBlobStorage_IndexArtifactRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestBlobStorage(ctx, t)

	require.NoError(t, store.PutIndexArtifact(ctx, "proj-1", 1, domain.ArtifactBasic, []byte("basic-bytes")))

	data, err := store.GetIndexArtifact(ctx, "proj-1", 1, domain.ArtifactBasic)
	require.NoError(t, err)
	assert.Equal(t, []byte("basic-bytes"), data)

	require.NoError(t, store.DeleteIndexVersion(ctx, "proj-1", 1))
	_, err = store.GetIndexArtifact(ctx, "proj-1", 1, domain.ArtifactBasic)
	require.Error(t, err)
}
