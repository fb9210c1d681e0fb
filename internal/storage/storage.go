// Package storage defines the abstract per-project persistence contract
// (Storage, C1) and its concrete backends. The core depends only on this
// contract; backends (local filesystem, file-share, blob, document DB) are
// selected at construction from STORAGE_TYPE.
package storage

import (
	"context"

	"github.com/cloo-solutions/kbcore/internal/domain"
)

// ArtifactKind mirrors domain.ArtifactKind for the four artifact buckets
// put_index_artifact/get_index_artifact address.
type ArtifactKind = domain.ArtifactKind

// Storage is a key-addressed store scoped per project. Each operation is
// atomic with respect to single-record readers; there is no cross-project
// visibility.
type Storage interface {
	// ListFAQs returns a project's FAQ records in insertion order.
	ListFAQs(ctx context.Context, projectID string) ([]*domain.FAQ, error)
	// ListKB returns a project's KB records in insertion order.
	ListKB(ctx context.Context, projectID string) ([]*domain.KB, error)

	// PutFAQ upserts by id, returning the prior record if one existed.
	PutFAQ(ctx context.Context, projectID string, faq *domain.FAQ) (prior *domain.FAQ, err error)
	// PutKB upserts by id, returning the prior record if one existed.
	PutKB(ctx context.Context, projectID string, kb *domain.KB) (prior *domain.KB, err error)

	// DeleteFAQ reports whether a record was removed.
	DeleteFAQ(ctx context.Context, projectID, id string) (removed bool, err error)
	// DeleteKB reports whether a record was removed. If the removed record's
	// AttachmentID has no other referrers, the attachment is also deleted.
	DeleteKB(ctx context.Context, projectID, id string) (removed bool, err error)

	// PutAttachment stores bytes and returns the new attachment id.
	PutAttachment(ctx context.Context, projectID string, bytes []byte, mime, name string) (attachmentID string, err error)
	// GetAttachment returns bytes+mime, or a NotFound domain error.
	GetAttachment(ctx context.Context, projectID, id string) (*domain.Attachment, error)
	// ReclaimAttachment deletes the attachment with the given id if no
	// current KB record references it. A no-op, not an error, if the
	// attachment is still referenced or already absent. Callers that
	// overwrite a KB record's AttachmentID (PutKB returns the displaced
	// prior record) use this to release the old attachment once the new
	// one is in place, the same reclaim DeleteKB performs inline.
	ReclaimAttachment(ctx context.Context, projectID, attachmentID string) error

	// PutIndexArtifact writes one artifact file for a version.
	PutIndexArtifact(ctx context.Context, projectID string, version uint64, kind ArtifactKind, bytes []byte) error
	// GetIndexArtifact reads one artifact file for a version, or NotFound.
	GetIndexArtifact(ctx context.Context, projectID string, version uint64, kind ArtifactKind) ([]byte, error)
	// DeleteIndexVersion removes every artifact file for a version, used by
	// IndexManager's retention policy once a version's snapshot refcount
	// reaches zero.
	DeleteIndexVersion(ctx context.Context, projectID string, version uint64) error

	// Projects

	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	PutProject(ctx context.Context, project *domain.Project) error
	ListProjects(ctx context.Context) ([]*domain.Project, error)
}

// EmbeddingVector is one record's dense embedding, keyed by the record id
// (FAQ or KB id) it was computed from.
type EmbeddingVector struct {
	RecordID string
	Vector   []float32
}

// EmbeddingIndex is an optional capability a Storage backend may implement
// to additionally persist per-record dense vectors relationally (a doc_db
// backend can do this with a pgvector column; file/blob backends cannot and
// don't implement this interface). IndexManager probes for it with a type
// assertion after a successful dense build and ignores its absence.
type EmbeddingIndex interface {
	UpsertEmbeddings(ctx context.Context, projectID string, vectors []EmbeddingVector) error
	DeleteEmbeddings(ctx context.Context, projectID string) error
}

// AttachmentURLProvider is an optional capability a Storage backend may
// implement to hand out a time-limited direct-download link instead of
// routing attachment bytes through the API process (only BlobStorage's
// presign flow can do this; file/fileshare/doc_db have no such mechanism).
// Retriever probes for it with a type assertion when filling in a KB
// Source's attachment_url.
type AttachmentURLProvider interface {
	AttachmentDownloadURL(ctx context.Context, projectID, attachmentID string) (string, error)
}
