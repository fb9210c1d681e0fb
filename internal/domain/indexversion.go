package domain

import "time"

// ArtifactKind enumerates the artifact files an IndexVersion may carry.
type ArtifactKind string

const (
	ArtifactDense  ArtifactKind = "dense"
	ArtifactSparse ArtifactKind = "sparse"
	ArtifactBasic  ArtifactKind = "basic"
	ArtifactMeta   ArtifactKind = "meta"
)

// IndexVersion is an immutable, atomically-published bundle of search
// artifacts for a project.
type IndexVersion struct {
	ProjectID         string
	Version           uint64
	BuiltAt           time.Time
	RecordFingerprint string
	HasDense          bool
	HasSparse         bool
	HasBasic          bool // always true once a version is published
}

// NewIndexVersion creates a new IndexVersion record.
func NewIndexVersion(projectID string, version uint64, fingerprint string, builtAt time.Time) *IndexVersion {
	return &IndexVersion{
		ProjectID:         projectID,
		Version:           version,
		BuiltAt:           builtAt,
		RecordFingerprint: fingerprint,
		HasBasic:          true,
	}
}
