package domain

import (
	"fmt"
	"time"
)

// KB is a titled text fragment; may be one of many chunks of an uploaded
// document. Each chunk's id = mint("kb", project_id, article_title, chunk_index).
type KB struct {
	ID               string
	ProjectID        string
	ArticleTitle     string
	Content          string
	Source           RecordSource
	ChunkIndex       int
	ParentDocumentID string // shared by all chunks of one uploaded document
	AttachmentID     string // "" if this KB record has no attachment
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewKB creates a new KB record.
func NewKB(id, projectID, title, content string, source RecordSource, chunkIndex int, now time.Time) *KB {
	return &KB{
		ID:           id,
		ProjectID:    projectID,
		ArticleTitle: title,
		Content:      content,
		Source:       source,
		ChunkIndex:   chunkIndex,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ValidateKB validates a KB instance.
func ValidateKB(k *KB) error {
	if k == nil {
		return fmt.Errorf("kb record cannot be nil")
	}
	if k.ID == "" {
		return fmt.Errorf("kb id is required")
	}
	if k.ProjectID == "" {
		return fmt.Errorf("kb project id is required")
	}
	if k.ArticleTitle == "" {
		return fmt.Errorf("kb article title is required")
	}
	if k.Content == "" {
		return fmt.Errorf("kb content is required")
	}
	if !isValidRecordSource(k.Source) {
		return fmt.Errorf("kb source is invalid: %s", k.Source)
	}
	return nil
}

// ContentFingerprint returns the stable identity text fingerprinted for
// record_fingerprint purposes.
func (k *KB) ContentFingerprint() string {
	return k.ArticleTitle + "\x00" + k.Content
}

// SearchText returns the article title and content joined by a newline,
// with their case preserved.
func (k *KB) SearchText() string {
	return k.ArticleTitle + "\n" + k.Content
}

// HasAttachment reports whether this KB record points at a stored attachment.
func (k *KB) HasAttachment() bool {
	return k.AttachmentID != ""
}
