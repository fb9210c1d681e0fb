package domain

import "fmt"

// Attachment preserves original uploaded bytes for later retrieval. Its
// lifetime is at least the lifetime of any KB record whose AttachmentID
// points to it; it is owned by Storage, not by any individual KB record,
// and is deleted when the last referring KB record is deleted.
type Attachment struct {
	ID           string
	ProjectID    string
	Mime         string
	OriginalName string
	Bytes        []byte
}

// NewAttachment creates a new Attachment instance.
func NewAttachment(id, projectID, mime, originalName string, bytes []byte) *Attachment {
	return &Attachment{
		ID:           id,
		ProjectID:    projectID,
		Mime:         mime,
		OriginalName: originalName,
		Bytes:        bytes,
	}
}

// ValidateAttachment validates an Attachment instance.
func ValidateAttachment(a *Attachment) error {
	if a == nil {
		return fmt.Errorf("attachment cannot be nil")
	}
	if a.ID == "" {
		return fmt.Errorf("attachment id is required")
	}
	if a.ProjectID == "" {
		return fmt.Errorf("attachment project id is required")
	}
	if a.Mime == "" {
		return fmt.Errorf("attachment mime is required")
	}
	if len(a.Bytes) == 0 {
		return fmt.Errorf("attachment bytes must not be empty")
	}
	return nil
}
