// Package contentapi implements C11 ContentAPI: the public CRUD+invalidation
// surface over (project, FAQ, KB, document). Every FAQ, KB or document write
// marks the affected project's index dirty exactly once, a delete does so
// only when it removed a record, and project create/update/deactivate have
// no index effect, per spec.md's ingestion data flow (AuthGate → ContentAPI → Storage write → IdentityMinter →
// IndexManager.markDirty → async rebuild).
package contentapi

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/extractor"
	"github.com/cloo-solutions/kbcore/internal/identity"
	"github.com/cloo-solutions/kbcore/internal/indexmanager"
	"github.com/cloo-solutions/kbcore/internal/storage"
)

// ContentAPI is the process-singleton C11 component.
type ContentAPI struct {
	store     storage.Storage
	manager   *indexmanager.Manager
	extractor extractor.Extractor
	now       func() time.Time
}

// New creates a ContentAPI backed by store, manager, and extractor.
func New(store storage.Storage, manager *indexmanager.Manager, ex extractor.Extractor) *ContentAPI {
	return &ContentAPI{store: store, manager: manager, extractor: ex, now: func() time.Time { return time.Now().UTC() }}
}

// KBContent is the result of GetKB: either the record itself (Attachment
// nil) or an attachment's bytes+mime (Attachment set), per spec.md §4.11's
// get_kb dispatch rule.
type KBContent struct {
	Record     *domain.KB
	Attachment *domain.Attachment
}

// CreateOrUpdateProject upserts a project row. This is the one mutating
// operation exempt from the deactivated-project-as-NotFound rule, since it
// is how a project is (re)activated in the first place.
func (c *ContentAPI) CreateOrUpdateProject(ctx context.Context, id, name string) (*domain.Project, error) {
	existing, err := c.store.GetProject(ctx, id)
	now := c.now()
	if err != nil {
		if domain.Kind(err) != domain.KindNotFound {
			return nil, err
		}
		project := domain.NewProject(id, name, now)
		if err := domain.ValidateProject(project); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.KindBadRequest, "invalid project", err)
		}
		if err := c.store.PutProject(ctx, project); err != nil {
			return nil, err
		}
		return project, nil
	}

	existing.Name = name
	existing.UpdatedAt = now
	if err := domain.ValidateProject(existing); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.KindBadRequest, "invalid project", err)
	}
	if err := c.store.PutProject(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeactivateProject sets active=false. No index effect: the existing index
// artifacts stay in place. Queries against a deactivated project fail with
// NotFound in the QueryOrchestrator; Retriever and IndexManager do not
// check the active flag.
func (c *ContentAPI) DeactivateProject(ctx context.Context, pid string) error {
	project, err := c.store.GetProject(ctx, pid)
	if err != nil {
		return err
	}
	project.Active = false
	project.UpdatedAt = c.now()
	return c.store.PutProject(ctx, project)
}

// requireActiveProject implements the deactivated-project-as-NotFound rule
// shared by every write below.
func (c *ContentAPI) requireActiveProject(ctx context.Context, pid string) (*domain.Project, error) {
	project, err := c.store.GetProject(ctx, pid)
	if err != nil {
		return nil, err
	}
	if !project.Active {
		return nil, domain.ErrProjectNotFound
	}
	return project, nil
}

// AddFAQ upserts a FAQ by its minted id (mint("faq", pid, question)), so
// re-adding the same question overwrites its answer instead of duplicating.
func (c *ContentAPI) AddFAQ(ctx context.Context, pid, question, answer string) (*domain.FAQ, error) {
	if _, err := c.requireActiveProject(ctx, pid); err != nil {
		return nil, err
	}
	if question == "" || answer == "" {
		return nil, domain.ErrMissingRequiredField
	}

	id := identity.Mint("faq", pid, question)
	faq := domain.NewFAQ(id, pid, question, answer, domain.SourceManual, c.now())
	if err := domain.ValidateFAQ(faq); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.KindBadRequest, "invalid faq", err)
	}
	if _, err := c.store.PutFAQ(ctx, pid, faq); err != nil {
		return nil, err
	}
	c.manager.MarkDirty(pid)
	return faq, nil
}

// DeleteFAQ removes a FAQ by id if present, marking the project dirty only
// when a record was actually removed.
func (c *ContentAPI) DeleteFAQ(ctx context.Context, pid, id string) (bool, error) {
	if _, err := c.requireActiveProject(ctx, pid); err != nil {
		return false, err
	}
	removed, err := c.store.DeleteFAQ(ctx, pid, id)
	if err != nil {
		return false, err
	}
	if removed {
		c.manager.MarkDirty(pid)
	}
	return removed, nil
}

// AddKB upserts a single-chunk KB record (mint("kb", pid, title, "0")).
func (c *ContentAPI) AddKB(ctx context.Context, pid, title, content string) (*domain.KB, error) {
	if _, err := c.requireActiveProject(ctx, pid); err != nil {
		return nil, err
	}
	if title == "" || content == "" {
		return nil, domain.ErrMissingRequiredField
	}

	id := identity.Mint("kb", pid, title, "0")
	kb := domain.NewKB(id, pid, title, content, domain.SourceManual, 0, c.now())
	if err := domain.ValidateKB(kb); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.KindBadRequest, "invalid kb record", err)
	}
	if _, err := c.store.PutKB(ctx, pid, kb); err != nil {
		return nil, err
	}
	c.manager.MarkDirty(pid)
	return kb, nil
}

// DeleteKB removes a KB record by id if present; Storage.DeleteKB reclaims
// the backing attachment if this was its last referrer.
func (c *ContentAPI) DeleteKB(ctx context.Context, pid, id string) (bool, error) {
	if _, err := c.requireActiveProject(ctx, pid); err != nil {
		return false, err
	}
	removed, err := c.store.DeleteKB(ctx, pid, id)
	if err != nil {
		return false, err
	}
	if removed {
		c.manager.MarkDirty(pid)
	}
	return removed, nil
}

// UploadDocument extracts bytes into N ordered chunks, stores the original
// bytes as one attachment, and upserts one KB record per chunk, all sharing
// parent_document_id and attachment_id. The batch is atomic: if any chunk
// fails to persist, previously persisted chunks in this call are rolled
// back and mark_dirty never fires.
func (c *ContentAPI) UploadDocument(ctx context.Context, pid string, bytes []byte, mime, title string) (documentID string, indexBuildStarted bool, err error) {
	if _, err := c.requireActiveProject(ctx, pid); err != nil {
		return "", false, err
	}

	chunks, _, err := c.extractor.Extract(bytes, mime, title)
	if err != nil {
		return "", false, err
	}

	attachmentID, err := c.store.PutAttachment(ctx, pid, bytes, mime, title)
	if err != nil {
		return "", false, err
	}

	parentDocumentID := identity.Mint("document", pid, title, identity.ContentHash(string(bytes)))
	now := c.now()

	var written []string
	displacedAttachments := make(map[string]struct{})
	for _, chunk := range chunks {
		id := identity.Mint("kb", pid, title, fmt.Sprintf("%d", chunk.ChunkIndex))
		kb := domain.NewKB(id, pid, title, chunk.Text, domain.SourceUpload, chunk.ChunkIndex, now)
		kb.ParentDocumentID = parentDocumentID
		kb.AttachmentID = attachmentID
		if err := domain.ValidateKB(kb); err != nil {
			c.rollbackKBs(ctx, pid, written)
			return "", false, domain.NewDomainErrorWithCause(domain.KindBadRequest, "invalid kb chunk", err)
		}
		prior, err := c.store.PutKB(ctx, pid, kb)
		if err != nil {
			c.rollbackKBs(ctx, pid, written)
			return "", false, err
		}
		written = append(written, id)
		if prior != nil && prior.AttachmentID != "" && prior.AttachmentID != attachmentID {
			displacedAttachments[prior.AttachmentID] = struct{}{}
		}
	}

	// Best-effort, like rollbackKBs: a same-title re-upload just displaced
	// these chunks' prior attachment, and DeleteKB's inline reclaim only
	// ever sees whichever attachment a single delete call touches, so the
	// batch has to do its own reclaim pass once every chunk is committed.
	for old := range displacedAttachments {
		_ = c.store.ReclaimAttachment(ctx, pid, old)
	}

	c.manager.MarkDirty(pid)
	return parentDocumentID, true, nil
}

// rollbackKBs best-effort deletes records already written earlier in an
// UploadDocument call that subsequently failed, preserving batch atomicity
// at the ContentAPI layer since Storage itself offers no multi-record
// transaction primitive.
func (c *ContentAPI) rollbackKBs(ctx context.Context, pid string, ids []string) {
	for _, id := range ids {
		c.store.DeleteKB(ctx, pid, id)
	}
}

// GetKB returns either the attachment bytes+mime (if the record has one)
// or the record itself.
func (c *ContentAPI) GetKB(ctx context.Context, pid, id string) (*KBContent, error) {
	records, err := c.store.ListKB(ctx, pid)
	if err != nil {
		return nil, err
	}
	for _, kb := range records {
		if kb.ID != id {
			continue
		}
		if !kb.HasAttachment() {
			return &KBContent{Record: kb}, nil
		}
		attachment, err := c.store.GetAttachment(ctx, pid, kb.AttachmentID)
		if err != nil {
			return nil, err
		}
		return &KBContent{Record: kb, Attachment: attachment}, nil
	}
	return nil, domain.ErrKBNotFound
}
