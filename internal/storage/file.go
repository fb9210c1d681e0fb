package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/google/uuid"
)

// FileStorage is the local-filesystem Storage backend. It lays out state
// exactly as the persisted-state layout specifies:
//
//	<root>/projects.json
//	<root>/projects/<pid>/faqs.json
//	<root>/projects/<pid>/kb.json
//	<root>/projects/<pid>/attachments/<att_id>.bin (+ .meta.json)
//	<root>/projects/<pid>/index/v<version>/{dense,sparse,basic,meta}
//
// Writes to a single project are serialized by a per-project mutex; reads
// are concurrent. This is the default/dev backend and the literal referent
// for STORAGE_TYPE=file and STORAGE_TYPE=fileshare (the latter is the same
// code path pointed at a network-mounted root — no Azure Files SDK exists
// anywhere in the retrieved example pack, so there is no distinct adapter
// to write).
type FileStorage struct {
	root string

	mu    sync.Mutex // guards locks map itself
	locks map[string]*sync.Mutex
}

// NewFileStorage creates a FileStorage rooted at root, creating it if absent.
func NewFileStorage(root string) (*FileStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileStorage{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *FileStorage) projectLock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	return l
}

func (s *FileStorage) projectDir(projectID string) string {
	return filepath.Join(s.root, "projects", projectID)
}

func (s *FileStorage) faqsPath(projectID string) string {
	return filepath.Join(s.projectDir(projectID), "faqs.json")
}

func (s *FileStorage) kbPath(projectID string) string {
	return filepath.Join(s.projectDir(projectID), "kb.json")
}

func (s *FileStorage) attachmentsDir(projectID string) string {
	return filepath.Join(s.projectDir(projectID), "attachments")
}

func (s *FileStorage) indexDir(projectID string, version uint64) string {
	return filepath.Join(s.projectDir(projectID), "index", fmt.Sprintf("v%d", version))
}

// --- generic JSON list persistence -----------------------------------------

func readJSONList[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeJSONList[T any](path string, items []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// --- FAQs --------------------------------------------------------------

func (s *FileStorage) ListFAQs(ctx context.Context, projectID string) ([]*domain.FAQ, error) {
	return readJSONList[*domain.FAQ](s.faqsPath(projectID))
}

func (s *FileStorage) PutFAQ(ctx context.Context, projectID string, faq *domain.FAQ) (*domain.FAQ, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	faqs, err := readJSONList[*domain.FAQ](s.faqsPath(projectID))
	if err != nil {
		return nil, err
	}
	var prior *domain.FAQ
	replaced := false
	for i, f := range faqs {
		if f.ID == faq.ID {
			prior = f
			faqs[i] = faq
			replaced = true
			break
		}
	}
	if !replaced {
		faqs = append(faqs, faq)
	}
	if err := writeJSONList(s.faqsPath(projectID), faqs); err != nil {
		return nil, err
	}
	return prior, nil
}

func (s *FileStorage) DeleteFAQ(ctx context.Context, projectID, id string) (bool, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	faqs, err := readJSONList[*domain.FAQ](s.faqsPath(projectID))
	if err != nil {
		return false, err
	}
	out := make([]*domain.FAQ, 0, len(faqs))
	removed := false
	for _, f := range faqs {
		if f.ID == id {
			removed = true
			continue
		}
		out = append(out, f)
	}
	if !removed {
		return false, nil
	}
	return true, writeJSONList(s.faqsPath(projectID), out)
}

// --- KB ------------------------------------------------------------------

func (s *FileStorage) ListKB(ctx context.Context, projectID string) ([]*domain.KB, error) {
	return readJSONList[*domain.KB](s.kbPath(projectID))
}

func (s *FileStorage) PutKB(ctx context.Context, projectID string, kb *domain.KB) (*domain.KB, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	items, err := readJSONList[*domain.KB](s.kbPath(projectID))
	if err != nil {
		return nil, err
	}
	var prior *domain.KB
	replaced := false
	for i, k := range items {
		if k.ID == kb.ID {
			prior = k
			items[i] = kb
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, kb)
	}
	if err := writeJSONList(s.kbPath(projectID), items); err != nil {
		return nil, err
	}
	return prior, nil
}

func (s *FileStorage) DeleteKB(ctx context.Context, projectID, id string) (bool, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	items, err := readJSONList[*domain.KB](s.kbPath(projectID))
	if err != nil {
		return false, err
	}
	out := make([]*domain.KB, 0, len(items))
	var removedRecord *domain.KB
	for _, k := range items {
		if k.ID == id {
			removedRecord = k
			continue
		}
		out = append(out, k)
	}
	if removedRecord == nil {
		return false, nil
	}
	if err := writeJSONList(s.kbPath(projectID), out); err != nil {
		return false, err
	}

	if removedRecord.AttachmentID != "" {
		stillReferenced := false
		for _, k := range out {
			if k.AttachmentID == removedRecord.AttachmentID {
				stillReferenced = true
				break
			}
		}
		if !stillReferenced {
			_ = s.deleteAttachmentLocked(projectID, removedRecord.AttachmentID)
		}
	}
	return true, nil
}

func (s *FileStorage) ReclaimAttachment(ctx context.Context, projectID, attachmentID string) error {
	if attachmentID == "" {
		return nil
	}
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	items, err := readJSONList[*domain.KB](s.kbPath(projectID))
	if err != nil {
		return err
	}
	for _, k := range items {
		if k.AttachmentID == attachmentID {
			return nil
		}
	}
	return s.deleteAttachmentLocked(projectID, attachmentID)
}

// --- Attachments -----------------------------------------------------------

func (s *FileStorage) PutAttachment(ctx context.Context, projectID string, bytes []byte, mime, name string) (string, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	id := uuid.NewString()
	dir := s.attachmentsDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, id+".bin"), bytes, 0o644); err != nil {
		return "", err
	}
	meta := attachmentMeta{Mime: mime, OriginalName: name}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, id+".meta.json"), metaData, 0o644); err != nil {
		return "", err
	}
	return id, nil
}

type attachmentMeta struct {
	Mime         string `json:"mime"`
	OriginalName string `json:"original_name"`
}

func (s *FileStorage) GetAttachment(ctx context.Context, projectID, id string) (*domain.Attachment, error) {
	dir := s.attachmentsDir(projectID)
	data, err := os.ReadFile(filepath.Join(dir, id+".bin"))
	if os.IsNotExist(err) {
		return nil, domain.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, err
	}
	metaData, err := os.ReadFile(filepath.Join(dir, id+".meta.json"))
	if err != nil {
		return nil, err
	}
	var meta attachmentMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, err
	}
	return domain.NewAttachment(id, projectID, meta.Mime, meta.OriginalName, data), nil
}

func (s *FileStorage) deleteAttachmentLocked(projectID, id string) error {
	dir := s.attachmentsDir(projectID)
	_ = os.Remove(filepath.Join(dir, id+".bin"))
	_ = os.Remove(filepath.Join(dir, id+".meta.json"))
	return nil
}

// --- Index artifacts ---------------------------------------------------

func (s *FileStorage) PutIndexArtifact(ctx context.Context, projectID string, version uint64, kind ArtifactKind, bytes []byte) error {
	dir := s.indexDir(projectID, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, string(kind))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStorage) GetIndexArtifact(ctx context.Context, projectID string, version uint64, kind ArtifactKind) ([]byte, error) {
	path := filepath.Join(s.indexDir(projectID, version), string(kind))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, domain.NewDomainError(domain.KindNotFound, "artifact not found")
	}
	return data, err
}

func (s *FileStorage) DeleteIndexVersion(ctx context.Context, projectID string, version uint64) error {
	return os.RemoveAll(s.indexDir(projectID, version))
}

// --- Projects ------------------------------------------------------------

func (s *FileStorage) projectsPath() string {
	return filepath.Join(s.root, "projects.json")
}

func (s *FileStorage) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	projects, err := readJSONList[*domain.Project](s.projectsPath())
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.ID == projectID {
			return p, nil
		}
	}
	return nil, domain.ErrProjectNotFound
}

func (s *FileStorage) PutProject(ctx context.Context, project *domain.Project) error {
	s.mu.Lock()
	l, ok := s.locks["__projects__"]
	if !ok {
		l = &sync.Mutex{}
		s.locks["__projects__"] = l
	}
	s.mu.Unlock()

	l.Lock()
	defer l.Unlock()

	projects, err := readJSONList[*domain.Project](s.projectsPath())
	if err != nil {
		return err
	}
	replaced := false
	for i, p := range projects {
		if p.ID == project.ID {
			projects[i] = project
			replaced = true
			break
		}
	}
	if !replaced {
		projects = append(projects, project)
	}
	return writeJSONList(s.projectsPath(), projects)
}

func (s *FileStorage) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	projects, err := readJSONList[*domain.Project](s.projectsPath())
	if err != nil {
		return nil, err
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.Before(projects[j].CreatedAt) })
	return projects, nil
}
