// Package indexmanager versions, publishes, and single-flights per-project
// index rebuilds (C5). It tracks a BuildState per project, serializes
// rebuilds behind a per-project worker, and hands out refcounted snapshot
// handles so a Retriever can read artifacts that survive a concurrent
// republish.
//
// Atomic publish and retention follow original_source/api/index_versioning.py's
// IndexVersionManager: new artifacts are written to version-suffixed
// locations first, then a single meta-record store advances current_version;
// older snapshots stay valid until released, and only the three most recent
// versions are retained (current + 2 predecessors), subject to outstanding
// refcounts.
package indexmanager

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/indexer"
	"github.com/cloo-solutions/kbcore/internal/storage"
)

// retainVersions is the number of most recent published versions kept per
// project: current plus two predecessors, mirroring
// index_versioning.py's _cleanup_old_versions(keep_count=3).
const retainVersions = 3

// Manager is the process-singleton C5 component. One Manager instance is
// shared by ContentAPI (mark_dirty on write) and Retriever (snapshot on
// read); both reach it through Services (C12).
type Manager struct {
	store    storage.Storage
	embedder indexer.Embedder

	mu     sync.Mutex
	states map[string]*projectState
}

// New creates a Manager backed by store. embedder may be nil, in which case
// every build is sparse+basic only.
func New(store storage.Storage, embedder indexer.Embedder) *Manager {
	return &Manager{
		store:    store,
		embedder: embedder,
		states:   make(map[string]*projectState),
	}
}

// versionHandle is one published version's artifacts plus its outstanding
// reader count. A version is eligible for deletion once retiring is true
// and refCount reaches zero.
type versionHandle struct {
	version   uint64
	artifacts *indexer.Artifacts
	refCount  int32
	retiring  bool
}

// projectState is the per-project build machinery: one lazily-spawned
// worker goroutine, the current BuildState, and the set of version handles
// still reachable by a live snapshot.
type projectState struct {
	mu sync.Mutex

	build   domain.BuildState
	handles map[uint64]*versionHandle

	wake    chan struct{}
	started bool

	waiters []chan struct{}
}

func (m *Manager) projectState(pid string) *projectState {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.states[pid]
	if !ok {
		ps = &projectState{
			build:   domain.BuildState{ProjectID: pid},
			handles: make(map[uint64]*versionHandle),
			wake:    make(chan struct{}, 1),
		}
		m.states[pid] = ps
	}
	return ps
}

// MarkDirty increments target_version and ensures a build is scheduled. It
// returns the new target_version.
func (m *Manager) MarkDirty(pid string) uint64 {
	ps := m.projectState(pid)

	ps.mu.Lock()
	ps.build.TargetVersion++
	target := ps.build.TargetVersion
	ps.build.LastError = "" // a fresh mark_dirty supersedes any stale failure
	started := ps.started
	ps.started = true
	ps.mu.Unlock()

	if !started {
		go m.runWorker(pid, ps)
	}
	select {
	case ps.wake <- struct{}{}:
	default:
		// a wake is already pending; the in-flight or about-to-start build
		// will observe the bumped target_version when it re-checks.
	}
	return target
}

// Status returns a copy of the project's current BuildState.
func (m *Manager) Status(pid string) domain.BuildState {
	ps := m.projectState(pid)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.build
}

// RebuildNow is the synchronous equivalent of MarkDirty followed by a wait
// until current_version reaches (at least) the target it just set.
func (m *Manager) RebuildNow(ctx context.Context, pid string) (domain.BuildState, error) {
	ps := m.projectState(pid)
	target := m.MarkDirty(pid)

	for {
		ps.mu.Lock()
		if ps.build.CurrentVersion >= target || ps.build.LastError != "" {
			state := ps.build
			ps.mu.Unlock()
			if state.LastError != "" {
				return state, domain.NewDomainError(domain.KindBuildFailure, state.LastError)
			}
			return state, nil
		}
		done := make(chan struct{})
		ps.waiters = append(ps.waiters, done)
		ps.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return m.Status(pid), ctx.Err()
		}
	}
}

func notifyWaiters(ps *projectState) {
	for _, w := range ps.waiters {
		close(w)
	}
	ps.waiters = nil
}

// Snapshot returns a refcounted handle pinning current_version's artifacts
// against reclamation. Callers must call Release when done. A NotFound-kind
// domain error is returned if no version has ever been published for pid.
func (m *Manager) Snapshot(pid string) (*Snapshot, error) {
	ps := m.projectState(pid)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	h, ok := ps.handles[ps.build.CurrentVersion]
	if !ok {
		return nil, domain.NewDomainError(domain.KindNotFound, "no published index version")
	}
	h.refCount++
	return &Snapshot{manager: m, pid: pid, version: h.version, artifacts: h.artifacts}, nil
}

// Snapshot is an immutable, refcounted handle to one published version's
// artifacts. Retriever reads Artifacts and calls Release exactly once.
type Snapshot struct {
	manager   *Manager
	pid       string
	version   uint64
	artifacts *indexer.Artifacts

	released bool
}

// Artifacts returns the pinned dense/sparse/basic search artifacts.
func (s *Snapshot) Artifacts() *indexer.Artifacts { return s.artifacts }

// Version returns the pinned version number.
func (s *Snapshot) Version() uint64 { return s.version }

// Release drops this handle's reference. Once the last reference to a
// retiring version is released, its storage artifacts are deleted.
func (s *Snapshot) Release() {
	if s.released {
		return
	}
	s.released = true

	ps := s.manager.projectState(s.pid)
	ps.mu.Lock()
	h, ok := ps.handles[s.version]
	if !ok {
		ps.mu.Unlock()
		return
	}
	h.refCount--
	shouldDelete := h.retiring && h.refCount <= 0
	if shouldDelete {
		delete(ps.handles, s.version)
	}
	ps.mu.Unlock()

	if shouldDelete {
		if err := s.manager.store.DeleteIndexVersion(context.Background(), s.pid, s.version); err != nil {
			log.Printf("indexmanager: delete retired version %d for project %s: %v", s.version, s.pid, err)
		}
	}
}

// runWorker is the per-project single-flight build loop: one goroutine per
// project, started lazily on first MarkDirty, woken by the buffered wake
// channel rather than jobs.Worker's polling ticker since rebuilds are
// demand-driven, not periodic.
func (m *Manager) runWorker(pid string, ps *projectState) {
	ctx := context.Background()
	for range ps.wake {
		ps.mu.Lock()
		target := ps.build.TargetVersion
		current := ps.build.CurrentVersion
		if target <= current {
			ps.mu.Unlock()
			continue
		}
		ps.build.Building = true
		started := time.Now().UTC()
		ps.build.StartedAt = &started
		ps.mu.Unlock()

		newVersion, buildErr := m.runBuild(ctx, pid, ps, current+1)

		ps.mu.Lock()
		ps.build.Building = false
		ps.build.StartedAt = nil
		if buildErr != nil {
			ps.build.LastError = buildErr.Error()
			log.Printf("indexmanager: build failed for project %s: %v", pid, buildErr)
		} else {
			ps.build.LastError = ""
			ps.build.CurrentVersion = newVersion
			builtAt := time.Now().UTC()
			ps.build.BuiltAt = &builtAt
			m.retire(pid, ps)
		}
		needsMore := ps.build.TargetVersion > ps.build.CurrentVersion
		notifyWaiters(ps)
		ps.mu.Unlock()

		if needsMore {
			select {
			case ps.wake <- struct{}{}:
			default:
			}
		}
	}
}

// runBuild loads the project's current records, builds artifacts, and
// either skips the write (change-detection) or publishes atomically. It
// returns the version now current after this run (unchanged from the
// caller's "previous current" on skip, or the new version on publish).
func (m *Manager) runBuild(ctx context.Context, pid string, ps *projectState, candidateVersion uint64) (uint64, error) {
	records, err := m.loadRecords(ctx, pid)
	if err != nil {
		return 0, err
	}

	artifacts, err := indexer.Build(ctx, records, m.embedder)
	if err != nil {
		return 0, err
	}

	ps.mu.Lock()
	currentVersion := ps.build.CurrentVersion
	currentHandle := ps.handles[currentVersion]
	ps.mu.Unlock()

	if currentHandle != nil && currentHandle.artifacts.RecordFingerprint == artifacts.RecordFingerprint {
		// change-detection skip: same content, no rewrite, but built_at advances.
		if err := m.touchMeta(ctx, pid, currentVersion, artifacts.RecordFingerprint); err != nil {
			log.Printf("indexmanager: touch meta for project %s v%d: %v", pid, currentVersion, err)
		}
		return currentVersion, nil
	}

	if err := m.publish(ctx, pid, candidateVersion, &artifacts); err != nil {
		return 0, err
	}

	ps.mu.Lock()
	ps.handles[candidateVersion] = &versionHandle{version: candidateVersion, artifacts: &artifacts}
	ps.mu.Unlock()

	if idx, ok := m.store.(storage.EmbeddingIndex); ok {
		if artifacts.Dense != nil {
			vectors := denseEmbeddingVectors(artifacts.Dense)
			if err := idx.UpsertEmbeddings(ctx, pid, vectors); err != nil {
				log.Printf("indexmanager: upsert embeddings for project %s: %v", pid, err)
			}
		} else {
			if err := idx.DeleteEmbeddings(ctx, pid); err != nil {
				log.Printf("indexmanager: delete embeddings for project %s: %v", pid, err)
			}
		}
	}

	return candidateVersion, nil
}

// loadRecords maps a project's stored FAQ/KB records to indexer.Record,
// the Indexer's embedder/storage-agnostic input shape.
func (m *Manager) loadRecords(ctx context.Context, pid string) ([]indexer.Record, error) {
	faqs, err := m.store.ListFAQs(ctx, pid)
	if err != nil {
		return nil, err
	}
	kbs, err := m.store.ListKB(ctx, pid)
	if err != nil {
		return nil, err
	}

	records := make([]indexer.Record, 0, len(faqs)+len(kbs))
	for _, f := range faqs {
		records = append(records, indexer.Record{
			ID:    f.ID,
			Kind:  indexer.KindFAQ,
			Title: f.Question,
			Body:  f.Answer,
		})
	}
	for _, k := range kbs {
		records = append(records, indexer.Record{
			ID:               k.ID,
			Kind:             indexer.KindKB,
			Title:            k.ArticleTitle,
			Body:             k.Content,
			ChunkIndex:       k.ChunkIndex,
			ParentDocumentID: k.ParentDocumentID,
			AttachmentID:     k.AttachmentID,
		})
	}
	return records, nil
}

// publish writes every artifact to its version-suffixed location, then
// stores the meta record last: that single write is the atomic "advance
// current_version" step readers rely on.
func (m *Manager) publish(ctx context.Context, pid string, version uint64, artifacts *indexer.Artifacts) error {
	if artifacts.Dense != nil {
		data, err := indexer.EncodeDenseIndex(artifacts.Dense)
		if err != nil {
			return err
		}
		if err := m.store.PutIndexArtifact(ctx, pid, version, domain.ArtifactDense, data); err != nil {
			return err
		}
	}
	if artifacts.Sparse != nil {
		data, err := indexer.EncodeSparseIndex(artifacts.Sparse)
		if err != nil {
			return err
		}
		if err := m.store.PutIndexArtifact(ctx, pid, version, domain.ArtifactSparse, data); err != nil {
			return err
		}
	}
	data, err := indexer.EncodeBasicIndex(artifacts.Basic)
	if err != nil {
		return err
	}
	if err := m.store.PutIndexArtifact(ctx, pid, version, domain.ArtifactBasic, data); err != nil {
		return err
	}

	meta := domain.NewIndexVersion(pid, version, artifacts.RecordFingerprint, time.Now().UTC())
	meta.HasDense = artifacts.Dense != nil
	meta.HasSparse = artifacts.Sparse != nil
	return m.putMeta(ctx, pid, meta)
}

func (m *Manager) touchMeta(ctx context.Context, pid string, version uint64, fingerprint string) error {
	meta := domain.NewIndexVersion(pid, version, fingerprint, time.Now().UTC())
	return m.putMeta(ctx, pid, meta)
}

func (m *Manager) putMeta(ctx context.Context, pid string, meta *domain.IndexVersion) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return m.store.PutIndexArtifact(ctx, pid, meta.Version, domain.ArtifactMeta, data)
}

// retire marks versions beyond retainVersions as eligible for deletion,
// deferring the actual storage.DeleteIndexVersion call until every
// outstanding Snapshot referencing that version has been released.
func (m *Manager) retire(pid string, ps *projectState) {
	if len(ps.handles) <= retainVersions {
		return
	}
	versions := make([]uint64, 0, len(ps.handles))
	for v := range ps.handles {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })

	for _, v := range versions[retainVersions:] {
		h := ps.handles[v]
		h.retiring = true
		if h.refCount <= 0 {
			delete(ps.handles, v)
			version := v
			go func() {
				if err := m.store.DeleteIndexVersion(context.Background(), pid, version); err != nil {
					log.Printf("indexmanager: retention delete v%d: %v", version, err)
				}
			}()
		}
	}
}

// denseEmbeddingVectors recomputes the (recordID, vector) pairing a
// DenseIndex keeps internally, for the optional EmbeddingIndex write-through.
func denseEmbeddingVectors(dense *indexer.DenseIndex) []storage.EmbeddingVector {
	out := make([]storage.EmbeddingVector, 0, len(dense.Records()))
	for _, rec := range dense.Records() {
		vec, ok := dense.VectorFor(rec.ID)
		if !ok {
			continue
		}
		out = append(out, storage.EmbeddingVector{RecordID: rec.ID, Vector: vec})
	}
	return out
}

