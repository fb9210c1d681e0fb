package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// embeddingDimension is the fixed width of vectors stored in the
// record_embeddings table. It must match the completer's embedding model
// and the column type declared in migrations/0001_init.up.sql.
const embeddingDimension = 1536

// DocDBStorage is the STORAGE_TYPE=doc_db backend: a relational store on
// Postgres, reached through a pgx connection pool. It is the only backend
// that also implements EmbeddingIndex, since it alone has a place to put
// vectors that isn't just an opaque artifact blob.
type DocDBStorage struct {
	pool *pgxpool.Pool
}

// NewDocDBStorage wraps an already-connected pool. Schema migrations are
// applied separately via database.RunMigrations before the pool is handed
// here.
func NewDocDBStorage(pool *pgxpool.Pool) *DocDBStorage {
	return &DocDBStorage{pool: pool}
}

// --- FAQs --------------------------------------------------------------

func (d *DocDBStorage) ListFAQs(ctx context.Context, projectID string) ([]*domain.FAQ, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, project_id, question, answer, source, created_at
		 FROM faqs WHERE project_id = $1 ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.FAQ
	for rows.Next() {
		var f domain.FAQ
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Question, &f.Answer, &f.Source, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (d *DocDBStorage) PutFAQ(ctx context.Context, projectID string, faq *domain.FAQ) (*domain.FAQ, error) {
	prior, err := d.getFAQ(ctx, projectID, faq.ID)
	if err != nil && domain.Kind(err) != domain.KindNotFound {
		return nil, err
	}
	_, err = d.pool.Exec(ctx,
		`INSERT INTO faqs (id, project_id, question, answer, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET question = $3, answer = $4, source = $5`,
		faq.ID, projectID, faq.Question, faq.Answer, string(faq.Source), faq.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return prior, nil
}

func (d *DocDBStorage) getFAQ(ctx context.Context, projectID, id string) (*domain.FAQ, error) {
	var f domain.FAQ
	err := d.pool.QueryRow(ctx,
		`SELECT id, project_id, question, answer, source, created_at
		 FROM faqs WHERE project_id = $1 AND id = $2`, projectID, id,
	).Scan(&f.ID, &f.ProjectID, &f.Question, &f.Answer, &f.Source, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFAQNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (d *DocDBStorage) DeleteFAQ(ctx context.Context, projectID, id string) (bool, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM faqs WHERE project_id = $1 AND id = $2`, projectID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// --- KB ------------------------------------------------------------------

func (d *DocDBStorage) ListKB(ctx context.Context, projectID string) ([]*domain.KB, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, project_id, article_title, content, source, chunk_index, parent_document_id,
			COALESCE(attachment_id, ''), created_at, updated_at
		 FROM kb_articles WHERE project_id = $1 ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.KB
	for rows.Next() {
		var k domain.KB
		if err := rows.Scan(&k.ID, &k.ProjectID, &k.ArticleTitle, &k.Content, &k.Source, &k.ChunkIndex,
			&k.ParentDocumentID, &k.AttachmentID, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &k)
	}
	return out, rows.Err()
}

func (d *DocDBStorage) getKB(ctx context.Context, projectID, id string) (*domain.KB, error) {
	var k domain.KB
	err := d.pool.QueryRow(ctx,
		`SELECT id, project_id, article_title, content, source, chunk_index, parent_document_id,
			COALESCE(attachment_id, ''), created_at, updated_at
		 FROM kb_articles WHERE project_id = $1 AND id = $2`, projectID, id,
	).Scan(&k.ID, &k.ProjectID, &k.ArticleTitle, &k.Content, &k.Source, &k.ChunkIndex,
		&k.ParentDocumentID, &k.AttachmentID, &k.CreatedAt, &k.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrKBNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (d *DocDBStorage) PutKB(ctx context.Context, projectID string, kb *domain.KB) (*domain.KB, error) {
	prior, err := d.getKB(ctx, projectID, kb.ID)
	if err != nil && domain.Kind(err) != domain.KindNotFound {
		return nil, err
	}
	var attachmentID any
	if kb.AttachmentID != "" {
		attachmentID = kb.AttachmentID
	}
	_, err = d.pool.Exec(ctx,
		`INSERT INTO kb_articles
			(id, project_id, article_title, content, source, chunk_index, parent_document_id, attachment_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			article_title = $3, content = $4, source = $5, chunk_index = $6,
			parent_document_id = $7, attachment_id = $8, updated_at = $10`,
		kb.ID, projectID, kb.ArticleTitle, kb.Content, string(kb.Source), kb.ChunkIndex,
		kb.ParentDocumentID, attachmentID, kb.CreatedAt, kb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return prior, nil
}

func (d *DocDBStorage) DeleteKB(ctx context.Context, projectID, id string) (bool, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var attachmentID *string
	err = tx.QueryRow(ctx, `SELECT attachment_id FROM kb_articles WHERE project_id = $1 AND id = $2`,
		projectID, id).Scan(&attachmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM kb_articles WHERE project_id = $1 AND id = $2`, projectID, id); err != nil {
		return false, err
	}

	if attachmentID != nil {
		var stillReferenced bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM kb_articles WHERE project_id = $1 AND attachment_id = $2)`,
			projectID, *attachmentID,
		).Scan(&stillReferenced)
		if err != nil {
			return false, err
		}
		if !stillReferenced {
			if _, err := tx.Exec(ctx, `DELETE FROM attachments WHERE project_id = $1 AND id = $2`,
				projectID, *attachmentID); err != nil {
				return false, err
			}
		}
	}

	return true, tx.Commit(ctx)
}

func (d *DocDBStorage) ReclaimAttachment(ctx context.Context, projectID, attachmentID string) error {
	if attachmentID == "" {
		return nil
	}
	_, err := d.pool.Exec(ctx,
		`DELETE FROM attachments WHERE project_id = $1 AND id = $2
		 AND NOT EXISTS (SELECT 1 FROM kb_articles WHERE project_id = $1 AND attachment_id = $2)`,
		projectID, attachmentID)
	return err
}

// --- Attachments -----------------------------------------------------------

func (d *DocDBStorage) PutAttachment(ctx context.Context, projectID string, data []byte, mime, name string) (string, error) {
	id := uuid.NewString()
	_, err := d.pool.Exec(ctx,
		`INSERT INTO attachments (id, project_id, mime, original_name, data) VALUES ($1, $2, $3, $4, $5)`,
		id, projectID, mime, name, data,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (d *DocDBStorage) GetAttachment(ctx context.Context, projectID, id string) (*domain.Attachment, error) {
	var mime, name string
	var data []byte
	err := d.pool.QueryRow(ctx,
		`SELECT mime, original_name, data FROM attachments WHERE project_id = $1 AND id = $2`,
		projectID, id,
	).Scan(&mime, &name, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return domain.NewAttachment(id, projectID, mime, name, data), nil
}

// --- Index artifacts ---------------------------------------------------

func (d *DocDBStorage) PutIndexArtifact(ctx context.Context, projectID string, version uint64, kind ArtifactKind, data []byte) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO index_artifacts (project_id, version, kind, data) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (project_id, version, kind) DO UPDATE SET data = $4`,
		projectID, version, string(kind), data,
	)
	return err
}

func (d *DocDBStorage) GetIndexArtifact(ctx context.Context, projectID string, version uint64, kind ArtifactKind) ([]byte, error) {
	var data []byte
	err := d.pool.QueryRow(ctx,
		`SELECT data FROM index_artifacts WHERE project_id = $1 AND version = $2 AND kind = $3`,
		projectID, version, string(kind),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewDomainError(domain.KindNotFound, "artifact not found")
	}
	return data, err
}

func (d *DocDBStorage) DeleteIndexVersion(ctx context.Context, projectID string, version uint64) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM index_artifacts WHERE project_id = $1 AND version = $2`, projectID, version)
	return err
}

// --- Projects ------------------------------------------------------------

func (d *DocDBStorage) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	var p domain.Project
	err := d.pool.QueryRow(ctx,
		`SELECT id, name, active, created_at, updated_at FROM projects WHERE id = $1`, projectID,
	).Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DocDBStorage) PutProject(ctx context.Context, project *domain.Project) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO projects (id, name, active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = $2, active = $3, updated_at = $5`,
		project.ID, project.Name, project.Active, project.CreatedAt, project.UpdatedAt,
	)
	return err
}

func (d *DocDBStorage) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, name, active, created_at, updated_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// --- EmbeddingIndex ------------------------------------------------------

func (d *DocDBStorage) UpsertEmbeddings(ctx context.Context, projectID string, vectors []EmbeddingVector) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, v := range vectors {
		if len(v.Vector) != embeddingDimension {
			return fmt.Errorf("embedding for record %s has dimension %d, want %d", v.RecordID, len(v.Vector), embeddingDimension)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO record_embeddings (project_id, record_id, embedding) VALUES ($1, $2, $3)
			 ON CONFLICT (project_id, record_id) DO UPDATE SET embedding = $3`,
			projectID, v.RecordID, pgvector.NewVector(v.Vector),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (d *DocDBStorage) DeleteEmbeddings(ctx context.Context, projectID string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM record_embeddings WHERE project_id = $1`, projectID)
	return err
}
