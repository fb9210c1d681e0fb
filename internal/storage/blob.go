package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/google/uuid"
)

// BlobClientConfig configures the S3-compatible client underlying the blob
// Storage backend.
type BlobClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// BlobStorage is the STORAGE_TYPE=blob Storage backend, keeping attachments,
// FAQ/KB records, and index artifacts as S3-compatible objects under
// <pid>/... keys. It is a direct generalization of the teacher's
// presigned-URL S3 client into the full abstract Storage contract: the
// presign machinery is kept and exposed as AttachmentDownloadURL for callers
// that want a redirect instead of streamed bytes.
type BlobStorage struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	downloadURLExpiry time.Duration
}

// NewBlobStorage creates a BlobStorage backend.
func NewBlobStorage(ctx context.Context, cfg BlobClientConfig) (*BlobStorage, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{URL: cfg.Endpoint, HostnameImmutable: true}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &BlobStorage{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		downloadURLExpiry: 1 * time.Hour,
	}, nil
}

// EnsureBucket creates the configured bucket if it does not already exist.
func (b *BlobStorage) EnsureBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err == nil {
		return nil
	}
	_, err = b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (b *BlobStorage) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, domain.NewDomainError(domain.KindNotFound, "object not found: "+key)
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (b *BlobStorage) putObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

func (b *BlobStorage) deleteObject(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	return err
}

// AttachmentDownloadURL returns a presigned, time-limited URL for an
// attachment object, grounded on the teacher's presign pattern.
func (b *BlobStorage) AttachmentDownloadURL(ctx context.Context, projectID, attachmentID string) (string, error) {
	key := attachmentKey(projectID, attachmentID)
	req, err := b.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket), Key: aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = b.downloadURLExpiry })
	if err != nil {
		return "", fmt.Errorf("presign download url: %w", err)
	}
	return req.URL, nil
}

// --- key scheme ------------------------------------------------------------

func faqsKey(projectID string) string { return fmt.Sprintf("%s/faqs.json", projectID) }
func kbKey(projectID string) string   { return fmt.Sprintf("%s/kb.json", projectID) }

func attachmentKey(projectID, id string) string {
	return fmt.Sprintf("%s/attachments/%s.bin", projectID, id)
}

func attachmentMetaKey(projectID, id string) string {
	return fmt.Sprintf("%s/attachments/%s.meta.json", projectID, id)
}

func artifactKey(projectID string, version uint64, kind ArtifactKind) string {
	return fmt.Sprintf("%s/index/v%d/%s", projectID, version, kind)
}

func projectsKey() string { return "projects.json" }

func (b *BlobStorage) readList(ctx context.Context, key string, out any) error {
	data, err := b.getObject(ctx, key)
	if err != nil {
		if domain.Kind(err) == domain.KindNotFound {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// --- FAQs --------------------------------------------------------------

func (b *BlobStorage) ListFAQs(ctx context.Context, projectID string) ([]*domain.FAQ, error) {
	var out []*domain.FAQ
	err := b.readList(ctx, faqsKey(projectID), &out)
	return out, err
}

func (b *BlobStorage) PutFAQ(ctx context.Context, projectID string, faq *domain.FAQ) (*domain.FAQ, error) {
	faqs, err := b.ListFAQs(ctx, projectID)
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
	data, err := json.Marshal(faqs)
	if err != nil {
		return nil, err
	}
	return prior, b.putObject(ctx, faqsKey(projectID), data, "application/json")
}

func (b *BlobStorage) DeleteFAQ(ctx context.Context, projectID, id string) (bool, error) {
	faqs, err := b.ListFAQs(ctx, projectID)
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
	data, err := json.Marshal(out)
	if err != nil {
		return false, err
	}
	return true, b.putObject(ctx, faqsKey(projectID), data, "application/json")
}

// --- KB ------------------------------------------------------------------

func (b *BlobStorage) ListKB(ctx context.Context, projectID string) ([]*domain.KB, error) {
	var out []*domain.KB
	err := b.readList(ctx, kbKey(projectID), &out)
	return out, err
}

func (b *BlobStorage) PutKB(ctx context.Context, projectID string, kb *domain.KB) (*domain.KB, error) {
	items, err := b.ListKB(ctx, projectID)
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
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return prior, b.putObject(ctx, kbKey(projectID), data, "application/json")
}

func (b *BlobStorage) DeleteKB(ctx context.Context, projectID, id string) (bool, error) {
	items, err := b.ListKB(ctx, projectID)
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
	data, err := json.Marshal(out)
	if err != nil {
		return false, err
	}
	if err := b.putObject(ctx, kbKey(projectID), data, "application/json"); err != nil {
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
			_ = b.deleteObject(ctx, attachmentKey(projectID, removedRecord.AttachmentID))
			_ = b.deleteObject(ctx, attachmentMetaKey(projectID, removedRecord.AttachmentID))
		}
	}
	return true, nil
}

func (b *BlobStorage) ReclaimAttachment(ctx context.Context, projectID, attachmentID string) error {
	if attachmentID == "" {
		return nil
	}
	items, err := b.ListKB(ctx, projectID)
	if err != nil {
		return err
	}
	for _, k := range items {
		if k.AttachmentID == attachmentID {
			return nil
		}
	}
	_ = b.deleteObject(ctx, attachmentKey(projectID, attachmentID))
	_ = b.deleteObject(ctx, attachmentMetaKey(projectID, attachmentID))
	return nil
}

// --- Attachments -----------------------------------------------------------

func (b *BlobStorage) PutAttachment(ctx context.Context, projectID string, data []byte, mime, name string) (string, error) {
	id := uuid.NewString()
	if err := b.putObject(ctx, attachmentKey(projectID, id), data, mime); err != nil {
		return "", err
	}
	meta := attachmentMeta{Mime: mime, OriginalName: name}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	if err := b.putObject(ctx, attachmentMetaKey(projectID, id), metaData, "application/json"); err != nil {
		return "", err
	}
	return id, nil
}

func (b *BlobStorage) GetAttachment(ctx context.Context, projectID, id string) (*domain.Attachment, error) {
	data, err := b.getObject(ctx, attachmentKey(projectID, id))
	if err != nil {
		if domain.Kind(err) == domain.KindNotFound {
			return nil, domain.ErrAttachmentNotFound
		}
		return nil, err
	}
	metaData, err := b.getObject(ctx, attachmentMetaKey(projectID, id))
	if err != nil {
		return nil, err
	}
	var meta attachmentMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, err
	}
	return domain.NewAttachment(id, projectID, meta.Mime, meta.OriginalName, data), nil
}

// --- Index artifacts ---------------------------------------------------

func (b *BlobStorage) PutIndexArtifact(ctx context.Context, projectID string, version uint64, kind ArtifactKind, data []byte) error {
	return b.putObject(ctx, artifactKey(projectID, version, kind), data, "application/octet-stream")
}

func (b *BlobStorage) GetIndexArtifact(ctx context.Context, projectID string, version uint64, kind ArtifactKind) ([]byte, error) {
	data, err := b.getObject(ctx, artifactKey(projectID, version, kind))
	if err != nil {
		if domain.Kind(err) == domain.KindNotFound {
			return nil, domain.NewDomainError(domain.KindNotFound, "artifact not found")
		}
		return nil, err
	}
	return data, nil
}

func (b *BlobStorage) DeleteIndexVersion(ctx context.Context, projectID string, version uint64) error {
	for _, kind := range []ArtifactKind{domain.ArtifactDense, domain.ArtifactSparse, domain.ArtifactBasic, domain.ArtifactMeta} {
		_ = b.deleteObject(ctx, artifactKey(projectID, version, kind))
	}
	return nil
}

// --- Projects ------------------------------------------------------------

func (b *BlobStorage) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	projects, err := b.ListProjects(ctx)
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

func (b *BlobStorage) PutProject(ctx context.Context, project *domain.Project) error {
	projects, err := b.ListProjects(ctx)
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
	data, err := json.Marshal(projects)
	if err != nil {
		return err
	}
	return b.putObject(ctx, projectsKey(), data, "application/json")
}

func (b *BlobStorage) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	var out []*domain.Project
	err := b.readList(ctx, projectsKey(), &out)
	return out, err
}
