package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"material-pipeline/constant"
)

type MinIO struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewMinIO(client *minio.Client, bucket string, ttl time.Duration) *MinIO {
	if ttl <= 0 {
		ttl = defaultURLTTL
	}
	return &MinIO{client: client, bucket: bucket, ttl: ttl}
}

// EnsureBucket creates the bucket on first start.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %s: %w", m.bucket, err)
		}
	}
	return nil
}

func (m *MinIO) Name() constant.StorageProvider {
	return constant.StorageProviderMinIO
}

func (m *MinIO) Store(ctx context.Context, file File, opts StoreOptions) (*StoreResult, error) {
	filename := resolveFilename(file, opts)
	key := objectKey(opts.Prefix, filename)
	size := file.Size
	if size <= 0 {
		size = -1
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, file.Content, size, minio.PutObjectOptions{
		ContentType: file.Mime,
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	return &StoreResult{
		Provider:     m.Name(),
		Ref:          key,
		Mime:         file.Mime,
		Size:         info.Size,
		OriginalName: file.OriginalName,
		Filename:     filename,
	}, nil
}

func (m *MinIO) AccessURL(ctx context.Context, ref string) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, ref, m.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

func (m *MinIO) Open(ctx context.Context, ref string) (*FileStream, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", ref, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return &FileStream{
		Stream:   obj,
		Filename: path.Base(ref),
		Mime:     info.ContentType,
		Size:     info.Size,
	}, nil
}

func (m *MinIO) Delete(ctx context.Context, ref string) error {
	return m.client.RemoveObject(ctx, m.bucket, ref, minio.RemoveObjectOptions{})
}
