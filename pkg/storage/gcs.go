package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"material-pipeline/constant"
)

type GCS struct {
	client *gcstorage.Client
	bucket string
	ttl    time.Duration
}

func NewGCS(ctx context.Context, bucket, credentialsFile string, ttl time.Duration) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultURLTTL
	}
	return &GCS{client: client, bucket: bucket, ttl: ttl}, nil
}

func (g *GCS) Name() constant.StorageProvider {
	return constant.StorageProviderGCS
}

func (g *GCS) Store(ctx context.Context, file File, opts StoreOptions) (*StoreResult, error) {
	filename := resolveFilename(file, opts)
	key := objectKey(opts.Prefix, filename)

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = file.Mime
	written, err := copyBuffer(w, file.Content)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize object: %w", err)
	}
	return &StoreResult{
		Provider:     g.Name(),
		Ref:          key,
		Mime:         file.Mime,
		Size:         written,
		OriginalName: file.OriginalName,
		Filename:     filename,
	}, nil
}

func (g *GCS) AccessURL(ctx context.Context, ref string) (string, error) {
	u, err := g.client.Bucket(g.bucket).SignedURL(ref, &gcstorage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(g.ttl),
		Scheme:  gcstorage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	return u, nil
}

func (g *GCS) Open(ctx context.Context, ref string) (*FileStream, error) {
	r, err := g.client.Bucket(g.bucket).Object(ref).NewReader(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", ref, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return &FileStream{
		Stream:   r,
		Filename: path.Base(ref),
		Mime:     r.Attrs.ContentType,
		Size:     r.Attrs.Size,
	}, nil
}

func (g *GCS) Delete(ctx context.Context, ref string) error {
	err := g.client.Bucket(g.bucket).Object(ref).Delete(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCS) Close() error {
	return g.client.Close()
}
