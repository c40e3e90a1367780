package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"material-pipeline/constant"
	"material-pipeline/pkg/storage"
)

// NewStorageRegistry builds the configured default provider plus every other
// provider that has settings, so files stored before a backend switch keep
// resolving.
func NewStorageRegistry(ctx context.Context, cfg Storage) (*storage.Registry, error) {
	builders := map[constant.StorageProvider]func() (storage.Provider, error){}
	if cfg.Local.Root != "" {
		builders[constant.StorageProviderLocal] = func() (storage.Provider, error) { return newLocal(cfg) }
	}
	if cfg.MinIO.URL != "" {
		builders[constant.StorageProviderMinIO] = func() (storage.Provider, error) { return newMinIO(ctx, cfg) }
	}
	if cfg.GCS.Bucket != "" {
		builders[constant.StorageProviderGCS] = func() (storage.Provider, error) {
			return storage.NewGCS(ctx, cfg.GCS.Bucket, cfg.GCS.CredentialsFile, cfg.URLTTL)
		}
	}

	build, ok := builders[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("storage provider %q is not configured", cfg.Provider)
	}
	def, err := build()
	if err != nil {
		return nil, err
	}

	var others []storage.Provider
	for name, build := range builders {
		if name == cfg.Provider {
			continue
		}
		p, err := build()
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("provider", string(name)).Msg("secondary storage provider unavailable")
			continue
		}
		others = append(others, p)
	}
	zerolog.Ctx(ctx).Info().Str("provider", string(cfg.Provider)).Int("secondary", len(others)).Msg("storage ready")
	return storage.NewRegistry(def, others...), nil
}

func newLocal(cfg Storage) (*storage.Local, error) {
	if cfg.Local.SigningSecret == "" {
		return nil, errors.New("storage.local.signing_secret is required")
	}
	return storage.NewLocal(cfg.Local.Root, cfg.Local.BaseURL, []byte(cfg.Local.SigningSecret), cfg.URLTTL)
}

func newMinIO(ctx context.Context, cfg Storage) (*storage.MinIO, error) {
	client, err := minio.New(cfg.MinIO.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessID, cfg.MinIO.SecretAccessKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	m := storage.NewMinIO(client, cfg.MinIO.Bucket, cfg.URLTTL)
	if err := m.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}
