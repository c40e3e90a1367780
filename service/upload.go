package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"material-pipeline/constant"
	"material-pipeline/dto"
	"material-pipeline/entities"
	"material-pipeline/pkg/apperr"
	"material-pipeline/pkg/storage"
	"material-pipeline/repository"
)

// BatchUploadError reports the file that stopped a batch and the records
// stored before it. Those records are kept.
type BatchUploadError struct {
	FailedFile string
	Stored     []*entities.CourseMaterial
	Err        error
}

func (e *BatchUploadError) Error() string {
	return fmt.Sprintf("upload of %q failed after %d stored file(s): %v", e.FailedFile, len(e.Stored), e.Err)
}

func (e *BatchUploadError) Unwrap() error {
	return e.Err
}

type UploadService interface {
	// Upload stores files one after another and stops at the first failure.
	Upload(ctx context.Context, courseID, uploaderID uuid.UUID, files []storage.File, meta dto.UploadMeta) ([]*entities.CourseMaterial, error)
	GetAccessURL(ctx context.Context, materialID uuid.UUID) (string, error)
	StreamFile(ctx context.Context, materialID uuid.UUID) (*storage.FileStream, error)
	ListCourseFiles(ctx context.Context, courseID uuid.UUID) ([]*entities.CourseMaterial, error)
	AddVariant(ctx context.Context, materialID uuid.UUID, variant entities.Variant) error
	SetStatus(ctx context.Context, materialID uuid.UUID, status constant.FileStatus) error
	Delete(ctx context.Context, materialID uuid.UUID) error
}

type uploadService struct {
	files      repository.CourseMaterialRepository
	dispatcher *Dispatcher
	providers  *storage.Registry
	publisher  JobPublisher
}

func (s *uploadService) Upload(ctx context.Context, courseID, uploaderID uuid.UUID, files []storage.File, meta dto.UploadMeta) ([]*entities.CourseMaterial, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("no files to upload")
	}
	uctx := UploadContext{CourseID: courseID, UploaderID: uploaderID, Meta: meta}
	logger := zerolog.Ctx(ctx).With().Str("course_id", courseID.String()).Logger()

	stored := make([]*entities.CourseMaterial, 0, len(files))
	for _, file := range files {
		material, err := s.uploadOne(ctx, file, uctx)
		if err != nil {
			logger.Error().Err(err).Str("file", file.OriginalName).Int("stored", len(stored)).Msg("upload batch aborted")
			return stored, &BatchUploadError{FailedFile: file.OriginalName, Stored: stored, Err: err}
		}
		logger.Info().
			Str("file", file.OriginalName).
			Str("material_id", material.ID.String()).
			Str("type", string(material.Type)).
			Msg("file stored")
		stored = append(stored, material)
	}
	return stored, nil
}

// uploadOne validates before touching storage and records only after the
// provider write succeeded.
func (s *uploadService) uploadOne(ctx context.Context, file storage.File, uctx UploadContext) (*entities.CourseMaterial, error) {
	strategy, err := s.dispatcher.ResolveFile(file)
	if err != nil {
		return nil, err
	}
	if err := strategy.Validate(file); err != nil {
		return nil, err
	}
	result, err := strategy.Store(ctx, file, uctx)
	if err != nil {
		return nil, err
	}
	material := strategy.BuildMetadata(ctx, file, result, uctx)
	if err := s.files.Create(ctx, material); err != nil {
		return nil, err
	}

	if material.Type == constant.FileTypeVideo && s.publisher != nil {
		err := s.publisher.PublishTranscode(ctx, dto.TranscodeMessage{MaterialId: material.ID})
		if err != nil {
			// the original stays playable; renditions can be requeued later
			zerolog.Ctx(ctx).Error().Err(err).Str("material_id", material.ID.String()).Msg("failed to queue transcode")
		}
	}
	return material, nil
}

func (s *uploadService) provider(material *entities.CourseMaterial) (storage.Provider, error) {
	p, err := s.providers.Get(material.StorageProvider)
	if err != nil {
		return nil, apperr.Storage(err, "resolve storage for file %s", material.ID)
	}
	return p, nil
}

func (s *uploadService) GetAccessURL(ctx context.Context, materialID uuid.UUID) (string, error) {
	material, err := s.files.FindByID(ctx, materialID)
	if err != nil {
		return "", err
	}
	p, err := s.provider(material)
	if err != nil {
		return "", err
	}
	url, err := p.AccessURL(ctx, material.StorageRef)
	if err != nil {
		return "", apperr.Storage(err, "access url for file %s", materialID)
	}
	return url, nil
}

func (s *uploadService) StreamFile(ctx context.Context, materialID uuid.UUID) (*storage.FileStream, error) {
	material, err := s.files.FindByID(ctx, materialID)
	if err != nil {
		return nil, err
	}
	p, err := s.provider(material)
	if err != nil {
		return nil, err
	}
	stream, err := p.Open(ctx, material.StorageRef)
	if err != nil {
		return nil, apperr.Storage(err, "open file %s", materialID)
	}

	stream.Filename = material.OriginalName
	if stream.Filename == "" {
		stream.Filename = filepath.Base(material.Filename)
	}
	if material.Mime != "" {
		stream.Mime = material.Mime
	}
	return stream, nil
}

func (s *uploadService) ListCourseFiles(ctx context.Context, courseID uuid.UUID) ([]*entities.CourseMaterial, error) {
	return s.files.ListByCourse(ctx, courseID)
}

func (s *uploadService) AddVariant(ctx context.Context, materialID uuid.UUID, variant entities.Variant) error {
	return s.files.AppendVariant(ctx, materialID, variant)
}

func (s *uploadService) SetStatus(ctx context.Context, materialID uuid.UUID, status constant.FileStatus) error {
	switch status {
	case constant.FileStatusReady, constant.FileStatusProcessing, constant.FileStatusFailed:
	default:
		return apperr.Validation("unknown file status %q", status)
	}
	return s.files.UpdateStatus(ctx, materialID, status)
}

// Delete removes the record only. Backend objects are cleaned up elsewhere.
func (s *uploadService) Delete(ctx context.Context, materialID uuid.UUID) error {
	return s.files.Delete(ctx, materialID)
}

func NewUploadService(
	files repository.CourseMaterialRepository,
	providers *storage.Registry,
	publisher JobPublisher,
) UploadService {
	return &uploadService{
		files:      files,
		dispatcher: NewDispatcher(providers.Default()),
		providers:  providers,
		publisher:  publisher,
	}
}
