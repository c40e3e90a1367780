package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"material-pipeline/constant"
	"material-pipeline/dto"
	"material-pipeline/entities"
	"material-pipeline/pkg/apperr"
	"material-pipeline/pkg/storage"
)

const (
	megabyte = 1024 * 1024

	mimePDF  = "application/pdf"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// UploadContext is what a strategy knows about the batch a file belongs to.
type UploadContext struct {
	CourseID   uuid.UUID
	UploaderID uuid.UUID
	Meta       dto.UploadMeta
}

// UploadStrategy handles one family of files. Strategies never look inside a
// storage reference; they pass it from Store to BuildMetadata untouched.
type UploadStrategy interface {
	Type() constant.FileType
	Supports(mime, ext string) bool
	Validate(file storage.File) error
	Store(ctx context.Context, file storage.File, uctx UploadContext) (*storage.StoreResult, error)
	BuildMetadata(ctx context.Context, file storage.File, stored *storage.StoreResult, uctx UploadContext) *entities.CourseMaterial
}

type fileStrategy struct {
	fileType   constant.FileType
	mimes      []string
	mimePrefix string
	extensions []string
	maxSize    int64
	status     constant.FileStatus
	provider   storage.Provider
}

func (s *fileStrategy) Type() constant.FileType {
	return s.fileType
}

func (s *fileStrategy) Supports(mime, ext string) bool {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	ext = normalizeExt(ext)
	for _, m := range s.mimes {
		if mime == m {
			return true
		}
	}
	if s.mimePrefix != "" && strings.HasPrefix(mime, s.mimePrefix) {
		return true
	}
	for _, e := range s.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (s *fileStrategy) Validate(file storage.File) error {
	if file.Size <= 0 {
		return apperr.Validation("file %q is empty", file.OriginalName)
	}
	if file.Size > s.maxSize {
		return apperr.Validation("file %q exceeds the %d MB limit for %s files", file.OriginalName, s.maxSize/megabyte, strings.ToLower(string(s.fileType)))
	}
	return nil
}

func (s *fileStrategy) Store(ctx context.Context, file storage.File, uctx UploadContext) (*storage.StoreResult, error) {
	stored, err := s.provider.Store(ctx, file, storage.StoreOptions{
		Prefix: fmt.Sprintf("courses/%s", uctx.CourseID),
	})
	if err != nil {
		return nil, apperr.Storage(err, "store %q", file.OriginalName)
	}
	return stored, nil
}

func (s *fileStrategy) BuildMetadata(ctx context.Context, file storage.File, stored *storage.StoreResult, uctx UploadContext) *entities.CourseMaterial {
	mime := stored.Mime
	if mime == "" {
		mime = file.Mime
	}
	return &entities.CourseMaterial{
		CourseID:        uctx.CourseID,
		UploaderID:      uctx.UploaderID,
		Type:            s.fileType,
		Filename:        stored.Filename,
		OriginalName:    file.OriginalName,
		Mime:            mime,
		Size:            stored.Size,
		StorageProvider: stored.Provider,
		StorageRef:      stored.Ref,
		Title:           uctx.Meta.Title,
		Description:     uctx.Meta.Description,
		Status:          s.status,
	}
}

// documentStrategy also records the page count when the upload can be read
// at random offsets, which multipart files can.
type documentStrategy struct {
	fileStrategy
}

func (s *documentStrategy) BuildMetadata(ctx context.Context, file storage.File, stored *storage.StoreResult, uctx UploadContext) *entities.CourseMaterial {
	material := s.fileStrategy.BuildMetadata(ctx, file, stored, uctx)
	if ra, ok := file.Content.(io.ReaderAt); ok {
		if pages, err := countPages(ra, file.Size); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("file", file.OriginalName).Msg("could not count pdf pages")
		} else {
			material.Pages = &pages
		}
	}
	return material
}

func countPages(ra io.ReaderAt, size int64) (pages int, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(ra, size)
	if err != nil {
		return 0, err
	}
	return doc.NumPage(), nil
}

type videoStrategy struct {
	fileStrategy
}

func (s *videoStrategy) BuildMetadata(ctx context.Context, file storage.File, stored *storage.StoreResult, uctx UploadContext) *entities.CourseMaterial {
	material := s.fileStrategy.BuildMetadata(ctx, file, stored, uctx)
	material.Variants = datatypes.NewJSONSlice([]entities.Variant{})
	return material
}

// Dispatcher picks the strategy for an incoming file. Strategies are probed in
// registration order.
type Dispatcher struct {
	strategies []UploadStrategy
}

func NewDispatcher(provider storage.Provider) *Dispatcher {
	return &Dispatcher{strategies: []UploadStrategy{
		&documentStrategy{fileStrategy{
			fileType:   constant.FileTypeDocument,
			mimes:      []string{mimePDF},
			extensions: []string{".pdf"},
			maxSize:    15 * megabyte,
			status:     constant.FileStatusReady,
			provider:   provider,
		}},
		&fileStrategy{
			fileType:   constant.FileTypeSlides,
			mimes:      []string{mimePPTX},
			extensions: []string{".pptx"},
			maxSize:    30 * megabyte,
			status:     constant.FileStatusReady,
			provider:   provider,
		},
		&videoStrategy{fileStrategy{
			fileType:   constant.FileTypeVideo,
			mimePrefix: "video/",
			extensions: []string{".mp4", ".mkv", ".webm"},
			maxSize:    500 * megabyte,
			status:     constant.FileStatusProcessing,
			provider:   provider,
		}},
	}}
}

func (d *Dispatcher) Resolve(mime, ext string) (UploadStrategy, error) {
	for _, s := range d.strategies {
		if s.Supports(mime, ext) {
			return s, nil
		}
	}
	return nil, apperr.Validation("unsupported file type")
}

// ResolveFile resolves by the file's declared mime and the extension of its
// original name.
func (d *Dispatcher) ResolveFile(file storage.File) (UploadStrategy, error) {
	return d.Resolve(file.Mime, filepath.Ext(file.OriginalName))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
