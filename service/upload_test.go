package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"material-pipeline/constant"
	"material-pipeline/dto"
	"material-pipeline/entities"
	"material-pipeline/pkg/apperr"
	"material-pipeline/pkg/storage"
	"material-pipeline/repository"
	"material-pipeline/repository/repotest"
)

// countingProvider counts Store calls and can be told to fail them.
type countingProvider struct {
	storage.Provider
	stores  atomic.Int32
	failErr error
}

func (p *countingProvider) Store(ctx context.Context, file storage.File, opts storage.StoreOptions) (*storage.StoreResult, error) {
	p.stores.Add(1)
	if p.failErr != nil {
		return nil, p.failErr
	}
	return p.Provider.Store(ctx, file, opts)
}

type uploadFixture struct {
	svc       *uploadService
	provider  *countingProvider
	publisher *fakePublisher
	files     repository.CourseMaterialRepository
	courseID  uuid.UUID
	uploader  uuid.UUID
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()
	db := repotest.DB(t)
	local, err := storage.NewLocal(t.TempDir(), "http://files.test/storage/local", []byte("secret"), time.Minute)
	require.NoError(t, err)

	provider := &countingProvider{Provider: local}
	publisher := &fakePublisher{}
	files := repository.NewCourseMaterialRepository(db)
	svc := NewUploadService(files, storage.NewRegistry(provider), publisher).(*uploadService)
	return &uploadFixture{
		svc:       svc,
		provider:  provider,
		publisher: publisher,
		files:     files,
		courseID:  uuid.New(),
		uploader:  uuid.New(),
	}
}

func memFile(name, mime string, content []byte) storage.File {
	return storage.File{OriginalName: name, Mime: mime, Size: int64(len(content)), Content: bytes.NewReader(content)}
}

func TestDispatcherResolve(t *testing.T) {
	d := NewDispatcher(nil)
	tests := []struct {
		mime string
		ext  string
		want constant.FileType
	}{
		{"application/pdf", "", constant.FileTypeDocument},
		{"application/pdf; charset=binary", "", constant.FileTypeDocument},
		{"application/octet-stream", ".PDF", constant.FileTypeDocument},
		{mimePPTX, "", constant.FileTypeSlides},
		{"", "pptx", constant.FileTypeSlides},
		{"video/quicktime", ".mov", constant.FileTypeVideo},
		{"", ".mkv", constant.FileTypeVideo},
		{"application/octet-stream", ".webm", constant.FileTypeVideo},
	}
	for _, tt := range tests {
		t.Run(tt.mime+tt.ext, func(t *testing.T) {
			s, err := d.Resolve(tt.mime, tt.ext)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Type())
		})
	}

	_, err := d.Resolve("application/x-msdownload", ".exe")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "unsupported file type", err.Error())
}

func TestUploadOversizedPDFFailsBeforeStorage(t *testing.T) {
	f := newUploadFixture(t)
	file := storage.File{
		OriginalName: "notes.pdf",
		Mime:         "application/pdf",
		Size:         20 * megabyte,
		Content:      strings.NewReader("%PDF"),
	}

	stored, err := f.svc.Upload(context.Background(), f.courseID, f.uploader, []storage.File{file}, dto.UploadMeta{})
	require.Error(t, err)
	assert.Empty(t, stored)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "15 MB")
	assert.Zero(t, f.provider.stores.Load())
}

func TestUploadVideoStartsProcessing(t *testing.T) {
	f := newUploadFixture(t)
	file := memFile("lecture.mp4", "video/mp4", make([]byte, 10*megabyte))

	stored, err := f.svc.Upload(context.Background(), f.courseID, f.uploader, []storage.File{file}, dto.UploadMeta{Title: strPtr("Week 3")})
	require.NoError(t, err)
	require.Len(t, stored, 1)

	video, err := f.files.FindByID(context.Background(), stored[0].ID)
	require.NoError(t, err)
	assert.Equal(t, constant.FileTypeVideo, video.Type)
	assert.Equal(t, constant.FileStatusProcessing, video.Status)
	assert.NotNil(t, video.Variants)
	assert.Empty(t, video.Variants)
	assert.Equal(t, int64(10*megabyte), video.Size)
	assert.Equal(t, "Week 3", *video.Title)
	assert.Equal(t, []dto.TranscodeMessage{{MaterialId: video.ID}}, f.publisher.transcode)
}

func TestUploadDocumentsAreReady(t *testing.T) {
	f := newUploadFixture(t)
	files := []storage.File{
		memFile("syllabus.pdf", "application/pdf", []byte("not really a pdf")),
		memFile("week1.pptx", mimePPTX, []byte("PK slides")),
	}

	stored, err := f.svc.Upload(context.Background(), f.courseID, f.uploader, files, dto.UploadMeta{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, constant.FileTypeDocument, stored[0].Type)
	assert.Equal(t, constant.FileStatusReady, stored[0].Status)
	assert.Nil(t, stored[0].Pages)
	assert.Equal(t, constant.FileTypeSlides, stored[1].Type)
	assert.Equal(t, constant.FileStatusReady, stored[1].Status)
	assert.Equal(t, constant.StorageProviderLocal, stored[1].StorageProvider)
	assert.Empty(t, f.publisher.transcode)

	listed, err := f.svc.ListCourseFiles(context.Background(), f.courseID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestUploadBatchAbortsOnFirstFailure(t *testing.T) {
	f := newUploadFixture(t)
	files := []storage.File{
		memFile("notes.pdf", "application/pdf", []byte("%PDF")),
		memFile("setup.exe", "application/x-msdownload", []byte("MZ")),
		memFile("week1.pptx", mimePPTX, []byte("PK")),
	}

	stored, err := f.svc.Upload(context.Background(), f.courseID, f.uploader, files, dto.UploadMeta{})
	require.Error(t, err)

	var batchErr *BatchUploadError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, "setup.exe", batchErr.FailedFile)
	require.Len(t, batchErr.Stored, 1)
	assert.Equal(t, "notes.pdf", batchErr.Stored[0].OriginalName)
	assert.Equal(t, batchErr.Stored, stored)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.EqualValues(t, 1, f.provider.stores.Load())

	listed, err := f.svc.ListCourseFiles(context.Background(), f.courseID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestUploadStorageFailureIsStorageError(t *testing.T) {
	f := newUploadFixture(t)
	f.provider.failErr = errors.New("disk full")

	_, err := f.svc.Upload(context.Background(), f.courseID, f.uploader,
		[]storage.File{memFile("notes.pdf", "application/pdf", []byte("%PDF"))}, dto.UploadMeta{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStorage))

	listed, err := f.svc.ListCourseFiles(context.Background(), f.courseID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestUploadRejectsEmptyBatch(t *testing.T) {
	f := newUploadFixture(t)
	_, err := f.svc.Upload(context.Background(), f.courseID, f.uploader, nil, dto.UploadMeta{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAccessURLIsDerivedFromRef(t *testing.T) {
	f := newUploadFixture(t)
	stored, err := f.svc.Upload(context.Background(), f.courseID, f.uploader,
		[]storage.File{memFile("  Final Review (v2)!!.PDF", "application/pdf", []byte("%PDF"))}, dto.UploadMeta{})
	require.NoError(t, err)

	raw, err := f.svc.GetAccessURL(context.Background(), stored[0].ID)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/storage/local/"+stored[0].StorageRef, u.Path)
	assert.NotContains(t, raw, "Final")
	assert.NotEmpty(t, u.Query().Get("signature"))

	_, err = f.svc.GetAccessURL(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStreamFileUsesOriginalName(t *testing.T) {
	f := newUploadFixture(t)
	stored, err := f.svc.Upload(context.Background(), f.courseID, f.uploader,
		[]storage.File{memFile("Week 1.pptx", mimePPTX, []byte("PK slides"))}, dto.UploadMeta{})
	require.NoError(t, err)

	stream, err := f.svc.StreamFile(context.Background(), stored[0].ID)
	require.NoError(t, err)
	defer stream.Stream.Close()
	body, err := io.ReadAll(stream.Stream)
	require.NoError(t, err)
	assert.Equal(t, "PK slides", string(body))
	assert.Equal(t, "Week 1.pptx", stream.Filename)
	assert.Equal(t, mimePPTX, stream.Mime)
	assert.Equal(t, int64(9), stream.Size)
}

func TestVariantsAndStatus(t *testing.T) {
	f := newUploadFixture(t)
	stored, err := f.svc.Upload(context.Background(), f.courseID, f.uploader, []storage.File{
		memFile("lecture.webm", "video/webm", []byte("webm")),
		memFile("notes.pdf", "application/pdf", []byte("%PDF")),
	}, dto.UploadMeta{})
	require.NoError(t, err)
	video, doc := stored[0], stored[1]

	require.NoError(t, f.svc.AddVariant(context.Background(), video.ID, entities.Variant{Resolution: "720p", StorageRef: "v/720p.mp4", Size: 3}))
	err = f.svc.AddVariant(context.Background(), doc.ID, entities.Variant{Resolution: "720p"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, f.svc.SetStatus(context.Background(), video.ID, constant.FileStatusReady))
	assert.True(t, apperr.Is(f.svc.SetStatus(context.Background(), video.ID, "DONE"), apperr.KindValidation))

	got, err := f.files.FindByID(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Equal(t, constant.FileStatusReady, got.Status)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, "720p", got.Variants[0].Resolution)

	require.NoError(t, f.svc.Delete(context.Background(), doc.ID))
	_, err = f.svc.StreamFile(context.Background(), doc.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
