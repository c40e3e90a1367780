package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"material-pipeline/constant"
	"material-pipeline/entities"
	"material-pipeline/pkg/apperr"
	"material-pipeline/repository/repotest"
)

func newCourseMaterial(courseID uuid.UUID, fileType constant.FileType, status constant.FileStatus) *entities.CourseMaterial {
	return &entities.CourseMaterial{
		CourseID:        courseID,
		UploaderID:      uuid.New(),
		Type:            fileType,
		Filename:        uuid.NewString() + ".bin",
		OriginalName:    "upload.bin",
		Mime:            "application/octet-stream",
		Size:            1024,
		StorageProvider: constant.StorageProviderLocal,
		StorageRef:      "ref/" + uuid.NewString(),
		Status:          status,
	}
}

func TestCourseMaterialVariants(t *testing.T) {
	ctx := context.Background()
	repo := NewCourseMaterialRepository(repotest.DB(t))
	courseID := uuid.New()

	video := newCourseMaterial(courseID, constant.FileTypeVideo, constant.FileStatusProcessing)
	require.NoError(t, repo.Create(ctx, video))

	require.NoError(t, repo.AppendVariant(ctx, video.ID, entities.Variant{Resolution: "360p", StorageRef: "v/360", Size: 10}))
	require.NoError(t, repo.AppendVariant(ctx, video.ID, entities.Variant{Resolution: "720p", StorageRef: "v/720", Size: 20}))
	require.NoError(t, repo.UpdateDuration(ctx, video.ID, 95))
	require.NoError(t, repo.UpdateStatus(ctx, video.ID, constant.FileStatusReady))

	got, err := repo.FindByID(ctx, video.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 2)
	assert.Equal(t, "360p", got.Variants[0].Resolution)
	assert.Equal(t, "720p", got.Variants[1].Resolution)
	require.NotNil(t, got.Duration)
	assert.Equal(t, 95, *got.Duration)
	assert.Equal(t, constant.FileStatusReady, got.Status)
}

func TestCourseMaterialVariantsRejectedForDocuments(t *testing.T) {
	ctx := context.Background()
	repo := NewCourseMaterialRepository(repotest.DB(t))

	doc := newCourseMaterial(uuid.New(), constant.FileTypeDocument, constant.FileStatusReady)
	require.NoError(t, repo.Create(ctx, doc))

	err := repo.AppendVariant(ctx, doc.ID, entities.Variant{Resolution: "720p", StorageRef: "x", Size: 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := repo.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Variants)
}

func TestCourseMaterialListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewCourseMaterialRepository(repotest.DB(t))
	courseID := uuid.New()

	a := newCourseMaterial(courseID, constant.FileTypeDocument, constant.FileStatusReady)
	b := newCourseMaterial(courseID, constant.FileTypeSlides, constant.FileStatusReady)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	files, err := repo.ListByCourse(ctx, courseID)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	require.NoError(t, repo.Delete(ctx, a.ID))
	_, err = repo.FindByID(ctx, a.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
