package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"material-pipeline/entities"
	"material-pipeline/pkg/apperr"
	"material-pipeline/repository/repotest"
)

func TestReferenceRepository(t *testing.T) {
	ctx := context.Background()
	db := repotest.DB(t)
	repo := NewReferenceRepository(db)

	syllabus := "covers BFS/DFS"
	course := &entities.Course{ID: uuid.New(), Name: "Algorithms", Syllabus: &syllabus}
	bare := &entities.Course{ID: uuid.New(), Name: "Seminar"}
	owner := &entities.User{ID: uuid.New(), Email: "prof@example.edu", Name: "Prof"}
	transcript := &entities.Transcript{ID: uuid.New(), CourseID: course.ID, OwnerID: owner.ID, Text: "Lecture on graphs"}
	require.NoError(t, db.Create(course).Error)
	require.NoError(t, db.Create(bare).Error)
	require.NoError(t, db.Create(owner).Error)
	require.NoError(t, db.Create(transcript).Error)

	got, err := repo.GetTranscript(ctx, transcript.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lecture on graphs", got.Text)
	assert.Equal(t, owner.ID, got.OwnerID)

	text, err := repo.GetSyllabusContext(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, syllabus, text)

	text, err = repo.GetSyllabusContext(ctx, bare.ID)
	require.NoError(t, err)
	assert.Empty(t, text)

	user, err := repo.GetUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "prof@example.edu", user.Email)

	_, err = repo.GetTranscript(ctx, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
