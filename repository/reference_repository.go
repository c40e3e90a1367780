package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"material-pipeline/entities"
	"material-pipeline/pkg/apperr"
)

// ReferenceRepository reads transcripts, courses and users owned by other
// services.
type ReferenceRepository interface {
	GetTranscript(ctx context.Context, id uuid.UUID) (*entities.Transcript, error)
	GetSyllabusContext(ctx context.Context, courseID uuid.UUID) (string, error)
	GetUser(ctx context.Context, id uuid.UUID) (*entities.User, error)
}

type referenceRepo struct {
	base
}

func NewReferenceRepository(db *gorm.DB) ReferenceRepository {
	return &referenceRepo{base{db: db}}
}

func (r *referenceRepo) GetTranscript(ctx context.Context, id uuid.UUID) (*entities.Transcript, error) {
	transcript := &entities.Transcript{}
	err := r.GetDB(ctx).First(transcript, "id = ?", id).Error
	if isNotFound(err) {
		return nil, apperr.NotFound(err, "transcript %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return transcript, nil
}

// GetSyllabusContext returns the course syllabus, or "" when the course has none.
func (r *referenceRepo) GetSyllabusContext(ctx context.Context, courseID uuid.UUID) (string, error) {
	course := &entities.Course{}
	err := r.GetDB(ctx).First(course, "id = ?", courseID).Error
	if isNotFound(err) {
		return "", apperr.NotFound(err, "course %s not found", courseID)
	}
	if err != nil {
		return "", err
	}
	if course.Syllabus == nil {
		return "", nil
	}
	return *course.Syllabus, nil
}

func (r *referenceRepo) GetUser(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	user := &entities.User{}
	err := r.GetDB(ctx).First(user, "id = ?", id).Error
	if isNotFound(err) {
		return nil, apperr.NotFound(err, "user %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
