package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"material-pipeline/constant"
	"material-pipeline/entities"
	"material-pipeline/pkg/apperr"
)

type CourseMaterialRepository interface {
	Create(ctx context.Context, material *entities.CourseMaterial) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.CourseMaterial, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*entities.CourseMaterial, error)
	AppendVariant(ctx context.Context, id uuid.UUID, variant entities.Variant) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status constant.FileStatus) error
	UpdateDuration(ctx context.Context, id uuid.UUID, seconds int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type courseMaterialRepo struct {
	base
}

func NewCourseMaterialRepository(db *gorm.DB) CourseMaterialRepository {
	return &courseMaterialRepo{base{db: db}}
}

func (r *courseMaterialRepo) Create(ctx context.Context, material *entities.CourseMaterial) error {
	if material.ID == uuid.Nil {
		material.ID = uuid.New()
	}
	return r.GetDB(ctx).Create(material).Error
}

func (r *courseMaterialRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.CourseMaterial, error) {
	material := &entities.CourseMaterial{}
	err := r.GetDB(ctx).First(material, "id = ?", id).Error
	if isNotFound(err) {
		return nil, apperr.NotFound(err, "course file %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return material, nil
}

func (r *courseMaterialRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*entities.CourseMaterial, error) {
	var materials []*entities.CourseMaterial
	err := r.GetDB(ctx).Where("course_id = ?", courseID).Order("created_at ASC").Find(&materials).Error
	if err != nil {
		return nil, err
	}
	return materials, nil
}

// AppendVariant adds a rendition to a video record. Only VIDEO records may
// carry variants.
func (r *courseMaterialRepo) AppendVariant(ctx context.Context, id uuid.UUID, variant entities.Variant) error {
	return r.Transaction(ctx, func(ctx context.Context) error {
		material, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if material.Type != constant.FileTypeVideo {
			return apperr.Validation("only video files can carry variants, %s is %s", id, material.Type)
		}
		variants := append(material.Variants, variant)
		return r.GetDB(ctx).Model(&entities.CourseMaterial{}).Where("id = ?", id).
			Update("variants", variants).Error
	})
}

func (r *courseMaterialRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status constant.FileStatus) error {
	return r.update(ctx, id, "status", status)
}

func (r *courseMaterialRepo) UpdateDuration(ctx context.Context, id uuid.UUID, seconds int) error {
	return r.update(ctx, id, "duration", seconds)
}

func (r *courseMaterialRepo) update(ctx context.Context, id uuid.UUID, column string, value interface{}) error {
	res := r.GetDB(ctx).Model(&entities.CourseMaterial{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(nil, "course file %s not found", id)
	}
	return nil
}

func (r *courseMaterialRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.GetDB(ctx).Delete(&entities.CourseMaterial{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(nil, "course file %s not found", id)
	}
	return nil
}
