package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"material-pipeline/constant"
	"material-pipeline/entities"
	"material-pipeline/pkg/apperr"
)

type MaterialRepository interface {
	Create(ctx context.Context, record *entities.MaterialRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.MaterialRecord, error)
	FindInFlight(ctx context.Context, transcriptionID uuid.UUID) (*entities.MaterialRecord, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*entities.MaterialRecord, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	UpdateState(ctx context.Context, id uuid.UUID, state constant.MaterialState) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type materialRepo struct {
	base
}

func NewMaterialRepository(db *gorm.DB) MaterialRepository {
	return &materialRepo{base{db: db}}
}

func (r *materialRepo) Create(ctx context.Context, record *entities.MaterialRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	err := r.GetDB(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Validation("generation already in progress for transcript %s", record.TranscriptionID)
	}
	return err
}

func (r *materialRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.MaterialRecord, error) {
	record := &entities.MaterialRecord{}
	err := r.GetDB(ctx).First(record, "id = ?", id).Error
	if isNotFound(err) {
		return nil, apperr.NotFound(err, "material %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// FindInFlight returns the record still generating for a transcript, or nil.
func (r *materialRepo) FindInFlight(ctx context.Context, transcriptionID uuid.UUID) (*entities.MaterialRecord, error) {
	var records []*entities.MaterialRecord
	err := r.GetDB(ctx).
		Where("transcription_id = ? AND state = ?", transcriptionID, constant.MaterialStateGenerating).
		Limit(1).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (r *materialRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*entities.MaterialRecord, error) {
	var records []*entities.MaterialRecord
	err := r.GetDB(ctx).Where("course_id = ?", courseID).Order("created_at ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *materialRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.GetDB(ctx).Model(&entities.MaterialRecord{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(nil, "material %s not found", id)
	}
	return nil
}

func (r *materialRepo) UpdateState(ctx context.Context, id uuid.UUID, state constant.MaterialState) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{"state": state})
}

func (r *materialRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.GetDB(ctx).Delete(&entities.MaterialRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(nil, "material %s not found", id)
	}
	return nil
}
