package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"material-pipeline/constant"
)

// Variant is an alternate rendition of a video, stored through the same
// provider as the original.
type Variant struct {
	Resolution string `json:"resolution"`
	StorageRef string `json:"storageRef"`
	Size       int64  `json:"size"`
}

type CourseMaterial struct {
	ID              uuid.UUID                    `json:"id" gorm:"type:uuid;primary_key"`
	CourseID        uuid.UUID                    `json:"courseId" gorm:"type:uuid;not null;index:idx_course_materials_course"`
	UploaderID      uuid.UUID                    `json:"uploaderId" gorm:"type:uuid;not null"`
	Type            constant.FileType            `json:"type" gorm:"type:varchar(20);not null"`
	Filename        string                       `json:"filename" gorm:"type:varchar(255);not null"`
	OriginalName    string                       `json:"originalName" gorm:"type:varchar(255);not null"`
	Mime            string                       `json:"mime" gorm:"type:varchar(255);not null"`
	Size            int64                        `json:"size" gorm:"type:bigint;not null"`
	StorageProvider constant.StorageProvider     `json:"storageProvider" gorm:"type:varchar(20);not null"`
	StorageRef      string                       `json:"storageRef" gorm:"type:varchar(500);not null"`
	Title           *string                      `json:"title,omitempty" gorm:"type:varchar(255)"`
	Description     *string                      `json:"description,omitempty" gorm:"type:text"`
	Pages           *int                         `json:"pages,omitempty" gorm:"type:integer"`
	Duration        *int                         `json:"duration,omitempty" gorm:"type:integer"`
	Variants        datatypes.JSONSlice[Variant] `json:"variants"`
	Status          constant.FileStatus          `json:"status" gorm:"type:varchar(20);not null"`
	CreatedAt       time.Time                    `json:"createdAt"`
	UpdatedAt       time.Time                    `json:"updatedAt"`
}

func (CourseMaterial) TableName() string {
	return "course_materials"
}
