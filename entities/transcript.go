package entities

import "github.com/google/uuid"

// Transcript, Course and User are owned by other services. This module only
// reads them.

type Transcript struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	CourseID uuid.UUID `json:"course_id" gorm:"type:uuid"`
	OwnerID  uuid.UUID `json:"owner_id" gorm:"type:uuid"`
	Text     string    `json:"text" gorm:"type:text"`
}

func (Transcript) TableName() string {
	return "transcripts"
}

type Course struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name     string    `json:"name"`
	Syllabus *string   `json:"syllabus" gorm:"type:text"`
}

func (Course) TableName() string {
	return "courses"
}

type User struct {
	ID    uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

func (User) TableName() string {
	return "users"
}
