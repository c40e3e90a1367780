package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"material-pipeline/constant"
)

type GlossaryEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Rationale     string   `json:"rationale"`
}

type Alignment struct {
	Score    int    `json:"score"`
	Analysis string `json:"analysis"`
}

// MaterialRecord is the study material generated from one transcript. Content
// columns stay null until the generation step that owns them completes.
type MaterialRecord struct {
	ID              uuid.UUID                          `json:"id" gorm:"type:uuid;primary_key"`
	TranscriptionID uuid.UUID                          `json:"transcriptionId" gorm:"type:uuid;not null;index:idx_material_records_transcription;uniqueIndex:uq_material_records_in_flight,where:state = 'GENERATING'"`
	CourseID        uuid.UUID                          `json:"courseId" gorm:"type:uuid;not null;index:idx_material_records_course"`
	Summary         *string                            `json:"resumen" gorm:"type:text"`
	Glossary        datatypes.JSONSlice[GlossaryEntry] `json:"glosario"`
	Quiz            datatypes.JSONSlice[QuizQuestion]  `json:"quiz"`
	Checklist       datatypes.JSONSlice[string]        `json:"checklist"`
	Alignment       datatypes.JSONType[*Alignment]     `json:"piaa_alignment,omitempty"`
	State           constant.MaterialState             `json:"estado" gorm:"type:varchar(20);not null;index:idx_material_records_state"`
	CreatedAt       time.Time                          `json:"createdAt"`
	UpdatedAt       time.Time                          `json:"updatedAt"`
}

func (MaterialRecord) TableName() string {
	return "material_records"
}

// AlignmentResult returns the alignment score, nil when it was never computed.
func (m *MaterialRecord) AlignmentResult() *Alignment {
	return m.Alignment.Data()
}
