package dto

import (
	"github.com/google/uuid"
	"material-pipeline/entities"
)

// GenerationMessage asks the worker to run the generation steps for a
// material record already created in GENERATING.
type GenerationMessage struct {
	MaterialId uuid.UUID `json:"materialId"`
}

// TranscodeMessage asks the worker to produce renditions for a video upload.
type TranscodeMessage struct {
	MaterialId uuid.UUID `json:"materialId"`
}

// MaterialUpdate carries the content fields an editor overwrites. Nil fields
// are left untouched.
type MaterialUpdate struct {
	Summary   *string                   `json:"resumen"`
	Glossary  *[]entities.GlossaryEntry `json:"glosario"`
	Quiz      *[]entities.QuizQuestion  `json:"quiz"`
	Checklist *[]string                 `json:"checklist"`
}

func (u MaterialUpdate) IsEmpty() bool {
	return u.Summary == nil && u.Glossary == nil && u.Quiz == nil && u.Checklist == nil
}

type UploadMeta struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type AccessURLResponse struct {
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type BatchUploadErrorResponse struct {
	Error      string                     `json:"error"`
	Kind       string                     `json:"kind"`
	FailedFile string                     `json:"failedFile"`
	Stored     []*entities.CourseMaterial `json:"stored"`
}
