package service

import (
	"context"
	"errors"

	"material-pipeline/dto"
	"material-pipeline/entities"
)

// ErrNonRetryable marks queue job failures that a redelivery cannot fix.
var ErrNonRetryable = errors.New("non-retryable error")

// ContentGenerator turns transcript text, plus an optional syllabus, into the
// sections of a material record. pkg/oracle is the default implementation.
type ContentGenerator interface {
	Summarize(ctx context.Context, transcript, syllabus string) (string, error)
	ExtractGlossary(ctx context.Context, transcript, syllabus string) ([]entities.GlossaryEntry, error)
	BuildQuiz(ctx context.Context, transcript, syllabus string) ([]entities.QuizQuestion, error)
	BuildChecklist(ctx context.Context, transcript, syllabus string) ([]string, error)
	// ScoreAlignment is only called with a non-empty syllabus.
	ScoreAlignment(ctx context.Context, transcript, syllabus string) (*entities.Alignment, error)
}

type Notifier interface {
	Notify(ctx context.Context, recipientEmail, subject, body string) error
}

type JobPublisher interface {
	PublishGeneration(ctx context.Context, msg dto.GenerationMessage) error
	PublishTranscode(ctx context.Context, msg dto.TranscodeMessage) error
}
