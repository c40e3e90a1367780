package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"material-pipeline/constant"
	"material-pipeline/dto"
	"material-pipeline/entities"
	"material-pipeline/pkg/apperr"
	"material-pipeline/repository"
)

const (
	notifyTimeout = 30 * time.Second
	// defaultStaleAfter is five oracle calls at the default oracle timeout.
	defaultStaleAfter = 10 * time.Minute
	minQuizOptions    = 4
)

type GenerationService interface {
	// Start validates the transcript and creates its record in GENERATING.
	Start(ctx context.Context, transcriptID uuid.UUID) (*entities.MaterialRecord, error)
	// Run executes the generation steps for a record created by Start.
	Run(ctx context.Context, materialID uuid.UUID) (*entities.MaterialRecord, error)
	// Generate is Start followed by Run in the caller's goroutine.
	Generate(ctx context.Context, transcriptID uuid.UUID) (*entities.MaterialRecord, error)
	// Trigger is Start followed by a queued Run.
	Trigger(ctx context.Context, transcriptID uuid.UUID) (*entities.MaterialRecord, error)
	Publish(ctx context.Context, materialID uuid.UUID) (*entities.MaterialRecord, error)
	Update(ctx context.Context, materialID uuid.UUID, update dto.MaterialUpdate) (*entities.MaterialRecord, error)
	Get(ctx context.Context, materialID uuid.UUID, role constant.Role) (*entities.MaterialRecord, error)
	ListForCourse(ctx context.Context, courseID uuid.UUID, role constant.Role) ([]*entities.MaterialRecord, error)
	Delete(ctx context.Context, materialID uuid.UUID) error
}

type generationService struct {
	materials repository.MaterialRepository
	refs      repository.ReferenceRepository
	generator ContentGenerator
	notifier  Notifier
	publisher JobPublisher

	// staleAfter is how long a GENERATING record may go without progress
	// before a new run for its transcript takes over.
	staleAfter time.Duration
	now        func() time.Time

	// async runs fire-and-forget work; tests swap it for a synchronous call.
	async func(func())
}

// step is one core generation stage. It returns the columns to persist.
type step struct {
	name string
	run  func(ctx context.Context, transcript, syllabus string) (map[string]interface{}, error)
}

func (s *generationService) steps() []step {
	return []step{
		{name: "summary", run: func(ctx context.Context, transcript, syllabus string) (map[string]interface{}, error) {
			summary, err := s.generator.Summarize(ctx, transcript, syllabus)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"summary": summary}, nil
		}},
		{name: "glossary", run: func(ctx context.Context, transcript, syllabus string) (map[string]interface{}, error) {
			glossary, err := s.generator.ExtractGlossary(ctx, transcript, syllabus)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"glossary": datatypes.NewJSONSlice(nonNil(glossary))}, nil
		}},
		{name: "quiz", run: func(ctx context.Context, transcript, syllabus string) (map[string]interface{}, error) {
			quiz, err := s.generator.BuildQuiz(ctx, transcript, syllabus)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"quiz": datatypes.NewJSONSlice(nonNil(quiz))}, nil
		}},
		{name: "checklist", run: func(ctx context.Context, transcript, syllabus string) (map[string]interface{}, error) {
			checklist, err := s.generator.BuildChecklist(ctx, transcript, syllabus)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"checklist": datatypes.NewJSONSlice(nonNil(checklist))}, nil
		}},
	}
}

func (s *generationService) Start(ctx context.Context, transcriptID uuid.UUID) (*entities.MaterialRecord, error) {
	transcript, err := s.refs.GetTranscript(ctx, transcriptID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, apperr.NotFound(nil, "transcript %s has no text", transcriptID)
	}

	inFlight, err := s.materials.FindInFlight(ctx, transcriptID)
	if err != nil {
		return nil, err
	}
	if inFlight != nil {
		if s.now().Sub(inFlight.UpdatedAt) < s.staleAfter {
			return nil, apperr.Validation("generation already in progress for transcript %s", transcriptID)
		}
		zerolog.Ctx(ctx).Warn().
			Str("material_id", inFlight.ID.String()).
			Time("last_progress", inFlight.UpdatedAt).
			Msg("abandoning stale generation")
		if err := s.materials.UpdateState(ctx, inFlight.ID, constant.MaterialStateGenerationError); err != nil {
			return nil, err
		}
	}

	record := &entities.MaterialRecord{
		TranscriptionID: transcriptID,
		CourseID:        transcript.CourseID,
		State:           constant.MaterialStateGenerating,
	}
	if err := s.materials.Create(ctx, record); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().
		Str("material_id", record.ID.String()).
		Str("transcript_id", transcriptID.String()).
		Msg("generation started")
	return record, nil
}

// Run leaves the record in PENDING_REVIEW or GENERATION_ERROR. A failed core
// step is recorded on the record and is not returned as an error; only
// failures to read or persist the record are.
func (s *generationService) Run(ctx context.Context, materialID uuid.UUID) (record *entities.MaterialRecord, err error) {
	logger := zerolog.Ctx(ctx).With().Str("material_id", materialID.String()).Logger()
	ctx = logger.WithContext(ctx)

	record, err = s.materials.FindByID(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if record.State != constant.MaterialStateGenerating {
		logger.Info().Str("state", record.State.String()).Msg("material is not generating")
		return record, nil
	}

	// an interrupted run stays GENERATING so a redelivered job can resume it
	defer func() {
		if err != nil && ctx.Err() == nil {
			s.markFailed(ctx, materialID)
		}
	}()

	transcript, err := s.refs.GetTranscript(ctx, record.TranscriptionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, apperr.NotFound(nil, "transcript %s has no text", record.TranscriptionID)
	}
	syllabus, err := s.refs.GetSyllabusContext(ctx, record.CourseID)
	if err != nil {
		logger.Warn().Err(err).Str("course_id", record.CourseID.String()).Msg("syllabus unavailable, generating without it")
		syllabus, err = "", nil
	}

	for _, st := range s.steps() {
		fields, stepErr := st.run(ctx, transcript.Text, syllabus)
		if stepErr != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("generation of %s interrupted at %s: %w", materialID, st.name, ctx.Err())
			}
			if !apperr.Is(stepErr, apperr.KindGenerationStep) {
				stepErr = apperr.GenerationStep(stepErr, "%s step failed", st.name)
			}
			logger.Error().Err(stepErr).Stack().Str("step", st.name).Msg("generation step failed")
			if err = s.materials.UpdateState(context.WithoutCancel(ctx), materialID, constant.MaterialStateGenerationError); err != nil {
				return nil, err
			}
			return s.materials.FindByID(context.WithoutCancel(ctx), materialID)
		}
		if err = s.materials.UpdateFields(ctx, materialID, fields); err != nil {
			return nil, err
		}
		logger.Debug().Str("step", st.name).Msg("generation step persisted")
	}

	if syllabus != "" {
		s.scoreAlignment(ctx, materialID, transcript.Text, syllabus)
	}

	if err = s.materials.UpdateState(ctx, materialID, constant.MaterialStatePendingReview); err != nil {
		return nil, err
	}
	record, err = s.materials.FindByID(ctx, materialID)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("generation finished, pending review")

	s.notifyOwner(ctx, transcript.OwnerID,
		"Study material ready for review",
		fmt.Sprintf("The study material generated for transcript %s is ready for your review.", transcript.ID))
	return record, nil
}

// scoreAlignment is an enrichment: its failures are logged and never change
// the record state.
func (s *generationService) scoreAlignment(ctx context.Context, materialID uuid.UUID, transcript, syllabus string) {
	logger := zerolog.Ctx(ctx)
	alignment, err := s.generator.ScoreAlignment(ctx, transcript, syllabus)
	if err != nil {
		logger.Warn().Err(err).Str("step", "alignment").Msg("alignment step failed, continuing")
		return
	}
	if alignment == nil {
		return
	}
	alignment.Score = min(max(alignment.Score, 0), 100)
	err = s.materials.UpdateFields(ctx, materialID, map[string]interface{}{
		"alignment": datatypes.NewJSONType(alignment),
	})
	if err != nil {
		logger.Warn().Err(err).Str("step", "alignment").Msg("failed to persist alignment")
	}
}

func (s *generationService) markFailed(ctx context.Context, materialID uuid.UUID) {
	err := s.materials.UpdateState(context.WithoutCancel(ctx), materialID, constant.MaterialStateGenerationError)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to mark material as errored")
	}
}

func (s *generationService) Generate(ctx context.Context, transcriptID uuid.UUID) (*entities.MaterialRecord, error) {
	record, err := s.Start(ctx, transcriptID)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, record.ID)
}

func (s *generationService) Trigger(ctx context.Context, transcriptID uuid.UUID) (*entities.MaterialRecord, error) {
	record, err := s.Start(ctx, transcriptID)
	if err != nil {
		return nil, err
	}

	if s.publisher == nil {
		detached := context.WithoutCancel(ctx)
		s.async(func() {
			if _, err := s.Run(detached, record.ID); err != nil {
				zerolog.Ctx(detached).Error().Err(err).Str("material_id", record.ID.String()).Msg("background generation failed")
			}
		})
		return record, nil
	}

	if err := s.publisher.PublishGeneration(ctx, dto.GenerationMessage{MaterialId: record.ID}); err != nil {
		s.markFailed(ctx, record.ID)
		return nil, apperr.Internal(err, "queue generation for material %s", record.ID)
	}
	return record, nil
}

func (s *generationService) Publish(ctx context.Context, materialID uuid.UUID) (*entities.MaterialRecord, error) {
	record, err := s.materials.FindByID(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if !record.State.CanTransition(constant.MaterialStatePublished) {
		return nil, apperr.Validation("material %s is still generating", materialID)
	}

	if record.State != constant.MaterialStatePublished {
		if err := s.materials.UpdateState(ctx, materialID, constant.MaterialStatePublished); err != nil {
			return nil, err
		}
		record.State = constant.MaterialStatePublished
		zerolog.Ctx(ctx).Info().Str("material_id", materialID.String()).Msg("material published")
	}

	if transcript, err := s.refs.GetTranscript(ctx, record.TranscriptionID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("cannot resolve instructor to notify")
	} else {
		s.notifyOwner(ctx, transcript.OwnerID,
			"Study material published",
			fmt.Sprintf("The study material for transcript %s is now visible to students.", transcript.ID))
	}
	return record, nil
}

func (s *generationService) Update(ctx context.Context, materialID uuid.UUID, update dto.MaterialUpdate) (*entities.MaterialRecord, error) {
	record, err := s.materials.FindByID(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if record.State == constant.MaterialStateGenerating {
		return nil, apperr.Validation("material %s is still generating", materialID)
	}
	if update.IsEmpty() {
		return record, nil
	}

	fields := map[string]interface{}{}
	if update.Summary != nil {
		fields["summary"] = *update.Summary
	}
	if update.Glossary != nil {
		fields["glossary"] = datatypes.NewJSONSlice(nonNil(*update.Glossary))
	}
	if update.Quiz != nil {
		if err := validateQuiz(*update.Quiz); err != nil {
			return nil, err
		}
		fields["quiz"] = datatypes.NewJSONSlice(nonNil(*update.Quiz))
	}
	if update.Checklist != nil {
		fields["checklist"] = datatypes.NewJSONSlice(nonNil(*update.Checklist))
	}
	if err := s.materials.UpdateFields(ctx, materialID, fields); err != nil {
		return nil, err
	}
	return s.materials.FindByID(ctx, materialID)
}

func (s *generationService) Get(ctx context.Context, materialID uuid.UUID, role constant.Role) (*entities.MaterialRecord, error) {
	record, err := s.materials.FindByID(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if !VisibleTo(record, role) {
		return nil, apperr.NotFound(nil, "material %s not found", materialID)
	}
	return record, nil
}

func (s *generationService) ListForCourse(ctx context.Context, courseID uuid.UUID, role constant.Role) ([]*entities.MaterialRecord, error) {
	records, err := s.materials.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return FilterForRole(records, role), nil
}

func (s *generationService) Delete(ctx context.Context, materialID uuid.UUID) error {
	return s.materials.Delete(ctx, materialID)
}

// notifyOwner mails the instructor in the background. Failures are logged and
// never reach the caller.
func (s *generationService) notifyOwner(ctx context.Context, ownerID uuid.UUID, subject, body string) {
	detached := context.WithoutCancel(ctx)
	s.async(func() {
		ctx, cancel := context.WithTimeout(detached, notifyTimeout)
		defer cancel()

		owner, err := s.refs.GetUser(ctx, ownerID)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("owner_id", ownerID.String()).Msg("cannot resolve instructor to notify")
			return
		}
		if err := s.notifier.Notify(ctx, owner.Email, subject, body); err != nil {
			err = apperr.Notification(err, "notify %s", owner.Email)
			zerolog.Ctx(ctx).Warn().Err(err).Msg("notification failed")
		}
	})
}

func validateQuiz(quiz []entities.QuizQuestion) error {
	for i, q := range quiz {
		if strings.TrimSpace(q.Question) == "" {
			return apperr.Validation("quiz question %d has no text", i+1)
		}
		if len(q.Options) < minQuizOptions {
			return apperr.Validation("quiz question %d needs at least %d options, got %d", i+1, minQuizOptions, len(q.Options))
		}
		if !slices.Contains(q.Options, q.CorrectAnswer) {
			return apperr.Validation("quiz question %d: correct answer %q is not one of its options", i+1, q.CorrectAnswer)
		}
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func NewGenerationService(
	materials repository.MaterialRepository,
	refs repository.ReferenceRepository,
	generator ContentGenerator,
	notifier Notifier,
	publisher JobPublisher,
	staleAfter time.Duration,
) GenerationService {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &generationService{
		materials:  materials,
		refs:       refs,
		generator:  generator,
		notifier:   notifier,
		publisher:  publisher,
		staleAfter: staleAfter,
		now:        time.Now,
		async:      func(f func()) { go f() },
	}
}
