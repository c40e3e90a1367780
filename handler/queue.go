package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"material-pipeline/dto"
	"material-pipeline/pkg/apperr"
	"material-pipeline/service"
)

type ServiceDependencies struct {
	GenerationService service.GenerationService
	TranscodeService  service.TranscodeService
}

func GenerationHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.GenerationMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal generation message")
		return backoff.Permanent(err)
	}

	zerolog.Ctx(ctx).Info().Str("material_id", job.MaterialId.String()).Msg("received generation message")

	_, err := deps.GenerationService.Run(ctx, job.MaterialId)
	if apperr.Is(err, apperr.KindNotFound) || apperr.Is(err, apperr.KindValidation) {
		return backoff.Permanent(err)
	}
	return err
}

func TranscodeHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.TranscodeMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal transcode message")
		return backoff.Permanent(err)
	}

	err := deps.TranscodeService.Process(ctx, job)
	if errors.Is(err, service.ErrNonRetryable) {
		return backoff.Permanent(err)
	}
	return err
}

// TranscodeDeadLetter marks the video FAILED once its job leaves for the DLQ,
// so it does not stay PROCESSING forever.
func TranscodeDeadLetter(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies, cause error) {
	var job dto.TranscodeMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return
	}
	if err := deps.TranscodeService.MarkFailed(ctx, job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).AnErr("cause", cause).
			Str("material_id", job.MaterialId.String()).
			Msg("failed to mark dead-lettered video as failed")
	}
}
