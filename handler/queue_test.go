package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"material-pipeline/dto"
	"material-pipeline/service"
)

type stubTranscoder struct {
	err    error
	got    []dto.TranscodeMessage
	failed []dto.TranscodeMessage
}

func (s *stubTranscoder) Process(ctx context.Context, message dto.TranscodeMessage) error {
	s.got = append(s.got, message)
	return s.err
}

func (s *stubTranscoder) MarkFailed(ctx context.Context, message dto.TranscodeMessage) error {
	s.failed = append(s.failed, message)
	return nil
}

func isPermanent(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}

func TestTranscodeHandler(t *testing.T) {
	id := uuid.New()
	transcoder := &stubTranscoder{}
	deps := ServiceDependencies{TranscodeService: transcoder}

	err := TranscodeHandler(context.Background(), amqp.Delivery{Body: []byte(`{"materialId":"` + id.String() + `"}`)}, deps)
	assert.NoError(t, err)
	assert.Equal(t, []dto.TranscodeMessage{{MaterialId: id}}, transcoder.got)

	err = TranscodeHandler(context.Background(), amqp.Delivery{Body: []byte(`{broken`)}, deps)
	assert.True(t, isPermanent(err))

	transcoder.err = errors.Join(service.ErrNonRetryable, errors.New("not a video"))
	err = TranscodeHandler(context.Background(), amqp.Delivery{Body: []byte(`{}`)}, deps)
	assert.True(t, isPermanent(err))

	transcoder.err = errors.New("minio timeout")
	err = TranscodeHandler(context.Background(), amqp.Delivery{Body: []byte(`{}`)}, deps)
	assert.Error(t, err)
	assert.False(t, isPermanent(err))
}

func TestGenerationHandlerMissingMaterialIsPermanent(t *testing.T) {
	s := newTestServer(t)
	deps := ServiceDependencies{GenerationService: s.generation}

	err := GenerationHandler(context.Background(), amqp.Delivery{Body: []byte(`{"materialId":"` + uuid.NewString() + `"}`)}, deps)
	assert.True(t, isPermanent(err))
}

func TestTranscodeDeadLetterMarksVideoFailed(t *testing.T) {
	id := uuid.New()
	transcoder := &stubTranscoder{}
	deps := ServiceDependencies{TranscodeService: transcoder}

	TranscodeDeadLetter(context.Background(), amqp.Delivery{Body: []byte(`{"materialId":"` + id.String() + `"}`)}, deps, errors.New("minio timeout"))
	assert.Equal(t, []dto.TranscodeMessage{{MaterialId: id}}, transcoder.failed)

	TranscodeDeadLetter(context.Background(), amqp.Delivery{Body: []byte(`{broken`)}, deps, errors.New("bad payload"))
	assert.Len(t, transcoder.failed, 1)
}
