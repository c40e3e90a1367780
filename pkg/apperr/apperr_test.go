package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := errors.New("connection reset")
	err := Storage(base, "store %s", "lecture.pdf")
	wrapped := fmt.Errorf("upload batch: %w", err)

	assert.Equal(t, KindStorage, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindStorage))
	assert.False(t, Is(wrapped, KindValidation))
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, "store lecture.pdf: connection reset", err.Error())
}

func TestPlainErrorsAreInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestStackPointsAtCaller(t *testing.T) {
	err := Validation("unsupported file type")

	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	require.NotEmpty(t, appErr.Stack)
	assert.Contains(t, appErr.Stack[0].Function, "TestStackPointsAtCaller")
	assert.Equal(t, appErr.Stack, ZerologStackMarshaler(err))
	assert.Nil(t, ZerologStackMarshaler(errors.New("plain")))
}
