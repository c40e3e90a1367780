// Package apperr is the error taxonomy shared by the generation pipeline and
// the upload subsystem. Provider and oracle errors are wrapped into one of
// these kinds at the service boundary.
package apperr

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"
	"github.com/rs/zerolog"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindGenerationStep Kind = "generation_step"
	KindStorage        Kind = "storage"
	KindNotification   Kind = "notification"
	KindInternal       Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Wrapped error
	Stack   CallStack
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

type CallStack []StackFrame

func (s CallStack) MarshalZerologArray(a *zerolog.Array) {
	for _, frame := range s {
		a.Object(frame)
	}
}

type StackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (f StackFrame) MarshalZerologObject(e *zerolog.Event) {
	e.
		Str("file", f.File).
		Int("line", f.Line).
		Str("function", f.Function)
}

// ZerologStackMarshaler is installed as zerolog.ErrorStackMarshaler so that
// .Stack() on a log event prints where an *Error was created.
var ZerologStackMarshaler = func(err error) interface{} {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Stack
	}
	return nil
}

func New(kind Kind, wrapped error, format string, args ...interface{}) error {
	return build(kind, wrapped, format, args...)
}

func build(kind Kind, wrapped error, format string, args ...interface{}) error {
	trace := stack.Trace().TrimRuntime()
	// frames 0 and 1 are build and its exported caller
	if len(trace) > 2 {
		trace = trace[2:]
	}
	frames := make(CallStack, len(trace))
	for i, call := range trace {
		callFrame := call.Frame()
		frames[i] = StackFrame{
			File:     callFrame.File,
			Line:     callFrame.Line,
			Function: callFrame.Function,
		}
	}

	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Wrapped: wrapped,
		Stack:   frames,
	}
}

func Validation(format string, args ...interface{}) error {
	return build(KindValidation, nil, format, args...)
}

func NotFound(wrapped error, format string, args ...interface{}) error {
	return build(KindNotFound, wrapped, format, args...)
}

func GenerationStep(wrapped error, format string, args ...interface{}) error {
	return build(KindGenerationStep, wrapped, format, args...)
}

func Storage(wrapped error, format string, args ...interface{}) error {
	return build(KindStorage, wrapped, format, args...)
}

func Notification(wrapped error, format string, args ...interface{}) error {
	return build(KindNotification, wrapped, format, args...)
}

func Internal(wrapped error, format string, args ...interface{}) error {
	return build(KindInternal, wrapped, format, args...)
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal when err carries none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
