package transform

import (
	"errors"
	"strings"

	"a11y/internal/llm"
	"a11y/internal/media"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnknownTransform  = errors.New("unknown transform")
	ErrRemoteUnavailable = llm.ErrUnavailable
	ErrMalformedResponse = llm.ErrMalformed
	ErrCodec             = media.ErrCodec
	ErrUnsupportedMedia  = media.ErrUnsupportedMedia
)

type FieldProblem struct {
	Field  string
	Reason string
}

// InputError lists every problem found in a request, not just the first.
type InputError struct {
	Kind     Kind
	Problems []FieldProblem
}

func (e *InputError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Reason
	}
	return "invalid input for " + string(e.Kind) + ": " + strings.Join(parts, "; ")
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func (e *InputError) Fields() []string {
	fields := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		fields[i] = p.Field
	}
	return fields
}
