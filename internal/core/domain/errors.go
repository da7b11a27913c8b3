package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmbedding  = errors.New("embedding failure")
	ErrSearch     = errors.New("search failure")
	ErrGeneration = errors.New("generation failure")
	ErrEmptyInput = errors.New("empty input")
	ErrTemporary  = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ErrorKind names the taxonomy bucket of err for failure reporting.
func ErrorKind(err error) string {
	switch {
	case IsKind(err, ErrEmptyInput):
		return "empty_input"
	case IsKind(err, ErrEmbedding):
		return "embedding_error"
	case IsKind(err, ErrSearch):
		return "search_error"
	case IsKind(err, ErrGeneration):
		return "generation_error"
	default:
		return "internal_error"
	}
}
