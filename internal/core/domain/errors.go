package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction marks a document without usable text. Not retried;
	// the document is skipped and recorded in the ingestion stats.
	ErrExtraction = errors.New("no usable text")

	// ErrEmbedding marks a transient remote embedding failure.
	ErrEmbedding = errors.New("embedding failure")

	// ErrIndexNotBuilt marks a query issued before any successful
	// ingestion. Surfaced as an uncertain outcome, never thrown at
	// the caller.
	ErrIndexNotBuilt = errors.New("index not built")

	// ErrValidation marks malformed document or chunk metadata.
	ErrValidation = errors.New("invalid input")

	// ErrTemporary marks retryable remote failures.
	ErrTemporary = errors.New("temporary failure")
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
