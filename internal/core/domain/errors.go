package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad caller input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks an invalid or inconsistent setup, such as an
	// embedding dimensionality mismatch. Fatal at startup or first use.
	ErrConfiguration = errors.New("configuration error")

	ErrEmbeddingUnavailable  = errors.New("embedding service unavailable")
	ErrGenerationUnavailable = errors.New("generation service unavailable")
	ErrRetrievalUnavailable  = errors.New("vector store unavailable")

	ErrDocumentNotFound = errors.New("document not found")
	ErrTemporary        = errors.New("temporary failure")
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
