package facts

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Lookup when no live fact reaches the threshold.
// It means "no matching memory", never "memory unavailable".
var ErrNotFound = errors.New("no matching fact")

// ValidationError reports rejected caller input. Nothing is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EmbeddingProviderError reports an unreachable embedder or a malformed vector.
type EmbeddingProviderError struct {
	Err error
}

func (e *EmbeddingProviderError) Error() string {
	return "embedding provider: " + e.Err.Error()
}

func (e *EmbeddingProviderError) Unwrap() error {
	return e.Err
}

// StorageError reports a persistence failure. The transaction it happened in
// was rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("fact storage %s: %s", e.Op, e.Err.Error())
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsUnavailable reports whether err means the memory itself could not be
// consulted (embedder or storage failure), as opposed to a clean miss.
func IsUnavailable(err error) bool {
	var embErr *EmbeddingProviderError
	if errors.As(err, &embErr) {
		return true
	}

	var storeErr *StorageError
	return errors.As(err, &storeErr)
}
