package weightpack

import (
	"errors"
	"fmt"

	"github.com/seminvestr/weightpack/blobstore"
)

var (
	// ErrTensorNotFound is returned when a named tensor is absent from
	// the blob store.
	ErrTensorNotFound = errors.New("tensor not found")

	// ErrNoScales is returned when a store holds no scale sequence.
	ErrNoScales = errors.New("no scales stored")
)

// ErrSizeMismatch indicates a loaded payload does not match the
// requested tensor shape.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrSizeMismatch struct {
	Name     string
	Expected int
	Actual   int
	cause    error
}

func (e *ErrSizeMismatch) Error() string {
	return fmt.Sprintf("size mismatch for %q: expected %d bytes, got %d", e.Name, e.Expected, e.Actual)
}

func (e *ErrSizeMismatch) Unwrap() error { return e.cause }

func translateError(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %q: %w", ErrTensorNotFound, name, err)
	}
	return err
}
