package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing chunk or procedure.
	ErrNotFound = errors.New("not found")
	// ErrDegraded marks a result returned despite some retrieval channel failing.
	ErrDegraded = errors.New("degraded result")
	// ErrNoChannels marks total retrieval failure: both dense and lexical channels failed.
	ErrNoChannels = errors.New("no retrieval channels")
	// ErrTimeout marks an overall request deadline exceeded.
	ErrTimeout = errors.New("timeout")
	// ErrCancelled marks a cancelled request.
	ErrCancelled = errors.New("cancelled")
	// ErrInternal marks any other failure.
	ErrInternal = errors.New("internal error")
)

// WrapError preserves a typed semantic error kind with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// IsKind reports whether err carries the given sentinel kind.
func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
