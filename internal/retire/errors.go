// Package retire implements the account retirement engine: archiving a set
// of accounts into durable history and cascade-deleting every row that
// references them, as one atomic, idempotent operation per batch.
package retire

import (
	"errors"
	"fmt"
)

// ErrNoArchiveStorage indicates the archive table could not be resolved in
// this deployment. There is nowhere to preserve history, so deletion must
// not proceed; the whole batch is aborted before any mutation.
var ErrNoArchiveStorage = errors.New("no archive storage available")

// ErrEmptyInput indicates the batch contained no usable account ids.
var ErrEmptyInput = errors.New("no account ids provided")

// TransientError wraps an unexpected database failure (connection, lock
// contention, timeout). The batch rolled back completely and may be retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err represents a retryable batch failure.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// SchemaDriftError is raised, only under strict_schema, when a table the
// deployment is expected to carry could not be resolved. The default policy
// logs a warning and skips the optional step instead.
type SchemaDriftError struct {
	Table  string
	Detail string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("schema drift: %s: %s", e.Table, e.Detail)
}
