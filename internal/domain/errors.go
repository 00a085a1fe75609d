package domain

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning means another instance holds the update guard. Overlapping
// schedules make this expected steady-state behavior; the run exits cleanly.
var ErrAlreadyRunning = errors.New("update already in progress")

// ErrSourceUnchanged means the latest upstream run is the one already
// published, so there is nothing to do.
var ErrSourceUnchanged = errors.New("already using latest source data")

// StructuralMismatchError means an upstream page or payload did not contain
// the expected structure (e.g. zero run links in a directory listing). It is
// never retried; the pipeline escalates it through the alert channel.
type StructuralMismatchError struct {
	Endpoint string
	Detail   string
}

func (e *StructuralMismatchError) Error() string {
	return fmt.Sprintf("structural mismatch at %s: %s", e.Endpoint, e.Detail)
}

// MergeInvariantError means the previously published state violates the
// strictly-increasing-timestamp invariant. The prior snapshot is considered
// corrupted and the run aborts before publishing anything.
type MergeInvariantError struct {
	Point  Coordinate
	Detail string
}

func (e *MergeInvariantError) Error() string {
	return fmt.Sprintf("merge invariant violated at %s: %s", e.Point.ID(), e.Detail)
}

// PartialPublishError reports a bulk publish that failed partway through its
// chunk sequence. Chunks before FailedChunk were written; chunks from
// FailedChunk onward were not, so a later run can resume without skipping
// or duplicating records.
type PartialPublishError struct {
	FailedChunk int
	TotalChunks int
	Err         error
}

func (e *PartialPublishError) Error() string {
	return fmt.Sprintf("publish failed at chunk %d of %d: %v", e.FailedChunk, e.TotalChunks, e.Err)
}

func (e *PartialPublishError) Unwrap() error {
	return e.Err
}

// transientError marks a failure as retryable (timeout, connection error,
// 5xx-equivalent). The retrying fetcher only retries errors carrying this mark.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// Transient wraps err so IsTransient reports true for it. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) is marked transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
