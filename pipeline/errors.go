package pipeline

import (
	"errors"
	"fmt"
)

// ErrStaleState is returned when an optimistic state transition loses a
// race: the record's current state no longer matches the expected one.
// Callers must discard their result without side effects.
var ErrStaleState = errors.New("stale processing state")

// ErrStateNotFound is returned when no processing state exists for the
// record.
var ErrStateNotFound = errors.New("processing state not found")

// TransientError marks a failure worth retrying (network error, timeout,
// rate limit). Retries consume the stage's retry budget.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return "transient: " + e.Cause.Error() }
func (e *TransientError) Unwrap() error { return e.Cause }

// Transient wraps err as a TransientError.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Cause: err}
}

// PermanentError marks a failure that retrying cannot fix (auth failure,
// malformed request). It fails the record immediately without consuming
// retry budget.
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Cause.Error() }
func (e *PermanentError) Unwrap() error { return e.Cause }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Cause: err}
}

// QualityGateError marks content rejected by a validation gate. The
// rejection is not transient, so the record fails immediately.
type QualityGateError struct {
	Reason string
}

func (e *QualityGateError) Error() string { return "quality gate: " + e.Reason }

// QualityGate builds a QualityGateError with the given reason.
func QualityGate(format string, args ...any) error {
	return &QualityGateError{Reason: fmt.Sprintf(format, args...)}
}

// RetryExhaustedError is recorded when a stage used up its retry budget.
type RetryExhaustedError struct {
	Stage    Stage
	Attempts int
	Cause    error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("stage %s exhausted %d retries: %v", e.Stage, e.Attempts, e.Cause)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// IsTransient reports whether err should consume retry budget and be
// retried. Unclassified errors count as transient so that unexpected
// infrastructure failures do not permanently fail records.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pe *PermanentError
	var qe *QualityGateError
	if errors.As(err, &pe) || errors.As(err, &qe) {
		return false
	}
	return true
}

// IsQualityGate reports whether err is a quality-gate rejection.
func IsQualityGate(err error) bool {
	var qe *QualityGateError
	return errors.As(err, &qe)
}
