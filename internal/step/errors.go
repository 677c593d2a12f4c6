package step

import "fmt"

// ExecutionError marks an irrecoverable step failure. The executor records
// it and halts the run.
type ExecutionError struct {
	Step  string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// Failf builds an ExecutionError from a formatted cause.
func Failf(stepID, format string, args ...any) *ExecutionError {
	return &ExecutionError{Step: stepID, Cause: fmt.Errorf(format, args...)}
}

// Fail wraps an existing cause in an ExecutionError.
func Fail(stepID string, cause error) *ExecutionError {
	return &ExecutionError{Step: stepID, Cause: cause}
}

// ValidationError marks unmet step preconditions. It is never retried; the
// executor skips the step and fails the run unless the step is optional.
type ValidationError struct {
	Step string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %s: input validation failed", e.Step)
}

// RetryableError marks a transient failure (timeout, rate limit, transient
// I/O) that the executor may retry with backoff before escalating.
type RetryableError struct {
	Step  string
	Cause error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("step %s (retryable): %v", e.Step, e.Cause)
}

func (e *RetryableError) Unwrap() error { return e.Cause }

// Retry wraps a transient cause in a RetryableError.
func Retry(stepID string, cause error) *RetryableError {
	return &RetryableError{Step: stepID, Cause: cause}
}
