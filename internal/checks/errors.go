package checks

import (
	"fmt"
	"time"
)

// ValidationError marks a bad target or config. Never retried; surfaces
// immediately as an error result.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// SecurityRejection marks a target blocked by the SSRF/injection guard.
// Logged distinctly and never retried.
type SecurityRejection struct {
	Reason string
}

func (e *SecurityRejection) Error() string {
	return "target rejected: " + e.Reason
}

// TransientNetworkError marks a connection-level failure (refused, reset,
// DNS hiccup) that is worth retrying with backoff.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError marks a check that exceeded its deadline. Recorded, not
// retried within the same tick.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("deadline exceeded after %s", e.Elapsed)
}

// RunnerError marks a synthetic test-runner failure. Treated as a down
// result with the original error preserved in the result detail.
type RunnerError struct {
	Err error
}

func (e *RunnerError) Error() string {
	return fmt.Sprintf("test runner error: %v", e.Err)
}

func (e *RunnerError) Unwrap() error {
	return e.Err
}
