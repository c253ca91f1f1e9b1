package checks

import (
	"context"
	"errors"
	"time"

	"github.com/probewatch/probewatch/internal/models"
)

// Outcome is an executor's raw verdict before persistence: status, elapsed
// time, and a type-specific detail payload. Err carries the failure cause
// for retry classification; it is never nil when Status is error.
type Outcome struct {
	Status    models.ResultStatus
	ElapsedMs int64
	Detail    map[string]interface{}
	Err       error
}

// Retryable reports whether the outcome's cause is a transient network
// failure worth another attempt.
func (o Outcome) Retryable() bool {
	var transient *TransientNetworkError
	return errors.As(o.Err, &transient)
}

// Executor runs one type of check against a monitor's target. Elapsed time
// is measured with a monotonic clock on every path, including timeout.
type Executor interface {
	Type() models.MonitorType
	Execute(ctx context.Context, m *models.Monitor) Outcome
}

// Registry maps monitor types to their executors. Built once per process
// and passed by reference; there is no package-global registry.
type Registry struct {
	executors map[models.MonitorType]Executor
}

// RegistryOptions carries the collaborators executors need.
type RegistryOptions struct {
	Validator    *TargetValidator
	Runner       ScriptRunner
	SnippetBytes int
}

// NewRegistry constructs all executors with their shared collaborators.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.SnippetBytes <= 0 {
		opts.SnippetBytes = 1000
	}

	r := &Registry{executors: make(map[models.MonitorType]Executor)}
	r.register(NewHTTPExecutor(opts.Validator, opts.SnippetBytes))
	r.register(NewWebsiteExecutor(opts.Validator, opts.SnippetBytes))
	r.register(NewPingExecutor(opts.Validator))
	r.register(NewPortExecutor(opts.Validator))
	r.register(NewSyntheticExecutor(opts.Runner))
	return r
}

func (r *Registry) register(e Executor) {
	r.executors[e.Type()] = e
}

// Executor returns the executor for a monitor type.
func (r *Registry) Executor(t models.MonitorType) (Executor, bool) {
	e, ok := r.executors[t]
	return e, ok
}

// errorOutcome builds an error-status outcome from a typed failure.
func errorOutcome(err error, elapsed time.Duration) Outcome {
	return Outcome{
		Status:    models.ResultError,
		ElapsedMs: elapsed.Milliseconds(),
		Detail:    map[string]interface{}{"error": err.Error()},
		Err:       err,
	}
}

// downOutcome builds a down-status outcome with a failure cause attached.
func downOutcome(err error, elapsed time.Duration, detail map[string]interface{}) Outcome {
	if detail == nil {
		detail = map[string]interface{}{}
	}
	detail["error"] = err.Error()
	return Outcome{
		Status:    models.ResultDown,
		ElapsedMs: elapsed.Milliseconds(),
		Detail:    detail,
		Err:       err,
	}
}

// timeoutOutcome records a deadline overrun with the real elapsed time at
// cancellation, never zero.
func timeoutOutcome(elapsed time.Duration, detail map[string]interface{}) Outcome {
	if detail == nil {
		detail = map[string]interface{}{}
	}
	err := &TimeoutError{Elapsed: elapsed}
	detail["error"] = err.Error()
	return Outcome{
		Status:    models.ResultTimeout,
		ElapsedMs: elapsed.Milliseconds(),
		Detail:    detail,
		Err:       err,
	}
}
