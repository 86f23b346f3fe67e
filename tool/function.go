package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/util"
	"github.com/hupe1980/agentloop/logging"
)

// Error codes produced by FunctionRunner.
const (
	CodeInvalidParameters = "invalid_parameters"
)

// Emitter forwards params and progress events from inside a RunFunc. It
// returns false once the run context is cancelled.
type Emitter func(ev Event) bool

// RunFunc is the body of a FunctionRunner. The returned value becomes the
// Output of the action record.
type RunFunc func(ctx context.Context, req RunRequest, emit Emitter) (any, error)

// FunctionRunner is a generic adapter that exposes a plain Go function as a
// capability runner.
//
// Responsibilities:
//   - Builds specifications from the configuration (NewSpecification) and
//     describes legacy unnamed capabilities (DeprecatedSpecification)
//   - Validates model supplied inputs against the specification before execution
//   - Normalizes errors into a single FailureEvent:
//     invalid_parameters -> input mismatch
//     <kind>_error       -> the function returned an error (non-RunnerError)
//     (custom codes preserved if the function returns *RunnerError directly)
//
// A FunctionRunner has no mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type FunctionRunner struct {
	kind   core.ActionKind
	fn     RunFunc
	logger logging.Logger
	// coerce checks only the presence of declared inputs; fn converts values.
	coerce bool
}

// FunctionRunnerOptions configure a FunctionRunner.
type FunctionRunnerOptions struct {
	Logger logging.Logger
}

// NewFunctionRunner constructs a FunctionRunner for kind.
//
// Example:
//
//	search := NewFunctionRunner(core.ActionKindWebsearch,
//	  func(ctx context.Context, req RunRequest, emit Emitter) (any, error) {
//	    return webSearch(ctx, req.Inputs["query"].(string))
//	  },
//	)
func NewFunctionRunner(kind core.ActionKind, fn RunFunc, optFns ...func(o *FunctionRunnerOptions)) *FunctionRunner {
	opts := FunctionRunnerOptions{Logger: logging.NoOpLogger{}}
	for _, f := range optFns {
		f(&opts)
	}
	return &FunctionRunner{kind: kind, fn: fn, logger: opts.Logger}
}

// Kind implements Runner.
func (r *FunctionRunner) Kind() core.ActionKind { return r.kind }

// BuildSpecification implements Runner.
func (r *FunctionRunner) BuildSpecification(_ context.Context, action core.ActionConfiguration, name, description string) (*core.CapabilitySpecification, error) {
	if name == "" {
		return nil, fmt.Errorf("capability name is required")
	}
	return NewSpecification(action, name, description), nil
}

// DeprecatedBuildSpecificationForSingleCapability implements LegacySpecificationBuilder.
func (r *FunctionRunner) DeprecatedBuildSpecificationForSingleCapability(_ context.Context, action core.ActionConfiguration) (*core.CapabilitySpecification, error) {
	return DeprecatedSpecification(action), nil
}

// Run implements Runner.
//
// Logging Fields:
//
//	kind: capability kind
//	fc_id: function call identifier (correlates model request & execution)
//	duration_ms: execution time in milliseconds
func (r *FunctionRunner) Run(ctx context.Context, req RunRequest) <-chan Event {
	out := make(chan Event, 8)
	name := string(r.kind)

	go func() {
		defer close(out)
		start := time.Now()
		r.logger.Debug("tool.run.start", "kind", name, "fc_id", deref(req.FunctionCallID))

		emit := func(ev Event) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- ev:
				return true
			}
		}

		if req.Specification != nil {
			check := util.CheckInputs
			if r.coerce {
				check = util.RequireInputs
			}
			if err := check(req.Inputs, req.Specification.Inputs); err != nil {
				r.logger.Warn("tool.run.validation_failed", "kind", name, "error", err.Error())
				emit(FailureEvent{Err: &RunnerError{
					Runner:  name,
					Code:    CodeInvalidParameters,
					Message: fmt.Sprintf("parameter validation failed: %v", err),
					Details: err,
				}})
				return
			}
		}

		result, err := r.fn(ctx, req, emit)
		if err != nil {
			var runErr *RunnerError
			if !errors.As(err, &runErr) {
				runErr = &RunnerError{Runner: name, Code: name + "_error", Message: err.Error()}
			}
			r.logger.Error("tool.run.error", "kind", name, "code", runErr.Code, "error", runErr.Message)
			emit(FailureEvent{Err: runErr})
			return
		}

		r.logger.Info("tool.run.success", "kind", name, "duration_ms", time.Since(start).Milliseconds())
		emit(SuccessEvent{Action: req.Record(result)})
	}()

	return out
}

// NewTypedRunner decodes the raw inputs into T before calling fn. Field names
// follow `json` tags and scalar values are converted where possible (the
// model may send "3" for a number). Declared inputs must still be present.
func NewTypedRunner[T any](
	kind core.ActionKind,
	fn func(ctx context.Context, req RunRequest, in T, emit Emitter) (any, error),
	optFns ...func(o *FunctionRunnerOptions),
) *FunctionRunner {
	r := NewFunctionRunner(kind, func(ctx context.Context, req RunRequest, emit Emitter) (any, error) {
		var in T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			Result:           &in,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(req.Inputs); err != nil {
			return nil, &RunnerError{Runner: string(kind), Code: CodeInvalidParameters, Message: err.Error()}
		}
		return fn(ctx, req, in, emit)
	}, optFns...)
	r.coerce = true
	return r
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
