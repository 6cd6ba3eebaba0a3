// Package pipeerr defines the error taxonomy shared by the loader, the
// controller and the task modules.
//
// Every error produced by the engine wraps exactly one of the four category
// sentinels, so callers can branch on the category with errors.Is without
// knowing which component raised it:
//
//   - ErrSchema: the document or a task declares something the engine does not
//     know (unknown task type, unknown input, duplicate names, missing required
//     values). Raised before any side effect of the affected task.
//   - ErrValidation: a value is present but unacceptable (coercion failure,
//     invalid output parameter name, value outside allowed-values).
//   - ErrRuntime: a task failed while performing its effect.
//   - ErrResource: a referenced file or path does not exist.
package pipeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Category sentinels.
var (
	ErrSchema     = errors.New("schema error")
	ErrValidation = errors.New("validation error")
	ErrRuntime    = errors.New("runtime error")
	ErrResource   = errors.New("resource error")
)

// Specific errors. Each one wraps its category.
var (
	ErrUnknownTaskType      = fmt.Errorf("%w: unknown task type", ErrSchema)
	ErrDuplicateTaskType    = fmt.Errorf("%w: duplicate task type", ErrSchema)
	ErrDuplicateParameter   = fmt.Errorf("%w: duplicate parameter", ErrSchema)
	ErrUnknownParameter     = fmt.Errorf("%w: parameter is not defined in the pipeline", ErrSchema)
	ErrRequiredParameter    = fmt.Errorf("%w: parameter is required", ErrSchema)
	ErrUnknownInput         = fmt.Errorf("%w: unknown task input", ErrSchema)
	ErrRequiredInput        = fmt.Errorf("%w: required task input not provided", ErrSchema)
	ErrNotAllowed           = fmt.Errorf("%w: value is not in allowed-values", ErrValidation)
	ErrInvalidOutputName    = fmt.Errorf("%w: invalid output parameter name", ErrValidation)
	ErrInvalidInputType     = fmt.Errorf("%w: invalid input type", ErrValidation)
	ErrPathNotFound         = fmt.Errorf("%w: path not found", ErrResource)
	ErrInvalidPipelineShape = fmt.Errorf("%w: malformed pipeline document", ErrSchema)
)

// Schemaf returns an error in the schema category.
func Schemaf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

// Validationf returns an error in the validation category.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Runtimef returns an error in the runtime category.
func Runtimef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRuntime, fmt.Sprintf(format, args...))
}

// ScriptExitError reports a script that terminated with a non-zero exit code.
type ScriptExitError struct {
	Task     string
	ExitCode int
}

func (e *ScriptExitError) Error() string {
	return fmt.Sprintf("script task '%s' exited with code %d", e.Task, e.ExitCode)
}

// Is makes a ScriptExitError match ErrRuntime.
func (e *ScriptExitError) Is(target error) bool { return target == ErrRuntime }

// FanOutError aggregates the failures collected by a fan-out task after all
// of its items have finished.
type FanOutError struct {
	Task   string
	Items  int
	Errors []error
}

func (e *FanOutError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("task '%s': %d of %d item(s) failed:\n- %s",
		e.Task, len(e.Errors), e.Items, strings.Join(msgs, "\n- "))
}

// Is makes a FanOutError match ErrRuntime regardless of what its items raised.
func (e *FanOutError) Is(target error) bool { return target == ErrRuntime }

// Unwrap exposes the collected item errors to errors.Is and errors.As.
func (e *FanOutError) Unwrap() []error { return e.Errors }

// IsSchema reports whether err belongs to the schema category.
func IsSchema(err error) bool { return errors.Is(err, ErrSchema) }

// IsValidation reports whether err belongs to the validation category.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsRuntime reports whether err belongs to the runtime category.
func IsRuntime(err error) bool { return errors.Is(err, ErrRuntime) }

// IsResource reports whether err belongs to the resource category.
func IsResource(err error) bool { return errors.Is(err, ErrResource) }
