package executor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrJobAlreadyRun is returned when Run is called on a completed job.
	ErrJobAlreadyRun = errors.New("job already run")
	// ErrNoInputs is returned when discovery finds nothing to test.
	ErrNoInputs = errors.New("no input data files found")
)

// StructuralKind classifies a pre-flight failure.
type StructuralKind int

const (
	// KindMissingDataRoot means the regression data root does not exist.
	KindMissingDataRoot StructuralKind = iota
	// KindMissingExecPath means the directory holding executables does not exist.
	KindMissingExecPath
	// KindMissingExecutable means a category's program is not in the exec path.
	KindMissingExecutable
	// KindOutputCollision means the output root already exists.
	KindOutputCollision
	// KindBadArguments means selection arguments are malformed.
	KindBadArguments
)

// String returns the string representation of StructuralKind.
func (k StructuralKind) String() string {
	switch k {
	case KindMissingDataRoot:
		return "missing data root"
	case KindMissingExecPath:
		return "missing exec path"
	case KindMissingExecutable:
		return "missing executable"
	case KindOutputCollision:
		return "output collision"
	case KindBadArguments:
		return "bad arguments"
	default:
		return "unknown"
	}
}

// StructuralError aborts a run before any job executes.
type StructuralError struct {
	Kind    StructuralKind // What went wrong
	Path    string         // Offending path, if any
	Message string         // Human-readable detail
	Err     error          // Underlying error (optional)
}

// NewStructuralError creates a StructuralError.
func NewStructuralError(kind StructuralKind, path, msg string, err error) *StructuralError {
	return &StructuralError{Kind: kind, Path: path, Message: msg, Err: err}
}

// Error implements the error interface for StructuralError.
func (e *StructuralError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Path != "" {
		sb.WriteString(fmt.Sprintf(" %q", e.Path))
	}
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *StructuralError) Unwrap() error {
	return e.Err
}

// LaunchError means the program could not be started at all, as opposed to
// starting and exiting non-zero.
type LaunchError struct {
	Executable string
	Err        error
}

// Error implements the error interface for LaunchError.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Executable, e.Err)
}

// Unwrap returns the underlying error for error wrapping support.
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// IsStructuralError checks if the error is or wraps a StructuralError.
func IsStructuralError(err error) bool {
	if err == nil {
		return false
	}
	var se *StructuralError
	return errors.As(err, &se)
}

// IsLaunchError checks if the error is or wraps a LaunchError.
func IsLaunchError(err error) bool {
	if err == nil {
		return false
	}
	var le *LaunchError
	return errors.As(err, &le)
}
