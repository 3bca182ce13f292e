package query

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error categories matched with errors.Is.
var (
	// ErrBuild is returned when a query specification is structurally incomplete.
	ErrBuild = errors.New("query build failed")

	// ErrCyclicCTE is returned when common table expressions reference each other in a cycle.
	ErrCyclicCTE = errors.New("cyclic common table expression")

	// ErrExecution is returned when the storage gateway fails to run a query.
	ErrExecution = errors.New("query execution failed")

	// ErrTimeout is returned when a computation exceeds its time bound.
	ErrTimeout = errors.New("query computation timed out")
)

// BuildError reports a query that cannot be rendered.
type BuildError struct {
	Reason string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("build query: %s", e.Reason)
}

// Is reports whether target is ErrBuild.
func (e *BuildError) Is(target error) bool {
	return target == ErrBuild
}

// NewBuildError creates a BuildError with a formatted reason.
func NewBuildError(format string, args ...interface{}) *BuildError {
	return &BuildError{Reason: fmt.Sprintf(format, args...)}
}

// CyclicCTEError reports a dependency cycle between named CTEs.
type CyclicCTEError struct {
	// Cycle is the reference path, first and last element equal.
	Cycle []string
}

// Error implements the error interface.
func (e *CyclicCTEError) Error() string {
	return fmt.Sprintf("build query: cyclic CTE references: %s", strings.Join(e.Cycle, " -> "))
}

// Is reports whether target is ErrCyclicCTE.
func (e *CyclicCTEError) Is(target error) bool {
	return target == ErrCyclicCTE
}

// ExecutionKind classifies storage failures.
type ExecutionKind string

const (
	// KindConstraint is a constraint violation.
	KindConstraint ExecutionKind = "constraint"
	// KindConnectivity is a lost or refused connection.
	KindConnectivity ExecutionKind = "connectivity"
	// KindDialect is a syntax or semantic error reported by the database.
	KindDialect ExecutionKind = "dialect"
	// KindUnknown is any other failure.
	KindUnknown ExecutionKind = "unknown"
)

// ExecutionError wraps a storage gateway failure.
type ExecutionError struct {
	Kind        ExecutionKind
	Fingerprint Fingerprint
	Cause       error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Fingerprint != "" {
		return fmt.Sprintf("execute query %s (%s): %v", e.Fingerprint.Short(), e.Kind, e.Cause)
	}
	return fmt.Sprintf("execute query (%s): %v", e.Kind, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrExecution.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// WithFingerprint returns a copy of e annotated with fp.
func (e *ExecutionError) WithFingerprint(fp Fingerprint) *ExecutionError {
	cp := *e
	cp.Fingerprint = fp
	return &cp
}

// NewExecutionError creates an ExecutionError.
func NewExecutionError(kind ExecutionKind, cause error) *ExecutionError {
	return &ExecutionError{Kind: kind, Cause: cause}
}

// TimeoutError reports a computation that exceeded its bound.
type TimeoutError struct {
	Fingerprint Fingerprint
	Timeout     time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("compute %s: exceeded %s", e.Fingerprint.Short(), e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// IsBuildError checks if an error is a BuildError or CyclicCTEError.
func IsBuildError(err error) bool {
	return errors.Is(err, ErrBuild) || errors.Is(err, ErrCyclicCTE)
}

// IsTimeout checks if an error is a TimeoutError.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
