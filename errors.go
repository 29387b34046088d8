package fgen

import (
	"errors"
	"fmt"
)

// Terminal pipeline outcomes. Process returns them wrapped in a
// *ProcessError.
var (
	ErrFileNotFound     = errors.New("file not found")
	ErrDriverUnresolved = errors.New("driver unresolved")
	ErrTypeMismatch     = errors.New("file type mismatch")
	ErrNoConfiguration  = errors.New("no configuration")
)

// Per-unit outcomes recorded in Result.Skipped.
var (
	ErrHandlerUnresolvable = errors.New("handler unresolvable")
	ErrHandlerFailed       = errors.New("handler failed")
)

// Configuration and handler contract errors.
var (
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrUnknownOperation    = errors.New("unknown operation")
	ErrReservedOperation   = errors.New("reserved operation name")
)

// Stage names a step of the processing pipeline.
type Stage string

const (
	StageStart          Stage = "start"
	StageTypeDetected   Stage = "type_detected"
	StageDriverResolved Stage = "driver_resolved"
	StageInspected      Stage = "inspected"
	StageRulesResolved  Stage = "rules_resolved"
	StageDispatched     Stage = "dispatched"
	StageDone           Stage = "done"
)

// ProcessError records a terminal pipeline failure. Stage is the last state
// the pipeline reached before failing.
type ProcessError struct {
	Stage  Stage
	Path   string
	Driver string
	Err    error
}

// Error implements the error interface
func (e *ProcessError) Error() string {
	if e.Driver != "" {
		return fmt.Sprintf("process %s [%s] at %s: %v", e.Path, e.Driver, e.Stage, e.Err)
	}
	return fmt.Sprintf("process %s at %s: %v", e.Path, e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Reason classifies why a dispatch unit produced no output.
type Reason string

const (
	ReasonHandlerUnresolvable Reason = "handler_unresolvable"
	ReasonConstructFailed     Reason = "construct_failed"
	ReasonHandlerFailed       Reason = "handler_failed"
	ReasonEmptyOutput         Reason = "empty_output"
)

// UnitError describes a dispatch unit that was skipped.
type UnitError struct {
	Driver  string
	Handler string
	Variant string
	Reason  Reason
	Err     error
}

// Error implements the error interface
func (e *UnitError) Error() string {
	return fmt.Sprintf("%s/%s/%s: %s: %v", e.Driver, e.Handler, e.Variant, e.Reason, e.Err)
}

// Unwrap returns the underlying error
func (e *UnitError) Unwrap() error {
	return e.Err
}

// IsFileNotFound reports whether err is a missing source file outcome.
func IsFileNotFound(err error) bool {
	return errors.Is(err, ErrFileNotFound)
}

// IsDriverUnresolved reports whether no driver could be found for the file.
func IsDriverUnresolved(err error) bool {
	return errors.Is(err, ErrDriverUnresolved)
}

// IsTypeMismatch reports whether an inspector rejected the file.
func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}

// IsNoConfiguration reports whether processing stopped for lack of rules.
func IsNoConfiguration(err error) bool {
	return errors.Is(err, ErrNoConfiguration)
}

// IsInvalidRegistration reports whether a registry refused an entry.
func IsInvalidRegistration(err error) bool {
	return errors.Is(err, ErrInvalidRegistration)
}

// IsUnknownOperation reports whether a handler has no such operation.
func IsUnknownOperation(err error) bool {
	return errors.Is(err, ErrUnknownOperation)
}

// StageOf returns the pipeline stage recorded in err, or "".
func StageOf(err error) Stage {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
