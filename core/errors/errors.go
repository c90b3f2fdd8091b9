// Package errors provides standardized error types and helpers for the Rescribe codebase.
//
// Conversion failures are reported through three typed errors, one per
// pipeline stage: ParseError (readers), TransformError (transforms) and
// EmitError (writers). Each unwraps to a sentinel so callers can branch with
// errors.Is without inspecting the concrete type. Fidelity loss is never an
// error; see ir.FidelityWarning.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrIO indicates an underlying read or write failure
	ErrIO = errors.New("i/o failure")
	// ErrUnsupportedNode indicates a writer could not traverse a node kind
	ErrUnsupportedNode = errors.New("unsupported node")
	// ErrTransformFailed indicates a transform aborted
	ErrTransformFailed = errors.New("transform failed")
	// ErrCannotDetermineFormat indicates neither a name nor a path resolved a format
	ErrCannotDetermineFormat = errors.New("cannot determine format, specify it explicitly")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "format", "resource", "job")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// ParseErrorKind classifies a reader failure.
type ParseErrorKind int

// Reader failure kinds.
const (
	// ParseInvalid means the input is not valid for the format.
	ParseInvalid ParseErrorKind = iota
	// ParseUnsupportedFormat means the input uses a variant the reader cannot handle.
	ParseUnsupportedFormat
	// ParseIO means the reader could not obtain its input.
	ParseIO
)

func (k ParseErrorKind) String() string {
	switch k {
	case ParseInvalid:
		return "invalid"
	case ParseUnsupportedFormat:
		return "unsupported format"
	case ParseIO:
		return "io"
	}
	return "unknown"
}

// ParseError represents a reader failure
type ParseError struct {
	Kind   ParseErrorKind
	Format string // Format being parsed (e.g., "csv", "html")
	Reason string // Error details
	Err    error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("failed to parse %s: %s", e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	sentinel := ErrInvalidInput
	switch e.Kind {
	case ParseUnsupportedFormat:
		sentinel = ErrUnsupported
	case ParseIO:
		sentinel = ErrIO
	}
	if e.Err != nil {
		return []error{sentinel, e.Err}
	}
	return []error{sentinel}
}

// EmitErrorKind classifies a writer failure.
type EmitErrorKind int

// Writer failure kinds.
const (
	// EmitUnsupportedNode means the writer cannot even traverse a node kind.
	EmitUnsupportedNode EmitErrorKind = iota
	// EmitUnsupportedFormat means the writer cannot produce the requested variant.
	EmitUnsupportedFormat
	// EmitIO means the writer could not produce its output.
	EmitIO
)

func (k EmitErrorKind) String() string {
	switch k {
	case EmitUnsupportedNode:
		return "unsupported node"
	case EmitUnsupportedFormat:
		return "unsupported format"
	case EmitIO:
		return "io"
	}
	return "unknown"
}

// EmitError represents a writer failure
type EmitError struct {
	Kind   EmitErrorKind
	Format string // Format being written
	Node   string // Node kind concerned, for EmitUnsupportedNode
	Reason string // Error details
	Err    error  // Underlying error, if any
}

func (e *EmitError) Error() string {
	var msg string
	if e.Node != "" {
		msg = fmt.Sprintf("failed to emit %s: node %q: %s", e.Format, e.Node, e.Reason)
	} else {
		msg = fmt.Sprintf("failed to emit %s: %s", e.Format, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EmitError) Unwrap() []error {
	sentinel := ErrUnsupportedNode
	switch e.Kind {
	case EmitUnsupportedFormat:
		sentinel = ErrUnsupported
	case EmitIO:
		sentinel = ErrIO
	}
	if e.Err != nil {
		return []error{sentinel, e.Err}
	}
	return []error{sentinel}
}

// TransformError represents a transform failure
type TransformError struct {
	Transform string // Name of the transform
	Reason    string // Error details
	Err       error  // Underlying error, if any
}

func (e *TransformError) Error() string {
	msg := fmt.Sprintf("transform %s failed: %s", e.Transform, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransformError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTransformFailed, e.Err}
	}
	return []error{ErrTransformFailed}
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(kind ParseErrorKind, format, reason string) *ParseError {
	return &ParseError{
		Kind:   kind,
		Format: format,
		Reason: reason,
	}
}

// NewEmit creates an EmitError
func NewEmit(kind EmitErrorKind, format, reason string) *EmitError {
	return &EmitError{
		Kind:   kind,
		Format: format,
		Reason: reason,
	}
}

// NewTransform creates a TransformError
func NewTransform(transform, reason string) *TransformError {
	return &TransformError{
		Transform: transform,
		Reason:    reason,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
