package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID indicates that a stage or transformer id is already registered
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNotFound indicates that no stage or transformer is registered under the given id
	ErrNotFound = errors.New("not found")

	// ErrNotConnected indicates a call through a detached transformer's forwarding handle
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyAttached indicates an attempt to attach a transformer that already has a parent
	ErrAlreadyAttached = errors.New("already attached")

	// ErrInvalidIndex indicates an out-of-range output switch selection
	ErrInvalidIndex = errors.New("invalid index")

	// ErrInvalidMapper indicates a nil or malformed transformation closure
	ErrInvalidMapper = errors.New("invalid mapper")

	// ErrInvalidPriority indicates a priority colliding with the reserved sentinel values
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrTerminated indicates that processing of a record was stopped by a TERMINATE policy
	ErrTerminated = errors.New("processing terminated")
)

// Error codes group failures into the three surfaces callers must treat
// differently: structural errors unwind synchronously to the caller,
// processing errors are routed through the pipeline's error policy, and
// configuration errors fail fast at construction or attach time.
const (
	CodeStructural    = "STRUCTURAL"
	CodeProcessing    = "PROCESSING"
	CodeConfiguration = "CONFIGURATION"
)

// Error represents a structured engine error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new engine error
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Structural creates a structural error wrapping the given sentinel
func Structural(message string, err error) *Error {
	return NewError(CodeStructural, message, err)
}

// Processing creates a processing error for failures raised inside a stage
func Processing(message string, err error) *Error {
	return NewError(CodeProcessing, message, err)
}

// Configuration creates a configuration error for construction-time failures
func Configuration(message string, err error) *Error {
	return NewError(CodeConfiguration, message, err)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotConnected checks if an error is a not connected error
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

// IsDuplicateID checks if an error is a duplicate id error
func IsDuplicateID(err error) bool {
	return errors.Is(err, ErrDuplicateID)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
