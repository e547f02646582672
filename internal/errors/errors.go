package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/julianstephens/habitrun/internal/logger"
)

// Code classifies a failure for callers.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInvalidInput Code = "invalid_input"
	CodeInternal     Code = "internal"
)

// ErrNoRecord is returned by stores when a lookup matches nothing.
var ErrNoRecord = stderrors.New("record not found")

// ErrRevisionConflict is returned by stores when a compare-and-set write loses
// against a concurrent writer. The caller re-reads and retries.
var ErrRevisionConflict = stderrors.New("enrollment revision changed")

// ErrDuplicateActive is returned by stores when the one-active-enrollment
// index rejects an insert.
var ErrDuplicateActive = stderrors.New("active enrollment already exists")

// Error is the typed error surfaced by the enrollment engine.
type Error struct {
	Code    Code
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s", op, msg)
	case msg != "":
		return msg
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a typed error.
func New(code Code, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// NotFound reports a missing enrollment, habit or task.
func NotFound(op, format string, args ...interface{}) error {
	return New(CodeNotFound, op, fmt.Sprintf(format, args...), nil)
}

// Conflict reports a duplicate active enrollment.
func Conflict(op, format string, args ...interface{}) error {
	return New(CodeConflict, op, fmt.Sprintf(format, args...), nil)
}

// InvalidInput reports an out-of-bounds argument.
func InvalidInput(op, format string, args ...interface{}) error {
	return New(CodeInvalidInput, op, fmt.Sprintf(format, args...), nil)
}

// Internal wraps a store or catalog failure. Typed errors pass through unchanged.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return err
	}
	return New(CodeInternal, op, err.Error(), err)
}

// CodeOf extracts the code of a typed error, or "" for untyped errors.
func CodeOf(err error) Code {
	var typed *Error
	if !stderrors.As(err, &typed) {
		return ""
	}
	return typed.Code
}

// IsCode checks whether err (or a wrapped err) carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func IsNotFound(err error) bool     { return IsCode(err, CodeNotFound) }
func IsConflict(err error) bool     { return IsCode(err, CodeConflict) }
func IsInvalidInput(err error) bool { return IsCode(err, CodeInvalidInput) }
func IsInternal(err error) bool     { return IsCode(err, CodeInternal) }

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err, "code", CodeOf(err))
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
