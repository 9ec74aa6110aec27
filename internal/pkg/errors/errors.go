// Package errors defines the coded error vocabulary shared by the
// supervisor, the workers and the ops API. A code classifies the
// failure, the op names where it happened, and the captured stack
// makes 500s debuggable from a single log line.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Code classifies an error for callers that branch on failure kind.
type Code string

const (
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeInvalidHost   Code = "INVALID_HOST"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeTimeout       Code = "TIMEOUT"
	CodeUnavailable   Code = "UNAVAILABLE"
)

// httpStatusByCode maps each code to the status the ops API answers
// with. Codes missing here are server faults.
var httpStatusByCode = map[Code]int{
	CodeValidation:    400,
	CodeNotFound:      404,
	CodeConflict:      409,
	CodeAlreadyExists: 409,
	CodeInvalidHost:   422,
	CodeUnavailable:   503,
	CodeTimeout:       504,
}

// Error carries a code, the failing op, structured fields and the
// wrapped cause.
type Error struct {
	Code    Code
	Message string
	Op      string
	Err     error
	Fields  map[string]any
	Stack   []Frame
}

// Frame is one captured stack entry.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// Error renders "op: [CODE] message: cause", dropping whichever parts
// are absent.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two coded errors by code, which lets errors.Is compare
// against a bare New(code, ...) sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithField attaches one structured field and returns the error for
// chaining.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// HTTPStatus returns the wire status for this error's code.
func (e *Error) HTTPStatus() int {
	if status, ok := httpStatusByCode[e.Code]; ok {
		return status
	}
	return 500
}

// StackTrace formats the captured frames one per line.
func (e *Error) StackTrace() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range e.Stack {
		fmt.Fprintf(&b, "  %s:%d %s\n", f.File, f.Line, f.Function)
	}
	return b.String()
}

// New creates a coded error and captures the stack at the call site.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Stack: captureStack(2)}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Stack: captureStack(2)}
}

// Wrap annotates err with an op and message. A coded error underneath
// keeps its code and fields, anything else becomes INTERNAL_ERROR.
func Wrap(err error, op string, message string) *Error {
	if err == nil {
		return nil
	}

	out := &Error{
		Code:    CodeInternal,
		Message: message,
		Op:      op,
		Err:     err,
		Stack:   captureStack(2),
	}
	var coded *Error
	if errors.As(err, &coded) {
		out.Code = coded.Code
		out.Fields = coded.Fields
	}
	return out
}

// WrapWithCode annotates err and overrides its code.
func WrapWithCode(err error, code Code, op string, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Op: op, Err: err, Stack: captureStack(2)}
}

// NotFound reports a missing resource by kind and identifier.
func NotFound(resource string, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, id)).
		WithField("resource", resource).
		WithField("id", id)
}

// Validation reports rejected input.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf is Validation with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// InvalidHost is the per-camera recoverable resolution failure: callers
// skip the camera and keep going, they never treat it as fatal.
func InvalidHost(url string) *Error {
	return Newf(CodeInvalidHost, "cannot derive a valid host from %q", url).
		WithField("url", url)
}

// Conflict reports an operation that clashes with current state.
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// AlreadyExists reports a duplicate resource by kind and identifier.
func AlreadyExists(resource string, id string) *Error {
	return New(CodeAlreadyExists, fmt.Sprintf("%s already exists: %s", resource, id)).
		WithField("resource", resource).
		WithField("id", id)
}

// Timeout reports an operation that ran out of time.
func Timeout(operation string) *Error {
	return New(CodeTimeout, fmt.Sprintf("operation timed out: %s", operation)).
		WithField("operation", operation)
}

// GetCode extracts the code from err, defaulting to INTERNAL_ERROR for
// uncoded errors.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetHTTPStatus extracts the wire status from err.
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return 500
}

// GetFields extracts the structured fields from err, nil when uncoded.
func GetFields(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

func hasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsNotFound reports whether err is a missing-resource error.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsInvalidHost reports whether err is a host resolution failure.
func IsInvalidHost(err error) bool {
	return hasCode(err, CodeInvalidHost)
}

// IsConflict reports whether err is a state clash, duplicates included.
func IsConflict(err error) bool {
	return hasCode(err, CodeConflict) || hasCode(err, CodeAlreadyExists)
}

// As is a convenience wrapper for errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is a convenience wrapper for errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// captureStack records up to ten non-runtime frames above skip.
func captureStack(skip int) []Frame {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])

	frames := make([]Frame, 0, n)
	iter := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := iter.Next()
		if !strings.Contains(frame.File, "runtime/") {
			frames = append(frames, Frame{
				File:     frame.File,
				Line:     frame.Line,
				Function: frame.Function,
			})
		}
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}
