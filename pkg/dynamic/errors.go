package dynamic

import (
	"errors"
	"fmt"
)

// ErrorClass classifies template errors.
type ErrorClass string

const (
	// ErrorClassParse marks a malformed template. Parse errors fail
	// compilation and nothing is subscribed.
	ErrorClassParse ErrorClass = "parse"

	// ErrorClassProducer marks a failure of one segment's producer. The
	// segment stops updating; the rest of the template keeps rendering.
	ErrorClassProducer ErrorClass = "producer"
)

// Error codes.
const (
	ErrCodeUnterminatedCommand = "UNTERMINATED_COMMAND"
	ErrCodeZeroLengthToken     = "ZERO_LENGTH_TOKEN"
	ErrCodeInvalidCommand      = "INVALID_COMMAND"
	ErrCodeCommandStart        = "COMMAND_START_FAILED"
	ErrCodeVariableSubscribe   = "VARIABLE_SUBSCRIBE_FAILED"
	ErrCodeVariablesDisabled   = "VARIABLES_DISABLED"
)

// ErrChannelClosed is returned when sending to a render channel whose
// consumer has gone away. It is a teardown signal, not a failure.
var ErrChannelClosed = errors.New("render channel closed")

// TemplateError is a classified error raised while compiling or running a
// dynamic string.
type TemplateError struct {
	Class   ErrorClass `json:"class"`
	Code    string     `json:"code,omitempty"`
	Message string     `json:"message"`

	// Segment is the index of the failing segment, or -1.
	Segment int `json:"segment"`

	// Offset is the byte offset in the template input, or -1.
	Offset int `json:"offset"`

	Err error `json:"-"`
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s (offset=%d)", msg, e.Offset)
	}
	if e.Segment >= 0 {
		msg = fmt.Sprintf("%s (segment=%d)", msg, e.Segment)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *TemplateError) Unwrap() error {
	return e.Err
}

// Is matches another TemplateError with the same class and code.
func (e *TemplateError) Is(target error) bool {
	t, ok := target.(*TemplateError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewParseError creates a new parse error.
func NewParseError(message string, err error) *TemplateError {
	return &TemplateError{
		Class:   ErrorClassParse,
		Message: message,
		Segment: -1,
		Offset:  -1,
		Err:     err,
	}
}

// NewProducerError creates a new producer error.
func NewProducerError(message string, err error) *TemplateError {
	return &TemplateError{
		Class:   ErrorClassProducer,
		Message: message,
		Segment: -1,
		Offset:  -1,
		Err:     err,
	}
}

// WithCode adds an error code to an error.
func (e *TemplateError) WithCode(code string) *TemplateError {
	e.Code = code
	return e
}

// WithSegment records the index of the failing segment.
func (e *TemplateError) WithSegment(index int) *TemplateError {
	e.Segment = index
	return e
}

// WithOffset records the byte offset in the template input.
func (e *TemplateError) WithOffset(offset int) *TemplateError {
	e.Offset = offset
	return e
}

// IsParseError returns true if the error is classified as a parse error.
func IsParseError(err error) bool {
	var e *TemplateError
	if errors.As(err, &e) {
		return e.Class == ErrorClassParse
	}
	return false
}

// IsProducerError returns true if the error is classified as a producer error.
func IsProducerError(err error) bool {
	var e *TemplateError
	if errors.As(err, &e) {
		return e.Class == ErrorClassProducer
	}
	return false
}

// ErrorCode returns the code of a TemplateError in err's chain, or "".
func ErrorCode(err error) string {
	var e *TemplateError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
