package dynamic

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func errorsAs(err error, target **TemplateError) bool {
	return errors.As(err, target)
}

func TestTemplateErrorClassification(t *testing.T) {
	cause := errors.New("no such command")
	err := NewProducerError("failed to start command", cause).
		WithCode(ErrCodeCommandStart).
		WithSegment(2)

	wrapped := fmt.Errorf("subscription: %w", err)

	if !IsProducerError(wrapped) {
		t.Error("IsProducerError() = false, want true")
	}
	if IsParseError(wrapped) {
		t.Error("IsParseError() = true, want false")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is() should find the cause")
	}
	if !errors.Is(wrapped, &TemplateError{Class: ErrorClassProducer, Code: ErrCodeCommandStart}) {
		t.Error("errors.Is() should match class and code")
	}
	if ErrorCode(wrapped) != ErrCodeCommandStart {
		t.Errorf("ErrorCode() = %q", ErrorCode(wrapped))
	}

	msg := err.Error()
	for _, want := range []string{"[producer]", "segment=2", "no such command"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if strings.Contains(msg, "offset") {
		t.Errorf("Error() = %q should omit an unset offset", msg)
	}
}

func TestErrorCodeOnForeignError(t *testing.T) {
	if code := ErrorCode(errors.New("plain")); code != "" {
		t.Errorf("ErrorCode() = %q, want empty", code)
	}
}
