package digest

import (
	"errors"
	"fmt"

	"github.com/Extas/telegram-summary-bot/window"
)

// ErrEmptyResult means the generation service answered but returned no
// usable text. Interactive paths substitute a fallback sentence; the
// scheduled path aborts that chat's cycle silently.
var ErrEmptyResult = errors.New("generation returned no usable text")

type ErrorKind string

const (
	KindInvalidSelector   ErrorKind = "invalid_selector"
	KindGenerationFailure ErrorKind = "generation_failure"
	KindEmptyResult       ErrorKind = "empty_result"
	KindTransportFailure  ErrorKind = "transport_failure"
	KindUnknown           ErrorKind = "unknown"
)

// Error is the structured failure value carried through the pipeline.
// Every failure is chat/request scoped; nothing here is fatal to the
// process.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func generationError(cause error) *Error {
	return &Error{Kind: KindGenerationFailure, Message: "generation service call failed", Cause: cause}
}

func transportError(op string, cause error) *Error {
	return &Error{Kind: KindTransportFailure, Message: op + " delivery failed", Cause: cause}
}

// Kind classifies any error produced by the pipeline, including the
// sentinel values it wraps.
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, window.ErrInvalidSelector):
		return KindInvalidSelector
	case errors.Is(err, ErrEmptyResult):
		return KindEmptyResult
	}
	return KindUnknown
}
