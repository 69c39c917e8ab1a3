package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Type classifies a pipeline failure. Every type is recoverable: the current
// pipeline iteration is skipped and the user gets a transient notification.
type Type int

const (
	NotAuthenticated Type = iota
	NoSubtitles
	BackendNotConfigured
	BackendUnreachable
	InvalidResult
	NavigationRace
	NotInitialized
	Parse
	Storage
	Config
	Unknown
)

func (t Type) String() string {
	switch t {
	case NotAuthenticated:
		return "NotAuthenticated"
	case NoSubtitles:
		return "NoSubtitles"
	case BackendNotConfigured:
		return "BackendNotConfigured"
	case BackendUnreachable:
		return "BackendUnreachable"
	case InvalidResult:
		return "InvalidResult"
	case NavigationRace:
		return "NavigationRace"
	case NotInitialized:
		return "NotInitialized"
	case Parse:
		return "Parse"
	case Storage:
		return "Storage"
	case Config:
		return "Config"
	default:
		return "Unknown"
	}
}

// Message keys of the localized strings shipped with the CONFIG payload.
const (
	MsgNoAPIKeyProvided       = "noApiKeyProvided"
	MsgAINotInitialized       = "aiNotInitialized"
	MsgAIServiceFailed        = "aiServiceFailed"
	MsgNotLoginYet            = "notLoginYet"
	MsgWorkflowNotInitialized = "workflowNotInitialized"
)

// Notification returns the message key a failure of this type surfaces to
// the user, or "" when the failure is only logged.
func (t Type) Notification() string {
	switch t {
	case NotAuthenticated:
		return MsgNotLoginYet
	case BackendNotConfigured:
		return MsgNoAPIKeyProvided
	case NotInitialized:
		return MsgAINotInitialized
	case BackendUnreachable:
		return MsgAIServiceFailed
	default:
		return ""
	}
}

type Error struct {
	Type    Type
	Message string
	Context map[string]any
	Cause   error
}

func New(t Type, message string) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(t Type, format string, args ...any) *Error {
	return New(t, fmt.Sprintf(format, args...))
}

func Wrap(err error, t Type, message string) *Error {
	e := New(t, message)
	e.Cause = err
	return e
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Type, e.Message)}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}
	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// Is reports whether any error in err's chain is an *Error of type t.
func Is(err error, t Type) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// TypeOf returns the type of the first *Error in err's chain, or Unknown.
func TypeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return Unknown
}
