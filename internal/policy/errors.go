package policy

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable error taxonomy surfaced to callers and the UI.
type Kind string

const (
	KindPermissionDenied    Kind = "PERMISSION_DENIED"
	KindLowConfidence       Kind = "LOW_CONFIDENCE"
	KindActionExpired       Kind = "ACTION_EXPIRED"
	KindActionNotFound      Kind = "ACTION_NOT_FOUND"
	KindQuietHours          Kind = "QUIET_HOURS"
	KindInvalidRecipient    Kind = "INVALID_RECIPIENT"
	KindTeamPolicyBlocked   Kind = "TEAM_POLICY_BLOCKED"
	KindCalendarNotLinked   Kind = "CALENDAR_NOT_CONNECTED"
	KindCalendarAuthExpired Kind = "CALENDAR_AUTH_EXPIRED"
	KindRateLimited         Kind = "RATE_LIMITED"
	KindServiceUnavailable  Kind = "SERVICE_UNAVAILABLE"
	KindInternal            Kind = "INTERNAL_ERROR"
)

// GateError carries a taxonomy kind alongside a human-readable message.
type GateError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *GateError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *GateError) Unwrap() error {
	return e.Err
}

// NewGateError builds a GateError with a formatted message.
func NewGateError(kind Kind, format string, args ...any) *GateError {
	return &GateError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapGateError attaches a taxonomy kind to an underlying error.
func WrapGateError(kind Kind, err error) *GateError {
	return &GateError{Kind: kind, Err: err}
}

// KindOf extracts the taxonomy kind from an error chain. Non-gate errors
// report INTERNAL_ERROR.
func KindOf(err error) Kind {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
