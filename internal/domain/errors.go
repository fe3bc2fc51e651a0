package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrRoomFull            = errors.New("room full")
	ErrRoomEnded           = errors.New("room ended")
	ErrInvalidInviteCode   = errors.New("invalid invite code")
	ErrInvalidRoomSpec     = errors.New("invalid room spec")
	ErrAlreadyRecording    = errors.New("already recording")
	ErrNotRecording        = errors.New("not recording")
	ErrServiceUnavailable  = errors.New("service unavailable")
)

// ErrNotAllowed is the sentinel behind every permission engine deny; use
// errors.Is against it and errors.As for the detailed NotAllowedError.
var ErrNotAllowed = errors.New("not allowed")

// NotAllowedError carries the denied action and the permission that
// would have been required, so callers can surface a precise reason.
type NotAllowedError struct {
	Action   string
	Required string
	Reason   string
}

func (e *NotAllowedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("not allowed: %s: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("not allowed: %s requires %s", e.Action, e.Required)
}

func (e *NotAllowedError) Unwrap() error { return ErrNotAllowed }

// NotAllowed builds a deny for an action gated by a single permission.
func NotAllowed(action, required string) error {
	return &NotAllowedError{Action: action, Required: required}
}

// NotAllowedReason builds a deny explained by a rule rather than a
// missing permission, e.g. targeting a superior role.
func NotAllowedReason(action, reason string) error {
	return &NotAllowedError{Action: action, Reason: reason}
}
