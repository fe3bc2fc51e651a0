// Package domain contains the entities of the room core: identifiers,
// validation and permission tables, no transport or lifecycle logic.
package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUserIDTooLong   = errors.New("user id too long")
)

type UserID string

// Identity is the authenticated caller as supplied by the platform's auth
// layer. RoleHint is optional; the registry may honor it as the initial
// role on a first join when it is valid for the room kind.
type Identity struct {
	UserID   UserID `json:"user_id"`
	Username string `json:"username"`
	RoleHint Role   `json:"role_hint,omitempty"`
}

func (i *Identity) Validate() error {
	if len(i.UserID) == 0 {
		return errors.New("user id empty")
	}
	if len(i.UserID) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	if len(i.Username) == 0 {
		return ErrUsernameEmpty
	}
	if len(i.Username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}

// NewGuestIdentity mints an identity for an unauthenticated visitor. The
// id is stable for the lifetime of the caller's session cookie.
func NewGuestIdentity() Identity {
	id := uuid.NewString()
	return Identity{
		UserID:   UserID(id),
		Username: fmt.Sprintf("guest-%s", id[:8]),
	}
}
