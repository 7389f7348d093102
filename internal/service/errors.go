package service

import (
	"errors"
	"fmt"
)

// Client-facing failures map onto a small fixed vocabulary; wrong-username and
// wrong-password are deliberately indistinguishable.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrMediaMismatch      = errors.New("token does not match media")
	ErrUpstream           = errors.New("upstream fetch failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrMisconfigured      = errors.New("auth config invalid")
)

func wrapMisconfigured(msg string) error {
	return fmt.Errorf("%w: %s", ErrMisconfigured, msg)
}
