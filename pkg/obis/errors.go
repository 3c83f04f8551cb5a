package obis

import (
	"errors"
	"fmt"
)

// ErrClient matches every error returned by a Client, whatever its kind.
var ErrClient = errors.New("obis client error")

// AuthError is returned when the endpoint answers 401 or 403.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("invalid credentials (status %d)", e.StatusCode)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrClient
}

// CommunicationError covers timeouts and transport failures such as name
// resolution errors or connection resets.
type CommunicationError struct {
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("error fetching information: %v", e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

func (e *CommunicationError) Is(target error) bool {
	return target == ErrClient
}

// ClientError is the catch-all kind: unexpected status codes, unreadable or
// malformed bodies.
type ClientError struct {
	StatusCode int
	Err        error
}

func (e *ClientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("unexpected HTTP status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("something really wrong happened: %v", e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

func (e *ClientError) Is(target error) bool {
	return target == ErrClient
}

func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func IsCommunicationError(err error) bool {
	var commErr *CommunicationError
	return errors.As(err, &commErr)
}
