package issues

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrConflict          = errors.New("conflict")
	ErrPersistence       = errors.New("persistence failure")
	ErrUnauthenticated   = errors.New("unauthenticated")

	// ErrUnknownAction is a NotFound: the boundary answers it like a missing issue.
	ErrUnknownAction = fmt.Errorf("%w: unknown action", ErrNotFound)
)

func unknownAction(name string) error {
	return fmt.Errorf("%w %q", ErrUnknownAction, name)
}
