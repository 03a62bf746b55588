package perf

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyName is returned by Init for an empty measurement name.
	ErrEmptyName = errors.New("measurement name is empty")

	// ErrNotInitialized is returned when a name is used before Init.
	ErrNotInitialized = errors.New("measurement not initialized")

	// ErrAlreadyStarted is returned by Start while a start is still pending.
	ErrAlreadyStarted = errors.New("measurement already started")

	// ErrNotStarted is returned by End when no start is pending.
	ErrNotStarted = errors.New("measurement not started")
)

func nameErr(err error, name string) error {
	return fmt.Errorf("%w: %q", err, name)
}
