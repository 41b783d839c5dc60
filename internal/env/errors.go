package env

import "errors"

var (
	// ErrInvalidAction is returned for an action outside the relative action set
	ErrInvalidAction = errors.New("env: invalid action")

	// ErrTerminated is returned when stepping a world whose episode has ended
	ErrTerminated = errors.New("env: episode terminated")
)
