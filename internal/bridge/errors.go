package bridge

import "errors"

var (
	// ErrInvalidOptions is returned by constructors missing required options.
	ErrInvalidOptions = errors.New("bridge: invalid options")

	// ErrEmptyStatus is returned for a state report without a status.
	ErrEmptyStatus = errors.New("bridge: state message has no status")
)
