package rhizome

import "errors"

var (
	// ErrUpstreamStatus is returned when an upstream answers with a non-2xx status.
	ErrUpstreamStatus = errors.New("rhizome: unexpected upstream status")

	// ErrMalformedBody is returned when an upstream body is not the expected JSON.
	ErrMalformedBody = errors.New("rhizome: malformed upstream body")
)
