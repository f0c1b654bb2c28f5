package engine

import "errors"

var (
	// ErrNoDescriptor indicates an operation was requested without a
	// target application.
	ErrNoDescriptor = errors.New("no application descriptor")

	// ErrNothingDiscovered indicates no authoritative source resolved
	// and nothing was proposed for removal.
	ErrNothingDiscovered = errors.New("nothing discovered")
)
