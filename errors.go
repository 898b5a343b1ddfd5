package ringhash

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a caller passes an invalid node or
	// identifier.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPreconditionFailed is returned when an operation is called against a
	// ring that can't serve it, such as a lookup against an empty ring.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrDuplicateNode is returned when adding a node whose identifier is
	// already in the ring.
	ErrDuplicateNode = fmt.Errorf("%w: duplicate node", ErrInvalidArgument)

	// ErrUnknownNode is returned when removing a node which is not in the
	// ring.
	ErrUnknownNode = fmt.Errorf("%w: unknown node", ErrInvalidArgument)

	// ErrNotEnoughNodes is returned by Lookup when fewer nodes exist than
	// were requested.
	ErrNotEnoughNodes = fmt.Errorf("%w: not enough nodes", ErrPreconditionFailed)
)
