package conversation

import "errors"

var (
	// ErrNotFound: the conversation does not exist.
	ErrNotFound = errors.New("conversation: not found")

	// ErrInvalidState: the requested transition is illegal, e.g.
	// finishing an already-resolved conversation or touching an
	// archived one.
	ErrInvalidState = errors.New("conversation: invalid state transition")

	// ErrInvalidSector: the transfer target is inactive or unknown.
	ErrInvalidSector = errors.New("conversation: invalid sector")

	// ErrNoOp: the operation would change nothing (transfer to the
	// current sector). Reported to the caller, never fatal.
	ErrNoOp = errors.New("conversation: no-op")
)
