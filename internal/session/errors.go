package session

import (
	"errors"

	"github.com/grassproto/grass/internal/sandbox"
)

// Kind enumerates the GRASS error taxonomy; every command error
// surfaced to the client carries one of these.
type Kind int

const (
	KindAccessDenied Kind = iota
	KindPathTooLong
	KindNotADirectory
	KindNotAFile
	KindNoSuchEntry
	KindAlreadyExists
	KindInvalidName
	KindInvalidHostname
	KindInvalidCommand
	KindInvalidSize
	KindMissingArguments
	KindIOFailure
)

func (k Kind) message() string {
	switch k {
	case KindAccessDenied:
		return "Access denied"
	case KindPathTooLong:
		return "The path is too long"
	case KindNotADirectory:
		return "Not a directory"
	case KindNotAFile:
		return "Not a file"
	case KindNoSuchEntry:
		return "No such file or directory"
	case KindAlreadyExists:
		return "Directory already exists"
	case KindInvalidName:
		return "Invalid directory name"
	case KindInvalidHostname:
		return "Invalid hostname"
	case KindInvalidCommand:
		return "Invalid command"
	case KindInvalidSize:
		return "Invalid size"
	case KindMissingArguments:
		return "Missing arguments"
	case KindIOFailure:
		return "IO failure"
	default:
		return "Unknown error"
	}
}

// cmdError is the error type every command handler returns; it carries
// enough to render "Error: <cmd>: <msg>" without the dispatcher needing
// to know the taxonomy.
type cmdError struct {
	kind Kind
}

func (e *cmdError) Error() string { return e.kind.message() }

func newErr(k Kind) error { return &cmdError{kind: k} }

// messageFor renders the client-visible text for err: cmdErrors report
// their own kind, sandbox errors map onto the matching taxonomy entry,
// and anything else (a raw filesystem error, say) falls back to
// IOFailure.
func messageFor(err error) string {
	var ce *cmdError
	if errors.As(err, &ce) {
		return ce.kind.message()
	}
	switch {
	case errors.Is(err, sandbox.ErrAccessDenied):
		return KindAccessDenied.message()
	case errors.Is(err, sandbox.ErrPathTooLong):
		return KindPathTooLong.message()
	default:
		return KindIOFailure.message()
	}
}
