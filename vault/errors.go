package vault

import (
	"github.com/pkg/errors"
)

var (
	ErrAuthFailed     = errors.New("vault: authentication failed")
	ErrNotFound       = errors.New("vault: file not found")
	ErrCorrupt        = errors.New("vault: corrupt file")
	ErrMalformedToken = errors.New("vault: malformed token")
	ErrEntryNotFound  = errors.New("vault: entry not found")
	ErrAlreadyExists  = errors.New("vault: already exists")
	ErrInvalidLabel   = errors.New("vault: invalid label")
	ErrSamePath       = errors.New("vault: source and destination are the same file")
)

// Kind groups errors by who has to act on them.
type Kind int

const (
	KindNone Kind = iota
	// KindUser covers wrong passwords, missing labels and existing vaults.
	KindUser
	// KindData covers corrupt vault files and malformed tokens. These are
	// never repaired automatically.
	KindData
	// KindEnvironment covers missing paths and filesystem failures.
	KindEnvironment
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUser:
		return "user"
	case KindData:
		return "data"
	default:
		return "environment"
	}
}

// KindOf classifies err. Unknown errors are environment errors.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAuthFailed),
		errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrInvalidLabel),
		errors.Is(err, ErrSamePath):
		return KindUser
	case errors.Is(err, ErrCorrupt), errors.Is(err, ErrMalformedToken):
		return KindData
	default:
		return KindEnvironment
	}
}
