package types

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalFormat matches any FormatError via errors.Is.
	ErrIllegalFormat = errors.New("IllegalFormat")
	// ErrUnknownType matches any UnknownTypeError via errors.Is.
	ErrUnknownType = errors.New("UnknownType")
)

// FormatError reports a malformed fixed-width or textual identifier.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("IllegalFormat: %s (input=%q)", e.Reason, e.Input)
}

func (e *FormatError) Is(target error) bool { return target == ErrIllegalFormat }

// UnknownTypeError reports a codec asked to encode a kind, or decode
// a tag, it has no registration for. Exactly one of Kind or Tag is
// meaningful: Kind is set on the encode path.
type UnknownTypeError struct {
	Kind string
	Tag  TypeTag
}

func (e *UnknownTypeError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("UnknownType: %s", e.Kind)
	}
	return fmt.Sprintf("UnknownType: tag %d", uint8(e.Tag))
}

func (e *UnknownTypeError) Is(target error) bool { return target == ErrUnknownType }

// IsIllegalFormat checks whether an error is a FormatError and returns it.
func IsIllegalFormat(err error) (*FormatError, bool) {
	var f *FormatError
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsUnknownType checks whether an error is an UnknownTypeError and returns it.
func IsUnknownType(err error) (*UnknownTypeError, bool) {
	var u *UnknownTypeError
	if errors.As(err, &u) {
		return u, true
	}
	return nil, false
}
