package eeproxy

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/blockberries/eeproxy/types"
)

// ErrSessionClosed is returned by operations on a session or proxy
// after its channel has been closed.
var ErrSessionClosed = errors.New("eeproxy: session closed")

// StatusError lets a handler fail an invocation with an explicit status.
// Message becomes the result bytes.
type StatusError struct {
	Status  types.Status
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// NewStatusError creates a new StatusError.
func NewStatusError(status types.Status, msg string) *StatusError {
	return &StatusError{Status: status, Message: msg}
}

// IsStatus checks whether an error is a StatusError and returns it.
func IsStatus(err error) (*StatusError, bool) {
	var s *StatusError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}

// StatusOf maps a handler error to the status reported to the manager.
func StatusOf(err error) types.Status {
	if err == nil {
		return types.StatusSuccess
	}
	if s, ok := IsStatus(err); ok {
		return s.Status
	}
	switch {
	case errors.Is(err, types.ErrIllegalFormat):
		return types.StatusIllegalFormat
	case errors.Is(err, types.ErrUnknownType):
		return types.StatusInvalidParameter
	}
	return types.StatusUnknownFailure
}

// FailedResult converts a handler error into the result sent back for
// the invocation. Used reports whatever the handler had consumed.
func FailedResult(err error, used *big.Int) types.InvokeResult {
	msg := err.Error()
	if s, ok := IsStatus(err); ok {
		msg = s.Message
	}
	if used == nil {
		used = new(big.Int)
	}
	return types.InvokeResult{Status: StatusOf(err), Used: used, Result: []byte(msg)}
}
