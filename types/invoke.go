package types

import (
	"fmt"
	"math/big"
	"strconv"
)

// Status is the result code of an invocation.
type Status int32

const (
	StatusSuccess                Status = 0
	StatusUnknownFailure         Status = 1
	StatusContractNotFound       Status = 2
	StatusMethodNotFound         Status = 3
	StatusMethodNotPayable       Status = 4
	StatusIllegalFormat          Status = 5
	StatusInvalidParameter       Status = 6
	StatusInvalidInstance        Status = 7
	StatusInvalidContainerAccess Status = 8
	StatusAccessDenied           Status = 9
	StatusOutOfStep              Status = 10
	StatusOutOfBalance           Status = 11
	StatusTimeout                Status = 12
	StatusStackOverflow          Status = 13
	// StatusUser is the first code available to application reverts.
	StatusUser Status = 32
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusUnknownFailure:
		return "UnknownFailure"
	case StatusContractNotFound:
		return "ContractNotFound"
	case StatusMethodNotFound:
		return "MethodNotFound"
	case StatusMethodNotPayable:
		return "MethodNotPayable"
	case StatusIllegalFormat:
		return "IllegalFormat"
	case StatusInvalidParameter:
		return "InvalidParameter"
	case StatusInvalidInstance:
		return "InvalidInstance"
	case StatusInvalidContainerAccess:
		return "InvalidContainerAccess"
	case StatusAccessDenied:
		return "AccessDenied"
	case StatusOutOfStep:
		return "OutOfStep"
	case StatusOutOfBalance:
		return "OutOfBalance"
	case StatusTimeout:
		return "Timeout"
	case StatusStackOverflow:
		return "StackOverflow"
	}
	if s >= StatusUser {
		return fmt.Sprintf("User(%d)", int32(s-StatusUser))
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// ParseStatus accepts a status name as printed by String or its decimal
// code.
func ParseStatus(s string) (Status, error) {
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return Status(n), nil
	}
	for st := StatusSuccess; st <= StatusStackOverflow; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// InvokeRequest asks the engine to run one method invocation.
// Immutable once received.
type InvokeRequest struct {
	// Code identifies the call context (opaque to the engine core).
	Code string
	From Address
	To   Address
	// Value is the amount transferred with the call.
	Value *big.Int
	// Limit is the resource budget for the invocation.
	Limit  *big.Int
	Method string
	// Params is application-encoded; not necessarily codec-encoded.
	Params []byte
}

// InvokeResult is the engine's answer to exactly one InvokeRequest.
// Used must not exceed the request's Limit; the engine does not clamp it.
type InvokeResult struct {
	Status Status
	Used   *big.Int
	Result []byte
}

// OK returns true if the invocation succeeded.
func (r InvokeResult) OK() bool { return r.Status == StatusSuccess }

// Overran reports whether Used exceeds limit.
func (r InvokeResult) Overran(limit *big.Int) bool {
	if r.Used == nil || limit == nil {
		return false
	}
	return r.Used.Cmp(limit) > 0
}

// ValueResult is the reply to a state store read. Absent keys report
// Exists=false with an empty Value.
type ValueResult struct {
	Exists bool
	Value  []byte
}
