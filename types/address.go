package types

import (
	"encoding/hex"
	"fmt"
)

const (
	// AddressBytes is the binary length of an Address: one prefix byte
	// followed by the 20-byte body.
	AddressBytes = 21
	// AddressTextLen is the length of the textual form ("hx"/"cx" + 40 hex).
	AddressTextLen = 42

	addressBodyLen = AddressBytes - 1
)

// Address identifies an account (prefix 0, "hx") or a contract
// (prefix 1, "cx"). The array form makes every Address an independent,
// immutable value.
type Address [AddressBytes]byte

// ParseAddress parses the 42-character textual form.
//
// Any two-character prefix other than "cx" yields the account kind;
// only the body is validated.
func ParseAddress(s string) (Address, error) {
	if len(s) < AddressTextLen {
		return Address{}, &FormatError{Input: s, Reason: fmt.Sprintf("text length %d < %d", len(s), AddressTextLen)}
	}
	body, err := hex.DecodeString(s[2:])
	if err != nil {
		return Address{}, &FormatError{Input: s, Reason: "body is not hex"}
	}
	if len(body) != addressBodyLen {
		return Address{}, &FormatError{Input: s, Reason: fmt.Sprintf("body length %d != %d", len(body), addressBodyLen)}
	}
	var a Address
	if s[:2] == "cx" {
		a[0] = 1
	}
	copy(a[1:], body)
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on malformed input.
// Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes copies the first 21 bytes of b. The prefix byte is
// stored verbatim.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) < AddressBytes {
		return Address{}, &FormatError{Input: hex.EncodeToString(b), Reason: fmt.Sprintf("binary length %d < %d", len(b), AddressBytes)}
	}
	var a Address
	copy(a[:], b[:AddressBytes])
	return a, nil
}

// Bytes returns a copy of the binary form.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressBytes)
	copy(out, a[:])
	return out
}

// String returns the textual form: "hx" when the prefix byte is zero,
// "cx" otherwise, followed by the lowercase hex body.
func (a Address) String() string {
	prefix := "cx"
	if a[0] == 0 {
		prefix = "hx"
	}
	return prefix + hex.EncodeToString(a[1:])
}

func (a Address) IsContract() bool { return a[0] != 0 }

func (a Address) Equal(o Address) bool { return a == o }

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
