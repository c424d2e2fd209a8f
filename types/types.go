// Package types defines the core data types exchanged between an
// execution engine and the service manager driving it.
//
// These are plain Go values. Wire concerns (cramberry field tags,
// message framing) live in the wire package; typed-value encoding
// lives in the codec package.
package types

import "fmt"

// TypeTag identifies the wire encoding of a typed value. Tags are a
// stable contract between both ends of the channel and are never
// inferred from content.
type TypeTag uint8

const (
	TagNil    TypeTag = 0
	TagDict   TypeTag = 1
	TagList   TypeTag = 2
	TagBytes  TypeTag = 3
	TagString TypeTag = 4
	TagBool   TypeTag = 5

	// TagCustom is the first tag available to application kinds.
	TagCustom  TypeTag = 10
	TagAddress TypeTag = TagCustom
	TagInt     TypeTag = TagCustom + 1
)

func (t TypeTag) String() string {
	switch t {
	case TagNil:
		return "Nil"
	case TagDict:
		return "Dict"
	case TagList:
		return "List"
	case TagBytes:
		return "Bytes"
	case TagString:
		return "String"
	case TagBool:
		return "Bool"
	case TagAddress:
		return "Address"
	case TagInt:
		return "Int"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Info keys returned by GetInfo. The info value is a dictionary; the
// engine treats it as opaque metadata.
const (
	InfoBlockHeight    = "B.height"
	InfoBlockTimestamp = "B.timestamp"
	InfoTxIndex        = "T.index"
	InfoTxHash         = "T.hash"
	InfoTxTimestamp    = "T.timestamp"
	InfoTxNonce        = "T.nonce"
	InfoContractOwner  = "C.owner"
	InfoRevision       = "Revision"
)
