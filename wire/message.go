// Package wire defines the messages exchanged over an engine channel.
//
// Every message is a Message: a type discriminator plus at most one
// payload pointer, serialised with cramberry. Replies reuse the type of
// the request they answer (a GetValue request is answered by a GetValue
// message carrying a Value payload).
package wire

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/eeproxy/codec"
)

// MessageType discriminates Message payloads.
type MessageType uint8

const (
	MsgVersion    MessageType = 0
	MsgInvoke     MessageType = 1
	MsgResult     MessageType = 2
	MsgGetValue   MessageType = 3
	MsgSetValue   MessageType = 4
	MsgEvent      MessageType = 6
	MsgGetInfo    MessageType = 7
	MsgGetBalance MessageType = 8
	MsgLog        MessageType = 10
	MsgClose      MessageType = 11
)

func (t MessageType) String() string {
	switch t {
	case MsgVersion:
		return "Version"
	case MsgInvoke:
		return "Invoke"
	case MsgResult:
		return "Result"
	case MsgGetValue:
		return "GetValue"
	case MsgSetValue:
		return "SetValue"
	case MsgEvent:
		return "Event"
	case MsgGetInfo:
		return "GetInfo"
	case MsgGetBalance:
		return "GetBalance"
	case MsgLog:
		return "Log"
	case MsgClose:
		return "Close"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// Message is a tagged union. Type says which payload is set; GetInfo
// requests and Close carry none.
type Message struct {
	Type MessageType `cramberry:"1"`

	Version    *Version    `cramberry:"2"`
	Invoke     *Invoke     `cramberry:"3"`
	Result     *Result     `cramberry:"4"`
	GetValue   *GetValue   `cramberry:"5"`
	Value      *Value      `cramberry:"6"`
	SetValue   *SetValue   `cramberry:"7"`
	Event      *Event      `cramberry:"8"`
	Info       *Info       `cramberry:"9"`
	GetBalance *GetBalance `cramberry:"10"`
	Balance    *Balance    `cramberry:"11"`
	Log        *Log        `cramberry:"12"`
}

// Version is the handshake payload.
type Version struct {
	Version uint32 `cramberry:"1"`
	PID     uint32 `cramberry:"2"`
	Type    string `cramberry:"3"`
}

// Invoke is an invocation request. Addresses travel in binary form and
// integers as two's complement bytes.
type Invoke struct {
	Code   string `cramberry:"1"`
	From   []byte `cramberry:"2"`
	To     []byte `cramberry:"3"`
	Value  []byte `cramberry:"4"`
	Limit  []byte `cramberry:"5"`
	Method string `cramberry:"6"`
	Params []byte `cramberry:"7"`
}

// Result answers exactly one Invoke.
type Result struct {
	Status int32  `cramberry:"1"`
	Used   []byte `cramberry:"2"`
	Result []byte `cramberry:"3"`
}

type GetValue struct {
	Key []byte `cramberry:"1"`
}

// Value answers a GetValue request.
type Value struct {
	Exists bool   `cramberry:"1"`
	Value  []byte `cramberry:"2"`
}

// SetValue writes or, with Delete set, removes a key. It has no reply.
type SetValue struct {
	Key    []byte `cramberry:"1"`
	Delete bool   `cramberry:"2"`
	Value  []byte `cramberry:"3"`
}

type Event struct {
	Indexed []codec.Typed `cramberry:"1"`
	Data    []codec.Typed `cramberry:"2"`
}

// Info answers a GetInfo request.
type Info struct {
	Value codec.Typed `cramberry:"1"`
}

type GetBalance struct {
	Address []byte `cramberry:"1"`
}

// Balance answers a GetBalance request.
type Balance struct {
	Value []byte `cramberry:"1"`
}

type Log struct {
	Level   uint8  `cramberry:"1"`
	Message string `cramberry:"2"`
}

// Marshal serialises m.
func Marshal(m *Message) ([]byte, error) {
	data, err := cramberry.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %s: %w", m.Type, err)
	}
	return data, nil
}

// Unmarshal parses data and checks that the payload matches the type.
func Unmarshal(data []byte) (*Message, error) {
	m := new(Message)
	if err := cramberry.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("wire: unmarshal: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate reports a message whose payload does not match its type.
func (m *Message) Validate() error {
	ok := true
	switch m.Type {
	case MsgVersion:
		ok = m.Version != nil
	case MsgInvoke:
		ok = m.Invoke != nil
	case MsgResult:
		ok = m.Result != nil
	case MsgGetValue:
		ok = m.GetValue != nil || m.Value != nil
	case MsgSetValue:
		ok = m.SetValue != nil
	case MsgEvent:
		ok = m.Event != nil
	case MsgGetInfo, MsgClose:
	case MsgGetBalance:
		ok = m.GetBalance != nil || m.Balance != nil
	case MsgLog:
		ok = m.Log != nil
	default:
		return fmt.Errorf("wire: unknown message type %d", uint8(m.Type))
	}
	if !ok {
		return fmt.Errorf("wire: %s message without payload", m.Type)
	}
	return nil
}
