// Package eegrpc carries an engine channel over a gRPC bidirectional
// stream.
//
// No protobuf code generation is required: the stream carries
// wire.Message values serialized by the wire package. The manager runs
// the gRPC server on a unix socket; the engine dials it.
package eegrpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/blockberries/eeproxy/wire"
)

const codecName = "eeproxy"

// MessageCodec implements grpc/encoding.Codec for *wire.Message only.
// Unmarshal rejects messages whose payload does not match their type.
type MessageCodec struct{}

func (MessageCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(*wire.Message)
	if !ok {
		return nil, fmt.Errorf("eegrpc: cannot marshal %T", v)
	}
	return wire.Marshal(m)
}

func (MessageCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(*wire.Message)
	if !ok {
		return fmt.Errorf("eegrpc: cannot unmarshal into %T", v)
	}
	decoded, err := wire.Unmarshal(data)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}

func (MessageCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(MessageCodec{})
}
