package codec

import (
	"fmt"

	"github.com/blockberries/eeproxy/types"
)

// Typed is a tag and payload pair as it travels on the wire.
type Typed struct {
	Tag  types.TypeTag `cramberry:"1"`
	Data []byte        `cramberry:"2"`
}

// EncodeAny is Encode returning a Typed pair.
func (r *Registry) EncodeAny(v any) (Typed, error) {
	tag, data, err := r.Encode(v)
	if err != nil {
		return Typed{}, err
	}
	return Typed{Tag: tag, Data: data}, nil
}

// DecodeAny is Decode taking a Typed pair.
func (r *Registry) DecodeAny(t Typed) (any, error) {
	return r.Decode(t.Tag, t.Data)
}

// EncodeList encodes every element of vs. The first failing element
// aborts the whole list; no partial result is returned.
func (r *Registry) EncodeList(vs []any) ([]Typed, error) {
	out := make([]Typed, len(vs))
	for i, v := range vs {
		t, err := r.EncodeAny(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// DecodeList decodes every element of ts. The result is never nil.
func (r *Registry) DecodeList(ts []Typed) ([]any, error) {
	out := make([]any, len(ts))
	for i, t := range ts {
		v, err := r.DecodeAny(t)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
