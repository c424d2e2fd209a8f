// Package codec maps application values to tagged wire payloads and
// back.
//
// A Registry is an explicit, constructed object: both ends of a channel
// must agree on one tag assignment, so a process normally builds one
// registry at startup and hands it to its session. Independent
// registries can coexist (e.g. in tests) and can be merged with Compose.
package codec

import (
	"fmt"
	"maps"
	"reflect"
	"sync"

	"github.com/blockberries/eeproxy/types"
)

type encodeFunc func(r *Registry, v any) ([]byte, error)
type decodeFunc func(r *Registry, data []byte) (any, error)

type encoder struct {
	tag types.TypeTag
	fn  encodeFunc
}

// Registry holds encode functions keyed by Go type and decode functions
// keyed by tag.
//
// Registration is last-write-wins on both the Go type and the tag.
// Two independently authored registrations that pick the same tag are a
// caller error and are not detected. Registration may happen while
// values are being encoded; it is serialised against lookups.
type Registry struct {
	mu       sync.RWMutex
	encoders map[reflect.Type]encoder
	decoders map[types.TypeTag]decodeFunc
}

// NewEmpty returns a registry with no registrations.
func NewEmpty() *Registry {
	return &Registry{
		encoders: make(map[reflect.Type]encoder),
		decoders: make(map[types.TypeTag]decodeFunc),
	}
}

// New returns a registry preloaded with the built-in kinds: nil, bool,
// string, []byte, integers, types.Address, []any and map[string]any.
func New() *Registry {
	r := NewEmpty()
	registerBuiltins(r)
	return r
}

// Register binds Go type T to tag. The decoder's output type should be T
// so that Decode(Encode(v)) yields a value of the same kind.
func Register[T any](r *Registry, tag types.TypeTag, enc func(T) ([]byte, error), dec func([]byte) (T, error)) {
	r.register(reflect.TypeFor[T](), tag,
		func(_ *Registry, v any) ([]byte, error) { return enc(v.(T)) },
		func(_ *Registry, data []byte) (any, error) { return dec(data) },
	)
}

// RegisterEncoder binds an additional Go type T to an existing tag
// without touching that tag's decoder. Used to fold several Go kinds
// into one wire kind (all integer widths encode as types.TagInt).
func RegisterEncoder[T any](r *Registry, tag types.TypeTag, enc func(T) ([]byte, error)) {
	r.register(reflect.TypeFor[T](), tag,
		func(_ *Registry, v any) ([]byte, error) { return enc(v.(T)) },
		nil,
	)
}

// register is the untyped form. A nil kind binds the untyped nil value;
// a nil dec leaves the tag's decoder unchanged.
func (r *Registry) register(kind reflect.Type, tag types.TypeTag, enc encodeFunc, dec decodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if enc != nil {
		r.encoders[kind] = encoder{tag: tag, fn: enc}
	}
	if dec != nil {
		r.decoders[tag] = dec
	}
}

// Encode dispatches on the dynamic type of v. Nil pointers encode as
// types.TagNil when a nil codec is registered.
func (r *Registry) Encode(v any) (types.TypeTag, []byte, error) {
	if v != nil {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			v = nil
		}
	}
	kind := reflect.TypeOf(v)

	r.mu.RLock()
	enc, ok := r.encoders[kind]
	r.mu.RUnlock()
	if !ok {
		return 0, nil, &types.UnknownTypeError{Kind: kindName(kind)}
	}
	data, err := enc.fn(r, v)
	if err != nil {
		return 0, nil, fmt.Errorf("codec: encode %s: %w", kindName(kind), err)
	}
	return enc.tag, data, nil
}

// Decode dispatches on tag.
func (r *Registry) Decode(tag types.TypeTag, data []byte) (any, error) {
	r.mu.RLock()
	dec, ok := r.decoders[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, &types.UnknownTypeError{Tag: tag}
	}
	v, err := dec(r, data)
	if err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", tag, err)
	}
	return v, nil
}

// Knows reports whether v's kind has an encoder.
func (r *Registry) Knows(v any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.encoders[reflect.TypeOf(v)]
	return ok
}

// Compose merges registries into a new one behind a single dispatch
// point. Later registries win on conflicting kinds or tags. Composite
// kinds (lists, dicts) dispatch their elements through the composed
// registry.
func Compose(rs ...*Registry) *Registry {
	out := NewEmpty()
	for _, r := range rs {
		r.mu.RLock()
		maps.Copy(out.encoders, r.encoders)
		maps.Copy(out.decoders, r.decoders)
		r.mu.RUnlock()
	}
	return out
}

func kindName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}
