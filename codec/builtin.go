package codec

import (
	"fmt"
	"math/big"
	"reflect"
	"slices"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/eeproxy/types"
)

// typedList is the payload of a types.TagList value.
type typedList struct {
	Items []Typed `cramberry:"1"`
}

// typedDict is the payload of a types.TagDict value. Keys are sorted so
// equal dictionaries encode to equal bytes.
type typedDict struct {
	Keys   []string `cramberry:"1"`
	Values []Typed  `cramberry:"2"`
}

func registerBuiltins(r *Registry) {
	r.register(nil, types.TagNil,
		func(*Registry, any) ([]byte, error) { return []byte{}, nil },
		func(*Registry, []byte) (any, error) { return nil, nil },
	)

	Register(r, types.TagBool, encodeBool, decodeBool)

	Register(r, types.TagString,
		func(s string) ([]byte, error) { return []byte(s), nil },
		func(b []byte) (string, error) { return string(b), nil },
	)

	Register(r, types.TagBytes,
		func(b []byte) ([]byte, error) { return slices.Clone(b), nil },
		func(b []byte) ([]byte, error) {
			out := make([]byte, len(b))
			copy(out, b)
			return out, nil
		},
	)

	Register(r, types.TagInt,
		func(i *big.Int) ([]byte, error) { return BigIntToBytes(i), nil },
		func(b []byte) (*big.Int, error) { return BigIntFromBytes(b), nil },
	)
	registerInts(r)

	Register(r, types.TagAddress,
		func(a types.Address) ([]byte, error) { return a.Bytes(), nil },
		types.AddressFromBytes,
	)

	r.register(reflect.TypeFor[[]any](), types.TagList, encodeList, decodeList)
	r.register(reflect.TypeFor[map[string]any](), types.TagDict, encodeDict, decodeDict)
}

func registerInts(r *Registry) {
	RegisterEncoder(r, types.TagInt, func(v int) ([]byte, error) { return Int64ToBytes(int64(v)), nil })
	RegisterEncoder(r, types.TagInt, func(v int8) ([]byte, error) { return Int64ToBytes(int64(v)), nil })
	RegisterEncoder(r, types.TagInt, func(v int16) ([]byte, error) { return Int64ToBytes(int64(v)), nil })
	RegisterEncoder(r, types.TagInt, func(v int32) ([]byte, error) { return Int64ToBytes(int64(v)), nil })
	RegisterEncoder(r, types.TagInt, func(v int64) ([]byte, error) { return Int64ToBytes(v), nil })
	RegisterEncoder(r, types.TagInt, func(v uint) ([]byte, error) { return uintBytes(uint64(v)), nil })
	RegisterEncoder(r, types.TagInt, func(v uint16) ([]byte, error) { return uintBytes(uint64(v)), nil })
	RegisterEncoder(r, types.TagInt, func(v uint32) ([]byte, error) { return uintBytes(uint64(v)), nil })
	RegisterEncoder(r, types.TagInt, func(v uint64) ([]byte, error) { return uintBytes(v), nil })
}

func uintBytes(v uint64) []byte {
	return BigIntToBytes(new(big.Int).SetUint64(v))
}

func encodeBool(v bool) ([]byte, error) {
	if v {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func decodeBool(b []byte) (bool, error) {
	if len(b) != 1 || b[0] > 1 {
		return false, fmt.Errorf("invalid bool payload %x", b)
	}
	return b[0] == 1, nil
}

func encodeList(r *Registry, v any) ([]byte, error) {
	items, err := r.EncodeList(v.([]any))
	if err != nil {
		return nil, err
	}
	return cramberry.Marshal(typedList{Items: items})
}

func decodeList(r *Registry, data []byte) (any, error) {
	var tl typedList
	if err := cramberry.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("list payload: %w", err)
	}
	return r.DecodeList(tl.Items)
}

func encodeDict(r *Registry, v any) ([]byte, error) {
	m := v.(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	values := make([]Typed, len(keys))
	for i, k := range keys {
		tv, err := r.EncodeAny(m[k])
		if err != nil {
			return nil, fmt.Errorf("dict key %q: %w", k, err)
		}
		values[i] = tv
	}
	return cramberry.Marshal(typedDict{Keys: keys, Values: values})
}

func decodeDict(r *Registry, data []byte) (any, error) {
	var td typedDict
	if err := cramberry.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("dict payload: %w", err)
	}
	if len(td.Keys) != len(td.Values) {
		return nil, fmt.Errorf("dict payload: %d keys, %d values", len(td.Keys), len(td.Values))
	}
	out := make(map[string]any, len(td.Keys))
	for i, k := range td.Keys {
		v, err := r.DecodeAny(td.Values[i])
		if err != nil {
			return nil, fmt.Errorf("dict key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
