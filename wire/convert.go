package wire

import (
	"fmt"
	"math/big"

	"github.com/blockberries/eeproxy/codec"
	"github.com/blockberries/eeproxy/types"
)

func NewVersion(v types.Version) *Message {
	return &Message{Type: MsgVersion, Version: &Version{
		Version: uint32(v.Version),
		PID:     v.PID,
		Type:    v.Type,
	}}
}

func (v *Version) ToTypes() types.Version {
	return types.Version{Version: uint16(v.Version), PID: v.PID, Type: v.Type}
}

func NewInvoke(req types.InvokeRequest) *Message {
	return &Message{Type: MsgInvoke, Invoke: &Invoke{
		Code:   req.Code,
		From:   req.From.Bytes(),
		To:     req.To.Bytes(),
		Value:  codec.BigIntToBytes(req.Value),
		Limit:  codec.BigIntToBytes(req.Limit),
		Method: req.Method,
		Params: req.Params,
	}}
}

// ToTypes converts the payload, failing with IllegalFormat on a
// malformed address.
func (inv *Invoke) ToTypes() (types.InvokeRequest, error) {
	from, err := types.AddressFromBytes(inv.From)
	if err != nil {
		return types.InvokeRequest{}, fmt.Errorf("invoke from: %w", err)
	}
	to, err := types.AddressFromBytes(inv.To)
	if err != nil {
		return types.InvokeRequest{}, fmt.Errorf("invoke to: %w", err)
	}
	return types.InvokeRequest{
		Code:   inv.Code,
		From:   from,
		To:     to,
		Value:  codec.BigIntFromBytes(inv.Value),
		Limit:  codec.BigIntFromBytes(inv.Limit),
		Method: inv.Method,
		Params: inv.Params,
	}, nil
}

func NewResult(res types.InvokeResult) *Message {
	used := res.Used
	if used == nil {
		used = new(big.Int)
	}
	return &Message{Type: MsgResult, Result: &Result{
		Status: int32(res.Status),
		Used:   codec.BigIntToBytes(used),
		Result: res.Result,
	}}
}

func (r *Result) ToTypes() types.InvokeResult {
	return types.InvokeResult{
		Status: types.Status(r.Status),
		Used:   codec.BigIntFromBytes(r.Used),
		Result: r.Result,
	}
}

func NewGetValue(key []byte) *Message {
	return &Message{Type: MsgGetValue, GetValue: &GetValue{Key: key}}
}

func NewValue(res types.ValueResult) *Message {
	return &Message{Type: MsgGetValue, Value: &Value{Exists: res.Exists, Value: res.Value}}
}

func (v *Value) ToTypes() types.ValueResult {
	return types.ValueResult{Exists: v.Exists, Value: v.Value}
}

func NewSetValue(key, value []byte) *Message {
	return &Message{Type: MsgSetValue, SetValue: &SetValue{Key: key, Value: value}}
}

func NewDeleteValue(key []byte) *Message {
	return &Message{Type: MsgSetValue, SetValue: &SetValue{Key: key, Delete: true}}
}

// NewEvent encodes every indexed element, then every data element. The
// first element the registry cannot encode aborts the whole event.
func NewEvent(r *codec.Registry, ev types.Event) (*Message, error) {
	indexed, err := r.EncodeList(ev.Indexed)
	if err != nil {
		return nil, fmt.Errorf("event indexed: %w", err)
	}
	data, err := r.EncodeList(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("event data: %w", err)
	}
	return &Message{Type: MsgEvent, Event: &Event{Indexed: indexed, Data: data}}, nil
}

func (e *Event) ToTypes(r *codec.Registry) (types.Event, error) {
	indexed, err := r.DecodeList(e.Indexed)
	if err != nil {
		return types.Event{}, fmt.Errorf("event indexed: %w", err)
	}
	data, err := r.DecodeList(e.Data)
	if err != nil {
		return types.Event{}, fmt.Errorf("event data: %w", err)
	}
	return types.Event{Indexed: indexed, Data: data}, nil
}

func NewGetInfo() *Message { return &Message{Type: MsgGetInfo} }

func NewInfo(r *codec.Registry, info any) (*Message, error) {
	tv, err := r.EncodeAny(info)
	if err != nil {
		return nil, fmt.Errorf("info: %w", err)
	}
	return &Message{Type: MsgGetInfo, Info: &Info{Value: tv}}, nil
}

func NewGetBalance(addr types.Address) *Message {
	return &Message{Type: MsgGetBalance, GetBalance: &GetBalance{Address: addr.Bytes()}}
}

func NewBalance(v *big.Int) *Message {
	return &Message{Type: MsgGetBalance, Balance: &Balance{Value: codec.BigIntToBytes(v)}}
}

func NewLog(level types.LogLevel, msg string) *Message {
	return &Message{Type: MsgLog, Log: &Log{Level: uint8(level), Message: msg}}
}

func NewClose() *Message { return &Message{Type: MsgClose} }
