package peer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags which branch of Value is populated.
type Kind int

const (
	// KindNone marks an absent value: a miss, or a peer reply that
	// carried no payload.
	KindNone Kind = iota
	KindString
	KindInt32
)

// Value is the type-tagged value envelope carried across the wire
// between peers. Go has no compile-time dispatch over an open type set
// at an RPC boundary, so the boundary is a closed sum type instead: a
// string or a 32-bit integer, constructed only through StringValue /
// Int32Value so any other payload type is a compile error at the call
// site, per the peer client's typed contract.
type Value struct {
	Kind Kind
	Str  string
	I32  int32
}

// StringValue wraps a string payload.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// Int32Value wraps a 32-bit integer payload.
func Int32Value(i int32) Value { return Value{Kind: KindInt32, I32: i} }

// IsNone reports whether v carries no payload.
func (v Value) IsNone() bool { return v.Kind == KindNone }

// MarshalJSON renders the value the way the HTTP gateway's JSON envelope
// expects: a bare JSON string or number, not a tagged object, so the
// wire shape matches spec.md §6's `{"group":…,"key":…,"value":…}`.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindInt32:
		return json.Marshal(v.I32)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a bare JSON string or number and tags it
// accordingly; anything else is a decode error.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Value{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = StringValue(s)
		return nil
	}
	var i int32
	if err := json.Unmarshal(data, &i); err == nil {
		*v = Int32Value(i)
		return nil
	}
	return fmt.Errorf("peer: value must be a JSON string or a 32-bit integer, got %s", data)
}

// valid reports whether v's Kind is one this version of the protocol
// understands. A reply whose Kind falls outside the known set is the
// result of a failed or forward-incompatible deserialization; the peer
// client treats that as value-absent rather than surfacing an error.
func (v Value) valid() bool {
	switch v.Kind {
	case KindNone, KindString, KindInt32:
		return true
	default:
		return false
	}
}
