package codec

import (
	"fmt"
	"sort"
)

// ValueKind tags the variant carried by a Value.
type ValueKind uint8

const (
	KindEmpty ValueKind = iota
	KindString
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindF32
	KindF64
	KindBoolean
	KindArray
	KindObject
	KindID
	KindDate
)

// Value is the tagged union carried by PropertyMap entries: String,
// signed/unsigned integers of every stored width, F32/F64, Boolean, Empty,
// Array, Object, Id (a node/edge/vector id reference), and Date.
//
// Two Values of different numeric Kinds compare equal when their numeric
// value matches (I32(5) == F64(5.0)); every other Kind compares structurally.
type Value struct {
	Kind ValueKind

	str  string
	i64  int64
	u64  uint64
	u128 [16]byte
	f64  float64
	b    bool
	arr  []Value
	obj  map[string]Value
	date int64 // unix nanos
}

func Empty() Value                    { return Value{Kind: KindEmpty} }
func String(s string) Value           { return Value{Kind: KindString, str: s} }
func I8(v int8) Value                 { return Value{Kind: KindI8, i64: int64(v)} }
func I16(v int16) Value                { return Value{Kind: KindI16, i64: int64(v)} }
func I32(v int32) Value                { return Value{Kind: KindI32, i64: int64(v)} }
func I64(v int64) Value                { return Value{Kind: KindI64, i64: v} }
func U8(v uint8) Value                 { return Value{Kind: KindU8, u64: uint64(v)} }
func U16(v uint16) Value               { return Value{Kind: KindU16, u64: uint64(v)} }
func U32(v uint32) Value                { return Value{Kind: KindU32, u64: uint64(v)} }
func U64(v uint64) Value                { return Value{Kind: KindU64, u64: v} }
func U128(v [16]byte) Value             { return Value{Kind: KindU128, u128: v} }
func F32(v float32) Value               { return Value{Kind: KindF32, f64: float64(v)} }
func F64(v float64) Value               { return Value{Kind: KindF64, f64: v} }
func Boolean(v bool) Value              { return Value{Kind: KindBoolean, b: v} }
func Array(v []Value) Value             { return Value{Kind: KindArray, arr: v} }
func Object(v map[string]Value) Value   { return Value{Kind: KindObject, obj: v} }
func ID(v [16]byte) Value               { return Value{Kind: KindID, u128: v} }
func Date(unixNano int64) Value         { return Value{Kind: KindDate, date: unixNano} }

func (v Value) IsNumeric() bool {
	switch v.Kind {
	case KindI8, KindI16, KindI32, KindI64, KindU8, KindU16, KindU32, KindU64, KindF32, KindF64:
		return true
	}
	return false
}

// AsFloat64 returns the numeric value of v as a float64, for cross-kind
// comparisons. Only valid when v.IsNumeric().
func (v Value) AsFloat64() float64 {
	switch v.Kind {
	case KindI8, KindI16, KindI32, KindI64:
		return float64(v.i64)
	case KindU8, KindU16, KindU32, KindU64:
		return float64(v.u64)
	case KindF32, KindF64:
		return v.f64
	}
	return 0
}

// Str returns the string payload; valid only for KindString.
func (v Value) Str() string { return v.str }

// Bool returns the boolean payload; valid only for KindBoolean.
func (v Value) Bool() bool { return v.b }

// Items returns the array payload; valid only for KindArray.
func (v Value) Items() []Value { return v.arr }

// Fields returns the object payload; valid only for KindObject.
func (v Value) Fields() map[string]Value { return v.obj }

// IDBytes returns the 128-bit id payload; valid for KindID and KindU128.
func (v Value) IDBytes() [16]byte { return v.u128 }

// DateNanos returns the unix-nanosecond payload; valid only for KindDate.
func (v Value) DateNanos() int64 { return v.date }

// Equal implements Value equality per the data-model rule that cross-kind
// numeric comparisons are by numeric value (I32(5) == F64(5.0)), while
// every other variant compares structurally.
func (v Value) Equal(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		return v.AsFloat64() == o.AsFloat64()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindEmpty:
		return true
	case KindString:
		return v.str == o.str
	case KindBoolean:
		return v.b == o.b
	case KindID, KindU128:
		return v.u128 == o.u128
	case KindDate:
		return v.date == o.date
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, vv := range v.obj {
			ov, ok := o.obj[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Less defines an ordering over Values used by order_by_asc/order_by_desc
// and by secondary-index key ordering. Numeric kinds order by numeric
// value; strings lexicographically; everything else falls back to Kind
// then a stable string rendering so sorts stay deterministic.
func (v Value) Less(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		return v.AsFloat64() < o.AsFloat64()
	}
	if v.Kind != o.Kind {
		return v.Kind < o.Kind
	}
	switch v.Kind {
	case KindString:
		return v.str < o.str
	case KindBoolean:
		return !v.b && o.b
	case KindDate:
		return v.date < o.date
	default:
		return fmt.Sprint(v) < fmt.Sprint(o)
	}
}

// PropertyMap is an ordered mapping from property name to Value. Order is
// insertion order (mirroring the data model's "ordered mapping"), kept
// alongside a lookup map for O(1) access.
type PropertyMap struct {
	keys   []string
	values map[string]Value
}

func NewPropertyMap() *PropertyMap {
	return &PropertyMap{values: make(map[string]Value)}
}

func (p *PropertyMap) Set(key string, v Value) {
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

func (p *PropertyMap) Get(key string) (Value, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p *PropertyMap) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

func (p *PropertyMap) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the keys in insertion order.
func (p *PropertyMap) Keys() []string {
	if p == nil {
		return nil
	}
	return p.keys
}

// Clone returns a deep-enough copy suitable for copy-on-write update semantics.
func (p *PropertyMap) Clone() *PropertyMap {
	if p == nil {
		return NewPropertyMap()
	}
	out := &PropertyMap{
		keys:   append([]string(nil), p.keys...),
		values: make(map[string]Value, len(p.values)),
	}
	for k, v := range p.values {
		out.values[k] = v
	}
	return out
}

// MergeOverrides applies property_overrides onto p: a present key with
// KindEmpty unsets (removes) the property, any other value overwrites or
// inserts it. Matches the update semantics of storage operation `update`.
func (p *PropertyMap) MergeOverrides(overrides map[string]Value) *PropertyMap {
	out := p.Clone()
	// deterministic application order for reproducible tests
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := overrides[k]
		if v.Kind == KindEmpty {
			out.Delete(k)
			continue
		}
		out.Set(k, v)
	}
	return out
}
