package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gaborage/go-bricks-db/database/internal/binding"
)

// Kind is the bind type of a Value.
type Kind uint8

// Bind kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Value is a bind value: a bool, a 64-bit integer, NULL or text. The zero Value is NULL.
type Value struct {
	kind Kind
	b    bool
	i    int64
	s    string
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Float returns f as text in its shortest decimal representation.
func Float(f float64) Value {
	return Text(strconv.FormatFloat(f, 'f', -1, 64))
}

// ValueOf converts a Go value to a Value. It accepts bool, every integer kind, nil,
// string, float32, float64 and Value. Anything else fails with ErrUnsupportedBindType.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return uintValue(x)
	case string:
		return Text(x), nil
	case float32:
		return Text(strconv.FormatFloat(float64(x), 'f', -1, 32)), nil
	case float64:
		return Float(x), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedBindType, v)
	}
}

func uintValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedBindType, u)
	}
	return Int(int64(u)), nil
}

// Kind returns the bind kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Any returns the driver argument: nil, bool, int64 or string.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindText:
		return v.s
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindText:
		return v.s
	default:
		return "NULL"
	}
}

// MarshalJSON encodes v as a JSON null, boolean, number or string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// Key is a bind data key: a parameter name or a 0-based position.
type Key struct {
	name  string
	index int
	named bool
}

// NameKey returns a named key. A leading colon is dropped.
func NameKey(name string) Key {
	return Key{name: strings.TrimPrefix(name, ":"), named: true}
}

// IndexKey returns a positional key. Index 0 binds the first ? placeholder.
func IndexKey(index int) Key {
	return Key{index: index}
}

// Name returns the parameter name and true for named keys.
func (k Key) Name() (string, bool) { return k.name, k.named }

// Index returns the 0-based position and true for positional keys.
func (k Key) Index() (int, bool) { return k.index, !k.named }

// IsNamed reports whether k is a named key.
func (k Key) IsNamed() bool { return k.named }

// String returns the name, or the decimal index for positional keys.
func (k Key) String() string {
	if k.named {
		return k.name
	}
	return strconv.Itoa(k.index)
}

// Param is one key/value pair of bind data.
type Param struct {
	Key   Key
	Value Value
}

// Named returns a named parameter.
func Named(name string, v Value) Param {
	return Param{Key: NameKey(name), Value: v}
}

// Indexed returns a positional parameter with a 0-based index.
func Indexed(index int, v Value) Param {
	return Param{Key: IndexKey(index), Value: v}
}

// Data is ordered bind data.
type Data []Param

// Args returns positional data indexed 0..n-1.
func Args(values ...Value) Data {
	d := make(Data, len(values))
	for i, v := range values {
		d[i] = Indexed(i, v)
	}
	return d
}

// Map returns named data ordered by key.
func Map(m map[string]Value) Data {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	d := make(Data, 0, len(m))
	for _, k := range keys {
		d = append(d, Named(k, m[k]))
	}
	return d
}

// Clone returns an independent copy. A nil Data stays nil.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	return slices.Clone(d)
}

// Get returns the value bound to key.
func (d Data) Get(key Key) (Value, bool) {
	for _, p := range d {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Lookup returns the value bound to a named key.
func (d Data) Lookup(name string) (Value, bool) {
	return d.Get(NameKey(name))
}

// HasIndexed reports whether any key is positional.
func (d Data) HasIndexed() bool {
	return slices.ContainsFunc(d, func(p Param) bool { return !p.Key.named })
}

// args converts d for the binding compiler.
func (d Data) args() []binding.Arg {
	if len(d) == 0 {
		return nil
	}
	out := make([]binding.Arg, len(d))
	for i, p := range d {
		out[i] = binding.Arg{Name: p.Key.name, Index: p.Key.index, Named: p.Key.named, Value: p.Value.Any()}
	}
	return out
}

// MarshalJSON encodes d as an object keyed by names or decimal indices, in order.
func (d Data) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Key.String())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := p.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
