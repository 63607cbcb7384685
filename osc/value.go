package osc

import (
	"bytes"
	"fmt"
	"log/slog"
	"reflect"

	"golang.org/x/exp/constraints"
)

// Kind identifies the type of an OSC argument. Its value is the type tag
// character used in the type tag string.
type Kind byte

const (
	KindInvalid Kind = 0
	KindString  Kind = 's'
	KindBlob    Kind = 'b'
	KindInt32   Kind = 'i'
	KindFloat32 Kind = 'f'
	KindTrue    Kind = 'T'
	KindFalse   Kind = 'F'
	KindNull    Kind = 'N'
	KindImpulse Kind = 'I'
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindBlob:
		return "Blob"
	case KindInt32:
		return "Int32"
	case KindFloat32:
		return "Float32"
	case KindTrue:
		return "True"
	case KindFalse:
		return "False"
	case KindNull:
		return "Null"
	case KindImpulse:
		return "Impulse"
	}
	return "Invalid"
}

// Value is a single OSC argument. The zero Value is invalid and is never
// stored in a Message.
type Value struct {
	kind Kind
	s    string
	b    []byte
	i    int32
	f    float32
}

// The payload-free values. They compare equal by kind alone.
var (
	True    = Value{kind: KindTrue}
	False   = Value{kind: KindFalse}
	Null    = Value{kind: KindNull}
	Impulse = Value{kind: KindImpulse}
)

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Blob returns a blob value holding a copy of b.
func Blob(b []byte) Value {
	c := make([]byte, len(b))
	copy(c, b)
	return Value{kind: KindBlob, b: c}
}

// Int32 returns an int32 value.
func Int32(i int32) Value { return Value{kind: KindInt32, i: i} }

// Float32 returns a float32 value.
func Float32(f float32) Value { return Value{kind: KindFloat32, f: f} }

// Bool returns True or False.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Int returns the Int32 value for any integer type. Wider integers are
// truncated to 32 bits.
func Int[T constraints.Integer](i T) Value { return Int32(int32(i)) }

// Float returns the Float32 value for any floating point type.
func Float[T constraints.Float](f T) Value { return Float32(float32(f)) }

// Number classifies a native number by its type: every integer type becomes
// an Int32, every floating point type a Float32.
func Number[T constraints.Integer | constraints.Float](n T) Value {
	v, _ := classifyNumber(n)
	return v
}

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// TypeTag returns the type tag character of v.
func (v Value) TypeTag() byte { return byte(v.kind) }

// IsValid reports whether v holds one of the OSC argument kinds.
func (v Value) IsValid() bool { return v.kind.valid() }

// AsString returns the text of a string value.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsBlob returns the bytes of a blob value. The slice must not be modified.
func (v Value) AsBlob() ([]byte, bool) { return v.b, v.kind == KindBlob }

// AsInt32 returns the integer of an int32 value.
func (v Value) AsInt32() (int32, bool) { return v.i, v.kind == KindInt32 }

// AsFloat32 returns the number of a float32 value.
func (v Value) AsFloat32() (float32, bool) { return v.f, v.kind == KindFloat32 }

// Equal reports whether v and w are the same kind holding the same payload.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == w.s
	case KindBlob:
		return bytes.Equal(v.b, w.b)
	case KindInt32:
		return v.i == w.i
	case KindFloat32:
		return v.f == w.f
	}
	return true
}

// GoString implements fmt.GoStringer, mostly for test output.
func (v Value) GoString() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("String(%q)", v.s)
	case KindBlob:
		return fmt.Sprintf("Blob(%x)", v.b)
	case KindInt32:
		return fmt.Sprintf("Int32(%d)", v.i)
	case KindFloat32:
		return fmt.Sprintf("Float32(%g)", v.f)
	}
	return v.kind.String()
}

func (k Kind) valid() bool {
	switch k {
	case KindString, KindBlob, KindInt32, KindFloat32, KindTrue, KindFalse, KindNull, KindImpulse:
		return true
	}
	return false
}

// ValueOf classifies a Go value into an OSC argument. Strings, byte slices,
// numbers, booleans, nil and Values are recognized. Anything else, including
// numbers of an unsupported kind such as complex128, is rejected with a
// logged warning.
func ValueOf(arg any) (Value, bool) {
	switch t := arg.(type) {
	case Value:
		if !t.IsValid() {
			slog.Default().Warn("osc: dropping invalid value")
			return Value{}, false
		}
		return t, true
	case string:
		return String(t), true
	case []byte:
		return Blob(t), true
	case bool:
		return Bool(t), true
	case nil:
		return Null, true
	}
	return classifyNumber(arg)
}

// classifyNumber turns any integer kind into Int32 and any floating kind into
// Float32. Named numeric types are classified by their underlying kind.
func classifyNumber(n any) (Value, bool) {
	switch t := n.(type) {
	case int:
		return Int32(int32(t)), true
	case int8:
		return Int32(int32(t)), true
	case int16:
		return Int32(int32(t)), true
	case int32:
		return Int32(t), true
	case int64:
		return Int32(int32(t)), true
	case uint:
		return Int32(int32(t)), true
	case uint8:
		return Int32(int32(t)), true
	case uint16:
		return Int32(int32(t)), true
	case uint32:
		return Int32(int32(t)), true
	case uint64:
		return Int32(int32(t)), true
	case uintptr:
		return Int32(int32(t)), true
	case float32:
		return Float32(t), true
	case float64:
		return Float32(float32(t)), true
	}

	rv := reflect.ValueOf(n)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int32(int32(rv.Int())), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Int32(int32(rv.Uint())), true
	case reflect.Float32, reflect.Float64:
		return Float32(float32(rv.Float())), true
	}

	slog.Default().Warn("osc: dropping argument of unsupported type", "type", fmt.Sprintf("%T", n))
	return Value{}, false
}
