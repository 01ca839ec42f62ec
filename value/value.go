// Package value implements the typed-value container model (spec §3, §4.1):
// a tagged union over fifteen variants plus an ordered, non-unique-by-name
// multi-map container that carries them. Grounded on the teacher's
// tagged-header convention in transport.ObjHdr/Msg, generalized here into a
// recursive value tree instead of a flat byte header.
package value

import (
	"fmt"
	"math"
)

// Type is the single-character type code from the wire alphabet (spec §6).
type Type byte

const (
	TypeNull      Type = '0'
	TypeBool      Type = '1'
	TypeShort     Type = '2' // int8
	TypeUShort    Type = '3' // uint8
	TypeInt       Type = '4' // int16
	TypeUInt      Type = '5' // uint16
	TypeLong      Type = '6' // int32
	TypeULong     Type = '7' // uint32
	TypeLLong     Type = '8' // int64
	TypeULLong    Type = '9' // uint64
	TypeFloat     Type = 'a' // float32
	TypeDouble    Type = 'b' // float64
	TypeBytes     Type = 'c'
	TypeString    Type = 'd'
	TypeContainer Type = 'e'
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeShort:
		return "short"
	case TypeUShort:
		return "ushort"
	case TypeInt:
		return "int"
	case TypeUInt:
		return "uint"
	case TypeLong:
		return "long"
	case TypeULong:
		return "ulong"
	case TypeLLong:
		return "llong"
	case TypeULLong:
		return "ullong"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeBytes:
		return "bytes"
	case TypeString:
		return "string"
	case TypeContainer:
		return "container"
	default:
		return fmt.Sprintf("type(%q)", byte(t))
	}
}

// Valid reports whether t is one of the fixed alphabet's codes.
func (t Type) Valid() bool {
	switch t {
	case TypeNull, TypeBool, TypeShort, TypeUShort, TypeInt, TypeUInt,
		TypeLong, TypeULong, TypeLLong, TypeULLong, TypeFloat, TypeDouble,
		TypeBytes, TypeString, TypeContainer:
		return true
	default:
		return false
	}
}

// Value is a single named entry in a container: a tagged union carrying
// exactly one of the fields below, selected by Type. Identity inside a
// container is by position, not by Name (spec §3).
type Value struct {
	Name string
	Type Type

	boolv  bool
	i8     int8
	u8     uint8
	i16    int16
	u16    uint16
	i32    int32
	u32    uint32
	i64    int64
	u64    uint64
	f32    float32
	f64    float64
	bytesv []byte
	strv   string
	childv []*Value // only for TypeContainer
}

func NewNull(name string) *Value { return &Value{Name: name, Type: TypeNull} }

func NewBool(name string, v bool) *Value { return &Value{Name: name, Type: TypeBool, boolv: v} }

func NewShort(name string, v int8) *Value  { return &Value{Name: name, Type: TypeShort, i8: v} }
func NewUShort(name string, v uint8) *Value { return &Value{Name: name, Type: TypeUShort, u8: v} }
func NewInt(name string, v int16) *Value   { return &Value{Name: name, Type: TypeInt, i16: v} }
func NewUInt(name string, v uint16) *Value { return &Value{Name: name, Type: TypeUInt, u16: v} }
func NewLong(name string, v int32) *Value  { return &Value{Name: name, Type: TypeLong, i32: v} }
func NewULong(name string, v uint32) *Value { return &Value{Name: name, Type: TypeULong, u32: v} }
func NewLLong(name string, v int64) *Value { return &Value{Name: name, Type: TypeLLong, i64: v} }
func NewULLong(name string, v uint64) *Value {
	return &Value{Name: name, Type: TypeULLong, u64: v}
}
func NewFloat(name string, v float32) *Value  { return &Value{Name: name, Type: TypeFloat, f32: v} }
func NewDouble(name string, v float64) *Value { return &Value{Name: name, Type: TypeDouble, f64: v} }
func NewBytes(name string, v []byte) *Value {
	cp := append([]byte(nil), v...)
	return &Value{Name: name, Type: TypeBytes, bytesv: cp}
}
func NewString(name, v string) *Value { return &Value{Name: name, Type: TypeString, strv: v} }

// NewContainerValue builds a nested-container value from an already-built
// child list; children are appended by reference (shallow), matching
// Container.Copy(false)'s shared-identity semantics.
func NewContainerValue(name string, children []*Value) *Value {
	return &Value{Name: name, Type: TypeContainer, childv: children}
}

func (v *Value) Bool() bool      { return v.boolv }
func (v *Value) Short() int8     { return v.i8 }
func (v *Value) UShort() uint8   { return v.u8 }
func (v *Value) Int() int16      { return v.i16 }
func (v *Value) UInt() uint16    { return v.u16 }
func (v *Value) Long() int32     { return v.i32 }
func (v *Value) ULong() uint32   { return v.u32 }
func (v *Value) LLong() int64    { return v.i64 }
func (v *Value) ULLong() uint64  { return v.u64 }
func (v *Value) Float() float32  { return v.f32 }
func (v *Value) Double() float64 { return v.f64 }
func (v *Value) Bytes() []byte   { return v.bytesv }
func (v *Value) Str() string     { return v.strv }
func (v *Value) Children() []*Value {
	return v.childv
}

// Copy returns a copy of v; when deep is true and v is a container value,
// children are recursively copied too, otherwise the child slice (and thus
// child Value identity) is shared with the original, per spec §4.1.
func (v *Value) Copy(deep bool) *Value {
	cp := *v
	if v.Type == TypeBytes {
		cp.bytesv = append([]byte(nil), v.bytesv...)
	}
	if v.Type == TypeContainer {
		if deep {
			cp.childv = make([]*Value, len(v.childv))
			for i, c := range v.childv {
				cp.childv[i] = c.Copy(true)
			}
		} else {
			cp.childv = v.childv
		}
	}
	return &cp
}

// Equal reports deep structural equality, used by the round-trip property
// tests (spec §8, law 1).
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Name != o.Name || v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeNull:
		return true
	case TypeBool:
		return v.boolv == o.boolv
	case TypeShort:
		return v.i8 == o.i8
	case TypeUShort:
		return v.u8 == o.u8
	case TypeInt:
		return v.i16 == o.i16
	case TypeUInt:
		return v.u16 == o.u16
	case TypeLong:
		return v.i32 == o.i32
	case TypeULong:
		return v.u32 == o.u32
	case TypeLLong:
		return v.i64 == o.i64
	case TypeULLong:
		return v.u64 == o.u64
	case TypeFloat:
		return math.Float32bits(v.f32) == math.Float32bits(o.f32)
	case TypeDouble:
		return math.Float64bits(v.f64) == math.Float64bits(o.f64)
	case TypeBytes:
		return string(v.bytesv) == string(o.bytesv)
	case TypeString:
		return v.strv == o.strv
	case TypeContainer:
		if len(v.childv) != len(o.childv) {
			return false
		}
		for i := range v.childv {
			if !v.childv[i].Equal(o.childv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v *Value) String() string {
	if v.Type == TypeContainer {
		return fmt.Sprintf("[%s:%s,%d children]", v.Name, v.Type, len(v.childv))
	}
	return fmt.Sprintf("[%s:%s]", v.Name, v.Type)
}
