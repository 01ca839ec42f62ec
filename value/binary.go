package value

import (
	"encoding/binary"
	"math"
)

// rawBytes returns v's little-endian raw encoding, used as the textual
// format's (escaped) leaf data.
func (v *Value) rawBytes() []byte {
	switch v.Type {
	case TypeNull:
		return nil
	case TypeBool:
		if v.boolv {
			return []byte{1}
		}
		return []byte{0}
	case TypeShort:
		return []byte{byte(v.i8)}
	case TypeUShort:
		return []byte{v.u8}
	case TypeInt:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v.i16))
		return b
	case TypeUInt:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v.u16)
		return b
	case TypeLong:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v.i32))
		return b
	case TypeULong:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v.u32)
		return b
	case TypeLLong:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v.i64))
		return b
	case TypeULLong:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v.u64)
		return b
	case TypeFloat:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(v.f32))
		return b
	case TypeDouble:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.f64))
		return b
	case TypeBytes:
		return v.bytesv
	case TypeString:
		return []byte(v.strv)
	default:
		return nil
	}
}

// fromRawBytes fills in v's scalar field from b, which must have exactly
// the width declared for v.Type (checked by the caller via widthOf).
func (v *Value) fromRawBytes(b []byte) error {
	switch v.Type {
	case TypeNull:
		return nil
	case TypeBool:
		v.boolv = b[0] != 0
	case TypeShort:
		v.i8 = int8(b[0])
	case TypeUShort:
		v.u8 = b[0]
	case TypeInt:
		v.i16 = int16(binary.LittleEndian.Uint16(b))
	case TypeUInt:
		v.u16 = binary.LittleEndian.Uint16(b)
	case TypeLong:
		v.i32 = int32(binary.LittleEndian.Uint32(b))
	case TypeULong:
		v.u32 = binary.LittleEndian.Uint32(b)
	case TypeLLong:
		v.i64 = int64(binary.LittleEndian.Uint64(b))
	case TypeULLong:
		v.u64 = binary.LittleEndian.Uint64(b)
	case TypeFloat:
		v.f32 = math.Float32frombits(binary.LittleEndian.Uint32(b))
	case TypeDouble:
		v.f64 = math.Float64frombits(binary.LittleEndian.Uint64(b))
	case TypeBytes:
		v.bytesv = append([]byte(nil), b...)
	case TypeString:
		v.strv = string(b)
	default:
		return errUnknownType
	}
	return nil
}

// widthOf returns the fixed encoded width for fixed-width scalar types, or
// -1 for variable-length types (bytes, string, container, null).
func widthOf(t Type) int {
	switch t {
	case TypeNull:
		return 0
	case TypeBool, TypeShort, TypeUShort:
		return 1
	case TypeInt, TypeUInt:
		return 2
	case TypeLong, TypeULong:
		return 4
	case TypeLLong, TypeULLong, TypeDouble:
		return 8
	case TypeFloat:
		return 4
	default:
		return -1
	}
}
