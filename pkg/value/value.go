// Package value implements the S3P tagged value system: a one-byte type
// tag plus a payload whose wire width is fixed by the tag, and the
// 7-byte SER_ITEM_SIZE record used to carry a scalar inside a multi-register
// response or a write request.
package value

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Tag identifies the wire type of a Value.
type Tag uint8

const (
	EMPTY Tag = 0
	U8    Tag = 1
	I8    Tag = 2
	X8    Tag = 3
	U16   Tag = 4
	I16   Tag = 5
	X16   Tag = 6
	U32   Tag = 7
	I32   Tag = 8
	X32   Tag = 9
	FLT   Tag = 10
	STR   Tag = 11
)

// SerItemSize is the fixed length of a scalar record: reg_id(2) + tag(1) + value(4).
const SerItemSize = 7

// MaxNameLen is the maximum length of a register/VMEM name, NUL included.
const MaxNameLen = 32

// MaxStringLen is the maximum length of a STR value's payload, NUL included.
const MaxStringLen = 255

var (
	ErrUnknownTag    = errors.New("value: unknown tag")
	ErrWrongTag      = errors.New("value: tag does not match requested type")
	ErrStringTooLong = errors.New("value: string exceeds 255 bytes including NUL")
	ErrMissingNUL    = errors.New("value: string value is not NUL-terminated")
	ErrShortBuffer   = errors.New("value: buffer too short")
)

// tagNames is the bijection between a tag and its display name, used both
// ways by TypeString and ParseType.
var tagNames = map[Tag]string{
	EMPTY: "EMPTY",
	U8:    "U8",
	I8:    "I8",
	X8:    "X8",
	U16:   "U16",
	I16:   "I16",
	X16:   "X16",
	U32:   "U32",
	I32:   "I32",
	X32:   "X32",
	FLT:   "FLT",
	STR:   "STR",
}

var namesToTag = func() map[string]Tag {
	m := make(map[string]Tag, len(tagNames))
	for tag, name := range tagNames {
		m[name] = tag
	}
	return m
}()

// TypeString returns the display name of tag, or "UNKNOWN" if it isn't one
// of the 12 defined tags.
func TypeString(tag Tag) string {
	if name, ok := tagNames[tag]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseType maps a display name back to its tag. Unknown names map to
// EMPTY, per the text-parsing contract.
func ParseType(name string) Tag {
	if tag, ok := namesToTag[name]; ok {
		return tag
	}
	return EMPTY
}

// Width returns the on-wire byte width of tag's native representation
// (0 for EMPTY, variable for STR — callers must use the string's own
// length for STR).
func Width(tag Tag) int {
	switch tag {
	case EMPTY:
		return 0
	case U8, I8, X8:
		return 1
	case U16, I16, X16:
		return 2
	case U32, I32, X32, FLT:
		return 4
	default:
		return 0
	}
}

// Value is a tagged scalar or string. Exactly one of the typed accessors
// is meaningful for a given tag; callers that know the tag should use it
// directly, callers that don't should switch on Tag.
type Value struct {
	Tag Tag
	// Raw holds the right-justified, zero-padded 4-byte big-endian
	// representation for any scalar tag. It is the wire-native form the
	// 7-byte record transmits and is what EncodeItem writes verbatim.
	Raw [4]byte
	Str string
}

// Empty is the EMPTY sentinel value.
var Empty = Value{Tag: EMPTY}

func FromU8(v uint8) Value   { return scalar(U8, uint32(v)) }
func FromI8(v int8) Value    { return scalar(I8, uint32(uint8(v))) }
func FromX8(v uint8) Value   { return scalar(X8, uint32(v)) }
func FromU16(v uint16) Value { return scalar(U16, uint32(v)) }
func FromI16(v int16) Value  { return scalar(I16, uint32(uint16(v))) }
func FromX16(v uint16) Value { return scalar(X16, uint32(v)) }
func FromU32(v uint32) Value { return scalar(U32, v) }
func FromI32(v int32) Value  { return scalar(I32, uint32(v)) }
func FromX32(v uint32) Value { return scalar(X32, v) }
func FromFloat32(v float32) Value {
	return scalar(FLT, math.Float32bits(v))
}

// FromString constructs a STR value. It does not itself enforce the
// 255-byte cap; EncodeString does, at serialization time.
func FromString(s string) Value { return Value{Tag: STR, Str: s} }

func scalar(tag Tag, v uint32) Value {
	var val Value
	val.Tag = tag
	binary.BigEndian.PutUint32(val.Raw[:], v)
	return val
}

func (v Value) raw32() uint32 { return binary.BigEndian.Uint32(v.Raw[:]) }

// AsU8 returns the value's low byte reinterpreted per the given tag's
// signedness, and an error if v's tag is not scalar-compatible with it.
func (v Value) AsU8() (uint8, error) {
	if err := v.requireScalar(1); err != nil {
		return 0, err
	}
	return uint8(v.raw32()), nil
}

func (v Value) AsI8() (int8, error) {
	if err := v.requireScalar(1); err != nil {
		return 0, err
	}
	return int8(uint8(v.raw32())), nil
}

func (v Value) AsU16() (uint16, error) {
	if err := v.requireScalar(2); err != nil {
		return 0, err
	}
	return uint16(v.raw32()), nil
}

func (v Value) AsI16() (int16, error) {
	if err := v.requireScalar(2); err != nil {
		return 0, err
	}
	return int16(uint16(v.raw32())), nil
}

func (v Value) AsU32() (uint32, error) {
	if err := v.requireScalar(4); err != nil {
		return 0, err
	}
	return v.raw32(), nil
}

func (v Value) AsI32() (int32, error) {
	if err := v.requireScalar(4); err != nil {
		return 0, err
	}
	return int32(v.raw32()), nil
}

func (v Value) AsFloat32() (float32, error) {
	if v.Tag != FLT {
		return 0, fmt.Errorf("%w: have %s, want FLT", ErrWrongTag, TypeString(v.Tag))
	}
	return math.Float32frombits(v.raw32()), nil
}

func (v Value) requireScalar(width int) error {
	if v.Tag == EMPTY || v.Tag == STR {
		return fmt.Errorf("%w: %s is not a fixed-width scalar", ErrWrongTag, TypeString(v.Tag))
	}
	if Width(v.Tag) != width {
		return fmt.Errorf("%w: %s is %d bytes wide, not %d", ErrWrongTag, TypeString(v.Tag), Width(v.Tag), width)
	}
	return nil
}

// EncodeItem writes the 7-byte SER_ITEM_SIZE record for v at regID into
// dst, which must be at least SerItemSize bytes.
func EncodeItem(dst []byte, regID uint16, v Value) error {
	if len(dst) < SerItemSize {
		return ErrShortBuffer
	}
	if v.Tag == STR {
		return fmt.Errorf("%w: STR has no fixed-width record", ErrWrongTag)
	}
	binary.BigEndian.PutUint16(dst[0:2], regID)
	dst[2] = byte(v.Tag)
	copy(dst[3:7], v.Raw[:])
	return nil
}

// DecodeItem parses a 7-byte SER_ITEM_SIZE record from src.
func DecodeItem(src []byte) (regID uint16, v Value, err error) {
	if len(src) < SerItemSize {
		return 0, Value{}, ErrShortBuffer
	}
	regID = binary.BigEndian.Uint16(src[0:2])
	tag := Tag(src[2])
	if _, ok := tagNames[tag]; !ok || tag == STR {
		return 0, Value{}, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, byte(tag))
	}
	v.Tag = tag
	copy(v.Raw[:], src[3:7])
	return regID, v, nil
}

// EncodeString writes s as a NUL-terminated C string into dst and returns
// the number of bytes written (len(s)+1). Fails if the result would
// exceed MaxStringLen bytes.
func EncodeString(dst []byte, s string) (int, error) {
	n := len(s) + 1
	if n > MaxStringLen {
		return 0, ErrStringTooLong
	}
	if len(dst) < n {
		return 0, ErrShortBuffer
	}
	copy(dst, s)
	dst[len(s)] = 0
	return n, nil
}

// DecodeString reads a NUL-terminated C string from src, returning the
// string (without the NUL) and the number of bytes consumed.
func DecodeString(src []byte) (string, int, error) {
	for i, b := range src {
		if b == 0 {
			return string(src[:i]), i + 1, nil
		}
	}
	return "", 0, ErrMissingNUL
}
